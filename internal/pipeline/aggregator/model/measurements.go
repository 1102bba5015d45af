package model

import "fmt"

// Measurements holds the raw series collected from one run, all in milliseconds.
type Measurements struct {
	E2EDurations []float64
	FilteredOut  int
	// ServiceTotals is keyed by ServiceKey.
	ServiceTotals map[string][]float64
	// Segments is keyed by ServiceKey, then segment name.
	Segments map[string]map[string][]float64
	// NetworkOverheads is keyed by LinkKey.
	NetworkOverheads map[string][]float64
	// OperationDurations holds the raw duration of every span, keyed by ServiceKey.
	OperationDurations map[string][]float64
}

func NewMeasurements() *Measurements {
	return &Measurements{
		ServiceTotals:      make(map[string][]float64),
		Segments:           make(map[string]map[string][]float64),
		NetworkOverheads:   make(map[string][]float64),
		OperationDurations: make(map[string][]float64),
	}
}

func ServiceKey(service, operation string) string {
	return fmt.Sprintf("%s [%s]", service, operation)
}

func LinkKey(source, target string) string {
	return fmt.Sprintf("%s -> %s", source, target)
}

func (m *Measurements) AddSegment(serviceKey, segmentName string, duration float64) {
	segments, ok := m.Segments[serviceKey]
	if !ok {
		segments = make(map[string][]float64)
		m.Segments[serviceKey] = segments
	}
	segments[segmentName] = append(segments[segmentName], duration)
}

// Merge appends the series of other after the series already held.
func (m *Measurements) Merge(other *Measurements) {
	m.E2EDurations = append(m.E2EDurations, other.E2EDurations...)
	m.FilteredOut += other.FilteredOut
	mergeSeries(m.ServiceTotals, other.ServiceTotals)
	mergeSeries(m.NetworkOverheads, other.NetworkOverheads)
	mergeSeries(m.OperationDurations, other.OperationDurations)
	for serviceKey, segments := range other.Segments {
		for name, durations := range segments {
			for _, d := range durations {
				m.AddSegment(serviceKey, name, d)
			}
		}
	}
}

func mergeSeries(into, from map[string][]float64) {
	for key, durations := range from {
		into[key] = append(into[key], durations...)
	}
}
