package model

import "fmt"

const (
	FinalProcessingSegment       = "final processing / response preparation"
	FullInternalExecutionSegment = "full internal execution"
)

// Segment is a slice of a server span's own processing time carved around its external calls.
type Segment struct {
	Name           string  `json:"name"`
	DurationMillis float64 `json:"duration_ms"`
}

func ProcessingBeforeCalling(service, operation string) string {
	return fmt.Sprintf("processing before calling %s [%s]", service, operation)
}
