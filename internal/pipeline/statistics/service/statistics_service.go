package service

import (
	"github.com/Avi18971911/phasefit/internal/pipeline/statistics/model"
	"gonum.org/v1/gonum/stat"
	"math"
	"sort"
)

// Summarize computes the moment statistics of a series. ok is false for an empty series.
func Summarize(durations []float64) (stats model.Statistics, ok bool) {
	n := len(durations)
	if n == 0 {
		return model.Statistics{}, false
	}

	mean := mean(durations)
	minVal, maxVal := durations[0], durations[0]
	for _, d := range durations[1:] {
		minVal = math.Min(minVal, d)
		maxVal = math.Max(maxVal, d)
	}

	variance := sampleVariance(durations, mean)
	stdDev := math.Sqrt(variance)
	cv := 0.0
	if mean != 0 {
		cv = stdDev / mean
	}

	sorted := make([]float64, n)
	copy(sorted, durations)
	sort.Float64s(sorted)

	return model.Statistics{
		Count:                  n,
		Mean:                   mean,
		Min:                    minVal,
		Max:                    maxVal,
		Variance:               variance,
		StdDev:                 stdDev,
		CoefficientOfVariation: cv,
		P50:                    Percentile(sorted, 50),
		P95:                    Percentile(sorted, 95),
		P99:                    Percentile(sorted, 99),
	}, true
}

// SummarizeLatency computes count, mean and sample variance only.
func SummarizeLatency(durations []float64) (stats model.LatencyStatistics, ok bool) {
	n := len(durations)
	if n == 0 {
		return model.LatencyStatistics{}, false
	}
	m := mean(durations)
	return model.LatencyStatistics{
		Count:    n,
		Mean:     m,
		Variance: sampleVariance(durations, m),
	}, true
}

// Percentile returns the nearest-rank p-th percentile of an ascending series.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return stat.Quantile(math.Min(1, math.Max(0, p/100.0)), stat.Empirical, sorted, nil)
}

func mean(durations []float64) float64 {
	sum := 0.0
	for _, d := range durations {
		sum += d
	}
	return sum / float64(len(durations))
}

func sampleVariance(durations []float64, mean float64) float64 {
	n := len(durations)
	if n < 2 {
		return 0
	}
	sumSquares := 0.0
	for _, d := range durations {
		diff := d - mean
		sumSquares += diff * diff
	}
	return sumSquares / float64(n-1)
}
