package service

import (
	"github.com/Avi18971911/phasefit/internal/pipeline/distribution/model"
	"math"
	"sort"
)

// KolmogorovSmirnovDistance is the largest gap between the empirical CDF of the
// observations and the CDF of the fitted model.
func KolmogorovSmirnovDistance(observations []float64, m model.DistributionModel) float64 {
	n := len(observations)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, observations)
	sort.Float64s(sorted)

	distance := 0.0
	for i, x := range sorted {
		fitted := m.CDF(x)
		above := float64(i+1)/float64(n) - fitted
		below := fitted - float64(i)/float64(n)
		distance = math.Max(distance, math.Max(above, below))
	}
	return distance
}
