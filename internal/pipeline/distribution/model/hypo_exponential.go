package model

import "fmt"

// HypoExponential is the sum of two independent exponential phases.
type HypoExponential struct {
	Rate1 float64
	Rate2 float64
}

func (h HypoExponential) Type() DistributionType {
	return HypoExponentialType
}

func (h HypoExponential) Mean() float64 {
	return 1/h.Rate1 + 1/h.Rate2
}

func (h HypoExponential) Variance() float64 {
	return 1/(h.Rate1*h.Rate1) + 1/(h.Rate2*h.Rate2)
}

// CDF treats the first phase as an Erlang of one stage followed by the second phase.
func (h HypoExponential) CDF(t float64) float64 {
	return erlangWithTailCDF(1, h.Rate1, h.Rate2, t)
}

func (h HypoExponential) Params() map[string]float64 {
	return map[string]float64{
		"lambda1": h.Rate1,
		"lambda2": h.Rate2,
	}
}

func (h HypoExponential) Expression() string {
	return fmt.Sprintf(
		"new HypoExponentialTime(%s, %s)",
		bigDecimal(h.Rate1),
		bigDecimal(h.Rate2),
	)
}
