package model

import (
	"fmt"
	"math"
)

// HyperExponential is a two-branch mixture: Exp(Rate1) with probability P1, Exp(Rate2) with probability P2.
type HyperExponential struct {
	P1    float64
	Rate1 float64
	P2    float64
	Rate2 float64
}

func (h HyperExponential) Type() DistributionType {
	return HyperExponentialType
}

func (h HyperExponential) Mean() float64 {
	return h.P1/h.Rate1 + h.P2/h.Rate2
}

func (h HyperExponential) Variance() float64 {
	secondMoment := 2*h.P1/(h.Rate1*h.Rate1) + 2*h.P2/(h.Rate2*h.Rate2)
	mean := h.Mean()
	return secondMoment - mean*mean
}

func (h HyperExponential) CDF(t float64) float64 {
	if t <= 0 {
		return 0
	}
	return clampProbability(1 - h.P1*math.Exp(-h.Rate1*t) - h.P2*math.Exp(-h.Rate2*t))
}

func (h HyperExponential) Params() map[string]float64 {
	return map[string]float64{
		"p1":      h.P1,
		"lambda1": h.Rate1,
		"p2":      h.P2,
		"lambda2": h.Rate2,
	}
}

func (h HyperExponential) Expression() string {
	return fmt.Sprintf(
		"new HyperExponentialTime(%s, %s, %s)",
		bigDecimal(h.Rate1),
		bigDecimal(h.Rate2),
		bigDecimal(h.P1),
	)
}
