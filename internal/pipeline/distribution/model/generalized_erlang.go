package model

import (
	"fmt"
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
	"math"
)

// GeneralizedErlang is K exponential phases with rate Rate1 followed by one exponential phase with rate Rate2.
type GeneralizedErlang struct {
	K     int
	Rate1 float64
	Rate2 float64
}

func (g GeneralizedErlang) Type() DistributionType {
	return GeneralizedErlangType
}

func (g GeneralizedErlang) Mean() float64 {
	return float64(g.K)/g.Rate1 + 1/g.Rate2
}

func (g GeneralizedErlang) Variance() float64 {
	return float64(g.K)/(g.Rate1*g.Rate1) + 1/(g.Rate2*g.Rate2)
}

func (g GeneralizedErlang) CDF(t float64) float64 {
	return erlangWithTailCDF(g.K, g.Rate1, g.Rate2, t)
}

func (g GeneralizedErlang) Params() map[string]float64 {
	return map[string]float64{
		"k":       float64(g.K),
		"lambda1": g.Rate1,
		"lambda2": g.Rate2,
	}
}

func (g GeneralizedErlang) Expression() string {
	return fmt.Sprintf(
		"new GeneralizeErlangTime(%d, %s, %s)",
		g.K,
		bigDecimal(g.Rate1),
		bigDecimal(g.Rate2),
	)
}

// erlangWithTailCDF is P(G + E <= t) for G ~ Gamma(k, r1) and E ~ Exp(r2).
//
// F(t) = P(k, r1 t) - exp(-r2 t) r1^k / Gamma(k) * integral_0^t s^(k-1) exp(-(r1-r2) s) ds
//
// The integral is the regularized gamma function when r1 > r2 and a Poisson-weighted series
// when r1 < r2.
func erlangWithTailCDF(k int, r1, r2, t float64) float64 {
	if t <= 0 {
		return 0
	}
	a := float64(k)
	delta := r1 - r2
	if math.Abs(delta) <= 1e-12*math.Max(r1, r2) {
		return clampProbability(mathext.GammaIncReg(a+1, r1*t))
	}

	head := distuv.Gamma{Alpha: a, Beta: r1}
	var correction float64
	if delta > 0 {
		correction = math.Exp(-r2*t + a*(math.Log(r1)-math.Log(delta)) + math.Log(mathext.GammaIncReg(a, delta*t)))
	} else {
		// (r1 t)^k exp(-r1 t) / Gamma(k) is t times the gamma density
		logPrefactor := math.Log(t) + head.LogProb(t)
		if logPrefactor > minLogProbability {
			correction = math.Exp(logPrefactor) * poissonReciprocalSum(-delta*t, a)
		}
	}
	return clampProbability(head.CDF(t) - correction)
}

// poissonReciprocalSum is sum_n Poisson(n; lambda) / (n + a).
func poissonReciprocalSum(lambda, a float64) float64 {
	poisson := distuv.Poisson{Lambda: lambda}
	limit := int(lambda+40*math.Sqrt(lambda)) + 50
	sum := 0.0
	for n := 0; n <= limit; n++ {
		sum += poisson.Prob(float64(n)) / (float64(n) + a)
	}
	return sum
}

// the reciprocal sum never exceeds one, so smaller prefactors vanish in float64
const minLogProbability = -745.0

func clampProbability(p float64) float64 {
	return math.Min(1, math.Max(0, p))
}
