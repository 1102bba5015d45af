package service

import (
	"errors"
	"fmt"
	"github.com/Avi18971911/phasefit/internal/pipeline/distribution/model"
	"math"
)

const DefaultMaxErlangPhases = 1000

var hypoExponentialLowerCV = 1 / math.Sqrt2

var (
	ErrInvalidMean        = errors.New("mean must be a positive finite number")
	ErrInvalidCV          = errors.New("coefficient of variation must be a positive finite number")
	ErrCVOutOfRange       = errors.New("coefficient of variation is outside the range of the distribution family")
	ErrTooManyPhases      = errors.New("generalized erlang needs more phases than allowed")
	ErrNoPositiveSolution = errors.New("no positive solution for the distribution parameters")
)

// Fitter selects a phase-type family from the coefficient of variation and solves its
// parameters by matching the first two moments.
//
//	cv >= 1           hyper-exponential
//	1/sqrt(2) <= cv   hypo-exponential
//	otherwise         generalized erlang
type Fitter struct {
	maxErlangPhases int
}

func NewFitter(maxErlangPhases int) *Fitter {
	if maxErlangPhases <= 0 {
		maxErlangPhases = DefaultMaxErlangPhases
	}
	return &Fitter{maxErlangPhases: maxErlangPhases}
}

func (f *Fitter) Fit(mean, cv float64) (model.DistributionModel, error) {
	if err := validateMoments(mean, cv); err != nil {
		return nil, err
	}
	switch {
	case cv >= 1:
		return FitHyperExponential(mean, cv)
	case cv >= hypoExponentialLowerCV:
		return FitHypoExponential(mean, cv)
	default:
		return f.FitGeneralizedErlang(mean, cv)
	}
}

// FitHyperExponential solves the balanced-means two-branch mixture for cv >= 1.
func FitHyperExponential(mean, cv float64) (model.HyperExponential, error) {
	if err := validateMoments(mean, cv); err != nil {
		return model.HyperExponential{}, err
	}
	if cv < 1 {
		return model.HyperExponential{}, fmt.Errorf("cv %g below 1: %w", cv, ErrCVOutOfRange)
	}
	cvSquared := cv * cv
	term := math.Sqrt((cvSquared - 1) / (cvSquared + 1))
	p1 := 0.5 * (1 + term)
	p2 := 1 - p1
	if p2 <= 0 {
		return model.HyperExponential{}, fmt.Errorf("second branch vanishes for cv %g: %w", cv, ErrNoPositiveSolution)
	}
	return model.HyperExponential{
		P1:    p1,
		Rate1: 2 * p1 / mean,
		P2:    p2,
		Rate2: 2 * p2 / mean,
	}, nil
}

// FitHypoExponential solves two sequential phases for 1/sqrt(2) <= cv < 1.
func FitHypoExponential(mean, cv float64) (model.HypoExponential, error) {
	if err := validateMoments(mean, cv); err != nil {
		return model.HypoExponential{}, err
	}
	if cv >= 1 || cv < hypoExponentialLowerCV {
		return model.HypoExponential{}, fmt.Errorf("cv %g outside [1/sqrt(2), 1): %w", cv, ErrCVOutOfRange)
	}
	// rounding at the lower boundary can push the radicand just below zero
	radicand := math.Max(0, mean*mean*(2*cv*cv-1))
	disc := math.Sqrt(radicand)
	m1 := (mean + disc) / 2
	m2 := (mean - disc) / 2
	if m2 <= 0 {
		return model.HypoExponential{}, fmt.Errorf("second phase mean %g: %w", m2, ErrNoPositiveSolution)
	}
	return model.HypoExponential{
		Rate1: 1 / m1,
		Rate2: 1 / m2,
	}, nil
}

// FitGeneralizedErlang solves k identical phases plus one exponential tail for cv < 1/sqrt(2).
func (f *Fitter) FitGeneralizedErlang(mean, cv float64) (model.GeneralizedErlang, error) {
	if err := validateMoments(mean, cv); err != nil {
		return model.GeneralizedErlang{}, err
	}
	if cv >= hypoExponentialLowerCV {
		return model.GeneralizedErlang{}, fmt.Errorf("cv %g not below 1/sqrt(2): %w", cv, ErrCVOutOfRange)
	}
	cvSquared := cv * cv
	phases := math.Ceil(1 / cvSquared)
	if phases > float64(f.maxErlangPhases) {
		return model.GeneralizedErlang{}, fmt.Errorf(
			"cv %g needs %g phases, limit is %d: %w", cv, phases, f.maxErlangPhases, ErrTooManyPhases,
		)
	}
	k := int(phases) - 1
	kf := float64(k)

	a := kf * (kf + 1)
	b := -2 * mean * kf
	c := mean * mean * (1 - cvSquared)
	delta := b*b - 4*a*c
	if delta < -1e-12*b*b {
		return model.GeneralizedErlang{}, fmt.Errorf("negative discriminant %g: %w", delta, ErrNoPositiveSolution)
	}
	sqrtDelta := math.Sqrt(math.Max(delta, 0))

	for _, x := range []float64{(-b - sqrtDelta) / (2 * a), (-b + sqrtDelta) / (2 * a)} {
		if x <= 0 {
			continue
		}
		y := mean - kf*x
		if y <= 0 {
			continue
		}
		return model.GeneralizedErlang{
			K:     k,
			Rate1: 1 / x,
			Rate2: 1 / y,
		}, nil
	}
	return model.GeneralizedErlang{}, fmt.Errorf("mean %g cv %g: %w", mean, cv, ErrNoPositiveSolution)
}

func validateMoments(mean, cv float64) error {
	if math.IsNaN(mean) || math.IsInf(mean, 0) || mean <= 0 {
		return fmt.Errorf("mean %g: %w", mean, ErrInvalidMean)
	}
	if math.IsNaN(cv) || math.IsInf(cv, 0) || cv <= 0 {
		return fmt.Errorf("cv %g: %w", cv, ErrInvalidCV)
	}
	return nil
}
