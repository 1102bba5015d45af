package model

import (
	"fmt"
	"github.com/shopspring/decimal"
)

type DistributionType string

const (
	HyperExponentialType  DistributionType = "Hyper-exponential"
	HypoExponentialType   DistributionType = "Hypo-exponential"
	GeneralizedErlangType DistributionType = "Generalized-Erlang"
)

// DistributionModel is a fitted phase-type distribution over durations in milliseconds.
type DistributionModel interface {
	Type() DistributionType
	Mean() float64
	Variance() float64
	CDF(t float64) float64
	Params() map[string]float64
	// Expression renders the constructor call understood by the downstream simulator.
	Expression() string
}

// FittedDistribution is the serializable view of a DistributionModel.
type FittedDistribution struct {
	Type                DistributionType   `json:"type"`
	Params              map[string]float64 `json:"params"`
	SimulatorExpression string             `json:"simulator_expression"`
	KSDistance          *float64           `json:"ks_distance,omitempty"`
}

func Describe(m DistributionModel) FittedDistribution {
	return FittedDistribution{
		Type:                m.Type(),
		Params:              m.Params(),
		SimulatorExpression: m.Expression(),
	}
}

func bigDecimal(value float64) string {
	return fmt.Sprintf("new BigDecimal(%s)", decimal.NewFromFloat(value).String())
}
