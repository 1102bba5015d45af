package service

import (
	"fmt"
	"github.com/Avi18971911/phasefit/internal/pipeline/trace_tree/model"
)

const (
	AnyRootStrategy        = "any_root"
	ExactSpanCountStrategy = "exact_span_count"
)

// ValidityFilter decides whether a trace with a matching root takes part in the analysis.
type ValidityFilter interface {
	Name() string
	Accept(tree model.TraceTree) bool
}

type AnyRootFilter struct{}

func (f AnyRootFilter) Name() string {
	return AnyRootStrategy
}

func (f AnyRootFilter) Accept(_ model.TraceTree) bool {
	return true
}

// ExactSpanCountFilter rejects partial or retried executions whose span count differs from the expected one.
type ExactSpanCountFilter struct {
	ExpectedSpanCount int
}

func (f ExactSpanCountFilter) Name() string {
	return ExactSpanCountStrategy
}

func (f ExactSpanCountFilter) Accept(tree model.TraceTree) bool {
	return tree.SpanCount() == f.ExpectedSpanCount
}

func NewValidityFilter(strategy string, expectedSpanCount int) (ValidityFilter, error) {
	switch strategy {
	case "", AnyRootStrategy:
		return AnyRootFilter{}, nil
	case ExactSpanCountStrategy:
		if expectedSpanCount <= 0 {
			return nil, fmt.Errorf("expected span count %d: %w", expectedSpanCount, ErrInvalidSpanCount)
		}
		return ExactSpanCountFilter{ExpectedSpanCount: expectedSpanCount}, nil
	default:
		return nil, fmt.Errorf("%q: %w", strategy, ErrUnknownStrategy)
	}
}
