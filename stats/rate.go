package stats

import (
	"errors"
	"fmt"
	"math"
)

// ErrNonPositiveElapsed indicates a reduced elapsed time that cannot
// normalize a cost model.
var ErrNonPositiveElapsed = errors.New("elapsed time must be positive")

// UnitGFLOPS is the throughput unit produced by DeriveRate.
const UnitGFLOPS = "GFLOPS"

// CostModel maps workload parameters to the number of useful arithmetic
// operations performed by one repetition.
type CostModel interface {
	Operations() float64
}

// Rate is a throughput derived from a cost model.
type Rate struct {
	Value float64
	Unit  string
}

// DeriveRate normalizes the operations of model by elapsedMs into GFLOPS:
// operations / elapsed_ms / 1e6.
func DeriveRate(model CostModel, elapsedMs float64) (Rate, error) {
	if elapsedMs <= 0 || math.IsNaN(elapsedMs) {
		return Rate{}, fmt.Errorf("derive rate from %v ms: %w", elapsedMs, ErrNonPositiveElapsed)
	}

	return Rate{
		Value: model.Operations() / elapsedMs / 1e6,
		Unit:  UnitGFLOPS,
	}, nil
}
