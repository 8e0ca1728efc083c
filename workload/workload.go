// Package workload defines the adapter contract between the harness and a
// benchmarked operation, and the adapters shipped with pibench.
package workload

import (
	"context"

	"github.com/weiihann/pibench/params"
	"github.com/weiihann/pibench/stats"
)

// Workload is a constructed, ready-to-run operation. RunOnce re-executes
// it; construction cost is never part of RunOnce.
type Workload interface {
	RunOnce(ctx context.Context) error
	Close() error
}

// Engine identifies the compute engine behind a workload.
type Engine struct {
	Name    string
	Version string
}

// Adapter builds a Workload from resolved parameters.
type Adapter interface {
	// Name is the benchmark name reported downstream, e.g. PiConv1D.
	Name() string
	// Framework names the engine family, reported alongside the result.
	Framework() string
	// TestSuite is the report's test-suite tag.
	TestSuite() string
	Engine() Engine

	// Params declares every parameter the adapter recognizes.
	Params() []params.Param
	Repetitions(set params.Set) int

	Construct(ctx context.Context, set params.Set) (Workload, error)

	// CostModel returns nil when the workload defines no cost model.
	CostModel(set params.Set) (stats.CostModel, error)
}
