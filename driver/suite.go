package driver

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/weiihann/pibench/buildinfo"
	"github.com/weiihann/pibench/harness"
	"github.com/weiihann/pibench/params"
	"github.com/weiihann/pibench/report"
)

// Identity of suite reports.
const (
	SuiteName      = "PiPyPerformance"
	SuiteTestSuite = "performance"
)

// Suite parameter names.
const (
	ParamPython     = "python"
	ParamBenchmarks = "benchmarks"
	ParamOutput     = "output"
	ParamTimeout    = "timeout"
)

// SuiteParams declares the parameters of the pyperformance driver.
func SuiteParams() []params.Param {
	return []params.Param{
		params.String(ParamPython, "PYTHON", "python3",
			"interpreter that runs, and is measured by, the suite"),
		params.String(ParamBenchmarks, "PYPERFORMANCE_BENCHMARKS", "chameleon",
			"benchmark selector passed to the suite"),
		params.String(ParamOutput, "PYPERFORMANCE_OUTPUT", "",
			"result artifact path; empty uses a temporary file"),
		params.NonNegativeInt(ParamTimeout, "PYPERFORMANCE_TIMEOUT", 0,
			"suite timeout in seconds, 0 waits indefinitely").
			WithMax(math.MaxInt64 / int64(time.Second)),
	}
}

// RunSuite delegates measurement to pyperformance and re-wraps its result
// bundle into a report. A run without a result artifact fails and emits
// nothing.
func RunSuite(ctx context.Context, src params.Source, opts Options) error {
	opts = opts.withDefaults()
	logger := opts.Logger.With(slog.String("benchmark", SuiteName))

	set := params.Resolve(src, SuiteParams(), logger)

	interpreter := set.String(ParamPython)
	if resolved, err := harness.ResolveInterpreter(interpreter); err != nil {
		logger.WarnContext(ctx, "interpreter not found on PATH", slog.String("error", err.Error()))
	} else {
		interpreter = resolved
	}

	runner := harness.NewRunner("pyperformance", nil, opts.Diagnostics, logger)

	bundle, err := runner.Run(ctx, harness.RunConfig{
		Interpreter:  interpreter,
		Selector:     set.String(ParamBenchmarks),
		ArtifactPath: set.String(ParamOutput),
		Timeout:      time.Duration(set.Int(ParamTimeout)) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("run suite: %w", err)
	}

	rep := report.New(SuiteTestSuite, SuiteName, set.Map())
	rep.Result = report.BundleResult(bundle.Raw)
	rep.BuildInfo = buildinfo.Absent("external suite")
	rep.Environment = report.CurrentEnvironment()

	return finish(ctx, logger, rep, opts)
}
