// Package driver runs one benchmark end to end: it resolves parameters,
// measures the workload (or delegates to an external suite), reduces the
// sample and emits exactly one report.
package driver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/weiihann/pibench/buildinfo"
	"github.com/weiihann/pibench/hwstats"
	"github.com/weiihann/pibench/params"
	"github.com/weiihann/pibench/report"
	"github.com/weiihann/pibench/stats"
	"github.com/weiihann/pibench/timing"
	"github.com/weiihann/pibench/workload"
)

// Options configures the harness around a run. None of these are workload
// parameters.
type Options struct {
	Logger *slog.Logger
	// Stdout receives the report and nothing else.
	Stdout io.Writer
	// Diagnostics receives subprocess output and the optional summary.
	Diagnostics io.Writer
	// BuildInfoRoot overrides the install root searched for build metadata.
	BuildInfoRoot string
	Publishers    []report.Publisher
	Clock         timing.Clock
	// Summary writes a markdown summary to Diagnostics after emission.
	Summary bool
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}

	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}

	if o.Diagnostics == nil {
		o.Diagnostics = os.Stderr
	}

	return o
}

// RunWorkload measures the workload built by a and emits its report.
func RunWorkload(ctx context.Context, a workload.Adapter, src params.Source, opts Options) error {
	opts = opts.withDefaults()
	logger := opts.Logger.With(slog.String("benchmark", a.Name()))

	set := params.Resolve(src, a.Params(), logger)

	w, err := a.Construct(ctx, set)
	if err != nil {
		return fmt.Errorf("construct %s: %w", a.Name(), err)
	}
	defer func() {
		if err := w.Close(); err != nil {
			logger.WarnContext(ctx, "close workload", slog.String("error", err.Error()))
		}
	}()

	measureOpts := []timing.Option{timing.WithLogger(logger)}
	if opts.Clock != nil {
		measureOpts = append(measureOpts, timing.WithClock(opts.Clock))
	}

	gatherer, hwErr := hwstats.Start()
	if hwErr != nil {
		logger.DebugContext(ctx, "hardware stats unavailable", slog.String("error", hwErr.Error()))
	}

	sample, err := timing.Measure(ctx, w, a.Repetitions(set), measureOpts...)
	if err != nil {
		return fmt.Errorf("measure %s: %w", a.Name(), err)
	}

	env := report.CurrentEnvironment()

	if gatherer != nil {
		hw, err := gatherer.Stop()
		if err != nil {
			logger.DebugContext(ctx, "hardware stats unavailable", slog.String("error", err.Error()))
		} else {
			env.Hardware = hw
		}
	}

	elapsed, err := stats.ElapsedMillis(sample)
	if err != nil {
		return fmt.Errorf("reduce sample: %w", err)
	}

	summary, err := stats.Summarize(sample)
	if err != nil {
		return fmt.Errorf("summarize sample: %w", err)
	}

	model, err := a.CostModel(set)
	if err != nil {
		return fmt.Errorf("cost model: %w", err)
	}

	var rate stats.Rate
	if model != nil {
		rate, err = stats.DeriveRate(model, elapsed)
		if err != nil {
			return fmt.Errorf("derive rate: %w", err)
		}
	}

	logger.InfoContext(ctx, "measurement complete",
		slog.Int("repetitions", len(sample)),
		slog.Float64("elapsed_ms", elapsed),
		slog.Float64("rate", rate.Value),
		slog.String("unit", rate.Unit),
	)

	rep := report.New(a.TestSuite(), a.Name(), set.Map())
	rep.Framework = a.Framework()
	rep.Result = report.MetricsResult(rate.Value, elapsed)
	rep.Statistics = &summary
	rep.BuildInfo = loadBuildInfo(ctx, logger, opts.BuildInfoRoot, a.Engine())
	rep.Environment = env

	return finish(ctx, logger, rep, opts)
}

func loadBuildInfo(ctx context.Context, logger *slog.Logger, root string, engine workload.Engine) buildinfo.Result {
	if root == "" {
		var err error

		root, err = buildinfo.DefaultRoot()
		if err != nil {
			logger.DebugContext(ctx, "build info unavailable", slog.String("reason", err.Error()))

			return buildinfo.Absent(err.Error())
		}
	}

	res := buildinfo.Load(root, engine.Name, engine.Version)
	if _, ok := res.Info(); !ok {
		logger.DebugContext(ctx, "build info unavailable",
			slog.String("engine", engine.Name),
			slog.String("reason", res.Reason()),
		)
	}

	return res
}

// finish emits rep, then runs the best-effort steps that follow it.
func finish(ctx context.Context, logger *slog.Logger, rep *report.Report, opts Options) error {
	if err := report.Emit(opts.Stdout, rep); err != nil {
		return err
	}

	logger.InfoContext(ctx, "report emitted", slog.String("run_id", rep.RunID))

	if opts.Summary {
		if err := report.Summarize(opts.Diagnostics, rep); err != nil {
			logger.WarnContext(ctx, "summary failed", slog.String("error", err.Error()))
		}
	}

	if len(opts.Publishers) > 0 {
		// PublishAll logs each failure; publishing never fails the run.
		_ = report.PublishAll(ctx, logger, rep, opts.Publishers...)
	}

	return nil
}
