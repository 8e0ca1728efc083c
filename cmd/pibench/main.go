// Package main provides the CLI entry point for pibench, a performance
// indicator harness that measures a workload and emits one JSON report.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/weiihann/pibench/driver"
	"github.com/weiihann/pibench/params"
	"github.com/weiihann/pibench/report"
	"github.com/weiihann/pibench/workload"
)

const (
	flagParamsFile     = "params-file"
	flagBuildInfoDir   = "build-info-dir"
	flagSummary        = "summary"
	flagInfluxURL      = "influx-url"
	flagInfluxToken    = "influx-token"
	flagInfluxOrg      = "influx-org"
	flagInfluxBucket   = "influx-bucket"
	flagPushgatewayURL = "pushgateway-url"
	flagLogLevel       = "log-level"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := newApp(viper.New(), os.Environ(), os.Stdout, os.Stderr)
	err := newRootCmd(a).ExecuteContext(ctx)

	stop()

	if err != nil {
		a.log().Error("pibench failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// app carries the process-wide handles shared by every subcommand.
type app struct {
	v       *viper.Viper
	environ []string
	stdout  io.Writer
	stderr  io.Writer
	logger  *slog.Logger
}

func newApp(v *viper.Viper, environ []string, stdout, stderr io.Writer) *app {
	return &app{v: v, environ: environ, stdout: stdout, stderr: stderr}
}

func (a *app) log() *slog.Logger {
	if a.logger == nil {
		a.logger = slog.New(slog.NewTextHandler(a.stderr, nil))
	}

	return a.logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "pibench",
		Short: "Performance indicator benchmark harness",
		Long: `pibench runs a single benchmark, reduces the timed repetitions to a
median and a derived rate, and writes exactly one JSON report to stdout.

Workload parameters are read from the environment (e.g. CONV_REPS=20) and
optionally from a YAML params file; the environment wins. Harness options
may also be set through environment variables prefixed with PIBENCH_,
e.g. PIBENCH_LOG_LEVEL=debug. Flags take precedence over the environment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			a.logger = newLogger(a.stderr, a.v.GetString(flagLogLevel))

			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String(flagParamsFile, "",
		"YAML file of workload parameters, keyed like the environment")
	flags.String(flagBuildInfoDir, "",
		"Install root searched for engine build metadata (default: parent of the binary's directory)")
	flags.Bool(flagSummary, false,
		"Write a markdown summary to stderr after the report")
	flags.String(flagInfluxURL, "",
		"InfluxDB v2 URL to publish the report to")
	flags.String(flagInfluxToken, "",
		"InfluxDB API token")
	flags.String(flagInfluxOrg, "",
		"InfluxDB organization")
	flags.String(flagInfluxBucket, "",
		"InfluxDB bucket")
	flags.String(flagPushgatewayURL, "",
		"Prometheus Pushgateway URL to publish gauges to")
	flags.String(flagLogLevel, "info",
		"Log level: debug, info, warn, error")

	bindConfig(a.v, flags)

	root.AddCommand(newConv1DCmd(a), newSuiteCmd(a), newParamsCmd(a))

	return root
}

// bindConfig lets every flag also be set as PIBENCH_<FLAG>, with dashes
// replaced by underscores.
func bindConfig(v *viper.Viper, flags *pflag.FlagSet) {
	v.SetEnvPrefix("PIBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// BindPFlags only fails on a nil flag set.
	_ = v.BindPFlags(flags)
}

func newConv1DCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "conv1d",
		Short: "Benchmark a 1-D convolution (PiConv1D)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, closeFn := a.options(cmd.Context())
			defer closeFn()

			return driver.RunWorkload(cmd.Context(), workload.NewConv1D(a.logger), a.source(cmd.Context()), opts)
		},
	}
}

func newSuiteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pyperformance",
		Short: "Run a pyperformance benchmark and wrap its results (PiPyPerformance)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, closeFn := a.options(cmd.Context())
			defer closeFn()

			return driver.RunSuite(cmd.Context(), a.source(cmd.Context()), opts)
		},
	}
}

func newParamsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "params [conv1d|pyperformance]",
		Short:     "Print the recognized workload parameters as a markdown table",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"conv1d", "pyperformance"},
		RunE: func(_ *cobra.Command, args []string) error {
			tables := []struct {
				name string
				defs []params.Param
			}{
				{"conv1d", workload.Conv1DParams()},
				{"pyperformance", driver.SuiteParams()},
			}

			for _, tbl := range tables {
				if len(args) == 1 && args[0] != tbl.name {
					continue
				}

				fmt.Fprintf(a.stdout, "## %s\n\n", tbl.name)

				if err := params.Describe(a.stdout, tbl.defs); err != nil {
					return err
				}

				fmt.Fprintln(a.stdout)
			}

			return nil
		},
	}
}

// source layers the environment over the optional params file. An
// unreadable file is reported and skipped.
func (a *app) source(ctx context.Context) params.Source {
	env := params.Env(a.environ)

	path := a.v.GetString(flagParamsFile)
	if path == "" {
		return env
	}

	file, err := params.LoadFile(path)
	if err != nil {
		a.logger.WarnContext(ctx, "ignoring params file", slog.String("error", err.Error()))

		return env
	}

	return params.Layered(env, file)
}

func (a *app) options(ctx context.Context) (driver.Options, func()) {
	opts := driver.Options{
		Logger:        a.logger,
		Stdout:        a.stdout,
		Diagnostics:   a.stderr,
		BuildInfoRoot: a.v.GetString(flagBuildInfoDir),
		Summary:       a.v.GetBool(flagSummary),
	}

	closeFn := func() {}

	if url := a.v.GetString(flagInfluxURL); url != "" {
		influx := report.NewInfluxPublisher(report.InfluxConfig{
			URL:    url,
			Token:  a.v.GetString(flagInfluxToken),
			Org:    a.v.GetString(flagInfluxOrg),
			Bucket: a.v.GetString(flagInfluxBucket),
		})
		opts.Publishers = append(opts.Publishers, influx)
		closeFn = influx.Close

		a.logger.DebugContext(ctx, "publishing to influxdb", slog.String("url", url))
	}

	if url := a.v.GetString(flagPushgatewayURL); url != "" {
		opts.Publishers = append(opts.Publishers, report.NewPushgatewayPublisher(url, ""))

		a.logger.DebugContext(ctx, "publishing to pushgateway", slog.String("url", url))
	}

	return opts, closeFn
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level

	err := lvl.UnmarshalText([]byte(level))

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	if err != nil {
		logger.Warn("unknown log level, using info", slog.String("level", level))
	}

	return logger
}
