package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/pibench/buildinfo"
	"github.com/weiihann/pibench/harness"
	"github.com/weiihann/pibench/params"
	"github.com/weiihann/pibench/report"
	"github.com/weiihann/pibench/stats"
	"github.com/weiihann/pibench/tensor"
	"github.com/weiihann/pibench/workload"
)

// stepClock advances by step on every reading, so each timed repetition
// lasts exactly step.
func stepClock(step time.Duration) func() time.Time {
	now := time.Unix(0, 0)

	return func() time.Time {
		now = now.Add(step)

		return now
	}
}

type harnessOutput struct {
	stdout bytes.Buffer
	diag   bytes.Buffer
}

func (h *harnessOutput) options(t *testing.T) Options {
	return Options{
		Logger:        slog.New(slog.NewTextHandler(&h.diag, &slog.HandlerOptions{Level: slog.LevelDebug})),
		Stdout:        &h.stdout,
		Diagnostics:   &h.diag,
		BuildInfoRoot: t.TempDir(),
		Clock:         stepClock(10 * time.Millisecond),
	}
}

func decodeRecord(t *testing.T, b []byte) map[string]json.RawMessage {
	t.Helper()

	var rec map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &rec))

	return rec
}

func TestRunWorkloadDefaults(t *testing.T) {
	var out harnessOutput
	opts := out.options(t)

	err := RunWorkload(context.Background(), workload.NewConv1D(opts.Logger), params.Map{}, opts)
	require.NoError(t, err)

	rep, err := report.Decode(&out.stdout)
	require.NoError(t, err)

	assert.Equal(t, "conv", rep.TestSuite)
	assert.Equal(t, "PiConv1D", rep.Name)
	assert.Equal(t, tensor.Name, rep.Framework)
	assert.NotEmpty(t, rep.RunID)

	require.NotNil(t, rep.Result.Metrics)
	assert.InDelta(t, 10.0, rep.Result.Metrics.Elapsed, 1e-9)
	assert.InDelta(t, 2.1e-6, rep.Result.Metrics.Rate, 1e-15)

	assert.Equal(t, "float32", rep.Parameters[workload.ParamDType])
	assert.EqualValues(t, 80, rep.Parameters[workload.ParamReps])

	require.NotNil(t, rep.Statistics)
	assert.Equal(t, 80, rep.Statistics.Count)
	assert.Contains(t, out.diag.String(), "measurement complete")
}

func TestRunWorkloadBuildInfoAbsent(t *testing.T) {
	var out harnessOutput

	err := RunWorkload(context.Background(), workload.NewConv1D(slog.New(slog.DiscardHandler)),
		params.Map{"CONV_REPS": "3"}, out.options(t))
	require.NoError(t, err)

	rec := decodeRecord(t, out.stdout.Bytes())
	assert.Equal(t, "null", string(rec["build_info"]))
	assert.Contains(t, out.diag.String(), "build info unavailable")
}

func TestRunWorkloadBuildInfoAvailable(t *testing.T) {
	var out harnessOutput
	opts := out.options(t)

	path := buildinfo.Path(opts.BuildInfoRoot, tensor.Name, tensor.Version)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{"simd": "none"}`), 0o644))

	err := RunWorkload(context.Background(), workload.NewConv1D(slog.New(slog.DiscardHandler)),
		params.Map{"CONV_REPS": "2"}, opts)
	require.NoError(t, err)

	rec := decodeRecord(t, out.stdout.Bytes())
	assert.JSONEq(t, `{"simd": "none"}`, string(rec["build_info"]))
}

func TestRunWorkloadInvalidParamsFallBack(t *testing.T) {
	var out harnessOutput

	src := params.Map{"CONV_REPS": "lots", "TENSOR_DTYPE": "int8"}
	err := RunWorkload(context.Background(), workload.NewConv1D(slog.New(slog.DiscardHandler)), src, out.options(t))
	require.NoError(t, err)

	rep, err := report.Decode(&out.stdout)
	require.NoError(t, err)

	assert.Equal(t, "float32", rep.Parameters[workload.ParamDType])
	assert.EqualValues(t, 80, rep.Parameters[workload.ParamReps])
	assert.Contains(t, out.diag.String(), "invalid parameter value, using default")
}

func TestRunWorkloadNonFiniteFillFallsBack(t *testing.T) {
	for _, fill := range []string{"NaN", "Inf", "-Inf"} {
		t.Run(fill, func(t *testing.T) {
			var out harnessOutput

			src := params.Map{"CONV_REPS": "2", "TENSOR_FILL_VALUE": fill}
			err := RunWorkload(context.Background(), workload.NewConv1D(slog.New(slog.DiscardHandler)), src, out.options(t))
			require.NoError(t, err)

			rep, err := report.Decode(&out.stdout)
			require.NoError(t, err)
			assert.Equal(t, 1.0, rep.Parameters[workload.ParamFill])
		})
	}
}

func TestRunWorkloadOverflowingShapeIsAnError(t *testing.T) {
	var out harnessOutput

	src := params.Map{"BATCH": "4611686018427387904", "TENSOR_INPUT_WIDTH": "8"}
	err := RunWorkload(context.Background(), workload.NewConv1D(slog.New(slog.DiscardHandler)), src, out.options(t))

	assert.ErrorIs(t, err, tensor.ErrInvalidShape)
	assert.Empty(t, out.stdout.String())
}

func TestRunWorkloadConstructFailure(t *testing.T) {
	var out harnessOutput

	src := params.Map{"FILTER_PADDING": "VALID", "FILTER_INPUT_WIDTH": "9"}
	err := RunWorkload(context.Background(), workload.NewConv1D(slog.New(slog.DiscardHandler)), src, out.options(t))

	assert.ErrorIs(t, err, tensor.ErrInvalidShape)
	assert.Empty(t, out.stdout.String(), "no report on failure")
}

// stubAdapter is a minimal adapter with scripted behavior.
type stubAdapter struct {
	runErr   error
	noModel  bool
	closed   bool
	runCalls int
}

func (s *stubAdapter) Name() string      { return "Stub" }
func (s *stubAdapter) Framework() string { return "" }
func (s *stubAdapter) TestSuite() string { return "stub" }

func (s *stubAdapter) Engine() workload.Engine {
	return workload.Engine{Name: "stub", Version: "0"}
}

func (s *stubAdapter) Params() []params.Param {
	return []params.Param{params.PositiveInt("reps", "STUB_REPS", 4, "repetitions")}
}

func (s *stubAdapter) Repetitions(set params.Set) int { return int(set.Int("reps")) }

func (s *stubAdapter) Construct(context.Context, params.Set) (workload.Workload, error) {
	return s, nil
}

func (s *stubAdapter) CostModel(params.Set) (stats.CostModel, error) {
	if s.noModel {
		return nil, nil
	}

	return ops(1e6), nil
}

func (s *stubAdapter) RunOnce(context.Context) error {
	s.runCalls++

	return s.runErr
}

func (s *stubAdapter) Close() error {
	s.closed = true

	return nil
}

type ops float64

func (o ops) Operations() float64 { return float64(o) }

func TestRunWorkloadRunFailureClosesWorkload(t *testing.T) {
	var out harnessOutput

	boom := errors.New("boom")
	stub := &stubAdapter{runErr: boom}

	err := RunWorkload(context.Background(), stub, nil, out.options(t))

	assert.ErrorIs(t, err, boom)
	assert.True(t, stub.closed)
	assert.Empty(t, out.stdout.String())
}

func TestRunWorkloadZeroElapsedIsFatal(t *testing.T) {
	var out harnessOutput
	opts := out.options(t)
	opts.Clock = func() time.Time { return time.Unix(0, 0) }

	stub := &stubAdapter{}
	err := RunWorkload(context.Background(), stub, nil, opts)

	assert.ErrorIs(t, err, stats.ErrNonPositiveElapsed)
	assert.True(t, stub.closed)
	assert.Empty(t, out.stdout.String())
}

func TestRunWorkloadWithoutCostModel(t *testing.T) {
	var out harnessOutput

	stub := &stubAdapter{noModel: true}
	require.NoError(t, RunWorkload(context.Background(), stub, nil, out.options(t)))

	rep, err := report.Decode(&out.stdout)
	require.NoError(t, err)

	assert.Equal(t, 5, stub.runCalls, "warm-up plus four repetitions")
	assert.Zero(t, rep.Result.Metrics.Rate)
	assert.InDelta(t, 10.0, rep.Result.Metrics.Elapsed, 1e-9)
}

type failingPublisher struct{ called bool }

func (f *failingPublisher) Name() string { return "failing" }

func (f *failingPublisher) Publish(context.Context, *report.Report) error {
	f.called = true

	return errors.New("sink unreachable")
}

func TestPublisherFailureIsNotFatal(t *testing.T) {
	var out harnessOutput
	opts := out.options(t)

	pub := &failingPublisher{}
	opts.Publishers = []report.Publisher{pub}
	opts.Summary = true

	require.NoError(t, RunWorkload(context.Background(), &stubAdapter{}, nil, opts))

	assert.True(t, pub.called)
	assert.NotEmpty(t, out.stdout.String())
	assert.Contains(t, out.diag.String(), "publish failed")
	assert.Contains(t, out.diag.String(), "## Stub (stub)")
	assert.NotContains(t, out.stdout.String(), "## Stub", "summary stays off stdout")
}

func fakePython(t *testing.T, body string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes need a POSIX shell")
	}

	script := `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o) shift; out="$1" ;;
  esac
  shift
done
` + body + "\n"

	path := filepath.Join(t.TempDir(), "python")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	return path
}

func TestRunSuite(t *testing.T) {
	py := fakePython(t, `echo "suite chatter"
printf '{"benchmarks": [{"name": "chameleon"}]}' > "$out"`)

	var out harnessOutput
	err := RunSuite(context.Background(), params.Map{"PYTHON": py}, out.options(t))
	require.NoError(t, err)

	rec := decodeRecord(t, out.stdout.Bytes())
	assert.JSONEq(t, `"performance"`, string(rec["test_suite"]))
	assert.JSONEq(t, `"PiPyPerformance"`, string(rec["name"]))
	assert.JSONEq(t, `{"benchmarks": [{"name": "chameleon"}]}`, string(rec["@result"]))
	assert.Equal(t, "null", string(rec["build_info"]))

	var parameters map[string]any
	require.NoError(t, json.Unmarshal(rec["@parameters"], &parameters))
	assert.Equal(t, "chameleon", parameters[ParamBenchmarks])

	assert.NotContains(t, out.stdout.String(), "suite chatter")
	assert.Contains(t, out.diag.String(), "suite chatter")
}

func TestRunSuiteNonZeroExitWithArtifact(t *testing.T) {
	py := fakePython(t, `printf '{"benchmarks": []}' > "$out"
exit 1`)

	var out harnessOutput
	require.NoError(t, RunSuite(context.Background(), params.Map{"PYTHON": py}, out.options(t)))

	assert.NotEmpty(t, out.stdout.String())
	assert.Contains(t, out.diag.String(), "suite did not finish successfully")
}

func TestRunSuiteRejectedSelector(t *testing.T) {
	py := fakePython(t, `echo "no benchmark named nope" >&2
exit 2`)

	var out harnessOutput
	src := params.Map{"PYTHON": py, "PYPERFORMANCE_BENCHMARKS": "nope"}
	err := RunSuite(context.Background(), src, out.options(t))

	assert.ErrorIs(t, err, harness.ErrNoArtifact)
	assert.Empty(t, out.stdout.String(), "no report without an artifact")
}

func TestSuiteParamsDefaults(t *testing.T) {
	set := params.Resolve(nil, SuiteParams(), nil)

	assert.Equal(t, "python3", set.String(ParamPython))
	assert.Equal(t, "chameleon", set.String(ParamBenchmarks))
	assert.Equal(t, "", set.String(ParamOutput))
	assert.Zero(t, set.Int(ParamTimeout))
}

func TestSuiteTimeoutBeyondDurationRangeFallsBack(t *testing.T) {
	src := params.Map{"PYPERFORMANCE_TIMEOUT": "18446744074"}
	set := params.Resolve(src, SuiteParams(), nil)

	assert.Zero(t, set.Int(ParamTimeout))
	assert.Equal(t, params.OriginFallback, set.Origin(ParamTimeout))

	src = params.Map{"PYPERFORMANCE_TIMEOUT": "9223372036"}
	set = params.Resolve(src, SuiteParams(), nil)

	assert.Equal(t, int64(9223372036), set.Int(ParamTimeout))
	assert.Positive(t, time.Duration(set.Int(ParamTimeout))*time.Second)
}
