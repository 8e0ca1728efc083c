package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, environ []string, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	a := newApp(viper.New(), environ, &stdout, &stderr)
	root := newRootCmd(a)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())

	return stdout.String(), stderr.String(), err
}

func TestConv1DCommand(t *testing.T) {
	stdout, stderr, err := runCLI(t,
		[]string{"CONV_REPS=3", "TENSOR_INPUT_WIDTH=16"},
		"conv1d", "--build-info-dir", t.TempDir(), "--summary",
	)
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &rec), "stdout holds only the report")

	assert.Equal(t, "PiConv1D", rec["name"])
	assert.Nil(t, rec["build_info"])

	parameters := rec["@parameters"].(map[string]any)
	assert.EqualValues(t, 3, parameters["reps"])
	assert.EqualValues(t, 16, parameters["input_width"])

	assert.Contains(t, stderr, "## PiConv1D (conv)")
}

func TestConv1DCommandParamsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("CONV_REPS: 2\nTENSOR_DTYPE: float64\n"), 0o644))

	stdout, _, err := runCLI(t,
		[]string{"TENSOR_DTYPE=float16"},
		"conv1d", "--params-file", path, "--build-info-dir", t.TempDir(),
	)
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &rec))

	parameters := rec["@parameters"].(map[string]any)
	assert.EqualValues(t, 2, parameters["reps"], "file supplies what the environment lacks")
	assert.Equal(t, "float16", parameters["dtype"], "environment wins over the file")
}

func TestConv1DCommandMissingParamsFile(t *testing.T) {
	stdout, stderr, err := runCLI(t,
		[]string{"CONV_REPS=1"},
		"conv1d", "--params-file", filepath.Join(t.TempDir(), "missing.yaml"),
		"--build-info-dir", t.TempDir(),
	)
	require.NoError(t, err)

	assert.NotEmpty(t, stdout)
	assert.Contains(t, stderr, "ignoring params file")
}

func TestConv1DCommandConstructFailure(t *testing.T) {
	stdout, _, err := runCLI(t,
		[]string{"FILTER_PADDING=VALID", "FILTER_INPUT_WIDTH=20"},
		"conv1d", "--build-info-dir", t.TempDir(),
	)

	assert.Error(t, err)
	assert.Empty(t, stdout)
}

func TestLogLevelFromEnvironment(t *testing.T) {
	t.Setenv("PIBENCH_LOG_LEVEL", "debug")

	_, stderr, err := runCLI(t, []string{"CONV_REPS=1"}, "conv1d", "--build-info-dir", t.TempDir())
	require.NoError(t, err)

	assert.Contains(t, stderr, "level=DEBUG")
}

func TestParamsCommand(t *testing.T) {
	stdout, _, err := runCLI(t, nil, "params")
	require.NoError(t, err)

	assert.Contains(t, stdout, "## conv1d")
	assert.Contains(t, stdout, "TENSOR_DTYPE")
	assert.Contains(t, stdout, "## pyperformance")
	assert.Contains(t, stdout, "PYPERFORMANCE_BENCHMARKS")

	stdout, _, err = runCLI(t, nil, "params", "pyperformance")
	require.NoError(t, err)

	assert.NotContains(t, stdout, "TENSOR_DTYPE")
	assert.Contains(t, stdout, "PYTHON")
}

func TestNewLoggerUnknownLevel(t *testing.T) {
	var buf bytes.Buffer

	logger := newLogger(&buf, "chatty")
	assert.Contains(t, buf.String(), "unknown log level")
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
}
