package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// DefaultArtifactName is the artifact file name used inside the runner's
// temporary directory.
const DefaultArtifactName = "output.json"

// RunConfig holds parameters for a single suite execution.
type RunConfig struct {
	Interpreter string
	Selector    string
	// ArtifactPath is where the suite writes its results. When empty a
	// temporary directory is used and removed after the run.
	ArtifactPath string
	// Timeout bounds the suite run; zero waits indefinitely.
	Timeout time.Duration
}

// Runner launches and manages a single suite process.
type Runner struct {
	Suite  string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// NewRunner creates a Runner for the named suite. Both output streams of
// the suite process are written to diagnostics, never to the harness's own
// stdout. Env is appended to the inherited environment.
func NewRunner(
	suite string,
	env []string,
	diagnostics io.Writer,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		Suite:  suite,
		Env:    env,
		Stdout: diagnostics,
		Stderr: diagnostics,
		Logger: logger.With(slog.String("suite", suite)),
	}
}

// Run executes the suite and returns its result bundle. A non-zero exit
// is logged but not fatal; the run fails only when no valid artifact was
// written.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*Bundle, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	artifact := cfg.ArtifactPath
	if artifact == "" {
		dir, err := os.MkdirTemp("", "pibench-"+r.Suite+"-*")
		if err != nil {
			return nil, fmt.Errorf("create artifact dir: %w", err)
		}
		defer os.RemoveAll(dir)

		artifact = filepath.Join(dir, DefaultArtifactName)
	} else if err := os.Remove(artifact); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("clear stale artifact %s: %w", artifact, err)
	}

	cc, err := WrapCommand(r.Suite, cfg.Interpreter, cfg.Selector, artifact)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, cc.Binary, cc.Args...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	cmd.WaitDelay = time.Second

	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	r.Logger.InfoContext(ctx, "starting suite",
		slog.String("binary", cc.Binary),
		slog.String("selector", cfg.Selector),
		slog.String("artifact", artifact),
	)

	start := time.Now()
	runErr := cmd.Run()
	exitCode := exitCodeOf(runErr)

	if runErr != nil {
		r.Logger.WarnContext(ctx, "suite did not finish successfully",
			slog.Int("exit_code", exitCode),
			slog.String("error", runErr.Error()),
		)
	} else {
		r.Logger.InfoContext(ctx, "suite finished",
			slog.Duration("wall_time", time.Since(start)),
		)
	}

	raw, err := readArtifact(artifact)
	if err != nil {
		if runErr != nil {
			return nil, fmt.Errorf("suite %s: %w (run error: %v)", r.Suite, err, runErr)
		}

		return nil, fmt.Errorf("suite %s: %w", r.Suite, err)
	}

	return &Bundle{
		Suite:    r.Suite,
		Selector: cfg.Selector,
		ExitCode: exitCode,
		Raw:      raw,
	}, nil
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return -1
}
