package harness

import (
	"fmt"
	"os/exec"
	"path/filepath"
)

// KnownSuites returns the list of supported suite names.
func KnownSuites() []string {
	return []string{"pyperformance"}
}

// CommandConfig holds the resolved command and arguments needed to run a
// suite.
type CommandConfig struct {
	Binary string
	Args   []string
}

// WrapCommand returns the exec configuration that runs suite with the
// given interpreter, selector and artifact path. pyperformance runs as a
// module of the interpreter it benchmarks:
//
//	python3 -m pyperformance run --python=python3 -o out.json -b chameleon
func WrapCommand(suite, interpreter, selector, artifact string) (CommandConfig, error) {
	switch suite {
	case "pyperformance":
		return CommandConfig{
			Binary: interpreter,
			Args: []string{
				"-m", "pyperformance", "run",
				"--python=" + interpreter,
				"-o", artifact,
				"-b", selector,
			},
		}, nil
	default:
		return CommandConfig{}, fmt.Errorf("%w %q", ErrUnknownSuite, suite)
	}
}

// ResolveInterpreter returns an absolute path for interpreter, searching
// PATH when it is a bare name.
func ResolveInterpreter(interpreter string) (string, error) {
	if filepath.IsAbs(interpreter) {
		return interpreter, nil
	}

	path, err := exec.LookPath(interpreter)
	if err != nil {
		return "", fmt.Errorf("resolve interpreter %q: %w", interpreter, err)
	}

	return path, nil
}
