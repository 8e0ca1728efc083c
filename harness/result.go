// Package harness bridges to external benchmark suites that run
// out-of-process and write their own result artifact.
package harness

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrNoArtifact indicates the suite produced no result artifact.
	ErrNoArtifact = errors.New("suite produced no result artifact")

	// ErrInvalidArtifact indicates the artifact is not a JSON document.
	ErrInvalidArtifact = errors.New("suite result artifact is not valid JSON")

	// ErrUnknownSuite indicates a suite name with no command mapping.
	ErrUnknownSuite = errors.New("unknown suite")
)

// Bundle is a suite's own result document, passed through verbatim.
type Bundle struct {
	Suite    string
	Selector string
	// ExitCode is the suite's exit status; -1 if it did not exit normally.
	ExitCode int
	Raw      json.RawMessage
}

// Succeeded reports whether the suite exited with status zero.
func (b *Bundle) Succeeded() bool {
	return b.ExitCode == 0
}

func readArtifact(path string) (json.RawMessage, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoArtifact, path)
	}
	if err != nil {
		return nil, fmt.Errorf("open artifact %s: %w", path, err)
	}
	defer f.Close()

	return parseArtifact(f)
}

func parseArtifact(r io.Reader) (json.RawMessage, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}

	return buf.Bytes(), nil
}
