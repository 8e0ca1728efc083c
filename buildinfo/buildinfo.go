// Package buildinfo looks up best-effort build metadata of the compute
// engine. Lookups never fail: a missing or unreadable file yields an
// explicitly absent Result.
package buildinfo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the metadata file looked up inside the dist-info directory.
const FileName = "build_info.json"

// Result is either build metadata or the reason it is absent.
type Result struct {
	info   json.RawMessage
	reason string
}

// Available wraps raw metadata.
func Available(info json.RawMessage) Result {
	return Result{info: info}
}

// Absent records why no metadata is attached.
func Absent(reason string) Result {
	return Result{reason: reason}
}

// Info returns the metadata and whether it is present.
func (r Result) Info() (json.RawMessage, bool) {
	return r.info, r.info != nil
}

// Reason returns why metadata is absent, or "" when it is present.
func (r Result) Reason() string {
	return r.reason
}

// MarshalJSON encodes absent metadata as null.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.info == nil {
		return []byte("null"), nil
	}

	return r.info, nil
}

// UnmarshalJSON decodes null into an absent Result.
func (r *Result) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*r = Absent("null")

		return nil
	}

	*r = Available(append(json.RawMessage(nil), b...))

	return nil
}

// Path returns <root>/<engine>-<version>.dist-info/build_info.json.
func Path(root, engine, version string) string {
	return filepath.Join(root, engine+"-"+version+".dist-info", FileName)
}

// DefaultRoot returns the install root: the parent of the directory
// holding the running executable.
func DefaultRoot() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}

	return filepath.Dir(filepath.Dir(exe)), nil
}

// Load reads the build metadata of engine at version under root.
func Load(root, engine, version string) Result {
	if root == "" {
		return Absent("no install root")
	}

	path := Path(root, engine, version)

	b, err := os.ReadFile(path)
	if err != nil {
		return Absent(fmt.Sprintf("read %s: %v", path, err))
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return Absent(fmt.Sprintf("parse %s: %v", path, err))
	}

	return Available(buf.Bytes())
}
