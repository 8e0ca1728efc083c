// Package report assembles the single structured result record a
// benchmark run emits, and optionally publishes it to monitoring backends.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/weiihann/pibench/buildinfo"
	"github.com/weiihann/pibench/hwstats"
	"github.com/weiihann/pibench/stats"
)

// Report is the record written to stdout at the end of a run.
type Report struct {
	TestSuite  string         `json:"test_suite"`
	Framework  string         `json:"framework,omitempty"`
	Name       string         `json:"name"`
	RunID      string         `json:"run_id"`
	Timestamp  string         `json:"timestamp"`
	Parameters map[string]any `json:"@parameters"`
	Result     Result         `json:"@result"`
	// BuildInfo is always present; it encodes as null when unavailable.
	BuildInfo   buildinfo.Result `json:"build_info"`
	Statistics  *stats.Summary   `json:"statistics,omitempty"`
	Environment *Environment     `json:"environment,omitempty"`
}

// New returns a Report with a fresh run id and timestamp.
func New(testSuite, name string, parameters map[string]any) *Report {
	if parameters == nil {
		parameters = map[string]any{}
	}

	return &Report{
		TestSuite:  testSuite,
		Name:       name,
		RunID:      uuid.NewString(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Parameters: parameters,
		BuildInfo:  buildinfo.Absent("not collected"),
	}
}

// Metrics is the result payload of an in-process workload: the median
// elapsed time in milliseconds and the derived rate.
type Metrics struct {
	Rate    float64 `json:"rate"`
	Elapsed float64 `json:"elapsed"`
}

// Result is either Metrics or an opaque bundle produced by an external
// suite.
type Result struct {
	Metrics *Metrics
	Bundle  json.RawMessage
}

// MetricsResult wraps rate and elapsed.
func MetricsResult(rate, elapsed float64) Result {
	return Result{Metrics: &Metrics{Rate: rate, Elapsed: elapsed}}
}

// BundleResult wraps a raw suite result document.
func BundleResult(raw json.RawMessage) Result {
	return Result{Bundle: raw}
}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	switch {
	case r.Bundle != nil:
		return r.Bundle, nil
	case r.Metrics != nil:
		return json.Marshal(r.Metrics)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler. An object with exactly the
// rate and elapsed fields decodes into Metrics; anything else is kept as a
// bundle.
func (r *Result) UnmarshalJSON(b []byte) error {
	*r = Result{}

	trimmed := bytes.TrimSpace(b)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err == nil && len(fields) == 2 {
		_, hasRate := fields["rate"]
		_, hasElapsed := fields["elapsed"]

		var m Metrics
		if hasRate && hasElapsed && json.Unmarshal(trimmed, &m) == nil {
			r.Metrics = &m

			return nil
		}
	}

	r.Bundle = append(json.RawMessage(nil), trimmed...)

	return nil
}

// Environment describes the host the benchmark ran on.
type Environment struct {
	Hostname  string         `json:"hostname,omitempty"`
	OS        string         `json:"os"`
	Arch      string         `json:"arch"`
	NumCPU    int            `json:"num_cpu"`
	GoVersion string         `json:"go_version"`
	Hardware  *hwstats.Stats `json:"hardware,omitempty"`
}

// CurrentEnvironment describes the running host.
func CurrentEnvironment() *Environment {
	hostname, _ := os.Hostname()

	return &Environment{
		Hostname:  hostname,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		NumCPU:    runtime.NumCPU(),
		GoVersion: runtime.Version(),
	}
}

// Emit serializes r and writes it to w in a single write, so w never
// receives a partial record.
func Emit(w io.Writer, r *Report) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	b = append(b, '\n')

	n, err := w.Write(b)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if n != len(b) {
		return fmt.Errorf("write report: %w", io.ErrShortWrite)
	}

	return nil
}

// Decode parses a record previously written by Emit.
func Decode(r io.Reader) (*Report, error) {
	var rep Report
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}

	return &rep, nil
}
