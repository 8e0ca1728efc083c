package report

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Summarize writes a human-readable markdown summary of r. It is meant for
// the diagnostic channel, never for the record stream.
func Summarize(w io.Writer, r *Report) error {
	if r == nil {
		return fmt.Errorf("no report to summarize")
	}

	fmt.Fprintf(w, "## %s (%s)\n\n", r.Name, r.TestSuite)

	if len(r.Parameters) > 0 {
		fmt.Fprintln(w, "| Parameter | Value |")
		fmt.Fprintln(w, "|-----------|-------|")

		names := lo.Keys(r.Parameters)
		slices.Sort(names)

		for _, name := range names {
			fmt.Fprintf(w, "| %s | %v |\n", name, r.Parameters[name])
		}

		fmt.Fprintln(w)
	}

	switch {
	case r.Result.Metrics != nil:
		m := r.Result.Metrics
		fmt.Fprintln(w, "| Elapsed (median) | Rate |")
		fmt.Fprintln(w, "|------------------|------|")
		fmt.Fprintf(w, "| %s | %.2f GFLOPS |\n", formatMs(m.Elapsed), m.Rate)

	case r.Result.Bundle != nil:
		fmt.Fprintf(w, "Suite result bundle: %s\n", formatBytes(uint64(len(r.Result.Bundle))))
	}

	if s := r.Statistics; s != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "| Reps | Min | Max | Mean | StdDev | P90 | P99 |")
		fmt.Fprintln(w, "|------|-----|-----|------|--------|-----|-----|")
		fmt.Fprintf(w, "| %d | %s | %s | %s | %s | %s | %s |\n",
			s.Count,
			formatMs(s.Min),
			formatMs(s.Max),
			formatMs(s.Mean),
			formatMs(s.StdDev),
			formatMs(s.P90),
			formatMs(s.P99),
		)
	}

	if env := r.Environment; env != nil && env.Hardware != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "CPU time: %.3fs, RSS: %s\n",
			env.Hardware.CPUTime, formatBytes(env.Hardware.RSS))
	}

	if _, ok := r.BuildInfo.Info(); !ok {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Build info: unavailable (%s)\n", r.BuildInfo.Reason())
	}

	return nil
}

func formatMs(ms float64) string {
	if ms < 1000 {
		return fmt.Sprintf("%.4fms", ms)
	}

	return fmt.Sprintf("%.2fs", ms/1000)
}

func formatBytes(b uint64) string {
	if b == 0 {
		return "-"
	}

	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(b)
	unit := 0

	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}

	formatted := fmt.Sprintf("%.1f", size)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")

	return formatted + " " + units[unit]
}
