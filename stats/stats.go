// Package stats reduces duration samples to robust statistics and derives
// throughput rates from workload cost models.
package stats

import (
	"errors"
	"math"
	"slices"
	"time"

	"github.com/samber/lo"
)

// ErrNoSamples indicates that an empty sample was reduced.
var ErrNoSamples = errors.New("no samples collected")

// Millis converts durations to fractional milliseconds.
func Millis(sample []time.Duration) []float64 {
	return lo.Map(sample, func(d time.Duration, _ int) float64 {
		return float64(d) / float64(time.Millisecond)
	})
}

// Median returns the median of values. For an even number of values it is
// the mean of the two middle elements.
func Median(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrNoSamples
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	return percentile(sorted, 0.5), nil
}

// ElapsedMillis reduces a duration sample to its median in milliseconds.
func ElapsedMillis(sample []time.Duration) (float64, error) {
	return Median(Millis(sample))
}

// Summary holds descriptive statistics of a sample, in milliseconds.
type Summary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min_ms"`
	Max    float64 `json:"max_ms"`
	Mean   float64 `json:"mean_ms"`
	Median float64 `json:"median_ms"`
	StdDev float64 `json:"stddev_ms"`
	P90    float64 `json:"p90_ms"`
	P99    float64 `json:"p99_ms"`
}

// Summarize computes descriptive statistics for sample. Percentiles use
// linear interpolation between closest ranks.
func Summarize(sample []time.Duration) (Summary, error) {
	if len(sample) == 0 {
		return Summary{}, ErrNoSamples
	}

	ms := Millis(sample)
	sorted := slices.Clone(ms)
	slices.Sort(sorted)

	mean := lo.Sum(ms) / float64(len(ms))

	var sumSquaredDiff float64
	for _, v := range ms {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}

	return Summary{
		Count:  len(ms),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   mean,
		Median: percentile(sorted, 0.5),
		StdDev: math.Sqrt(sumSquaredDiff / float64(len(ms))),
		P90:    percentile(sorted, 0.9),
		P99:    percentile(sorted, 0.99),
	}, nil
}

// percentile calculates the p-th percentile of sorted values using linear
// interpolation.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}

	index := p * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sorted[lower]
	}

	fraction := index - float64(lower)

	return sorted[lower]*(1-fraction) + sorted[upper]*fraction
}
