// Package metricsagg reduces raw sample vectors (scheduler latencies,
// resource utilization series, energy readings) into a fixed summary
// suitable for logging and export.
package metricsagg

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
)

// Summary is the fixed-shape reduction of a sample vector.
type Summary struct {
	Count  int
	Mean   float64
	Min    float64
	Max    float64
	P95    float64
	P99    float64
	StdDev float64
}

// ErrEmptySamples is returned by Aggregate when given no samples.
type ErrEmptySamples struct{}

func (ErrEmptySamples) Error() string { return "metricsagg: no samples to aggregate" }

// Aggregate reduces samples into a Summary. samples is never mutated;
// Aggregate sorts a private copy for the quantile computation.
func Aggregate(samples []float64) (Summary, error) {
	if len(samples) == 0 {
		return Summary{}, ErrEmptySamples{}
	}

	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(len(sorted))

	var variance float64
	for _, v := range sorted {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(sorted))

	return Summary{
		Count:  len(sorted),
		Mean:   mean,
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		P95:    quantile(sorted, 0.95),
		P99:    quantile(sorted, 0.99),
		StdDev: math.Sqrt(variance),
	}, nil
}

// quantile linearly interpolates the q-th quantile of an
// already-ascending-sorted slice, q in [0,1].
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Fields renders the summary as structured zap fields for the ambient
// logger, one field per statistic.
func (s Summary) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("count", s.Count),
		zap.Float64("mean", s.Mean),
		zap.Float64("min", s.Min),
		zap.Float64("max", s.Max),
		zap.Float64("p95", s.P95),
		zap.Float64("p99", s.P99),
		zap.Float64("stddev", s.StdDev),
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("count=%d mean=%.4f min=%.4f max=%.4f p95=%.4f p99=%.4f stddev=%.4f",
		s.Count, s.Mean, s.Min, s.Max, s.P95, s.P99, s.StdDev)
}
