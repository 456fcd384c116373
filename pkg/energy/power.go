// Package energy implements the power/energy model (C1) and the DVFS
// frequency selector (C2): a CMOS-style power estimator, a trapezoidal
// energy integrator, a measured-sample interpolator, and two frequency
// selection heuristics.
package energy

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Default platform constants for the CMOS power decomposition
// P = P_static + C*V^2*f*alpha.
const (
	CapacitanceDefault = 1e-9 // farads
	StaticWattsDefault = 5.0  // watts
)

// PowerSample is one (timestamp, watts) observation fed to Integrate.
type PowerSample struct {
	Time  time.Time
	Watts float64
}

// Estimator maps (frequency, voltage, utilization) to an instantaneous
// power draw. It never fails: every finite input yields a nonnegative
// watt value.
type Estimator struct {
	Capacitance float64
	StaticWatts float64
}

// NewEstimator returns an Estimator configured with the platform
// defaults.
func NewEstimator() Estimator {
	return Estimator{Capacitance: CapacitanceDefault, StaticWatts: StaticWattsDefault}
}

// Watts computes P_static + C*V^2*f*alpha for frequency in Hz, voltage
// in volts, and utilization in [0,1].
func (e Estimator) Watts(freqHz, voltage, utilization float64) float64 {
	if utilization < 0 {
		utilization = 0
	}
	if utilization > 1 {
		utilization = 1
	}
	p := e.StaticWatts + e.Capacitance*voltage*voltage*freqHz*utilization
	if p < 0 || math.IsNaN(p) {
		return 0
	}
	return p
}

// Integrate applies the trapezoidal rule to an ordered sequence of power
// readings, returning joules. Fewer than two samples returns 0.
func Integrate(readings []PowerSample) float64 {
	if len(readings) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(readings); i++ {
		dt := readings[i].Time.Sub(readings[i-1].Time).Seconds()
		avgW := (readings[i].Watts + readings[i-1].Watts) / 2
		total += dt * avgW
	}
	return total
}

// ErrInsufficientData is returned by NewMeasuredModel when fewer than two
// calibration points are given.
type ErrInsufficientData struct {
	Got int
}

func (e *ErrInsufficientData) Error() string {
	return fmt.Sprintf("energy: need at least 2 measured points, got %d", e.Got)
}

// NewMeasuredModel builds a callable frequency-to-watts function from
// paired measured samples, sorted by frequency ascending and interpolated
// piecewise-linearly, clamped to the endpoints outside the measured
// range.
func NewMeasuredModel(freqs []float64, watts []float64) (func(float64) float64, error) {
	if len(freqs) != len(watts) || len(freqs) < 2 {
		n := len(freqs)
		if len(watts) < n {
			n = len(watts)
		}
		return nil, &ErrInsufficientData{Got: n}
	}

	type point struct{ f, w float64 }
	points := make([]point, len(freqs))
	for i := range freqs {
		points[i] = point{freqs[i], watts[i]}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].f < points[j].f })

	return func(f float64) float64 {
		if f <= points[0].f {
			return points[0].w
		}
		last := points[len(points)-1]
		if f >= last.f {
			return last.w
		}
		for i := 1; i < len(points); i++ {
			if f <= points[i].f {
				lo, hi := points[i-1], points[i]
				if hi.f == lo.f {
					return lo.w
				}
				frac := (f - lo.f) / (hi.f - lo.f)
				return lo.w + frac*(hi.w-lo.w)
			}
		}
		return last.w
	}, nil
}
