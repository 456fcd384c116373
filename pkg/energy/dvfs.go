package energy

import (
	"fmt"
	"sort"
)

// DefaultFrequenciesMHz is returned by AvailableFrequencies when the
// platform reports none.
var DefaultFrequenciesMHz = []int{800, 1200, 1600, 2000, 2400, 2800, 3200, 3600}

// AvailableFrequencies returns reported when nonempty, otherwise the
// default ladder.
func AvailableFrequencies(reported []int) []int {
	if len(reported) > 0 {
		out := make([]int, len(reported))
		copy(out, reported)
		return out
	}
	out := make([]int, len(DefaultFrequenciesMHz))
	copy(out, DefaultFrequenciesMHz)
	return out
}

// targetFraction implements the §4.2 table mapping utilization/memory
// pressure to a target fraction of f_max.
func targetFraction(u, m float64) float64 {
	switch {
	case u > 0.8 && m < 0.5:
		return 0.9 // CPU-bound
	case m > 0.7:
		return 0.6 // memory-bound
	case u < 0.3:
		return 0.4 // idle
	default:
		return 0.7 // balanced
	}
}

// OptimalForWorkload picks the frequency in freqsMHz closest to
// fraction*f_max whose estimated power at utilization u is within
// budgetWatts, falling back to the minimum frequency if nothing
// qualifies.
func OptimalForWorkload(u, m, budgetWatts float64, freqsMHz []int, est Estimator) int {
	if len(freqsMHz) == 0 {
		return 0
	}
	sorted := append([]int(nil), freqsMHz...)
	sort.Ints(sorted)
	fMax := sorted[len(sorted)-1]

	target := targetFraction(u, m) * float64(fMax)

	type candidate struct {
		freq int
		dist float64
	}
	var ranked []candidate
	for _, f := range sorted {
		ranked = append(ranked, candidate{f, absFloat(float64(f) - target)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].dist < ranked[j].dist })

	for _, c := range ranked {
		watts := est.Watts(float64(c.freq)*1e6, 1.0, u)
		if watts <= budgetWatts {
			return c.freq
		}
	}
	return sorted[0]
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// ErrDeadlineInfeasible is returned by EnergyOptimalFrequencyStrict when
// no frequency in the ladder meets the deadline.
type ErrDeadlineInfeasible struct {
	DeadlineSec float64
}

func (e *ErrDeadlineInfeasible) Error() string {
	return fmt.Sprintf("energy: no frequency meets deadline %.3fs", e.DeadlineSec)
}

// execTime models t(f) = t0 * fMax/f, the CPU-bound scaling assumption.
// fMax and f must be in the same unit; the ratio cancels it out.
func execTime(t0Sec float64, fMaxMHz int, freqMHz int) float64 {
	return t0Sec * float64(fMaxMHz) / float64(freqMHz)
}

// EnergyOptimalFrequency returns the frequency in freqsMHz minimizing
// E(f) = P(f)*t(f) subject to t(f) <= deadline, ties broken toward the
// higher frequency. If no candidate survives the deadline, it fails open
// and returns the maximum frequency (see §9 Open Questions).
func EnergyOptimalFrequency(freqsMHz []int, t0Sec float64, fMaxMHz int, deadlineSec *float64, est Estimator, utilization float64) int {
	f, err := selectEnergyOptimal(freqsMHz, t0Sec, fMaxMHz, deadlineSec, est, utilization)
	if err != nil {
		return maxInt(freqsMHz)
	}
	return f
}

// EnergyOptimalFrequencyStrict is the fail-closed sibling of
// EnergyOptimalFrequency: it returns ErrDeadlineInfeasible instead of
// silently falling back to f_max.
func EnergyOptimalFrequencyStrict(freqsMHz []int, t0Sec float64, fMaxMHz int, deadlineSec *float64, est Estimator, utilization float64) (int, error) {
	return selectEnergyOptimal(freqsMHz, t0Sec, fMaxMHz, deadlineSec, est, utilization)
}

func selectEnergyOptimal(freqsMHz []int, t0Sec float64, fMaxMHz int, deadlineSec *float64, est Estimator, utilization float64) (int, error) {
	type candidate struct {
		freq   int
		energy float64
	}
	var survivors []candidate
	for _, fMHz := range freqsMHz {
		t := execTime(t0Sec, fMaxMHz, fMHz)
		if deadlineSec != nil && t > *deadlineSec {
			continue
		}
		watts := est.Watts(float64(fMHz)*1e6, 1.0, utilization)
		survivors = append(survivors, candidate{fMHz, watts * t})
	}
	if len(survivors) == 0 {
		d := 0.0
		if deadlineSec != nil {
			d = *deadlineSec
		}
		return 0, &ErrDeadlineInfeasible{DeadlineSec: d}
	}

	best := survivors[0]
	for _, c := range survivors[1:] {
		if c.energy < best.energy || (c.energy == best.energy && c.freq > best.freq) {
			best = c
		}
	}
	return best.freq, nil
}

func maxInt(xs []int) int {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}
