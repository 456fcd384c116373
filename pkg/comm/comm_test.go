package comm

import (
	"math"
	"testing"
)

func TestLookupFallsBackToDefaultEdge(t *testing.T) {
	m := NewModel()
	e := m.Lookup(1, 2)
	if e != DefaultEdge {
		t.Fatalf("expected DefaultEdge, got %+v", e)
	}
}

func TestSetOverridesLookup(t *testing.T) {
	m := NewModel()
	m.Set(1, 2, 500, 1)
	e := m.Lookup(1, 2)
	if e.BandwidthMBs != 500 || e.LatencyMs != 1 {
		t.Fatalf("unexpected edge after Set: %+v", e)
	}
	// the reverse pair is untouched
	if m.Lookup(2, 1) != DefaultEdge {
		t.Fatal("expected Set to be directional")
	}
}

func TestTimeSelfEdgeIsZero(t *testing.T) {
	m := NewDefaultMatrix([]int{1, 2})
	if got := m.Time(1<<20, 1, 1); got != 0 {
		t.Fatalf("expected zero transfer time within a resource, got %v", got)
	}
}

func TestTimeAccountsForLatencyAndBandwidth(t *testing.T) {
	m := NewModel()
	m.Set(1, 2, 8, 100) // 8 MB/s, 100ms latency
	const bytes = 8 * 1024 * 1024
	got := m.Time(bytes, 1, 2)
	want := 0.1 + 1.0 // 100ms latency + 1 second to move 8MB at 8MB/s
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("Time() = %v, want %v", got, want)
	}
}

func TestTimeZeroBandwidthIsInfinite(t *testing.T) {
	m := NewModel()
	m.Set(1, 2, 0, 0)
	if got := m.Time(1024, 1, 2); !math.IsInf(got, 1) {
		t.Fatalf("expected +Inf transfer time for zero bandwidth, got %v", got)
	}
}

func TestAverageCostExcludesSelfPairs(t *testing.T) {
	m := NewDefaultMatrix([]int{1, 2, 3})
	got := m.AverageCost(1024, []int{1, 2, 3})
	want := m.Time(1024, 1, 2) // every cross pair is symmetric under NewDefaultMatrix
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("AverageCost() = %v, want %v", got, want)
	}
}

func TestAverageCostSingleResourceIsZero(t *testing.T) {
	m := NewDefaultMatrix([]int{1})
	if got := m.AverageCost(1024, []int{1}); got != 0 {
		t.Fatalf("expected zero average cost with no cross pairs, got %v", got)
	}
}

func TestNewDefaultMatrixSelfEdgeHasInfiniteBandwidth(t *testing.T) {
	m := NewDefaultMatrix([]int{1})
	e := m.Lookup(1, 1)
	if !math.IsInf(e.BandwidthMBs, 1) || e.LatencyMs != 0 {
		t.Fatalf("expected infinite bandwidth, zero latency self-edge, got %+v", e)
	}
}
