// Package comm implements the inter-resource communication cost model:
// a sparse bandwidth/latency table and the transfer-time computation
// that the HEFT planner and upward-rank calculation both depend on.
package comm

import "math"

// Edge holds the bandwidth and latency between a pair of distinct
// resources.
type Edge struct {
	BandwidthMBs float64
	LatencyMs    float64
}

// DefaultEdge is used for any resource pair not present in the matrix.
var DefaultEdge = Edge{BandwidthMBs: 1000, LatencyMs: 0.1}

type pairKey struct {
	src, dst int
}

// Model is a sparse communication-cost matrix over resource id pairs.
type Model struct {
	edges map[pairKey]Edge
}

// NewModel returns an empty matrix; lookups fall back to DefaultEdge.
func NewModel() *Model {
	return &Model{edges: make(map[pairKey]Edge)}
}

// NewDefaultMatrix builds a matrix for a resource set with infinite
// bandwidth, zero latency self-edges and the default edge for every
// cross-pair.
func NewDefaultMatrix(resourceIDs []int) *Model {
	m := NewModel()
	for _, src := range resourceIDs {
		for _, dst := range resourceIDs {
			if src == dst {
				m.Set(src, dst, math.Inf(1), 0)
				continue
			}
			m.Set(src, dst, DefaultEdge.BandwidthMBs, DefaultEdge.LatencyMs)
		}
	}
	return m
}

// Set installs or overwrites the edge between src and dst.
func (m *Model) Set(src, dst int, bandwidthMBs, latencyMs float64) {
	m.edges[pairKey{src, dst}] = Edge{BandwidthMBs: bandwidthMBs, LatencyMs: latencyMs}
}

// Lookup returns the edge for a pair, or DefaultEdge if unset.
func (m *Model) Lookup(src, dst int) Edge {
	if e, ok := m.edges[pairKey{src, dst}]; ok {
		return e
	}
	return DefaultEdge
}

// Time computes the transfer time in seconds for bytes of output data
// moving from src to dst. Self-edges always cost zero.
func (m *Model) Time(bytes int64, src, dst int) float64 {
	if src == dst {
		return 0
	}
	e := m.Lookup(src, dst)
	latencySec := e.LatencyMs / 1000
	bandwidthBps := e.BandwidthMBs * 1024 * 1024
	if bandwidthBps <= 0 {
		return math.Inf(1)
	}
	return latencySec + float64(bytes)/bandwidthBps
}

// AverageCost returns c̄(t, s): the average communication cost of
// bytesOut across every distinct ordered pair drawn from resourceIDs.
func (m *Model) AverageCost(bytesOut int64, resourceIDs []int) float64 {
	var total float64
	var n int
	for _, src := range resourceIDs {
		for _, dst := range resourceIDs {
			if src == dst {
				continue
			}
			total += m.Time(bytesOut, src, dst)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}
