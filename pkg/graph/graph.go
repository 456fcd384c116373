// Package graph implements the typed task DAG: construction with
// acyclicity validation, upward-rank priorities, and critical-path
// extraction.
package graph

import (
	"fmt"
	"sort"

	"github.com/chicogong/escheduler/pkg/models"
)

// ErrCycle reports that the submitted dependency set is not acyclic.
type ErrCycle struct {
	IDs []string
}

func (e *ErrCycle) Error() string {
	return fmt.Sprintf("graph: cycle detected among tasks %v", e.IDs)
}

// ErrUnknownDependency reports a dependency id with no matching task.
type ErrUnknownDependency struct {
	TaskID string
	DepID  string
}

func (e *ErrUnknownDependency) Error() string {
	return fmt.Sprintf("graph: task %q depends on unknown task %q", e.TaskID, e.DepID)
}

// ErrDuplicateID reports a task id that appears more than once.
type ErrDuplicateID struct {
	ID string
}

func (e *ErrDuplicateID) Error() string {
	return fmt.Sprintf("graph: duplicate task id %q", e.ID)
}

// Graph is a validated DAG over task identifiers.
type Graph struct {
	ids    []string
	preds  map[string][]string
	succs  map[string][]string
}

// NewGraph builds a Graph from a mapping of task id to its predecessor
// ids, validating acyclicity via Kahn's algorithm and that every
// predecessor id is itself a task in the set.
func NewGraph(preds map[string][]string) (*Graph, error) {
	ids := make([]string, 0, len(preds))
	seen := make(map[string]bool, len(preds))
	for id := range preds {
		if seen[id] {
			return nil, &ErrDuplicateID{ID: id}
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for id, ps := range preds {
		for _, p := range ps {
			if !seen[p] {
				return nil, &ErrUnknownDependency{TaskID: id, DepID: p}
			}
		}
	}

	succs := make(map[string][]string, len(ids))
	for _, id := range ids {
		succs[id] = nil
	}
	for id, ps := range preds {
		for _, p := range ps {
			succs[p] = append(succs[p], id)
		}
	}
	for _, id := range ids {
		sort.Strings(succs[id])
	}

	g := &Graph{ids: ids, preds: preds, succs: succs}
	if offenders := g.findCycle(); len(offenders) > 0 {
		return nil, &ErrCycle{IDs: offenders}
	}
	return g, nil
}

// findCycle runs Kahn's algorithm and returns the ids that never reach
// in-degree zero (i.e. the offending cycle members), or nil if the graph
// is acyclic.
func (g *Graph) findCycle() []string {
	indeg := make(map[string]int, len(g.ids))
	for _, id := range g.ids {
		indeg[id] = len(g.preds[id])
	}

	queue := make([]string, 0, len(g.ids))
	for _, id := range g.ids {
		if indeg[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		next := make([]string, 0)
		for _, s := range g.succs[id] {
			indeg[s]--
			if indeg[s] == 0 {
				next = append(next, s)
			}
		}
		sort.Strings(next)
		queue = append(queue, next...)
	}

	if visited == len(g.ids) {
		return nil
	}
	remaining := make([]string, 0, len(g.ids)-visited)
	for _, id := range g.ids {
		if indeg[id] > 0 {
			remaining = append(remaining, id)
		}
	}
	return remaining
}

// IDs returns all task identifiers in ascending order.
func (g *Graph) IDs() []string {
	out := make([]string, len(g.ids))
	copy(out, g.ids)
	return out
}

// Predecessors returns the dependency ids of a task.
func (g *Graph) Predecessors(id string) []string {
	return g.preds[id]
}

// Successors returns the ids that depend on a task.
func (g *Graph) Successors(id string) []string {
	return g.succs[id]
}

// Roots returns entry tasks (no predecessors), ascending id.
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.ids {
		if len(g.preds[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Leaves returns exit tasks (no successors), ascending id.
func (g *Graph) Leaves() []string {
	var leaves []string
	for _, id := range g.ids {
		if len(g.succs[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// AverageResourceTime returns w̄(t), the average execution time for a
// task across the resource kinds it can run on, each scaled by every
// resource's speed multiplier that offers that kind.
func AverageResourceTime(profile models.TaskProfile, resources []*models.Resource) float64 {
	var total float64
	var n int
	for _, r := range resources {
		t, ok := profile.TimeForKind(r.Kind)
		if !ok {
			continue
		}
		total += t / r.Speed
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}
