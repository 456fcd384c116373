package graph

import (
	"sort"

	"github.com/chicogong/escheduler/pkg/comm"
	"github.com/chicogong/escheduler/pkg/models"
)

// UpwardRanks computes rank(t) = w̄(t) + max_{s in succ(t)} (c̄(t,s) + rank(s))
// for every task in g, memoized via depth-first traversal with a visited
// set. Leaf tasks (no successors) have rank = w̄(t).
func UpwardRanks(g *Graph, profiles map[string]models.TaskProfile, resources []*models.Resource, cm *comm.Model) map[string]float64 {
	ranks := make(map[string]float64, len(g.ids))
	resourceIDs := make([]int, len(resources))
	for i, r := range resources {
		resourceIDs[i] = r.ID
	}

	var visit func(id string) float64
	visit = func(id string) float64 {
		if r, ok := ranks[id]; ok {
			return r
		}
		profile := profiles[id]
		w := AverageResourceTime(profile, resources)

		var best float64
		for _, s := range g.Successors(id) {
			c := cm.AverageCost(profile.OutputBytes, resourceIDs)
			candidate := c + visit(s)
			if candidate > best {
				best = candidate
			}
		}
		rank := w + best
		ranks[id] = rank
		return rank
	}

	for _, id := range g.ids {
		visit(id)
	}
	return ranks
}

// PriorityOrder sorts task ids by descending rank, ties broken by
// ascending id, to make list scheduling deterministic.
func PriorityOrder(ranks map[string]float64) []string {
	ids := make([]string, 0, len(ranks))
	for id := range ranks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ri, rj := ranks[ids[i]], ranks[ids[j]]
		if ri != rj {
			return ri > rj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// CriticalPath starts from entry tasks and follows, at each step, the
// successor whose subtree has the largest finish-time sum in the
// produced schedule, returning the resulting identifier sequence.
func CriticalPath(schedule models.ScheduleResult, g *Graph) []string {
	roots := g.Roots()
	if len(roots) == 0 {
		return nil
	}

	var subtreeSum func(id string, memo map[string]float64) float64
	subtreeSum = func(id string, memo map[string]float64) float64 {
		if v, ok := memo[id]; ok {
			return v
		}
		st, ok := schedule.ByTaskID(id)
		total := 0.0
		if ok {
			total = st.Finish
		}
		for _, s := range g.Successors(id) {
			total += subtreeSum(s, memo)
		}
		memo[id] = total
		return total
	}
	memo := make(map[string]float64)

	best := roots[0]
	bestSum := subtreeSum(best, memo)
	for _, r := range roots[1:] {
		if s := subtreeSum(r, memo); s > bestSum {
			best, bestSum = r, s
		}
	}

	path := []string{best}
	cur := best
	for {
		succs := g.Successors(cur)
		if len(succs) == 0 {
			break
		}
		next := succs[0]
		nextSum := subtreeSum(next, memo)
		for _, s := range succs[1:] {
			if v := subtreeSum(s, memo); v > nextSum {
				next, nextSum = s, v
			}
		}
		path = append(path, next)
		cur = next
	}
	return path
}
