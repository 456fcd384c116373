// Package heft implements the HEFT (Heterogeneous Earliest Finish Time)
// list scheduler: it orders tasks by descending upward rank and greedily
// places each on the resource offering the earliest finish time (or, for
// a non-default objective, the best blend of finish time and energy).
package heft

import (
	"sort"

	"github.com/chicogong/escheduler/pkg/comm"
	"github.com/chicogong/escheduler/pkg/energy"
	"github.com/chicogong/escheduler/pkg/graph"
	"github.com/chicogong/escheduler/pkg/models"
)

// Objective selects the score by which the planner ranks every feasible
// resource candidate for a task; equal scores go to the smaller resource ID.
type Objective struct {
	// Alpha blends finish time and energy: score = Alpha*finish +
	// (1-Alpha)*energy. Alpha=1 reproduces the spec's literal
	// earliest-finish-time tie-break.
	Alpha float64
}

// MinimizeMakespan scores candidates purely on earliest finish time.
var MinimizeMakespan = Objective{Alpha: 1}

// MinimizeEnergy scores candidates purely on energy consumed.
var MinimizeEnergy = Objective{Alpha: 0}

// Weighted blends finish time and energy by alpha.
func Weighted(alpha float64) Objective {
	return Objective{Alpha: alpha}
}

// Plan list-schedules every task in g onto resources, returning a
// deterministic schedule or an *ErrNoFeasibleResource / *ErrMemoryExhausted
// naming the offending task. No
// resource in `resources` is left mutated on failure; Plan clones
// resource state internally before committing.
func Plan(g *graph.Graph, profiles map[string]models.TaskProfile, resources []*models.Resource, cm *comm.Model) (models.ScheduleResult, error) {
	return PlanWithObjective(g, profiles, resources, cm, MinimizeMakespan)
}

// PlanWithObjective is Plan with an explicit scoring objective used to
// choose among feasible resource candidates.
func PlanWithObjective(g *graph.Graph, profiles map[string]models.TaskProfile, resources []*models.Resource, cm *comm.Model, obj Objective) (models.ScheduleResult, error) {
	if cm == nil {
		ids := make([]int, len(resources))
		for i, r := range resources {
			ids[i] = r.ID
		}
		cm = comm.NewDefaultMatrix(ids)
	}

	work := make([]*models.Resource, len(resources))
	for i, r := range resources {
		clone := r.Clone()
		clone.AvailableAt = 0
		clone.CommittedMemory = 0
		work[i] = clone
	}
	byID := make(map[int]*models.Resource, len(work))
	for _, r := range work {
		byID[r.ID] = r
	}

	ranks := graph.UpwardRanks(g, profiles, work, cm)
	order := graph.PriorityOrder(ranks)

	scheduled := make(map[string]models.ScheduledTask, len(order))
	est := energy.NewEstimator()

	for _, taskID := range order {
		profile := profiles[taskID]

		type candidateT struct {
			resource      *models.Resource
			earliestStart float64
			execTime      float64
			finish        float64
			dataReady     float64
			score         float64
		}
		var feasible []candidateT
		kindOK := false

		for _, r := range work {
			t, ok := profile.TimeForKind(r.Kind)
			if !ok {
				continue
			}
			kindOK = true
			if r.FreeMemory() < profile.MemoryRequired {
				continue
			}

			var dataReady float64
			for _, dep := range g.Predecessors(taskID) {
				depSched, ok := scheduled[dep]
				if !ok {
					continue
				}
				depProfile := profiles[dep]
				ready := depSched.Finish + cm.Time(depProfile.OutputBytes, depSched.ResourceID, r.ID)
				if ready > dataReady {
					dataReady = ready
				}
			}
			earliestStart := r.AvailableAt
			if dataReady > earliestStart {
				earliestStart = dataReady
			}

			execTime := t / r.Speed
			finish := earliestStart + execTime

			watts := r.PowerNominalWatts
			if watts == 0 {
				watts = est.Watts(2_000_000_000, 1.0, 1.0)
			}
			energyJ := watts * execTime
			score := obj.Alpha*finish + (1-obj.Alpha)*energyJ

			feasible = append(feasible, candidateT{
				resource:      r,
				earliestStart: earliestStart,
				execTime:      execTime,
				finish:        finish,
				dataReady:     dataReady,
				score:         score,
			})
		}

		if len(feasible) == 0 {
			if kindOK {
				return models.ScheduleResult{}, &ErrMemoryExhausted{TaskID: taskID}
			}
			return models.ScheduleResult{}, &ErrNoFeasibleResource{TaskID: taskID}
		}

		sort.Slice(feasible, func(i, j int) bool {
			if feasible[i].score != feasible[j].score {
				return feasible[i].score < feasible[j].score
			}
			return feasible[i].resource.ID < feasible[j].resource.ID
		})
		chosen := feasible[0]

		st := models.ScheduledTask{
			TaskID:        taskID,
			ResourceID:    chosen.resource.ID,
			Start:         chosen.earliestStart,
			Finish:        chosen.finish,
			DependsOn:     append([]string(nil), g.Predecessors(taskID)...),
			DataReadyTime: chosen.dataReady,
		}
		scheduled[taskID] = st

		chosen.resource.AvailableAt = chosen.finish
		chosen.resource.CommittedMemory += profile.MemoryRequired
	}

	tasks := make([]models.ScheduledTask, 0, len(order))
	for _, id := range order {
		tasks = append(tasks, scheduled[id])
	}

	result := models.ScheduleResult{
		Tasks:               tasks,
		Makespan:            Makespan(models.ScheduleResult{Tasks: tasks}),
		ResourceUtilization: ResourceUtilization(models.ScheduleResult{Tasks: tasks}, resources),
		TotalEnergyJ:        totalEnergy(tasks, byID),
	}
	result.CriticalPath = graph.CriticalPath(result, g)
	return result, nil
}

// Makespan returns the maximum finish time across scheduled tasks.
func Makespan(s models.ScheduleResult) float64 {
	var m float64
	for _, t := range s.Tasks {
		if t.Finish > m {
			m = t.Finish
		}
	}
	return m
}

// ResourceUtilization returns busy_time/makespan*100 for every resource.
func ResourceUtilization(s models.ScheduleResult, resources []*models.Resource) map[int]float64 {
	makespan := Makespan(s)
	busy := make(map[int]float64, len(resources))
	for _, t := range s.Tasks {
		busy[t.ResourceID] += t.Finish - t.Start
	}
	util := make(map[int]float64, len(resources))
	for _, r := range resources {
		if makespan <= 0 {
			util[r.ID] = 0
			continue
		}
		util[r.ID] = busy[r.ID] / makespan * 100
	}
	return util
}

func totalEnergy(tasks []models.ScheduledTask, byID map[int]*models.Resource) float64 {
	var total float64
	for _, t := range tasks {
		r := byID[t.ResourceID]
		if r == nil {
			continue
		}
		total += r.PowerNominalWatts * (t.Finish - t.Start)
	}
	return total
}

// ValidateSchedule checks that every dependency's finish time is no
// later than the successor's data-ready time (which the planner already
// computed inclusive of communication cost), and that every scheduled
// start respects its own data-ready time.
func ValidateSchedule(s models.ScheduleResult, g *graph.Graph) bool {
	const eps = 1e-9
	for _, t := range s.Tasks {
		if t.Start < t.DataReadyTime-eps {
			return false
		}
		for _, dep := range t.DependsOn {
			depSched, ok := s.ByTaskID(dep)
			if !ok {
				return false
			}
			if depSched.Finish > t.DataReadyTime+eps {
				return false
			}
		}
	}
	return true
}
