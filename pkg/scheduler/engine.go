package scheduler

import (
	"time"

	"github.com/chicogong/escheduler/pkg/comm"
	"github.com/chicogong/escheduler/pkg/graph"
	"github.com/chicogong/escheduler/pkg/heft"
	"github.com/chicogong/escheduler/pkg/logger"
	"github.com/chicogong/escheduler/pkg/models"
)

// Engine periodically drains the state manager's pending jobs through
// the HEFT planner.
type Engine struct {
	state  *StateManager
	logger *logger.Logger
	stopCh chan struct{}
}

// NewEngine creates a scheduling engine over state, logging through log.
func NewEngine(state *StateManager, log *logger.Logger) *Engine {
	return &Engine{
		state:  state,
		logger: log,
		stopCh: make(chan struct{}),
	}
}

// Start runs a scheduling cycle every interval until Stop is called.
func (e *Engine) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				e.runSchedulingCycle()
			case <-e.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the scheduling loop.
func (e *Engine) Stop() {
	close(e.stopCh)
}

// TriggerSchedule runs one scheduling cycle immediately, outside the
// ticker cadence (e.g. right after a new job is submitted).
func (e *Engine) TriggerSchedule() {
	e.runSchedulingCycle()
}

func (e *Engine) runSchedulingCycle() {
	for _, job := range e.state.PendingJobs() {
		if err := e.planJob(job); err != nil {
			e.logger.Debug("failed to plan job",
				logger.String("job_id", job.ID),
				logger.Error(err),
			)
			e.state.SetJobResult(job.ID, models.ScheduleResult{}, err)
			continue
		}
	}
}

func (e *Engine) planJob(job *JobRecord) error {
	g, err := graph.NewGraph(job.Dependencies)
	if err != nil {
		return err
	}

	ids := make([]int, len(job.Resources))
	for i, r := range job.Resources {
		ids[i] = r.ID
	}
	cm := comm.NewDefaultMatrix(ids)

	obj := heft.MinimizeMakespan
	switch job.Objective {
	case "energy":
		obj = heft.MinimizeEnergy
	case "weighted":
		obj = heft.Weighted(job.Alpha)
	}

	result, err := heft.PlanWithObjective(g, job.Profiles, job.Resources, cm, obj)
	if err != nil {
		return err
	}

	e.state.SetJobResult(job.ID, result, nil)
	e.logger.Info("job planned",
		logger.String("job_id", job.ID),
		logger.Float64("makespan", result.Makespan),
		logger.Float64("total_energy_joules", result.TotalEnergyJ),
	)
	return nil
}
