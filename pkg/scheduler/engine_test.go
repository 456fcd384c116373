package scheduler

import (
	"os"
	"testing"
	"time"

	"github.com/chicogong/escheduler/pkg/logger"
	"github.com/chicogong/escheduler/pkg/models"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	return log
}

func twoTaskJob(id string) *JobRecord {
	return &JobRecord{
		ID:           id,
		Dependencies: map[string][]string{"a": nil, "b": {"a"}},
		Profiles: map[string]models.TaskProfile{
			"a": {TaskID: "a", TimeByKind: map[models.ResourceKind]float64{models.ResourceCPU: 10}},
			"b": {TaskID: "b", TimeByKind: map[models.ResourceKind]float64{models.ResourceCPU: 10}},
		},
		Resources: []*models.Resource{
			{ID: 1, Kind: models.ResourceCPU, Speed: 1, MaxMemory: 1 << 30},
		},
		Objective:   "makespan",
		SubmittedAt: time.Now(),
	}
}

func TestEngineTriggerSchedulePlansPendingJobs(t *testing.T) {
	dir, err := os.MkdirTemp("", "scheduler-state-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	sm := NewStateManager(dir)
	engine := NewEngine(sm, testLogger(t))

	sm.AddJob(twoTaskJob("job-1"))
	engine.TriggerSchedule()

	job, err := sm.GetJob("job-1")
	if err != nil {
		t.Fatalf("job not found: %v", err)
	}
	if job.Pending() {
		t.Fatal("expected job to be planned after TriggerSchedule")
	}
	if job.Err != "" {
		t.Fatalf("unexpected planning error: %s", job.Err)
	}
	if job.Result == nil || len(job.Result.Tasks) != 2 {
		t.Fatalf("expected a 2-task result, got %+v", job.Result)
	}
}

func TestEngineRecordsPlanningErrors(t *testing.T) {
	dir, err := os.MkdirTemp("", "scheduler-state-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	sm := NewStateManager(dir)
	engine := NewEngine(sm, testLogger(t))

	job := twoTaskJob("job-bad")
	job.Dependencies = map[string][]string{"a": {"b"}, "b": {"a"}} // cycle

	sm.AddJob(job)
	engine.TriggerSchedule()

	got, err := sm.GetJob("job-bad")
	if err != nil {
		t.Fatalf("job not found: %v", err)
	}
	if got.Err == "" {
		t.Fatal("expected a cycle error to be recorded")
	}
}

func TestStateManagerSnapshotRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "scheduler-state-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	sm := NewStateManager(dir)
	sm.AddJob(twoTaskJob("job-1"))
	if err := sm.SaveSnapshot(); err != nil {
		t.Fatalf("failed to save snapshot: %v", err)
	}

	restored := NewStateManager(dir)
	if err := restored.LoadSnapshot(); err != nil {
		t.Fatalf("failed to load snapshot: %v", err)
	}
	job, err := restored.GetJob("job-1")
	if err != nil {
		t.Fatalf("expected job-1 to survive the snapshot round trip: %v", err)
	}
	if !job.Pending() {
		t.Fatal("expected restored job to still be pending")
	}
}
