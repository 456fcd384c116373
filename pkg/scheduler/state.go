// Package scheduler wires the HEFT planner into a long-running daemon: it holds submitted jobs, periodically runs the
// planner over whatever is pending, and persists its state to disk so a
// restart doesn't lose in-flight submissions.
package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chicogong/escheduler/pkg/models"
)

// JobRecord is one submitted planning request and, once processed, its
// result.
type JobRecord struct {
	ID           string                        `json:"id"`
	Dependencies map[string][]string           `json:"dependencies"`
	Profiles     map[string]models.TaskProfile `json:"profiles"`
	Resources    []*models.Resource            `json:"resources"`
	Objective    string                        `json:"objective"` // "makespan", "energy", "weighted"
	Alpha        float64                       `json:"alpha"`
	Result       *models.ScheduleResult        `json:"result,omitempty"`
	Err          string                        `json:"error,omitempty"`
	SubmittedAt  time.Time                     `json:"submitted_at"`
	PlannedAt    *time.Time                    `json:"planned_at,omitempty"`
}

// Pending reports whether the job is still waiting for a scheduling
// cycle to pick it up.
func (j *JobRecord) Pending() bool {
	return j.Result == nil && j.Err == ""
}

// State is the scheduler's in-memory view of every submitted job.
type State struct {
	mu sync.RWMutex

	Jobs map[string]*JobRecord `json:"jobs"`

	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StateManager guards State behind a mutex and persists it to
// snapshotDir on every mutation (coalesced through a buffered channel,
// same as the teacher's replication snapshotting).
type StateManager struct {
	state        *State
	snapshotDir  string
	snapshotChan chan struct{}
	stopChan     chan struct{}
}

// NewStateManager creates an empty state manager rooted at snapshotDir.
func NewStateManager(snapshotDir string) *StateManager {
	return &StateManager{
		state: &State{
			Jobs:      make(map[string]*JobRecord),
			UpdatedAt: time.Now(),
		},
		snapshotDir:  snapshotDir,
		snapshotChan: make(chan struct{}, 1),
		stopChan:     make(chan struct{}),
	}
}

// GetState returns the live state. Callers that only read should use
// State's exported fields under their own synchronization discipline,
// matching the teacher's snapshot-pointer convention.
func (sm *StateManager) GetState() *State {
	sm.state.mu.RLock()
	defer sm.state.mu.RUnlock()
	return sm.state
}

// AddJob registers a new job submission.
func (sm *StateManager) AddJob(job *JobRecord) {
	sm.state.mu.Lock()
	defer sm.state.mu.Unlock()

	sm.state.Jobs[job.ID] = job
	sm.incrementVersion()
	sm.triggerSnapshot()
}

// GetJob retrieves a job by id.
func (sm *StateManager) GetJob(id string) (*JobRecord, error) {
	sm.state.mu.RLock()
	defer sm.state.mu.RUnlock()

	job, ok := sm.state.Jobs[id]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", id)
	}
	return job, nil
}

// PendingJobs returns every job that has not yet been planned. Map
// iteration order is not guaranteed.
func (sm *StateManager) PendingJobs() []*JobRecord {
	sm.state.mu.RLock()
	defer sm.state.mu.RUnlock()

	var out []*JobRecord
	for _, job := range sm.state.Jobs {
		if job.Pending() {
			out = append(out, job)
		}
	}
	return out
}

// SetJobResult records a planning outcome for id.
func (sm *StateManager) SetJobResult(id string, result models.ScheduleResult, err error) {
	sm.state.mu.Lock()
	defer sm.state.mu.Unlock()

	job, ok := sm.state.Jobs[id]
	if !ok {
		return
	}
	now := time.Now()
	job.PlannedAt = &now
	if err != nil {
		job.Err = err.Error()
	} else {
		job.Result = &result
	}

	sm.incrementVersion()
	sm.triggerSnapshot()
}

func (sm *StateManager) incrementVersion() {
	sm.state.Version++
	sm.state.UpdatedAt = time.Now()
}

func (sm *StateManager) triggerSnapshot() {
	select {
	case sm.snapshotChan <- struct{}{}:
	default:
	}
}

// SaveSnapshot writes the current state to snapshotDir/state.json,
// atomically via a rename.
func (sm *StateManager) SaveSnapshot() error {
	sm.state.mu.RLock()
	defer sm.state.mu.RUnlock()

	if err := os.MkdirAll(sm.snapshotDir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	snapshotFile := filepath.Join(sm.snapshotDir, "state.json")
	tempFile := snapshotFile + ".tmp"

	data, err := json.MarshalIndent(sm.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := os.Rename(tempFile, snapshotFile); err != nil {
		return fmt.Errorf("failed to rename snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot restores state from snapshotDir/state.json, leaving an
// empty state if none exists yet.
func (sm *StateManager) LoadSnapshot() error {
	snapshotFile := filepath.Join(sm.snapshotDir, "state.json")

	data, err := os.ReadFile(snapshotFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	sm.state.mu.Lock()
	defer sm.state.mu.Unlock()

	if err := json.Unmarshal(data, sm.state); err != nil {
		return fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return nil
}

// StartPeriodicSnapshot saves the state every interval and whenever a
// mutation coalesces onto the snapshot channel.
func (sm *StateManager) StartPeriodicSnapshot(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				_ = sm.SaveSnapshot()
			case <-sm.snapshotChan:
				_ = sm.SaveSnapshot()
			case <-sm.stopChan:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts periodic snapshotting and writes a final one.
func (sm *StateManager) Stop() {
	close(sm.stopChan)
	_ = sm.SaveSnapshot()
}
