// Package api exposes the scheduling core over HTTP: submitting a DAG
// plan, running the policy scheduler over an opaque task stream,
// ingesting agent telemetry snapshots, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chicogong/escheduler/pkg/logger"
	"github.com/chicogong/escheduler/pkg/metricsexport"
	"github.com/chicogong/escheduler/pkg/models"
	"github.com/chicogong/escheduler/pkg/policy"
	"github.com/chicogong/escheduler/pkg/scheduler"
	"github.com/chicogong/escheduler/pkg/sensors"
)

// RESTServer implements the REST API server for the scheduler daemon.
type RESTServer struct {
	state    *scheduler.StateManager
	engine   *scheduler.Engine
	logger   *logger.Logger
	exporter *metricsexport.Exporter
	server   *http.Server

	mu        sync.RWMutex
	snapshots map[string]agentSnapshot // agent id -> latest telemetry
}

type agentSnapshot struct {
	System   sensors.SystemSnapshot `json:"system"`
	GPUs     []sensors.GpuSnapshot  `json:"gpus,omitempty"`
	Power    *models.PowerReading   `json:"power,omitempty"`
	Received time.Time              `json:"received_at"`
}

// NewRESTServer creates a REST API server over state and engine.
func NewRESTServer(state *scheduler.StateManager, engine *scheduler.Engine, log *logger.Logger, exporter *metricsexport.Exporter) *RESTServer {
	return &RESTServer{
		state:     state,
		engine:    engine,
		logger:    log,
		exporter:  exporter,
		snapshots: make(map[string]agentSnapshot),
	}
}

// Start begins serving on address.
func (s *RESTServer) Start(address string) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobByID)
	mux.HandleFunc("/api/v1/policy/run", s.handlePolicyRun)
	mux.HandleFunc("/api/v1/agents/", s.handleAgentSnapshot)
	mux.HandleFunc("/health", s.handleHealth)
	if s.exporter != nil {
		mux.Handle("/metrics", s.exporter.Handler())
	}

	s.server = &http.Server{
		Addr:    address,
		Handler: s.loggingMiddleware(mux),
	}

	s.logger.Info("REST API server starting", logger.String("address", address))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("REST API server failed", logger.Error(err))
		}
	}()

	return nil
}

// Stop closes the listener.
func (s *RESTServer) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// handleJobs handles plan submission and listing.
func (s *RESTServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.submitJob(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *RESTServer) submitJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID           string                        `json:"id"`
		Dependencies map[string][]string           `json:"dependencies"`
		Profiles     map[string]models.TaskProfile `json:"profiles"`
		Resources    []*models.Resource            `json:"resources"`
		Objective    string                        `json:"objective"`
		Alpha        float64                       `json:"alpha"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		req.ID = fmt.Sprintf("job-%d", time.Now().UnixNano())
	}
	if len(req.Resources) == 0 {
		s.sendError(w, http.StatusBadRequest, "resources must be non-empty")
		return
	}

	job := &scheduler.JobRecord{
		ID:           req.ID,
		Dependencies: req.Dependencies,
		Profiles:     req.Profiles,
		Resources:    req.Resources,
		Objective:    req.Objective,
		Alpha:        req.Alpha,
		SubmittedAt:  time.Now(),
	}
	s.state.AddJob(job)
	s.engine.TriggerSchedule()

	s.logger.Info("job submitted", logger.String("job_id", job.ID))
	s.sendJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

// handleJobByID retrieves a planning result.
func (s *RESTServer) handleJobByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Path[len("/api/v1/jobs/"):]
	if id == "" {
		s.sendError(w, http.StatusBadRequest, "job id is required")
		return
	}

	job, err := s.state.GetJob(id)
	if err != nil {
		s.sendError(w, http.StatusNotFound, "job not found")
		return
	}

	if job.Result != nil && s.exporter != nil {
		s.exporter.ObserveSchedule(job.Result.Makespan, job.Result.TotalEnergyJ, job.Result.ResourceUtilization)
	}
	s.sendJSON(w, http.StatusOK, job)
}

// handlePolicyRun drains an opaque task stream synchronously under a
// budget and deadline, returning the resulting Outcome.
func (s *RESTServer) handlePolicyRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Tasks             []policy.Task `json:"tasks"`
		EnergyBudgetJ     float64       `json:"energy_budget_joules"`
		DeadlineUnix      float64       `json:"deadline_unix"`
		Workers           int           `json:"workers"`
		FixedWatts        float64       `json:"fixed_watts"`
		DrainAttemptLimit int           `json:"drain_attempt_limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state := policy.NewPolicyState(req.EnergyBudgetJ, req.DeadlineUnix)
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	dur, outcome := policy.RunPolicy(ctx, req.Tasks, state, policy.Options{
		Workers:           req.Workers,
		FixedWatts:        req.FixedWatts,
		DrainAttemptLimit: req.DrainAttemptLimit,
	})

	if s.exporter != nil {
		s.exporter.SetPolicyBudget(state.EnergyBudgetJ)
		for i := 0; i < outcome.Completed; i++ {
			s.exporter.IncPolicyCompleted()
		}
		for i := 0; i < len(outcome.RemainingIDs); i++ {
			s.exporter.IncPolicyDeferred()
		}
	}

	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"outcome":                 outcome,
		"duration_ms":             dur.Milliseconds(),
		"remaining_budget_joules": state.EnergyBudgetJ,
	})
}

// handleAgentSnapshot ingests telemetry posted by an agent at
// /api/v1/agents/{id}/snapshot.
func (s *RESTServer) handleAgentSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	const prefix = "/api/v1/agents/"
	const suffix = "/snapshot"
	path := r.URL.Path
	if len(path) <= len(prefix)+len(suffix) {
		s.sendError(w, http.StatusBadRequest, "agent id is required")
		return
	}
	agentID := path[len(prefix) : len(path)-len(suffix)]

	var snap agentSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	snap.Received = time.Now()

	s.mu.Lock()
	s.snapshots[agentID] = snap
	s.mu.Unlock()

	s.logger.Debug("agent snapshot received",
		logger.String("agent_id", agentID),
		logger.Float64("cpu_utilization", snap.System.CPUUtilization),
	)
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *RESTServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *RESTServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Duration("duration", time.Since(start)),
		)
	})
}

func (s *RESTServer) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *RESTServer) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]string{"error": message})
}
