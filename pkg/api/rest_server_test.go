package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/chicogong/escheduler/pkg/logger"
	"github.com/chicogong/escheduler/pkg/metricsexport"
	"github.com/chicogong/escheduler/pkg/models"
	"github.com/chicogong/escheduler/pkg/policy"
	"github.com/chicogong/escheduler/pkg/scheduler"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	return log
}

func newTestServer(t *testing.T) (*RESTServer, *httptest.Server) {
	t.Helper()
	dir, err := os.MkdirTemp("", "rest-state-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	sm := scheduler.NewStateManager(dir)
	engine := scheduler.NewEngine(sm, testLogger(t))
	exporter := metricsexport.New()

	srv := NewRESTServer(sm, engine, testLogger(t), exporter)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/jobs", srv.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", srv.handleJobByID)
	mux.HandleFunc("/api/v1/policy/run", srv.handlePolicyRun)
	mux.HandleFunc("/api/v1/agents/", srv.handleAgentSnapshot)
	mux.HandleFunc("/health", srv.handleHealth)
	mux.Handle("/metrics", exporter.Handler())

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return srv, ts
}

func twoTaskJobBody() map[string]interface{} {
	return map[string]interface{}{
		"dependencies": map[string][]string{"a": nil, "b": {"a"}},
		"profiles": map[string]models.TaskProfile{
			"a": {TaskID: "a", TimeByKind: map[models.ResourceKind]float64{models.ResourceCPU: 10}},
			"b": {TaskID: "b", TimeByKind: map[models.ResourceKind]float64{models.ResourceCPU: 10}},
		},
		"resources": []*models.Resource{
			{ID: 1, Kind: models.ResourceCPU, Speed: 1, MaxMemory: 1 << 30},
		},
		"objective": "makespan",
	}
}

func TestSubmitAndFetchJob(t *testing.T) {
	_, ts := newTestServer(t)

	body, _ := json.Marshal(twoTaskJobBody())
	resp, err := http.Post(ts.URL+"/api/v1/jobs", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var submitResp map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&submitResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	jobID := submitResp["job_id"]
	if jobID == "" {
		t.Fatal("expected a job_id in the response")
	}

	getResp, err := http.Get(ts.URL + "/api/v1/jobs/" + jobID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", getResp.StatusCode)
	}

	var job scheduler.JobRecord
	if err := json.NewDecoder(getResp.Body).Decode(&job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.Pending() {
		t.Fatal("expected job to be planned synchronously by submit's TriggerSchedule call")
	}
	if job.Result == nil || len(job.Result.Tasks) != 2 {
		t.Fatalf("expected a 2-task result, got %+v", job.Result)
	}
}

func TestFetchUnknownJobReturns404(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/jobs/does-not-exist")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestPolicyRunEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	reqBody := map[string]interface{}{
		"tasks": []policy.Task{
			{ID: "t1", Duration: 1},
			{ID: "t2", Duration: 1},
		},
		"energy_budget_joules": 1000.0,
		"deadline_unix":        float64(time.Now().Unix() + 3600),
		"workers":              2,
		"fixed_watts":          policy.FixedWattsCPU,
	}
	body, _ := json.Marshal(reqBody)

	resp, err := http.Post(ts.URL+"/api/v1/policy/run", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("policy run failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := out["outcome"]; !ok {
		t.Fatalf("expected an outcome field, got %+v", out)
	}
}

func TestAgentSnapshotIngest(t *testing.T) {
	_, ts := newTestServer(t)

	payload := map[string]interface{}{
		"system": map[string]interface{}{
			"cpu_utilization": 0.5,
		},
	}
	body, _ := json.Marshal(payload)

	resp, err := http.Post(ts.URL+"/api/v1/agents/agent-1/snapshot", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("snapshot post failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
