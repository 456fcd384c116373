// Package models holds the data types shared across the scheduling core:
// tasks, execution profiles, resources, and the schedule a planner
// produces from them.
package models

import "time"

// WorkloadTag classifies a task's dominant resource pressure.
type WorkloadTag string

const (
	WorkloadCPUBound    WorkloadTag = "cpu-bound"
	WorkloadGPUBound    WorkloadTag = "gpu-bound"
	WorkloadMemoryBound WorkloadTag = "memory-bound"
	WorkloadIOBound     WorkloadTag = "io-bound"
)

// Task is an opaque unit of work submitted to the planner.
type Task struct {
	ID               string      `json:"id"`
	MemoryBytes      int64       `json:"memory_bytes"`
	ComputeIntensity float64     `json:"compute_intensity"`
	Workload         WorkloadTag `json:"workload"`
	DependsOn        []string    `json:"depends_on,omitempty"`
	DeadlineSec      *float64    `json:"deadline_sec,omitempty"` // relative to submission time t0
	Priority         float64     `json:"priority"`               // in [0,1]
}

// ResourceKind is the closed set of resource categories a task profile
// can target.
type ResourceKind string

const (
	ResourceCPU         ResourceKind = "cpu-core"
	ResourceGPU         ResourceKind = "gpu-device"
	ResourceMemoryNode  ResourceKind = "memory-node"
	ResourceAccelerator ResourceKind = "accelerator"
)

// TaskProfile gives, for one task, the execution time at unit speed on
// every resource kind it can run on, plus its output size and memory
// requirement.
type TaskProfile struct {
	TaskID         string
	TimeByKind     map[ResourceKind]float64 // seconds at unit speed
	OutputBytes    int64
	MemoryRequired int64
}

// TimeForKind returns the profiled execution time for a resource kind
// and whether the task can run on that kind at all.
func (p TaskProfile) TimeForKind(kind ResourceKind) (float64, bool) {
	t, ok := p.TimeByKind[kind]
	return t, ok
}

// Resource is a schedulable compute resource: a CPU core, a GPU device, a
// memory node, or an accelerator.
type Resource struct {
	ID                 int
	Kind               ResourceKind
	Speed              float64 // relative compute speed multiplier
	MemoryBandwidthGBs float64 // advisory
	AvailableAt        float64 // seconds, mutable, monotonically nondecreasing
	MaxMemory          int64
	CommittedMemory    int64
	PowerNominalWatts  float64
}

// FreeMemory returns the memory still available to commit.
func (r *Resource) FreeMemory() int64 {
	return r.MaxMemory - r.CommittedMemory
}

// Clone returns a deep copy so planners can explore candidates without
// mutating the caller's resource vector.
func (r *Resource) Clone() *Resource {
	c := *r
	return &c
}

// ScheduledTask is one entry of a planner's output: where a task ran and
// when.
type ScheduledTask struct {
	TaskID        string
	ResourceID    int
	Start         float64
	Finish        float64
	DependsOn     []string
	DataReadyTime float64
}

// ScheduleResult is the full output of a planning run.
type ScheduleResult struct {
	Tasks               []ScheduledTask
	Makespan            float64
	ResourceUtilization map[int]float64 // percent
	TotalEnergyJ        float64
	CriticalPath        []string
}

// ByTaskID returns the scheduled entry for a task id, or false if absent.
func (s ScheduleResult) ByTaskID(id string) (ScheduledTask, bool) {
	for _, t := range s.Tasks {
		if t.TaskID == id {
			return t, true
		}
	}
	return ScheduledTask{}, false
}

// PowerSource identifies which sensor produced a power reading.
type PowerSource string

const (
	PowerSourceRAPL      PowerSource = "RAPL"
	PowerSourceNVML      PowerSource = "NVML"
	PowerSourceSMC       PowerSource = "SMC"
	PowerSourceHwmon     PowerSource = "hwmon"
	PowerSourceEstimated PowerSource = "estimated"
)

// PowerDomains breaks a total wattage reading down by platform domain.
type PowerDomains struct {
	CPUPackage float64 `json:"cpu_package"`
	GPU        float64 `json:"gpu"`
	Memory     float64 `json:"memory"`
	Uncore     float64 `json:"uncore"`
}

// PowerReading is one instantaneous power sample.
type PowerReading struct {
	Timestamp  time.Time     `json:"timestamp"`
	TotalWatts float64       `json:"total_watts"`
	Domains    *PowerDomains `json:"domains,omitempty"`
	Source     PowerSource   `json:"source"`
}
