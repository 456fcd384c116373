// Package sensors defines the contract for reading live system and GPU
// state from the host. Concrete implementations live in subpackages
// (procfs, nvmlgpu); callers depend only on the Source interface so the
// scheduling core never links against a specific OS or vendor API.
package sensors

import (
	"fmt"
	"time"

	"github.com/chicogong/escheduler/pkg/models"
)

// SystemSnapshot is one poll of host-wide CPU and memory state.
type SystemSnapshot struct {
	Timestamp          time.Time       `json:"timestamp"`
	Platform           string          `json:"platform,omitempty"` // e.g. "linux/amd64"
	CPUUtilization     float64         `json:"cpu_utilization"`    // fraction in [0,1], averaged across cores
	PerCoreUtilization map[int]float64 `json:"per_core_utilization,omitempty"`
	LoadAverage1m      float64         `json:"load_average_1m"`
	LoadAverage5m      float64         `json:"load_average_5m"`
	LoadAverage15m     float64         `json:"load_average_15m"`
	MemoryTotalKB      int64           `json:"memory_total_kb"`
	MemoryUsedKB       int64           `json:"memory_used_kb"`
	MemoryAvailableKB  int64           `json:"memory_available_kb"`
	CoreFrequencies    map[int]int     `json:"core_frequencies,omitempty"` // core id -> current frequency in MHz
	TemperatureCelsius *float64        `json:"temperature_celsius,omitempty"`
}

// GpuSnapshot is one poll of a single GPU device's state.
type GpuSnapshot struct {
	Index              int     `json:"index"`
	Name               string  `json:"name"`
	Vendor             string  `json:"vendor,omitempty"`
	UtilizationPct     float64 `json:"utilization_pct"`
	MemoryTotalBytes   int64   `json:"memory_total_bytes"`
	MemoryUsedBytes    int64   `json:"memory_used_bytes"`
	MemoryFreeBytes    int64   `json:"memory_free_bytes"`
	PowerWatts         float64 `json:"power_watts"`
	TemperatureCelsius float64 `json:"temperature_celsius"`
	ClockMHz           *int    `json:"clock_mhz,omitempty"`
}

// Source is the full set of host-sensing and host-actuation capabilities
// the runtime and DVFS layers need. Implementations are free to leave
// actuation methods returning ErrUnsupported when the host doesn't grant
// the requisite privilege or hardware.
type Source interface {
	ReadSystemMetrics() (SystemSnapshot, error)
	ReadGPUs() ([]GpuSnapshot, error)
	ReadPower() (models.PowerReading, error)
	AvailableFrequencies(coreID int) []int
	SetFrequency(coreID, mhz int) error
	SetAffinity(pid int, cores []int) error
}

// ErrUnsupported means the host or build does not implement the
// requested capability at all.
type ErrUnsupported struct {
	Capability string
}

func (e ErrUnsupported) Error() string {
	return fmt.Sprintf("sensors: unsupported capability %q", e.Capability)
}

// ErrPermissionDenied means the capability exists but the process lacks
// the privilege to exercise it (e.g. writing scaling_setspeed as
// non-root).
type ErrPermissionDenied struct {
	Capability string
}

func (e ErrPermissionDenied) Error() string {
	return fmt.Sprintf("sensors: permission denied for %q", e.Capability)
}

// ErrInvalidValue means the caller asked for a value the host sensor or
// actuator rejects (e.g. a frequency outside the core's stepping table).
type ErrInvalidValue struct {
	Capability string
	Value      int
}

func (e ErrInvalidValue) Error() string {
	return fmt.Sprintf("sensors: invalid value %d for %q", e.Value, e.Capability)
}
