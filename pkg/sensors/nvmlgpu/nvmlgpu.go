// Package nvmlgpu implements sensors.Source's GPU methods via NVIDIA's
// NVML bindings, with frequency queries and actuation treating coreID as
// a device index. System metrics and affinity actuation are not NVML
// concerns; ReadSystemMetrics and SetAffinity return sensors.ErrUnsupported so
// nvmlgpu.Source composes alongside procfs.Source rather than
// duplicating it.
package nvmlgpu

import (
	"fmt"
	"sync"
	"time"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"github.com/chicogong/escheduler/pkg/models"
	"github.com/chicogong/escheduler/pkg/sensors"
)

// Source reads GPU telemetry through NVML. Callers must call Close once
// done to release the NVML library handle.
type Source struct {
	mu          sync.Mutex
	initialized bool
}

// New initializes the NVML library and returns a Source. Callers on
// hosts without an NVIDIA driver get a non-nil error immediately.
func New() (*Source, error) {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return nil, fmt.Errorf("nvmlgpu: init: %s", nvml.ErrorString(ret))
	}
	return &Source{initialized: true}, nil
}

// Close shuts down the NVML library handle.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil
	}
	s.initialized = false
	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return fmt.Errorf("nvmlgpu: shutdown: %s", nvml.ErrorString(ret))
	}
	return nil
}

// ReadSystemMetrics is not an NVML concern; pair this Source with
// procfs.Source for host CPU/memory telemetry.
func (s *Source) ReadSystemMetrics() (sensors.SystemSnapshot, error) {
	return sensors.SystemSnapshot{}, sensors.ErrUnsupported{Capability: "ReadSystemMetrics"}
}

// ReadGPUs enumerates every NVML-visible device and reads its current
// utilization, memory, power draw, and temperature.
func (s *Source) ReadGPUs() ([]sensors.GpuSnapshot, error) {
	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return nil, fmt.Errorf("nvmlgpu: device count: %s", nvml.ErrorString(ret))
	}

	out := make([]sensors.GpuSnapshot, 0, count)
	for i := 0; i < count; i++ {
		dev, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			return nil, fmt.Errorf("nvmlgpu: handle for index %d: %s", i, nvml.ErrorString(ret))
		}

		name, _ := dev.GetName()

		util, ret := dev.GetUtilizationRates()
		var utilPct float64
		if ret == nvml.SUCCESS {
			utilPct = float64(util.Gpu)
		}

		mem, ret := dev.GetMemoryInfo()
		var memTotal, memUsed, memFree int64
		if ret == nvml.SUCCESS {
			memTotal = int64(mem.Total)
			memUsed = int64(mem.Used)
			memFree = int64(mem.Free)
		}

		powerMW, ret := dev.GetPowerUsage()
		var watts float64
		if ret == nvml.SUCCESS {
			watts = float64(powerMW) / 1000.0
		}

		tempC, ret := dev.GetTemperature(nvml.TEMPERATURE_GPU)
		var temp float64
		if ret == nvml.SUCCESS {
			temp = float64(tempC)
		}

		var clockMHz *int
		if mhz, ret := dev.GetClockInfo(nvml.CLOCK_GRAPHICS); ret == nvml.SUCCESS {
			v := int(mhz)
			clockMHz = &v
		}

		out = append(out, sensors.GpuSnapshot{
			Index:              i,
			Name:               name,
			Vendor:             "nvidia",
			UtilizationPct:     utilPct,
			MemoryTotalBytes:   memTotal,
			MemoryUsedBytes:    memUsed,
			MemoryFreeBytes:    memFree,
			PowerWatts:         watts,
			TemperatureCelsius: temp,
			ClockMHz:           clockMHz,
		})
	}
	return out, nil
}

// ReadPower sums the power draw of every visible device into one
// PowerReading tagged PowerSourceNVML.
func (s *Source) ReadPower() (models.PowerReading, error) {
	gpus, err := s.ReadGPUs()
	if err != nil {
		return models.PowerReading{}, err
	}
	var total float64
	for _, g := range gpus {
		total += g.PowerWatts
	}
	return models.PowerReading{
		Timestamp:  time.Now(),
		TotalWatts: total,
		Domains:    &models.PowerDomains{GPU: total},
		Source:     models.PowerSourceNVML,
	}, nil
}

// AvailableFrequencies returns the supported graphics clocks for
// coreID, treated as a device index, in MHz.
func (s *Source) AvailableFrequencies(coreID int) []int {
	dev, ret := nvml.DeviceGetHandleByIndex(coreID)
	if ret != nvml.SUCCESS {
		return nil
	}
	clocks, ret := dev.GetSupportedGraphicsClocks(0)
	if ret != nvml.SUCCESS {
		return nil
	}
	return clocks
}

// SetFrequency locks coreID's (a device index) graphics clock to mhz.
func (s *Source) SetFrequency(coreID, mhz int) error {
	dev, ret := nvml.DeviceGetHandleByIndex(coreID)
	if ret != nvml.SUCCESS {
		return sensors.ErrInvalidValue{Capability: "SetFrequency", Value: coreID}
	}
	if ret := dev.SetGpuLockedClocks(uint32(mhz), uint32(mhz)); ret != nvml.SUCCESS {
		if ret == nvml.ERROR_NO_PERMISSION {
			return sensors.ErrPermissionDenied{Capability: "SetFrequency"}
		}
		return sensors.ErrInvalidValue{Capability: "SetFrequency", Value: mhz}
	}
	return nil
}

// SetAffinity is not an NVML concern; it always returns
// sensors.ErrUnsupported.
func (s *Source) SetAffinity(pid int, cores []int) error {
	return sensors.ErrUnsupported{Capability: "SetAffinity"}
}
