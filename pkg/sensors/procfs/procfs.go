// Package procfs implements sensors.Source by parsing the Linux /proc
// and /sys pseudo-filesystems: CPU utilization from /proc/stat, memory
// from /proc/meminfo, load average from /proc/loadavg, and per-core
// frequency from /sys/devices/system/cpu/cpu*/cpufreq/scaling_cur_freq.
package procfs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chicogong/escheduler/pkg/models"
	"github.com/chicogong/escheduler/pkg/sensors"
)

// Source reads host metrics from /proc and /sys. GPU reads always
// return sensors.ErrUnsupported; pair it with nvmlgpu.Source for GPU
// coverage.
type Source struct {
	procRoot string // normally "/proc", overridable in tests
	sysRoot  string // normally "/sys"

	mu          sync.Mutex
	prevCPU     cpuTicks
	prevPerCore map[int]cpuTicks
	haveCPU     bool
}

// New returns a Source reading the live host's /proc and /sys.
func New() *Source {
	return &Source{procRoot: "/proc", sysRoot: "/sys"}
}

// NewRooted returns a Source reading from alternate roots, for tests
// that stage fixture files instead of touching the real host.
func NewRooted(procRoot, sysRoot string) *Source {
	return &Source{procRoot: procRoot, sysRoot: sysRoot}
}

type cpuTicks struct {
	idle, total uint64
}

// ReadSystemMetrics parses /proc/stat, /proc/meminfo, /proc/loadavg and
// every cpufreq scaling_cur_freq file into one snapshot. CPUUtilization
// is computed as the delta since the previous call; the first call
// after construction returns 0 for it since there is no prior sample.
func (s *Source) ReadSystemMetrics() (sensors.SystemSnapshot, error) {
	now := time.Now()

	ticks, perCore, err := s.readCPUTicks()
	if err != nil {
		return sensors.SystemSnapshot{}, err
	}

	s.mu.Lock()
	var util float64
	if s.haveCPU {
		dIdle := float64(ticks.idle - s.prevCPU.idle)
		dTotal := float64(ticks.total - s.prevCPU.total)
		if dTotal > 0 {
			util = 1 - dIdle/dTotal
		}
	}
	perCoreUtil := make(map[int]float64, len(perCore))
	for core, t := range perCore {
		prev, ok := s.prevPerCore[core]
		if !ok {
			perCoreUtil[core] = 0
			continue
		}
		dIdle := float64(t.idle - prev.idle)
		dTotal := float64(t.total - prev.total)
		if dTotal > 0 {
			perCoreUtil[core] = clamp01(1 - dIdle/dTotal)
		}
	}
	s.prevCPU = ticks
	s.prevPerCore = perCore
	s.haveCPU = true
	s.mu.Unlock()

	load1, load5, load15, err := s.readLoadAverage()
	if err != nil {
		return sensors.SystemSnapshot{}, err
	}

	memTotal, memAvail, err := s.readMemInfo()
	if err != nil {
		return sensors.SystemSnapshot{}, err
	}

	freqs := s.readCoreFrequencies()

	return sensors.SystemSnapshot{
		Timestamp:          now,
		Platform:           runtime.GOOS + "/" + runtime.GOARCH,
		CPUUtilization:     clamp01(util),
		PerCoreUtilization: perCoreUtil,
		LoadAverage1m:      load1,
		LoadAverage5m:      load5,
		LoadAverage15m:     load15,
		MemoryTotalKB:      memTotal,
		MemoryUsedKB:       memTotal - memAvail,
		MemoryAvailableKB:  memAvail,
		CoreFrequencies:    freqs,
	}, nil
}

// ReadGPUs always returns sensors.ErrUnsupported; GPU telemetry is not a
// /proc concern.
func (s *Source) ReadGPUs() ([]sensors.GpuSnapshot, error) {
	return nil, sensors.ErrUnsupported{Capability: "ReadGPUs"}
}

// ReadPower always returns sensors.ErrUnsupported; this Source does not
// read RAPL energy counters.
func (s *Source) ReadPower() (models.PowerReading, error) {
	return models.PowerReading{}, sensors.ErrUnsupported{Capability: "ReadPower"}
}

// AvailableFrequencies reads the cpufreq scaling_available_frequencies
// file for coreID, in MHz. An unreadable or absent file yields nil.
func (s *Source) AvailableFrequencies(coreID int) []int {
	path := filepath.Join(s.sysRoot, "devices", "system", "cpu",
		fmt.Sprintf("cpu%d", coreID), "cpufreq", "scaling_available_frequencies")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	fields := strings.Fields(string(data))
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		khz, err := strconv.Atoi(f)
		if err != nil {
			continue
		}
		out = append(out, khz/1000)
	}
	return out
}

// SetFrequency writes scaling_setspeed for coreID, in MHz. It returns
// sensors.ErrPermissionDenied on EACCES/EPERM and
// sensors.ErrInvalidValue if mhz is absent from AvailableFrequencies.
func (s *Source) SetFrequency(coreID, mhz int) error {
	available := s.AvailableFrequencies(coreID)
	if len(available) > 0 {
		ok := false
		for _, f := range available {
			if f == mhz {
				ok = true
				break
			}
		}
		if !ok {
			return sensors.ErrInvalidValue{Capability: "SetFrequency", Value: mhz}
		}
	}

	path := filepath.Join(s.sysRoot, "devices", "system", "cpu",
		fmt.Sprintf("cpu%d", coreID), "cpufreq", "scaling_setspeed")
	err := os.WriteFile(path, []byte(strconv.Itoa(mhz*1000)), 0644)
	if os.IsPermission(err) {
		return sensors.ErrPermissionDenied{Capability: "SetFrequency"}
	}
	if err != nil {
		return fmt.Errorf("procfs: write %s: %w", path, err)
	}
	return nil
}

// SetAffinity pins pid to cores via the platform-specific affinity
// implementation (sched_setaffinity on Linux).
func (s *Source) SetAffinity(pid int, cores []int) error {
	return sensors.SetAffinityLinux(pid, cores)
}

func parseCPULine(fields []string) cpuTicks {
	var total, idle uint64
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			continue
		}
		total += v
		if i == 3 || i == 4 { // idle, iowait
			idle += v
		}
	}
	return cpuTicks{idle: idle, total: total}
}

// readCPUTicks parses /proc/stat's aggregate "cpu " line and every
// per-core "cpuN " line into their own tick counters.
func (s *Source) readCPUTicks() (cpuTicks, map[int]cpuTicks, error) {
	f, err := os.Open(filepath.Join(s.procRoot, "stat"))
	if err != nil {
		return cpuTicks{}, nil, err
	}
	defer f.Close()

	var aggregate cpuTicks
	var haveAggregate bool
	perCore := make(map[int]cpuTicks)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "cpu "):
			aggregate = parseCPULine(strings.Fields(line)[1:])
			haveAggregate = true
		case strings.HasPrefix(line, "cpu"):
			name := strings.Fields(line)[0]
			idx, err := strconv.Atoi(strings.TrimPrefix(name, "cpu"))
			if err != nil {
				continue
			}
			perCore[idx] = parseCPULine(strings.Fields(line)[1:])
		}
	}
	if !haveAggregate {
		return cpuTicks{}, nil, fmt.Errorf("procfs: no cpu line in /proc/stat")
	}
	return aggregate, perCore, nil
}

func (s *Source) readLoadAverage() (load1, load5, load15 float64, err error) {
	data, err := os.ReadFile(filepath.Join(s.procRoot, "loadavg"))
	if err != nil {
		return 0, 0, 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return 0, 0, 0, fmt.Errorf("procfs: malformed /proc/loadavg")
	}
	load1, err = strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, 0, err
	}
	load5, err = strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, 0, err
	}
	load15, err = strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return 0, 0, 0, err
	}
	return load1, load5, load15, nil
}

func (s *Source) readMemInfo() (totalKB, availableKB int64, err error) {
	f, err := os.Open(filepath.Join(s.procRoot, "meminfo"))
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			totalKB = parseMemInfoValue(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			availableKB = parseMemInfoValue(line)
		}
	}
	return totalKB, availableKB, nil
}

func parseMemInfoValue(line string) int64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, _ := strconv.ParseInt(fields[1], 10, 64)
	return v
}

func (s *Source) readCoreFrequencies() map[int]int {
	base := filepath.Join(s.sysRoot, "devices", "system", "cpu")
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil
	}
	out := make(map[int]int)
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "cpu") {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimPrefix(name, "cpu"))
		if err != nil {
			continue
		}
		path := filepath.Join(base, name, "cpufreq", "scaling_cur_freq")
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		khz, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil {
			continue
		}
		out[idx] = khz / 1000
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
