package procfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chicogong/escheduler/pkg/sensors"
)

func writeFixture(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func newFixtureSource(t *testing.T, cpuLine string) (*Source, string, string) {
	t.Helper()
	procRoot := t.TempDir()
	sysRoot := t.TempDir()

	writeFixture(t, filepath.Join(procRoot, "stat"), cpuLine+"\n")
	writeFixture(t, filepath.Join(procRoot, "loadavg"), "0.50 0.40 0.30 1/200 12345\n")
	writeFixture(t, filepath.Join(procRoot, "meminfo"), "MemTotal:       2048000 kB\nMemAvailable:   1024000 kB\n")

	return NewRooted(procRoot, sysRoot), procRoot, sysRoot
}

func TestReadSystemMetricsFirstCallHasZeroUtilization(t *testing.T) {
	s, _, _ := newFixtureSource(t, "cpu  100 0 100 800 0 0 0 0 0 0")

	snap, err := s.ReadSystemMetrics()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.CPUUtilization != 0 {
		t.Fatalf("expected 0 utilization on the first sample, got %v", snap.CPUUtilization)
	}
	if snap.MemoryTotalKB != 2048000 || snap.MemoryUsedKB != 1024000 {
		t.Fatalf("unexpected memory: total=%v used=%v", snap.MemoryTotalKB, snap.MemoryUsedKB)
	}
	if snap.LoadAverage1m != 0.5 || snap.LoadAverage5m != 0.4 || snap.LoadAverage15m != 0.3 {
		t.Fatalf("load averages = %v/%v/%v, want 0.5/0.4/0.3", snap.LoadAverage1m, snap.LoadAverage5m, snap.LoadAverage15m)
	}
	if snap.MemoryAvailableKB != 1024000 {
		t.Fatalf("MemoryAvailableKB = %v, want 1024000", snap.MemoryAvailableKB)
	}
	if snap.Platform == "" {
		t.Fatal("expected a non-empty Platform tag")
	}
}

func TestReadSystemMetricsPerCoreUtilizationComputesDelta(t *testing.T) {
	procRoot := t.TempDir()
	sysRoot := t.TempDir()
	writeFixture(t, filepath.Join(procRoot, "loadavg"), "0.0 0.0 0.0 1/1 1\n")
	writeFixture(t, filepath.Join(procRoot, "meminfo"), "MemTotal: 1000 kB\nMemAvailable: 500 kB\n")

	s := NewRooted(procRoot, sysRoot)

	writeFixture(t, filepath.Join(procRoot, "stat"),
		"cpu  0 0 0 2000 0 0 0 0 0 0\ncpu0 0 0 0 1000 0 0 0 0 0 0\n")
	if _, err := s.ReadSystemMetrics(); err != nil {
		t.Fatalf("unexpected error on first read: %v", err)
	}

	// core 0's total ticks advance by 100, idle ticks advance by 25 -> utilization 0.75
	writeFixture(t, filepath.Join(procRoot, "stat"),
		"cpu  0 0 0 2100 0 0 0 0 0 0\ncpu0 50 0 25 1025 0 0 0 0 0 0\n")
	snap, err := s.ReadSystemMetrics()
	if err != nil {
		t.Fatalf("unexpected error on second read: %v", err)
	}
	if snap.PerCoreUtilization[0] != 0.75 {
		t.Fatalf("PerCoreUtilization[0] = %v, want 0.75", snap.PerCoreUtilization[0])
	}
}

func TestReadSystemMetricsSecondCallComputesDelta(t *testing.T) {
	procRoot := t.TempDir()
	sysRoot := t.TempDir()
	writeFixture(t, filepath.Join(procRoot, "loadavg"), "0.0 0.0 0.0 1/1 1\n")
	writeFixture(t, filepath.Join(procRoot, "meminfo"), "MemTotal:       1000 kB\nMemAvailable:   500 kB\n")

	s := NewRooted(procRoot, sysRoot)

	writeFixture(t, filepath.Join(procRoot, "stat"), "cpu  0 0 0 1000 0 0 0 0 0 0\n")
	if _, err := s.ReadSystemMetrics(); err != nil {
		t.Fatalf("unexpected error on first read: %v", err)
	}

	// total ticks advance by 200, idle ticks advance by 50 -> utilization 0.75
	writeFixture(t, filepath.Join(procRoot, "stat"), "cpu  100 0 50 1050 0 0 0 0 0 0\n")
	snap, err := s.ReadSystemMetrics()
	if err != nil {
		t.Fatalf("unexpected error on second read: %v", err)
	}
	if snap.CPUUtilization != 0.75 {
		t.Fatalf("CPUUtilization = %v, want 0.75", snap.CPUUtilization)
	}
}

func TestReadSystemMetricsMissingStatFileErrors(t *testing.T) {
	procRoot := t.TempDir()
	sysRoot := t.TempDir()
	writeFixture(t, filepath.Join(procRoot, "loadavg"), "0.0 0.0 0.0 1/1 1\n")
	writeFixture(t, filepath.Join(procRoot, "meminfo"), "MemTotal: 1 kB\nMemAvailable: 1 kB\n")

	s := NewRooted(procRoot, sysRoot)
	if _, err := s.ReadSystemMetrics(); err == nil {
		t.Fatal("expected an error when /proc/stat is missing")
	}
}

func TestReadSystemMetricsReadsCoreFrequencies(t *testing.T) {
	s, _, sysRoot := newFixtureSource(t, "cpu  0 0 0 0 0 0 0 0 0 0")
	writeFixture(t, filepath.Join(sysRoot, "devices", "system", "cpu", "cpu0", "cpufreq", "scaling_cur_freq"), "1200000\n")
	writeFixture(t, filepath.Join(sysRoot, "devices", "system", "cpu", "cpu1", "cpufreq", "scaling_cur_freq"), "2400000\n")

	snap, err := s.ReadSystemMetrics()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.CoreFrequencies[0] != 1200 || snap.CoreFrequencies[1] != 2400 {
		t.Fatalf("unexpected core frequencies: %v", snap.CoreFrequencies)
	}
}

func TestReadGPUsAlwaysUnsupported(t *testing.T) {
	s, _, _ := newFixtureSource(t, "cpu  0 0 0 0 0 0 0 0 0 0")
	_, err := s.ReadGPUs()
	if _, ok := err.(sensors.ErrUnsupported); !ok {
		t.Fatalf("expected sensors.ErrUnsupported, got %T: %v", err, err)
	}
}

func TestReadPowerAlwaysUnsupported(t *testing.T) {
	s, _, _ := newFixtureSource(t, "cpu  0 0 0 0 0 0 0 0 0 0")
	_, err := s.ReadPower()
	if _, ok := err.(sensors.ErrUnsupported); !ok {
		t.Fatalf("expected sensors.ErrUnsupported, got %T: %v", err, err)
	}
}

func TestAvailableFrequenciesParsesKHzToMHz(t *testing.T) {
	s, _, sysRoot := newFixtureSource(t, "cpu  0 0 0 0 0 0 0 0 0 0")
	writeFixture(t, filepath.Join(sysRoot, "devices", "system", "cpu", "cpu0", "cpufreq", "scaling_available_frequencies"),
		"800000 1600000 3200000\n")

	got := s.AvailableFrequencies(0)
	want := []int{800, 1600, 3200}
	if len(got) != len(want) {
		t.Fatalf("AvailableFrequencies = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("AvailableFrequencies = %v, want %v", got, want)
		}
	}
}

func TestAvailableFrequenciesMissingFileReturnsNil(t *testing.T) {
	s, _, _ := newFixtureSource(t, "cpu  0 0 0 0 0 0 0 0 0 0")
	if got := s.AvailableFrequencies(7); got != nil {
		t.Fatalf("expected nil for a core with no cpufreq fixture, got %v", got)
	}
}

func TestSetFrequencyRejectsValueOutsideLadder(t *testing.T) {
	s, _, sysRoot := newFixtureSource(t, "cpu  0 0 0 0 0 0 0 0 0 0")
	writeFixture(t, filepath.Join(sysRoot, "devices", "system", "cpu", "cpu0", "cpufreq", "scaling_available_frequencies"),
		"800000 1600000\n")

	err := s.SetFrequency(0, 2000)
	if _, ok := err.(sensors.ErrInvalidValue); !ok {
		t.Fatalf("expected sensors.ErrInvalidValue, got %T: %v", err, err)
	}
}

func TestSetFrequencyWritesScalingSetspeed(t *testing.T) {
	s, _, sysRoot := newFixtureSource(t, "cpu  0 0 0 0 0 0 0 0 0 0")
	writeFixture(t, filepath.Join(sysRoot, "devices", "system", "cpu", "cpu0", "cpufreq", "scaling_available_frequencies"),
		"800000 1600000\n")
	setspeed := filepath.Join(sysRoot, "devices", "system", "cpu", "cpu0", "cpufreq", "scaling_setspeed")
	writeFixture(t, setspeed, "0\n")

	if err := s.SetFrequency(0, 1600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(setspeed)
	if err != nil {
		t.Fatalf("unexpected error reading back setspeed: %v", err)
	}
	if string(data) != "1600000" {
		t.Fatalf("scaling_setspeed = %q, want %q", string(data), "1600000")
	}
}
