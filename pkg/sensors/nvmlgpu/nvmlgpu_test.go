package nvmlgpu

import (
	"testing"

	"github.com/chicogong/escheduler/pkg/sensors"
)

// The methods tested below never touch the NVML library (Close returns
// early on a Source that was never initialized), so they're safe to
// exercise without an NVIDIA driver present. Every other method
// calls into cgo-backed NVML device handles and needs real hardware;
// see DESIGN.md for why those are left to manual/integration testing.

func TestReadSystemMetricsIsNotAnNVMLConcern(t *testing.T) {
	s := &Source{}
	_, err := s.ReadSystemMetrics()
	if _, ok := err.(sensors.ErrUnsupported); !ok {
		t.Fatalf("expected sensors.ErrUnsupported, got %T: %v", err, err)
	}
}

func TestSetAffinityIsNotAnNVMLConcern(t *testing.T) {
	s := &Source{}
	err := s.SetAffinity(1, []int{0, 1})
	if _, ok := err.(sensors.ErrUnsupported); !ok {
		t.Fatalf("expected sensors.ErrUnsupported, got %T: %v", err, err)
	}
}

func TestCloseOnUninitializedSourceIsANoop(t *testing.T) {
	s := &Source{}
	if err := s.Close(); err != nil {
		t.Fatalf("expected Close on an uninitialized Source to be a no-op, got %v", err)
	}
}
