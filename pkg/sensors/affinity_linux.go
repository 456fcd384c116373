//go:build linux

package sensors

import (
	"golang.org/x/sys/unix"
)

// SetAffinityLinux pins pid to the given set of CPU cores via
// sched_setaffinity. pid 0 means the calling process. It is the one
// platform-specific capability named for the Source contract; concrete
// Source implementations that cannot actuate affinity themselves (NVML,
// /proc read-only) can delegate SetAffinity to it.
func SetAffinityLinux(pid int, cores []int) error {
	if len(cores) == 0 {
		return ErrInvalidValue{Capability: "SetAffinity", Value: 0}
	}
	var set unix.CPUSet
	set.Zero()
	for _, c := range cores {
		if c < 0 {
			return ErrInvalidValue{Capability: "SetAffinity", Value: c}
		}
		set.Set(c)
	}
	if err := unix.SchedSetaffinity(pid, &set); err != nil {
		if err == unix.EPERM || err == unix.EACCES {
			return ErrPermissionDenied{Capability: "SetAffinity"}
		}
		return ErrInvalidValue{Capability: "SetAffinity", Value: pid}
	}
	return nil
}
