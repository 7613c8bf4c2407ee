//go:build linux

package core

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// AvailableCPUs returns the number of CPUs the process may run on, honoring
// the affinity mask set by taskset or a container runtime.
func AvailableCPUs() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err == nil {
		if n := set.Count(); n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}
