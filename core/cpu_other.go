//go:build !linux

package core

import "runtime"

// AvailableCPUs returns the number of logical CPUs.
func AvailableCPUs() int {
	return runtime.NumCPU()
}
