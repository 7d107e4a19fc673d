//go:build linux

package core

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// HardwareConcurrency returns the number of logical CPUs this process may
// run on, honoring the scheduler affinity mask (taskset, cgroup cpusets).
func HardwareConcurrency() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err == nil {
		if n := set.Count(); n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}

// pinCurrentThread binds the calling OS thread to cpu. The caller must hold
// runtime.LockOSThread.
func pinCurrentThread(cpu int) error {
	if cpu < 0 {
		return fmt.Errorf("pin thread: invalid cpu %d", cpu)
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("pin thread to cpu %d: %w", cpu, err)
	}
	return nil
}
