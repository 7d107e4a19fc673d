//go:build !linux

package core

import (
	"errors"
	"runtime"
)

// HardwareConcurrency returns the number of logical CPUs.
func HardwareConcurrency() int {
	return runtime.NumCPU()
}

func pinCurrentThread(cpu int) error {
	return errors.New("pin thread: not supported on " + runtime.GOOS)
}
