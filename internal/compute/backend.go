package compute

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDeviceUnavailable = errors.New("compute: device unavailable")
	ErrUnknownDevice     = errors.New("compute: unknown device")
)

// Device splits index ranges across workers. fn receives the worker index
// so callers can keep per-worker accumulators without locking.
type Device interface {
	Name() string
	Workers() int
	ParallelFor(n int, fn func(worker, start, end int))
	Close()
}

// Names lists the devices NewDevice accepts.
func Names() []string {
	return []string{"cpu", "serial", "gpu"}
}

// NewDevice returns the named device. An empty name selects the CPU.
func NewDevice(name string) (Device, error) {
	switch strings.ToLower(name) {
	case "", "cpu", "auto":
		return NewCPU(0), nil
	case "serial":
		return NewCPU(1), nil
	case "gpu", "cuda":
		return NewGPU()
	}
	return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownDevice, name, strings.Join(Names(), ", "))
}
