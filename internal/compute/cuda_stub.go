//go:build !cuda

package compute

// NewGPU reports that this binary was built without GPU kernels.
func NewGPU() (Device, error) {
	return nil, ErrDeviceUnavailable
}
