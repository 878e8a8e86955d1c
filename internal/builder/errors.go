package builder

import "errors"

var (
	// ErrPacking indicates the packer ran out of attempts placing a chain.
	ErrPacking = errors.New("builder: packing failed")
	// ErrUnsupportedConfiguration indicates a system generation mode other
	// than "pack".
	ErrUnsupportedConfiguration = errors.New("builder: unsupported configuration")
	ErrNotPacked                = errors.New("builder: system has not been packed")
)
