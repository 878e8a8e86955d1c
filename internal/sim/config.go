package sim

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/san-kum/polysim/internal/compute"
)

// Config holds the construction parameters of an Engine. Lengths are in
// reduced units when AutoScale is set, as is Dt.
type Config struct {
	AutoScale   bool
	Dt          float64
	RCut        float64
	NListBuffer float64
	Seed        uint64

	// Writers are disabled by an empty file name or a zero frequency.
	TrajectoryFile      string
	TrajectoryWriteFreq uint64
	LogFile             string
	LogWriteFreq        uint64

	// Restart names a trajectory whose last frame replaces the initial
	// positions, velocities, box and timestep.
	Restart string

	// Device evaluates the pair forces. A nil Device gets a CPU device that
	// the engine closes with itself.
	Device compute.Device

	Logger    zerolog.Logger
	Observers []Observer
}

func DefaultConfig() Config {
	return Config{
		AutoScale:           true,
		Dt:                  0.0003,
		RCut:                2.5,
		NListBuffer:         0.4,
		Seed:                42,
		TrajectoryFile:      "trajectory.zst",
		TrajectoryWriteFreq: 10000,
		LogFile:             "sim_data.txt",
		LogWriteFreq:        1000,
		Logger:              zerolog.Nop(),
	}
}

func (c Config) validate() error {
	if !(c.Dt > 0) {
		return fmt.Errorf("%w: dt %g", ErrConfig, c.Dt)
	}
	if !(c.RCut > 0) {
		return fmt.Errorf("%w: r_cut %g", ErrConfig, c.RCut)
	}
	if c.NListBuffer < 0 {
		return fmt.Errorf("%w: neighbor list buffer %g", ErrConfig, c.NListBuffer)
	}
	return nil
}
