package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidState indicates a non-finite position, velocity or force.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrDimensionMismatch indicates per-particle arrays of different length.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between particle arrays")

	// ErrNoIntegrator indicates a run was requested before an integrator
	// was attached.
	ErrNoIntegrator = errors.New("dynamo: no integrator attached")

	// ErrEmptyState indicates an operation that needs at least one particle.
	ErrEmptyState = errors.New("dynamo: state has no particles")
)

// SimulationError wraps an error with simulation context. Timestep is the
// last fully completed timestep; Step counts steps completed within the
// failing run.
type SimulationError struct {
	Step     int
	Timestep uint64
	Wrapped  error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("timestep %d (step %d of run): %v", e.Timestep, e.Step, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
