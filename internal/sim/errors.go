package sim

import "errors"

var (
	// ErrGeometry indicates a target box with a non-positive edge.
	ErrGeometry = errors.New("sim: invalid box geometry")

	// ErrIntegratorState indicates a method attach on a state that cannot
	// be integrated, such as one with no particles.
	ErrIntegratorState = errors.New("sim: cannot integrate state")

	// ErrClosed indicates use of an engine after Close.
	ErrClosed = errors.New("sim: engine closed")

	ErrConfig = errors.New("sim: invalid engine config")
)
