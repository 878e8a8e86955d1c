package dynamo

// Force is one potential energy term. Compute adds its forces into
// s.Forces and returns its energy and virial contribution; it must not
// clear the buffer.
type Force interface {
	Name() string
	Compute(s *State) (energy float64, virial Tensor)
}
