package dynamo

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Method is one integration method attached to an integrator. StepOne runs
// before the force evaluation and StepTwo after it, following velocity
// Verlet.
type Method interface {
	Kind() string
	Attach(s *State) error
	Detach()
	StepOne(s *State, dt float64)
	StepTwo(s *State, dt float64)
}

type Integrator struct {
	Dt      float64
	Forces  []Force
	methods []Method
}

func NewIntegrator(dt float64, forces ...Force) *Integrator {
	return &Integrator{Dt: dt, Forces: forces}
}

// Methods returns the attached methods in attach order.
func (in *Integrator) Methods() []Method {
	return append([]Method(nil), in.methods...)
}

func (in *Integrator) AddMethod(s *State, m Method) error {
	if err := m.Attach(s); err != nil {
		return err
	}
	in.methods = append(in.methods, m)
	return nil
}

// RemoveMethod detaches m. It reports whether m was attached.
func (in *Integrator) RemoveMethod(m Method) bool {
	for i, cur := range in.methods {
		if cur == m {
			cur.Detach()
			in.methods = append(in.methods[:i], in.methods[i+1:]...)
			return true
		}
	}
	return false
}

// SetMethod detaches every attached method and attaches m in their place.
// On failure the integrator is left with no method.
func (in *Integrator) SetMethod(s *State, m Method) error {
	for _, cur := range in.methods {
		cur.Detach()
	}
	in.methods = in.methods[:0]
	return in.AddMethod(s, m)
}

// ComputeForces clears the force buffer and evaluates every force term.
func (in *Integrator) ComputeForces(s *State) {
	for i := range s.Forces {
		s.Forces[i] = r3.Vec{}
	}
	s.PotentialEnergy = 0
	s.Virial = Tensor{}
	if s.Energies == nil {
		s.Energies = make(map[string]float64, len(in.Forces))
	}
	for _, f := range in.Forces {
		e, w := f.Compute(s)
		s.Energies[f.Name()] = e
		s.PotentialEnergy += e
		s.Virial.Add(w)
	}
	s.MarkCurrent()
}

// Step advances s by one timestep without touching the timestep counter.
func (in *Integrator) Step(s *State) error {
	if !(in.Dt > 0) {
		return fmt.Errorf("%w: dt %g", ErrParameterBounds, in.Dt)
	}
	if s.Stale() {
		in.ComputeForces(s)
	}
	for _, m := range in.methods {
		m.StepOne(s, in.Dt)
	}
	in.ComputeForces(s)
	for _, m := range in.methods {
		m.StepTwo(s, in.Dt)
	}
	// a barostat may have moved the particles after the evaluation
	if s.Stale() {
		in.ComputeForces(s)
	}
	if !s.IsValid() {
		return ErrInvalidState
	}
	return nil
}
