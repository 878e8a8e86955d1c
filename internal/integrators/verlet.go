// Package integrators implements the ensemble methods attached to a
// dynamo.Integrator: NVE, Nosé-Hoover NVT (and its shrink variant), NPT
// with a relaxation barostat, and Langevin dynamics.
package integrators

import (
	"fmt"

	"github.com/san-kum/polysim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	KindNVE      = "nve"
	KindNVT      = "nvt"
	KindShrink   = "shrink-nvt"
	KindNPT      = "npt"
	KindLangevin = "langevin"
)

// kick adds dt·F/m to every velocity.
func kick(s *dynamo.State, dt float64) {
	for i, f := range s.Forces {
		s.Velocities[i] = r3.Add(s.Velocities[i], r3.Scale(dt/s.Masses[i], f))
	}
}

// drift moves every particle by dt·v and wraps it into the box.
func drift(s *dynamo.State, dt float64) {
	for i, v := range s.Velocities {
		s.Positions[i] = s.Box.Wrap(r3.Add(s.Positions[i], r3.Scale(dt, v)))
	}
	s.MarkStale()
}

// attachable holds the attach bookkeeping shared by every method.
type attachable struct {
	attached bool
}

func (a *attachable) attach(kind string, s *dynamo.State) error {
	if s.N() == 0 {
		return fmt.Errorf("%s: %w", kind, dynamo.ErrEmptyState)
	}
	a.attached = true
	return nil
}

func (a *attachable) Detach()        { a.attached = false }
func (a *attachable) Attached() bool { return a.attached }

// NVE is plain velocity Verlet.
type NVE struct {
	attachable
}

func NewNVE() *NVE { return &NVE{} }

func (m *NVE) Kind() string                        { return KindNVE }
func (m *NVE) Attach(s *dynamo.State) error        { return m.attach(KindNVE, s) }
func (m *NVE) StepTwo(s *dynamo.State, dt float64) { kick(s, 0.5*dt) }

func (m *NVE) StepOne(s *dynamo.State, dt float64) {
	kick(s, 0.5*dt)
	drift(s, dt)
}
