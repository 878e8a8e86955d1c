package integrators

import (
	"fmt"

	"github.com/san-kum/polysim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// thermostat is a Nosé-Hoover chain of length one.
type thermostat struct {
	KT  dynamo.Variant
	Tau float64
	xi  float64
	eta float64
}

func newThermostat(kT dynamo.Variant, tau float64) (thermostat, error) {
	if !(tau > 0) {
		return thermostat{}, fmt.Errorf("%w: thermostat tau %g", dynamo.ErrParameterBounds, tau)
	}
	if kT.Initial() < 0 || kT.Final() < 0 {
		return thermostat{}, fmt.Errorf("%w: kT %s", dynamo.ErrParameterBounds, kT)
	}
	return thermostat{KT: kT, Tau: tau}, nil
}

func (th *thermostat) stepOne(s *dynamo.State, dt float64) {
	half := 0.5 * dt
	for i, f := range s.Forces {
		v := s.Velocities[i]
		a := r3.Scale(1/s.Masses[i], f)
		s.Velocities[i] = r3.Add(v, r3.Scale(half, r3.Sub(a, r3.Scale(th.xi, v))))
	}
	drift(s, dt)

	target := th.KT.ValueAt(s.Timestep)
	if target > 0 {
		th.xi += dt / (th.Tau * th.Tau) * (s.Temperature()/target - 1)
	}
	th.eta += dt * th.xi
}

func (th *thermostat) stepTwo(s *dynamo.State, dt float64) {
	half := 0.5 * dt
	den := 1 + half*th.xi
	for i, f := range s.Forces {
		v := r3.Add(s.Velocities[i], r3.Scale(half/s.Masses[i], f))
		s.Velocities[i] = r3.Scale(1/den, v)
	}
}

// Xi is the thermostat friction; Eta its time integral.
func (th *thermostat) Xi() float64  { return th.xi }
func (th *thermostat) Eta() float64 { return th.eta }

// ThermostatEnergy is the energy stored in the thermostat at kT, used for
// the conserved quantity.
func (th *thermostat) ThermostatEnergy(dof, kT float64) float64 {
	return dof * kT * (th.eta + 0.5*th.xi*th.xi*th.Tau*th.Tau)
}

// NVT is Nosé-Hoover constant temperature dynamics.
type NVT struct {
	attachable
	thermostat
	kind string
}

func NewNVT(kT dynamo.Variant, tau float64) (*NVT, error) {
	th, err := newThermostat(kT, tau)
	if err != nil {
		return nil, err
	}
	return &NVT{thermostat: th, kind: KindNVT}, nil
}

// NewShrinkNVT is NVT tagged as the thermostat of a shrink stage.
func NewShrinkNVT(kT dynamo.Variant, tau float64) (*NVT, error) {
	m, err := NewNVT(kT, tau)
	if err != nil {
		return nil, err
	}
	m.kind = KindShrink
	return m, nil
}

func (m *NVT) Kind() string                        { return m.kind }
func (m *NVT) Attach(s *dynamo.State) error        { return m.attach(m.kind, s) }
func (m *NVT) StepOne(s *dynamo.State, dt float64) { m.stepOne(s, dt) }
func (m *NVT) StepTwo(s *dynamo.State, dt float64) { m.stepTwo(s, dt) }
