package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/polysim/internal/dynamo"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"
)

// LangevinParams configures the bath. With Alpha > 0 each particle's drag is
// Alpha times its diameter; otherwise DefaultGamma applies. DefaultGammaR
// is the rotational drag, kept for anisotropic particles.
type LangevinParams struct {
	Alpha                float64
	DefaultGamma         float64
	DefaultGammaR        [3]float64
	TallyReservoirEnergy bool
}

type Langevin struct {
	attachable
	LangevinParams
	KT dynamo.Variant

	gamma     []float64
	reservoir float64
	noise     distuv.Normal
}

func NewLangevin(kT dynamo.Variant, p LangevinParams) (*Langevin, error) {
	if kT.Initial() < 0 || kT.Final() < 0 {
		return nil, fmt.Errorf("%w: kT %s", dynamo.ErrParameterBounds, kT)
	}
	if p.Alpha < 0 || p.DefaultGamma < 0 {
		return nil, fmt.Errorf("%w: alpha %g default gamma %g", dynamo.ErrParameterBounds, p.Alpha, p.DefaultGamma)
	}
	return &Langevin{LangevinParams: p, KT: kT}, nil
}

func (m *Langevin) Kind() string { return KindLangevin }

func (m *Langevin) Attach(s *dynamo.State) error {
	if err := m.attach(KindLangevin, s); err != nil {
		return err
	}
	m.gamma = make([]float64, s.N())
	for i := range m.gamma {
		if m.Alpha > 0 {
			m.gamma[i] = m.Alpha * s.Diameters[i]
		} else {
			m.gamma[i] = m.DefaultGamma
		}
	}
	src := rand.NewSource(s.Seed()*0xbf58476d1ce4e5b9 ^ s.Timestep)
	m.noise = distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	return nil
}

// Gamma returns the drag coefficient of particle i.
func (m *Langevin) Gamma(i int) float64 { return m.gamma[i] }

// ReservoirEnergy is the energy the bath has taken out of the system. It
// stays zero unless TallyReservoirEnergy is set.
func (m *Langevin) ReservoirEnergy() float64 { return m.reservoir }

func (m *Langevin) StepOne(s *dynamo.State, dt float64) {
	kick(s, 0.5*dt)
	drift(s, dt)
}

// StepTwo closes the kick and then applies the bath exactly over the full
// step: v = c·v + sqrt(kT/m·(1-c²))·ξ with c = exp(-γ·dt/m).
func (m *Langevin) StepTwo(s *dynamo.State, dt float64) {
	kT := m.KT.ValueAt(s.Timestep)
	half := 0.5 * dt
	for i, f := range s.Forces {
		mass := s.Masses[i]
		v := r3.Add(s.Velocities[i], r3.Scale(half/mass, f))
		g := m.gamma[i]
		if g == 0 {
			s.Velocities[i] = v
			continue
		}
		c := math.Exp(-g * dt / mass)
		sd := math.Sqrt(kT / mass * (1 - c*c))
		nv := r3.Vec{
			X: c*v.X + sd*m.noise.Rand(),
			Y: c*v.Y + sd*m.noise.Rand(),
			Z: c*v.Z + sd*m.noise.Rand(),
		}
		if m.TallyReservoirEnergy {
			m.reservoir -= 0.5 * mass * (r3.Norm2(nv) - r3.Norm2(v))
		}
		s.Velocities[i] = nv
	}
}
