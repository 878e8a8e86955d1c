package dynamo

import (
	"fmt"
	"math"

	"github.com/san-kum/polysim/internal/box"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"
)

// Tensor is a symmetric 3x3 tensor stored as xx, xy, xz, yy, yz, zz.
type Tensor [6]float64

func (t Tensor) Trace() float64 { return t[0] + t[3] + t[5] }

func (t *Tensor) AddOuter(a, b r3.Vec) {
	t[0] += a.X * b.X
	t[1] += a.X * b.Y
	t[2] += a.X * b.Z
	t[3] += a.Y * b.Y
	t[4] += a.Y * b.Z
	t[5] += a.Z * b.Z
}

func (t *Tensor) Add(o Tensor) {
	for i := range t {
		t[i] += o[i]
	}
}

// State is the single live particle system of a run. Positions are kept
// wrapped into Box.
type State struct {
	Positions  []r3.Vec
	Velocities []r3.Vec
	Forces     []r3.Vec
	Masses     []float64
	Charges    []float64
	Diameters  []float64
	TypeIDs    []int
	TypeNames  []string

	Box      box.Box
	Timestep uint64

	// Set by the integrator after every force evaluation.
	PotentialEnergy float64
	Virial          Tensor
	Energies        map[string]float64

	seed  uint64
	stale bool
}

// NewState allocates n particles with unit mass and diameter.
func NewState(n int, b box.Box, seed uint64) *State {
	s := &State{
		Positions:  make([]r3.Vec, n),
		Velocities: make([]r3.Vec, n),
		Forces:     make([]r3.Vec, n),
		Masses:     make([]float64, n),
		Charges:    make([]float64, n),
		Diameters:  make([]float64, n),
		TypeIDs:    make([]int, n),
		Box:        b,
		Energies:   make(map[string]float64),
		seed:       seed,
		stale:      true,
	}
	for i := 0; i < n; i++ {
		s.Masses[i] = 1
		s.Diameters[i] = 1
	}
	return s
}

func (s *State) N() int { return len(s.Positions) }

// Seed is fixed at construction.
func (s *State) Seed() uint64 { return s.seed }

// Validate checks array lengths and the box.
func (s *State) Validate() error {
	n := len(s.Positions)
	for name, l := range map[string]int{
		"velocities": len(s.Velocities),
		"forces":     len(s.Forces),
		"masses":     len(s.Masses),
		"charges":    len(s.Charges),
		"diameters":  len(s.Diameters),
		"type ids":   len(s.TypeIDs),
	} {
		if l != n {
			return fmt.Errorf("%w: %d %s for %d particles", ErrDimensionMismatch, l, name, n)
		}
	}
	if !s.Box.Valid() {
		return fmt.Errorf("%w: box %s", ErrParameterBounds, s.Box)
	}
	for i, m := range s.Masses {
		if !(m > 0) {
			return fmt.Errorf("%w: particle %d mass %g", ErrParameterBounds, i, m)
		}
	}
	return nil
}

// IsValid reports whether every position, velocity and force is finite.
func (s *State) IsValid() bool {
	finite := func(v r3.Vec) bool {
		return !math.IsNaN(v.X+v.Y+v.Z) && !math.IsInf(v.X+v.Y+v.Z, 0)
	}
	for i := range s.Positions {
		if !finite(s.Positions[i]) || !finite(s.Velocities[i]) || !finite(s.Forces[i]) {
			return false
		}
	}
	return true
}

// Stale reports whether positions or the box changed since the last force
// evaluation.
func (s *State) Stale() bool  { return s.stale }
func (s *State) MarkStale()   { s.stale = true }
func (s *State) MarkCurrent() { s.stale = false }

// WrapPositions maps every particle back into the box.
func (s *State) WrapPositions() {
	for i, p := range s.Positions {
		s.Positions[i] = s.Box.Wrap(p)
	}
}

// ScaleBox replaces the box and maps positions affinely into it.
func (s *State) ScaleBox(nb box.Box) {
	if nb == s.Box {
		return
	}
	for i, p := range s.Positions {
		s.Positions[i] = nb.Cartesian(s.Box.Fractional(p))
	}
	s.Box = nb
	s.stale = true
}

// DegreesOfFreedom is the translational DOF count with centre-of-mass
// motion removed.
func (s *State) DegreesOfFreedom() float64 {
	n := s.N()
	if n < 2 {
		return float64(3 * n)
	}
	return float64(3*n - 3)
}

func (s *State) KineticEnergy() float64 {
	ke := 0.0
	for i, v := range s.Velocities {
		ke += 0.5 * s.Masses[i] * r3.Norm2(v)
	}
	return ke
}

// KineticTensor returns sum m v⊗v.
func (s *State) KineticTensor() Tensor {
	var t Tensor
	for i, v := range s.Velocities {
		t.AddOuter(r3.Scale(s.Masses[i], v), v)
	}
	return t
}

// Temperature is the instantaneous kinetic temperature in energy units.
func (s *State) Temperature() float64 {
	dof := s.DegreesOfFreedom()
	if dof == 0 {
		return 0
	}
	return 2 * s.KineticEnergy() / dof
}

// PressureTensor combines the kinetic tensor with the last virial.
func (s *State) PressureTensor() Tensor {
	p := s.KineticTensor()
	p.Add(s.Virial)
	v := s.Box.Volume()
	for i := range p {
		p[i] /= v
	}
	return p
}

func (s *State) Pressure() float64 {
	return s.PressureTensor().Trace() / 3
}

// Thermalize draws velocities from the Maxwell-Boltzmann distribution at kT
// and removes centre-of-mass drift. The draw depends only on the seed and
// the current timestep.
func (s *State) Thermalize(kT float64) error {
	if s.N() == 0 {
		return ErrEmptyState
	}
	if kT < 0 || math.IsNaN(kT) {
		return fmt.Errorf("%w: kT %g", ErrParameterBounds, kT)
	}
	src := rand.NewSource(s.seed*0x9e3779b97f4a7c15 ^ s.Timestep)
	unit := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	var p r3.Vec
	var mass float64
	for i := range s.Velocities {
		sd := math.Sqrt(kT / s.Masses[i])
		v := r3.Vec{X: sd * unit.Rand(), Y: sd * unit.Rand(), Z: sd * unit.Rand()}
		s.Velocities[i] = v
		p = r3.Add(p, r3.Scale(s.Masses[i], v))
		mass += s.Masses[i]
	}
	if s.N() > 1 {
		vcm := r3.Scale(1/mass, p)
		for i := range s.Velocities {
			s.Velocities[i] = r3.Sub(s.Velocities[i], vcm)
		}
	}
	return nil
}

// Clone returns a deep copy sharing nothing with s.
func (s *State) Clone() *State {
	c := *s
	c.Positions = append([]r3.Vec(nil), s.Positions...)
	c.Velocities = append([]r3.Vec(nil), s.Velocities...)
	c.Forces = append([]r3.Vec(nil), s.Forces...)
	c.Masses = append([]float64(nil), s.Masses...)
	c.Charges = append([]float64(nil), s.Charges...)
	c.Diameters = append([]float64(nil), s.Diameters...)
	c.TypeIDs = append([]int(nil), s.TypeIDs...)
	c.TypeNames = append([]string(nil), s.TypeNames...)
	c.Energies = make(map[string]float64, len(s.Energies))
	for k, v := range s.Energies {
		c.Energies[k] = v
	}
	return &c
}
