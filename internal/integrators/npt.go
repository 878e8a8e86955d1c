package integrators

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/polysim/internal/dynamo"
)

// maxStrain bounds the relative change of any box edge in one step.
const maxStrain = 0.01

// Box degrees of freedom in BoxDOF order.
const (
	DOFX = iota
	DOFY
	DOFZ
	DOFXY
	DOFXZ
	DOFYZ
)

// pressure tensor index of each box degree of freedom
var dofComponent = [6]int{0, 3, 5, 1, 2, 4}

// NPTParams configures the barostat. Couple names the axes that share one
// pressure ("xyz", "xy", "xz", "yz" or "none"); BoxDOF enables x, y, z, xy,
// xz and yz; Gamma damps the barostat rates.
type NPTParams struct {
	S          dynamo.Variant
	TauS       float64
	Couple     string
	BoxDOF     [6]bool
	RescaleAll bool
	Gamma      float64
}

// NPT couples the Nosé-Hoover thermostat to a relaxation barostat: each
// enabled box degree of freedom has a rate driven by the difference between
// the pressure component and the target, with barostat mass N·kT·TauS².
type NPT struct {
	attachable
	thermostat
	NPTParams
	couple [3]int // coupling group per axis
	nu     [6]float64
}

func NewNPT(kT dynamo.Variant, tau float64, p NPTParams) (*NPT, error) {
	th, err := newThermostat(kT, tau)
	if err != nil {
		return nil, err
	}
	if !(p.TauS > 0) {
		return nil, fmt.Errorf("%w: barostat tauS %g", dynamo.ErrParameterBounds, p.TauS)
	}
	if p.Gamma < 0 {
		return nil, fmt.Errorf("%w: barostat gamma %g", dynamo.ErrParameterBounds, p.Gamma)
	}
	groups, err := parseCouple(p.Couple)
	if err != nil {
		return nil, err
	}
	return &NPT{thermostat: th, NPTParams: p, couple: groups}, nil
}

// parseCouple assigns every axis a group id; coupled axes share one id.
func parseCouple(c string) ([3]int, error) {
	groups := [3]int{0, 1, 2}
	switch strings.ToLower(c) {
	case "", "none":
	case "xy":
		groups[1] = 0
	case "xz":
		groups[2] = 0
	case "yz":
		groups[2] = 1
	case "xyz":
		groups = [3]int{0, 0, 0}
	default:
		return groups, fmt.Errorf("%w: couple %q", dynamo.ErrParameterBounds, c)
	}
	return groups, nil
}

func (m *NPT) Kind() string                        { return KindNPT }
func (m *NPT) Attach(s *dynamo.State) error        { return m.attach(KindNPT, s) }
func (m *NPT) StepOne(s *dynamo.State, dt float64) { m.stepOne(s, dt) }

// Rates returns the barostat rate of each box degree of freedom.
func (m *NPT) Rates() [6]float64 { return m.nu }

func (m *NPT) StepTwo(s *dynamo.State, dt float64) {
	m.stepTwo(s, dt)

	kT := m.KT.ValueAt(s.Timestep)
	target := m.S.ValueAt(s.Timestep)
	w := float64(s.N()) * math.Max(kT, 1e-6) * m.TauS * m.TauS
	vol := s.Box.Volume()
	p := s.PressureTensor()

	// average the diagonal over each coupling group of enabled axes
	var sum, cnt [3]float64
	for ax := DOFX; ax <= DOFZ; ax++ {
		if m.BoxDOF[ax] {
			sum[m.couple[ax]] += p[dofComponent[ax]]
			cnt[m.couple[ax]]++
		}
	}

	nb := s.Box
	lengths := [3]*float64{&nb.Lx, &nb.Ly, &nb.Lz}
	for ax := DOFX; ax <= DOFZ; ax++ {
		if !m.BoxDOF[ax] {
			continue
		}
		pd := sum[m.couple[ax]] / cnt[m.couple[ax]]
		m.nu[ax] += dt*vol*(pd-target)/w - dt*m.Gamma*m.nu[ax]
		mu := math.Exp(dt * m.nu[ax])
		mu = math.Max(1-maxStrain, math.Min(1+maxStrain, mu))
		*lengths[ax] *= mu
	}

	tilts := [3]*float64{&nb.XY, &nb.XZ, &nb.YZ}
	for d := DOFXY; d <= DOFYZ; d++ {
		if !m.BoxDOF[d] {
			continue
		}
		m.nu[d] += dt*vol*p[dofComponent[d]]/w - dt*m.Gamma*m.nu[d]
		*tilts[d-DOFXY] += math.Max(-maxStrain, math.Min(maxStrain, dt*m.nu[d]))
	}

	// every particle belongs to this method, so RescaleAll changes nothing
	s.ScaleBox(nb)
}
