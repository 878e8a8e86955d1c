package physics

import (
	"math"

	"github.com/san-kum/polysim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// Bond is E = K/2 (r - R0)^2 between I and J.
type Bond struct {
	I, J  int
	K, R0 float64
}

type HarmonicBond struct {
	Bonds []Bond
}

func (h *HarmonicBond) Name() string { return "bond_harmonic" }

func (h *HarmonicBond) Compute(s *dynamo.State) (float64, dynamo.Tensor) {
	var energy float64
	var virial dynamo.Tensor
	for _, b := range h.Bonds {
		d := s.Box.MinImage(r3.Sub(s.Positions[b.I], s.Positions[b.J]))
		r := r3.Norm(d)
		if r == 0 {
			continue
		}
		dr := r - b.R0
		energy += 0.5 * b.K * dr * dr
		fi := r3.Scale(-b.K*dr/r, d)
		s.Forces[b.I] = r3.Add(s.Forces[b.I], fi)
		s.Forces[b.J] = r3.Sub(s.Forces[b.J], fi)
		virial.AddOuter(d, fi)
	}
	return energy, virial
}

// Angle is E = K/2 (θ - Theta0)^2 with θ the angle I-J-K at J.
type Angle struct {
	I, J, K int
	KTheta  float64
	Theta0  float64
}

type HarmonicAngle struct {
	Angles []Angle
}

func (h *HarmonicAngle) Name() string { return "angle_harmonic" }

func (h *HarmonicAngle) Compute(s *dynamo.State) (float64, dynamo.Tensor) {
	var energy float64
	var virial dynamo.Tensor
	for _, an := range h.Angles {
		a := s.Box.MinImage(r3.Sub(s.Positions[an.I], s.Positions[an.J]))
		c := s.Box.MinImage(r3.Sub(s.Positions[an.K], s.Positions[an.J]))
		ra, rc := r3.Norm(a), r3.Norm(c)
		if ra == 0 || rc == 0 {
			continue
		}
		cos := r3.Dot(a, c) / (ra * rc)
		cos = math.Max(-1, math.Min(1, cos))
		sin := math.Sqrt(1 - cos*cos)
		if sin < 1e-3 {
			sin = 1e-3
		}
		dtheta := math.Acos(cos) - an.Theta0
		energy += 0.5 * an.KTheta * dtheta * dtheta

		// F = -dE/dθ · dθ/dr with dθ/dr = -(1/sinθ) dcosθ/dr
		pre := an.KTheta * dtheta / sin
		fi := r3.Scale(pre, r3.Sub(r3.Scale(1/(ra*rc), c), r3.Scale(cos/(ra*ra), a)))
		fk := r3.Scale(pre, r3.Sub(r3.Scale(1/(ra*rc), a), r3.Scale(cos/(rc*rc), c)))

		s.Forces[an.I] = r3.Add(s.Forces[an.I], fi)
		s.Forces[an.K] = r3.Add(s.Forces[an.K], fk)
		s.Forces[an.J] = r3.Sub(s.Forces[an.J], r3.Add(fi, fk))
		virial.AddOuter(a, fi)
		virial.AddOuter(c, fk)
	}
	return energy, virial
}
