// Package topology holds the molecular graph shared by the builder, the
// forcefield and the simulation engine: atoms with their force parameters,
// bonds and angles. Coordinates are in nanometres.
package topology

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

type Atom struct {
	Name     string
	Element  string
	Type     string
	Mass     float64
	Charge   float64
	Epsilon  float64
	Sigma    float64
	Aromatic bool
	Position r3.Vec
}

// Bond is a harmonic bond, E = K/2 (r - R0)^2.
type Bond struct {
	I, J int
	K    float64
	R0   float64
}

// Angle is a harmonic angle centred on J, E = K/2 (theta - Theta0)^2.
type Angle struct {
	I, J, K int
	KTheta  float64
	Theta0  float64
}

type Topology struct {
	Atoms  []Atom
	Bonds  []Bond
	Angles []Angle
}

func (t *Topology) Len() int { return len(t.Atoms) }

// AddAtom appends a and returns its index.
func (t *Topology) AddAtom(a Atom) int {
	t.Atoms = append(t.Atoms, a)
	return len(t.Atoms) - 1
}

func (t *Topology) AddBond(i, j int) {
	t.Bonds = append(t.Bonds, Bond{I: i, J: j})
}

func (t *Topology) AddAngle(i, j, k int) {
	t.Angles = append(t.Angles, Angle{I: i, J: j, K: k})
}

// Mass returns the total mass in amu.
func (t *Topology) Mass() float64 {
	m := 0.0
	for _, a := range t.Atoms {
		m += a.Mass
	}
	return m
}

// Partners returns the indices bonded to atom i, in bond order.
func (t *Topology) Partners(i int) []int {
	var p []int
	for _, b := range t.Bonds {
		switch i {
		case b.I:
			p = append(p, b.J)
		case b.J:
			p = append(p, b.I)
		}
	}
	return p
}

// Clone returns a deep copy.
func (t *Topology) Clone() *Topology {
	c := &Topology{
		Atoms:  make([]Atom, len(t.Atoms)),
		Bonds:  make([]Bond, len(t.Bonds)),
		Angles: make([]Angle, len(t.Angles)),
	}
	copy(c.Atoms, t.Atoms)
	copy(c.Bonds, t.Bonds)
	copy(c.Angles, t.Angles)
	return c
}

// Append merges o into t, offsetting o's indices past t's atoms.
func (t *Topology) Append(o *Topology) {
	off := len(t.Atoms)
	t.Atoms = append(t.Atoms, o.Atoms...)
	for _, b := range o.Bonds {
		b.I += off
		b.J += off
		t.Bonds = append(t.Bonds, b)
	}
	for _, a := range o.Angles {
		a.I += off
		a.J += off
		a.K += off
		t.Angles = append(t.Angles, a)
	}
}

func (t *Topology) Translate(d r3.Vec) {
	for i := range t.Atoms {
		t.Atoms[i].Position = r3.Add(t.Atoms[i].Position, d)
	}
}

// Rotate rotates every atom about the geometric centre.
func (t *Topology) Rotate(rot r3.Rotation) {
	c := t.Center()
	for i := range t.Atoms {
		p := r3.Sub(t.Atoms[i].Position, c)
		t.Atoms[i].Position = r3.Add(rot.Rotate(p), c)
	}
}

// Center returns the geometric centre of the atoms.
func (t *Topology) Center() r3.Vec {
	var c r3.Vec
	if len(t.Atoms) == 0 {
		return c
	}
	for _, a := range t.Atoms {
		c = r3.Add(c, a.Position)
	}
	return r3.Scale(1/float64(len(t.Atoms)), c)
}

// Extent returns the lower and upper corners of the bounding box.
func (t *Topology) Extent() (lo, hi r3.Vec) {
	if len(t.Atoms) == 0 {
		return
	}
	lo = r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi = r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, a := range t.Atoms {
		p := a.Position
		lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	return lo, hi
}

// Strip removes every atom for which drop returns true, together with any
// bond or angle that references a removed atom. Remaining indices are
// renumbered in order.
func (t *Topology) Strip(drop func(i int, a *Atom) bool) {
	remap := make([]int, len(t.Atoms))
	kept := t.Atoms[:0:0]
	for i := range t.Atoms {
		if drop(i, &t.Atoms[i]) {
			remap[i] = -1
			continue
		}
		remap[i] = len(kept)
		kept = append(kept, t.Atoms[i])
	}
	t.Atoms = kept

	bonds := t.Bonds[:0:0]
	for _, b := range t.Bonds {
		if remap[b.I] < 0 || remap[b.J] < 0 {
			continue
		}
		b.I, b.J = remap[b.I], remap[b.J]
		bonds = append(bonds, b)
	}
	t.Bonds = bonds

	angles := t.Angles[:0:0]
	for _, a := range t.Angles {
		if remap[a.I] < 0 || remap[a.J] < 0 || remap[a.K] < 0 {
			continue
		}
		a.I, a.J, a.K = remap[a.I], remap[a.J], remap[a.K]
		angles = append(angles, a)
	}
	t.Angles = angles
}

// GenerateAngles replaces the angle list with every i-j-k triple implied by
// the bond graph, ordered by centre atom.
func (t *Topology) GenerateAngles() {
	t.Angles = t.Angles[:0]
	for j := range t.Atoms {
		p := t.Partners(j)
		for a := 0; a < len(p); a++ {
			for b := a + 1; b < len(p); b++ {
				t.AddAngle(p[a], j, p[b])
			}
		}
	}
}
