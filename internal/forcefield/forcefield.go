// Package forcefield assigns atom types and force parameters to a topology.
//
// The built-in tables carry a small OPLS-AA subset, enough for polyethylene
// and poly(p-phenylene sulfide). Energies are kJ/mol, lengths nm, angles rad.
// Bond and angle force constants follow the E = k/2 (x - x0)^2 convention.
package forcefield

import (
	"fmt"
	"sort"

	"github.com/san-kum/polysim/internal/topology"
)

type Forcefield interface {
	Name() string
	// Apply returns a typed copy of top. The input is not modified.
	Apply(top *topology.Topology) (*topology.Topology, error)
}

type AtomType struct {
	Name    string
	Element string
	Mass    float64
	Charge  float64
	Sigma   float64
	Epsilon float64
}

type BondType struct {
	K  float64
	R0 float64
}

type AngleType struct {
	K      float64
	Theta0 float64
}

// Rule assigns a type to an atom from its local environment.
type Rule struct {
	Element   string
	Aromatic  bool
	Hydrogens int // bonded hydrogens; -1 matches any count
	// Neighbor restricts a hydrogen rule to hydrogens bonded to an atom of
	// this type. Empty matches any.
	Neighbor string
	Type     string
}

// Table is a forcefield defined by lookup tables.
type Table struct {
	name   string
	types  map[string]AtomType
	rules  []Rule
	bonds  map[string]BondType
	angles map[string]AngleType
}

func (t *Table) Name() string { return t.name }

func (t *Table) Apply(top *topology.Topology) (*topology.Topology, error) {
	out := top.Clone()

	hcount := make([]int, out.Len())
	for _, b := range out.Bonds {
		if topology.IsHydrogen(&out.Atoms[b.J]) {
			hcount[b.I]++
		}
		if topology.IsHydrogen(&out.Atoms[b.I]) {
			hcount[b.J]++
		}
	}

	// heavy atoms first so hydrogen rules can see their partner's type
	for pass := 0; pass < 2; pass++ {
		for i := range out.Atoms {
			a := &out.Atoms[i]
			if topology.IsHydrogen(a) != (pass == 1) {
				continue
			}
			name, err := t.match(out, i, hcount[i])
			if err != nil {
				return nil, err
			}
			at := t.types[name]
			a.Type = at.Name
			a.Mass = at.Mass
			a.Charge = at.Charge
			a.Sigma = at.Sigma
			a.Epsilon = at.Epsilon
		}
	}

	for i := range out.Bonds {
		b := &out.Bonds[i]
		bt, ok := t.bonds[pairKey(out.Atoms[b.I].Type, out.Atoms[b.J].Type)]
		if !ok {
			return nil, fmt.Errorf("%w: bond %d-%d (%s-%s)", ErrUnparameterized,
				b.I, b.J, out.Atoms[b.I].Type, out.Atoms[b.J].Type)
		}
		b.K, b.R0 = bt.K, bt.R0
	}

	for i := range out.Angles {
		a := &out.Angles[i]
		ti, tj, tk := out.Atoms[a.I].Type, out.Atoms[a.J].Type, out.Atoms[a.K].Type
		at, ok := t.angles[tripleKey(ti, tj, tk)]
		if !ok {
			return nil, fmt.Errorf("%w: angle %d-%d-%d (%s-%s-%s)", ErrUnparameterized,
				a.I, a.J, a.K, ti, tj, tk)
		}
		a.KTheta, a.Theta0 = at.K, at.Theta0
	}
	return out, nil
}

func (t *Table) match(top *topology.Topology, i, hydrogens int) (string, error) {
	a := &top.Atoms[i]
	var neighbor string
	if topology.IsHydrogen(a) {
		if p := top.Partners(i); len(p) > 0 {
			neighbor = top.Atoms[p[0]].Type
		}
	}
	for _, r := range t.rules {
		if r.Element != a.Element || r.Aromatic != a.Aromatic {
			continue
		}
		if r.Hydrogens >= 0 && r.Hydrogens != hydrogens {
			continue
		}
		if r.Neighbor != "" && r.Neighbor != neighbor {
			continue
		}
		return r.Type, nil
	}
	return "", fmt.Errorf("%w: no %s atom type for atom %d (%s, aromatic=%t, %d H)",
		ErrUnparameterized, t.name, i, a.Element, a.Aromatic, hydrogens)
}

// Types lists the atom type names in sorted order.
func (t *Table) Types() []string {
	names := make([]string, 0, len(t.types))
	for n := range t.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "-" + b
}

func tripleKey(a, b, c string) string {
	if c < a {
		a, c = c, a
	}
	return a + "-" + b + "-" + c
}
