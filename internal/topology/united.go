package topology

import "fmt"

// IsHydrogen reports whether a is a hydrogen atom.
func IsHydrogen(a *Atom) bool {
	return a.Element == "H"
}

// StripHydrogens performs a united-atom reduction: the mass and charge of
// each hydrogen are folded, in index order, into its single bonded partner
// and the hydrogen is removed. Every hydrogen must have exactly one partner;
// otherwise the topology is left untouched and ErrTopology is returned.
func (t *Topology) StripHydrogens() error {
	var folds [][2]int
	for i := range t.Atoms {
		if !IsHydrogen(&t.Atoms[i]) {
			continue
		}
		p := t.Partners(i)
		if len(p) != 1 {
			return fmt.Errorf("%w: hydrogen %d (%s) has %d bond partners, want 1",
				ErrTopology, i, t.Atoms[i].Name, len(p))
		}
		if IsHydrogen(&t.Atoms[p[0]]) {
			return fmt.Errorf("%w: hydrogen %d is bonded to hydrogen %d", ErrTopology, i, p[0])
		}
		folds = append(folds, [2]int{i, p[0]})
	}

	for _, f := range folds {
		h, heavy := f[0], f[1]
		t.Atoms[heavy].Mass += t.Atoms[h].Mass
		t.Atoms[heavy].Charge += t.Atoms[h].Charge
	}
	t.Strip(func(_ int, a *Atom) bool { return IsHydrogen(a) })
	return nil
}
