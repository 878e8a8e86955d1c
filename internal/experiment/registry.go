package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/polysim/internal/forcefield"
	"github.com/san-kum/polysim/internal/molecules"
)

// Registry resolves the molecule and forcefield names used in statepoints.
type Registry struct {
	molecules   map[string]molecules.Factory
	forcefields map[string]func() forcefield.Forcefield
}

func NewRegistry() *Registry {
	r := &Registry{
		molecules:   make(map[string]molecules.Factory),
		forcefields: make(map[string]func() forcefield.Forcefield),
	}

	r.molecules["PolyEthylene"] = molecules.PolyEthylene
	r.molecules["PPS"] = molecules.PPS

	r.forcefields["oplsaa"] = func() forcefield.Forcefield { return forcefield.OPLSAA() }
	r.forcefields["oplsaa-pps"] = func() forcefield.Forcefield { return forcefield.OPLSAAPPS() }

	return r
}

func (r *Registry) RegisterMolecule(name string, f molecules.Factory) { r.molecules[name] = f }

func (r *Registry) RegisterForcefield(name string, f func() forcefield.Forcefield) {
	r.forcefields[name] = f
}

func (r *Registry) GetMolecule(name string) (molecules.Factory, error) {
	fn, ok := r.molecules[name]
	if !ok {
		return nil, fmt.Errorf("unknown molecule: %s", name)
	}
	return fn, nil
}

func (r *Registry) GetForcefield(name string) (forcefield.Forcefield, error) {
	fn, ok := r.forcefields[name]
	if !ok {
		return nil, fmt.Errorf("unknown forcefield: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListMolecules() []string   { return sortedKeys(r.molecules) }
func (r *Registry) ListForcefields() []string { return sortedKeys(r.forcefields) }

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
