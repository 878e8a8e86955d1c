// Package units derives the reference mass, energy and distance used to
// reduce a typed system to dimensionless MD units.
package units

import (
	"errors"
	"fmt"

	"github.com/san-kum/polysim/internal/topology"
)

var ErrEmptySystem = errors.New("units: system has no atoms")

// ReferenceUnits is immutable once computed. Mass is amu, Energy kJ/mol and
// Distance nm.
type ReferenceUnits struct {
	Mass     float64 `json:"ref_mass" yaml:"ref_mass"`
	Energy   float64 `json:"ref_energy" yaml:"ref_energy"`
	Distance float64 `json:"ref_distance" yaml:"ref_distance"`
}

// Identity leaves every quantity unscaled.
func Identity() ReferenceUnits {
	return ReferenceUnits{Mass: 1, Energy: 1, Distance: 1}
}

type pairParams struct {
	typ     string
	epsilon float64
	sigma   float64
}

// Compute returns the reference units of top. Mass is the largest atomic
// mass. Energy and distance come from the de-duplicated (type, epsilon,
// sigma) set: energy is the epsilon of the tuple with the largest epsilon
// and distance is the sigma of the tuple with the largest sigma. The two
// tuples need not be the same.
func Compute(top *topology.Topology) (ReferenceUnits, error) {
	if top == nil || top.Len() == 0 {
		return ReferenceUnits{}, ErrEmptySystem
	}

	seen := make(map[pairParams]struct{})
	var ref ReferenceUnits
	var maxEps, maxSig *pairParams
	for i := range top.Atoms {
		a := &top.Atoms[i]
		if a.Mass > ref.Mass {
			ref.Mass = a.Mass
		}
		p := pairParams{a.Type, a.Epsilon, a.Sigma}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		// strict comparison keeps the first tuple on ties
		if maxEps == nil || p.epsilon > maxEps.epsilon {
			pp := p
			maxEps = &pp
		}
		if maxSig == nil || p.sigma > maxSig.sigma {
			pp := p
			maxSig = &pp
		}
	}
	ref.Energy = maxEps.epsilon
	ref.Distance = maxSig.sigma

	if !(ref.Mass > 0) || !(ref.Energy > 0) || !(ref.Distance > 0) {
		return ReferenceUnits{}, fmt.Errorf("units: non-positive reference (mass %g, energy %g, distance %g); is the system typed?",
			ref.Mass, ref.Energy, ref.Distance)
	}
	return ref, nil
}

func (r ReferenceUnits) ReduceLength(nm float64) float64 { return nm / r.Distance }
func (r ReferenceUnits) ReduceEnergy(e float64) float64  { return e / r.Energy }
func (r ReferenceUnits) ReduceMass(amu float64) float64  { return amu / r.Mass }
func (r ReferenceUnits) RestoreLength(l float64) float64 { return l * r.Distance }
func (r ReferenceUnits) RestoreEnergy(e float64) float64 { return e * r.Energy }

// ReduceBondK converts a bond constant in energy/length^2.
func (r ReferenceUnits) ReduceBondK(k float64) float64 {
	return k * r.Distance * r.Distance / r.Energy
}

func (r ReferenceUnits) String() string {
	return fmt.Sprintf("mass=%.4g amu energy=%.4g kJ/mol distance=%.4g nm", r.Mass, r.Energy, r.Distance)
}
