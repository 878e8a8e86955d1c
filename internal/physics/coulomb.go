package physics

import (
	"math"

	"github.com/san-kum/polysim/internal/dynamo"
)

// CoulombConstant is 1/(4πε0) in kJ mol⁻¹ nm e⁻².
const CoulombConstant = 138.935458

// Coulomb is a shifted-force cutoff electrostatic term: both the energy and
// the force go to zero at the cutoff.
type Coulomb struct {
	Rcut float64
	// Prefactor is CoulombConstant in reduced units.
	Prefactor float64
	nl        *NeighborList
	scratch   pairScratch
}

func NewCoulomb(nl *NeighborList, prefactor float64) *Coulomb {
	return &Coulomb{Rcut: nl.Rcut, Prefactor: prefactor, nl: nl}
}

func (c *Coulomb) Name() string { return "coulomb" }

func (c *Coulomb) Compute(s *dynamo.State) (float64, dynamo.Tensor) {
	return computePairs(s, c.nl, &c.scratch, c.Rcut, c.kernel)
}

func (c *Coulomb) kernel(s *dynamo.State, i, j int, r2 float64) (float64, float64) {
	qq := c.Prefactor * s.Charges[i] * s.Charges[j]
	if qq == 0 {
		return 0, 0
	}
	r := math.Sqrt(r2)
	rc := c.Rcut
	e := qq * (1/r - 1/rc + (r-rc)/(rc*rc))
	f := qq * (1/r2 - 1/(rc*rc)) / r
	return e, f
}
