package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/polysim/internal/dynamo"
)

// LJ is the 12-6 Lennard-Jones pair potential with geometric mixing,
// unshifted at the cutoff.
type LJ struct {
	Rcut    float64
	nl      *NeighborList
	epsilon [][]float64
	sigma   [][]float64
	scratch pairScratch
}

// NewLJ mixes the per-type epsilon and sigma geometrically.
func NewLJ(nl *NeighborList, epsilon, sigma []float64) (*LJ, error) {
	if len(epsilon) != len(sigma) {
		return nil, fmt.Errorf("%w: %d epsilons for %d sigmas", dynamo.ErrDimensionMismatch, len(epsilon), len(sigma))
	}
	nt := len(epsilon)
	lj := &LJ{Rcut: nl.Rcut, nl: nl, epsilon: make([][]float64, nt), sigma: make([][]float64, nt)}
	for a := 0; a < nt; a++ {
		if epsilon[a] < 0 || sigma[a] < 0 {
			return nil, fmt.Errorf("%w: type %d epsilon %g sigma %g", dynamo.ErrParameterBounds, a, epsilon[a], sigma[a])
		}
		lj.epsilon[a] = make([]float64, nt)
		lj.sigma[a] = make([]float64, nt)
		for b := 0; b < nt; b++ {
			lj.epsilon[a][b] = math.Sqrt(epsilon[a] * epsilon[b])
			lj.sigma[a][b] = math.Sqrt(sigma[a] * sigma[b])
		}
	}
	return lj, nil
}

func (lj *LJ) Name() string { return "lj" }

// Params returns the mixed epsilon and sigma for a type pair.
func (lj *LJ) Params(a, b int) (epsilon, sigma float64) {
	return lj.epsilon[a][b], lj.sigma[a][b]
}

func (lj *LJ) NeighborList() *NeighborList { return lj.nl }

func (lj *LJ) Compute(s *dynamo.State) (float64, dynamo.Tensor) {
	return computePairs(s, lj.nl, &lj.scratch, lj.Rcut, lj.kernel)
}

func (lj *LJ) kernel(s *dynamo.State, i, j int, r2 float64) (float64, float64) {
	ti, tj := s.TypeIDs[i], s.TypeIDs[j]
	eps, sig := lj.epsilon[ti][tj], lj.sigma[ti][tj]
	if eps == 0 {
		return 0, 0
	}
	sr2 := sig * sig / r2
	sr6 := sr2 * sr2 * sr2
	sr12 := sr6 * sr6
	return 4 * eps * (sr12 - sr6), 24 * eps * (2*sr12 - sr6) / r2
}
