package builder

import (
	"fmt"
	"math"

	"github.com/san-kum/polysim/internal/box"
	"github.com/san-kum/polysim/internal/topology"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r3"
)

// Packer places chains inside a box.
type Packer interface {
	Pack(chains []*topology.Topology, b box.Box) (*topology.Topology, error)
}

// RandomPacker inserts chains one at a time at random positions and
// orientations, rejecting placements that bring two atoms closer than
// Overlap or any atom closer than Edge to a box face. Lengths are nm.
type RandomPacker struct {
	Overlap  float64
	Edge     float64
	Attempts int
	Seed     uint64
}

func DefaultPacker(seed uint64) *RandomPacker {
	return &RandomPacker{Overlap: 0.2, Edge: 0.2, Attempts: 1000, Seed: seed}
}

func (p *RandomPacker) Pack(chains []*topology.Topology, b box.Box) (*topology.Topology, error) {
	if p.Attempts < 1 {
		return nil, fmt.Errorf("%w: attempts %d must be positive", ErrPacking, p.Attempts)
	}
	rng := rand.New(rand.NewSource(p.Seed))
	grid := newCellGrid(math.Max(p.Overlap, 1e-3))
	half := r3.Vec{X: b.Lx / 2, Y: b.Ly / 2, Z: b.Lz / 2}
	inner := r3.Sub(half, r3.Vec{X: p.Edge, Y: p.Edge, Z: p.Edge})
	if inner.X <= 0 || inner.Y <= 0 || inner.Z <= 0 {
		return nil, fmt.Errorf("%w: box %s leaves no room inside edge %g nm", ErrPacking, b, p.Edge)
	}

	out := &topology.Topology{}
	for idx, c := range chains {
		placed := false
		for try := 0; try < p.Attempts && !placed; try++ {
			cand := c.Clone()
			axis := r3.Unit(r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()})
			cand.Rotate(r3.NewRotation(2*math.Pi*rng.Float64(), axis))

			lo, hi := cand.Extent()
			span := r3.Sub(hi, lo)
			if span.X > 2*inner.X || span.Y > 2*inner.Y || span.Z > 2*inner.Z {
				continue
			}
			// pick the low corner so the whole chain stays inside the walls
			target := r3.Vec{
				X: -inner.X + rng.Float64()*(2*inner.X-span.X),
				Y: -inner.Y + rng.Float64()*(2*inner.Y-span.Y),
				Z: -inner.Z + rng.Float64()*(2*inner.Z-span.Z),
			}
			cand.Translate(r3.Sub(target, lo))

			if grid.clashes(cand, p.Overlap) {
				continue
			}
			grid.insert(cand)
			out.Append(cand)
			placed = true
		}
		if !placed {
			return nil, fmt.Errorf("%w: chain %d of %d could not be placed in %s after %d attempts",
				ErrPacking, idx, len(chains), b, p.Attempts)
		}
	}
	return out, nil
}

type cellKey [3]int

type cellGrid struct {
	size  float64
	cells map[cellKey][]r3.Vec
}

func newCellGrid(size float64) *cellGrid {
	return &cellGrid{size: size, cells: make(map[cellKey][]r3.Vec)}
}

func (g *cellGrid) key(p r3.Vec) cellKey {
	return cellKey{
		int(math.Floor(p.X / g.size)),
		int(math.Floor(p.Y / g.size)),
		int(math.Floor(p.Z / g.size)),
	}
}

func (g *cellGrid) insert(t *topology.Topology) {
	for _, a := range t.Atoms {
		k := g.key(a.Position)
		g.cells[k] = append(g.cells[k], a.Position)
	}
}

func (g *cellGrid) clashes(t *topology.Topology, tol float64) bool {
	tol2 := tol * tol
	for _, a := range t.Atoms {
		k := g.key(a.Position)
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				for dz := -1; dz <= 1; dz++ {
					for _, q := range g.cells[cellKey{k[0] + dx, k[1] + dy, k[2] + dz}] {
						if r3.Norm2(r3.Sub(a.Position, q)) < tol2 {
							return true
						}
					}
				}
			}
		}
	}
	return false
}
