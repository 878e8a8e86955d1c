package physics

import (
	"math"
	"slices"

	"github.com/san-kum/polysim/internal/box"
	"github.com/san-kum/polysim/internal/compute"
	"github.com/san-kum/polysim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// Exclusions holds particle pairs that pair forces skip.
type Exclusions map[[2]int]struct{}

func pairKey(i, j int) [2]int {
	if j < i {
		i, j = j, i
	}
	return [2]int{i, j}
}

// NewExclusions excludes every bonded pair and the end atoms of every angle.
func NewExclusions(bonds [][2]int, angles [][3]int) Exclusions {
	ex := make(Exclusions, len(bonds)+len(angles))
	for _, b := range bonds {
		ex[pairKey(b[0], b[1])] = struct{}{}
	}
	for _, a := range angles {
		ex[pairKey(a[0], a[2])] = struct{}{}
	}
	return ex
}

func (e Exclusions) Has(i, j int) bool {
	_, ok := e[pairKey(i, j)]
	return ok
}

// NeighborList is a half Verlet list: pairs[i] holds j > i within
// Rcut+Buffer. Boxes at least three cutoffs wide are binned into a cell grid;
// smaller ones fall back to an all-pairs search. The list is rebuilt once the
// displacements since the last build, together with any compression of the
// box, could bring an unlisted pair inside Rcut.
type NeighborList struct {
	Rcut       float64
	Buffer     float64
	Exclusions Exclusions

	dev    compute.Device
	pairs  [][]int
	ref    []r3.Vec
	refBox box.Box
	grid   cellGrid
	cells  bool
	builds int
}

func NewNeighborList(rcut, buffer float64, ex Exclusions, dev compute.Device) *NeighborList {
	if dev == nil {
		dev = compute.NewCPU(1)
	}
	return &NeighborList{Rcut: rcut, Buffer: buffer, Exclusions: ex, dev: dev}
}

// Builds counts full rebuilds.
func (nl *NeighborList) Builds() int { return nl.builds }

func (nl *NeighborList) Device() compute.Device { return nl.dev }

// Pairs returns the neighbours of i with index greater than i.
func (nl *NeighborList) Pairs(i int) []int { return nl.pairs[i] }

func (nl *NeighborList) Update(s *dynamo.State) {
	if nl.needsRebuild(s) {
		nl.build(s)
	}
}

func (nl *NeighborList) needsRebuild(s *dynamo.State) bool {
	if len(nl.ref) != s.N() {
		return true
	}
	strained := s.Box != nl.refBox
	stretch := 1.0
	if strained {
		var ok bool
		if stretch, ok = minStretch(nl.refBox, s.Box); !ok {
			return true
		}
	}
	// An unlisted pair was at least rl apart at build time. After the box
	// map and the displacements since, it is at least stretch·rl - 2·dmax
	// apart.
	lim := (stretch*(nl.Rcut+nl.Buffer) - nl.Rcut) / 2
	if lim <= 0 {
		return true
	}
	lim *= lim
	for i, p := range s.Positions {
		ref := nl.ref[i]
		if strained {
			ref = s.Box.Cartesian(nl.refBox.Fractional(ref))
		}
		if r3.Norm2(s.Box.MinImage(r3.Sub(p, ref))) > lim {
			return true
		}
	}
	return false
}

// minStretch returns the smallest factor by which the map from box a to box
// b scales any vector. Only tilt-free boxes are handled.
func minStretch(a, b box.Box) (float64, bool) {
	if a.Tilts() != ([3]float64{}) || b.Tilts() != ([3]float64{}) {
		return 0, false
	}
	return min(b.Lx/a.Lx, b.Ly/a.Ly, b.Lz/a.Lz), true
}

func (nl *NeighborList) build(s *dynamo.State) {
	n := s.N()
	if cap(nl.pairs) < n {
		nl.pairs = make([][]int, n)
	}
	nl.pairs = nl.pairs[:n]
	rl := nl.Rcut + nl.Buffer
	rl2 := rl * rl

	accept := func(i, j int) bool {
		return r3.Norm2(s.Box.MinImage(r3.Sub(s.Positions[i], s.Positions[j]))) < rl2 &&
			!nl.Exclusions.Has(i, j)
	}

	nl.cells = nl.grid.bin(s, rl)
	if nl.cells {
		g := &nl.grid
		nl.dev.ParallelFor(n, func(_, start, end int) {
			for i := start; i < end; i++ {
				list := nl.pairs[i][:0]
				ci := g.coord[i]
				for dx := -1; dx <= 1; dx++ {
					for dy := -1; dy <= 1; dy++ {
						for dz := -1; dz <= 1; dz++ {
							c := g.flat(ci[0]+dx, ci[1]+dy, ci[2]+dz)
							for j := g.head[c]; j >= 0; j = g.next[j] {
								if j > i && accept(i, j) {
									list = append(list, j)
								}
							}
						}
					}
				}
				slices.Sort(list)
				nl.pairs[i] = list
			}
		})
	} else {
		nl.dev.ParallelFor(n, func(_, start, end int) {
			for i := start; i < end; i++ {
				list := nl.pairs[i][:0]
				for j := i + 1; j < n; j++ {
					if accept(i, j) {
						list = append(list, j)
					}
				}
				nl.pairs[i] = list
			}
		})
	}

	nl.ref = append(nl.ref[:0], s.Positions...)
	nl.refBox = s.Box
	nl.builds++
}

const maxCellsPerAxis = 128

// cellGrid bins particles by lattice coordinate into cells at least rl wide
// along every lattice direction, so any pair closer than rl sits in the same
// or an adjacent cell.
type cellGrid struct {
	dim   [3]int
	head  []int
	next  []int
	coord [][3]int
}

// faceWidths returns the distance between opposite faces of b.
func faceWidths(b box.Box) [3]float64 {
	t := b.XY*b.YZ - b.XZ
	return [3]float64{
		b.Lx / math.Sqrt(1+b.XY*b.XY+t*t),
		b.Ly / math.Sqrt(1+b.YZ*b.YZ),
		b.Lz,
	}
}

// bin fills the grid for s. It reports false when some direction fits fewer
// than three cells; the 27-cell stencil would then visit a cell twice.
func (g *cellGrid) bin(s *dynamo.State, rl float64) bool {
	w := faceWidths(s.Box)
	for k := range g.dim {
		g.dim[k] = min(int(w[k]/rl), maxCellsPerAxis)
		if g.dim[k] < 3 {
			return false
		}
	}
	nc := g.dim[0] * g.dim[1] * g.dim[2]
	if cap(g.head) < nc {
		g.head = make([]int, nc)
	}
	g.head = g.head[:nc]
	for c := range g.head {
		g.head[c] = -1
	}
	n := s.N()
	if cap(g.next) < n {
		g.next = make([]int, n)
		g.coord = make([][3]int, n)
	}
	g.next, g.coord = g.next[:n], g.coord[:n]

	for i, p := range s.Positions {
		f := s.Box.Fractional(p)
		frac := [3]float64{f.X, f.Y, f.Z}
		var c [3]int
		for k, x := range frac {
			x -= math.Floor(x + 0.5)
			c[k] = min(max(int((x+0.5)*float64(g.dim[k])), 0), g.dim[k]-1)
		}
		g.coord[i] = c
		flat := g.flat(c[0], c[1], c[2])
		g.next[i] = g.head[flat]
		g.head[flat] = i
	}
	return true
}

// flat maps periodic cell coordinates to a slot in head.
func (g *cellGrid) flat(x, y, z int) int {
	wrap := func(v, n int) int { return (v%n + n) % n }
	return (wrap(x, g.dim[0])*g.dim[1]+wrap(y, g.dim[1]))*g.dim[2] + wrap(z, g.dim[2])
}

// pairKernel returns the energy of a pair at squared distance r2 and the
// scalar f such that the force on i is f·(ri - rj).
type pairKernel func(s *dynamo.State, i, j int, r2 float64) (energy, f float64)

type pairScratch struct {
	forces [][]r3.Vec
	energy []float64
	virial []dynamo.Tensor
}

// computePairs evaluates kernel over the list in parallel and adds the
// result into s.Forces.
func computePairs(s *dynamo.State, nl *NeighborList, sc *pairScratch, rcut float64, kernel pairKernel) (float64, dynamo.Tensor) {
	nl.Update(s)
	n := s.N()
	workers := nl.dev.Workers()
	if len(sc.forces) != workers {
		sc.forces = make([][]r3.Vec, workers)
		sc.energy = make([]float64, workers)
		sc.virial = make([]dynamo.Tensor, workers)
	}
	for w := range sc.forces {
		if len(sc.forces[w]) != n {
			sc.forces[w] = make([]r3.Vec, n)
		} else {
			clear(sc.forces[w])
		}
		sc.energy[w] = 0
		sc.virial[w] = dynamo.Tensor{}
	}
	rc2 := rcut * rcut

	nl.dev.ParallelFor(n, func(w, start, end int) {
		local := sc.forces[w]
		for i := start; i < end; i++ {
			pi := s.Positions[i]
			for _, j := range nl.pairs[i] {
				d := s.Box.MinImage(r3.Sub(pi, s.Positions[j]))
				r2 := r3.Norm2(d)
				if r2 >= rc2 || r2 == 0 {
					continue
				}
				e, f := kernel(s, i, j, r2)
				fij := r3.Scale(f, d)
				local[i] = r3.Add(local[i], fij)
				local[j] = r3.Sub(local[j], fij)
				sc.energy[w] += e
				sc.virial[w].AddOuter(d, fij)
			}
		}
	})

	var energy float64
	var virial dynamo.Tensor
	for w := range sc.forces {
		for i, f := range sc.forces[w] {
			s.Forces[i] = r3.Add(s.Forces[i], f)
		}
		energy += sc.energy[w]
		virial.Add(sc.virial[w])
	}
	return energy, virial
}
