package physics

import (
	"math"
	"slices"
	"testing"

	"github.com/san-kum/polysim/internal/box"
	"github.com/san-kum/polysim/internal/compute"
	"github.com/san-kum/polysim/internal/dynamo"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r3"
)

func pairState(r float64) *dynamo.State {
	s := dynamo.NewState(2, box.Cubic(10), 1)
	s.Positions[1] = r3.Vec{X: r}
	return s
}

func newTestLJ(t *testing.T, dev compute.Device) *LJ {
	t.Helper()
	nl := NewNeighborList(2.5, 0.4, nil, dev)
	lj, err := NewLJ(nl, []float64{1}, []float64{1})
	if err != nil {
		t.Fatal(err)
	}
	return lj
}

func TestLJPair(t *testing.T) {
	tests := []struct {
		name   string
		r      float64
		energy float64
		force  float64 // x force on particle 1
	}{
		{"at sigma", 1, 0, 24},
		{"at minimum", math.Pow(2, 1.0/6), -1, 0},
		{"beyond cutoff", 3, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := pairState(tt.r)
			e, _ := newTestLJ(t, nil).Compute(s)
			if math.Abs(e-tt.energy) > 1e-9 {
				t.Errorf("expected energy %g, got %g", tt.energy, e)
			}
			if math.Abs(s.Forces[1].X-tt.force) > 1e-9 {
				t.Errorf("expected force %g, got %g", tt.force, s.Forces[1].X)
			}
			if r3.Norm(r3.Add(s.Forces[0], s.Forces[1])) > 1e-12 {
				t.Error("forces do not cancel")
			}
		})
	}
}

func TestLJMinimumImage(t *testing.T) {
	s := pairState(9)
	e, _ := newTestLJ(t, nil).Compute(s)
	if math.Abs(e) > 1e-9 {
		t.Errorf("expected zero energy at r=1 through the boundary, got %g", e)
	}
	// particle 1 sits at x=-1 through the boundary
	if s.Forces[1].X >= 0 {
		t.Errorf("expected particle 1 pushed towards -x, got %v", s.Forces[1])
	}
}

func TestLJMixing(t *testing.T) {
	nl := NewNeighborList(2.5, 0.4, nil, nil)
	lj, err := NewLJ(nl, []float64{1, 4}, []float64{1, 0.25})
	if err != nil {
		t.Fatal(err)
	}
	eps, sig := lj.Params(0, 1)
	if eps != 2 || sig != 0.5 {
		t.Errorf("expected (2, 0.5), got (%g, %g)", eps, sig)
	}
	if _, err := NewLJ(nl, []float64{1}, nil); err == nil {
		t.Error("expected error for mismatched parameters")
	}
}

func TestExclusions(t *testing.T) {
	ex := NewExclusions([][2]int{{0, 1}}, [][3]int{{0, 1, 2}})
	if !ex.Has(1, 0) || !ex.Has(2, 0) || ex.Has(1, 2) {
		t.Errorf("unexpected exclusions %v", ex)
	}

	s := dynamo.NewState(3, box.Cubic(10), 1)
	s.Positions[1] = r3.Vec{X: 1}
	s.Positions[2] = r3.Vec{X: 2}
	// only 1-2 interacts, at r=1
	nl := NewNeighborList(2.5, 0.4, NewExclusions([][2]int{{0, 1}}, [][3]int{{0, 1, 2}}), nil)
	lj, _ := NewLJ(nl, []float64{1}, []float64{1})
	lj.Compute(s)
	if s.Forces[0] != (r3.Vec{}) {
		t.Errorf("excluded particle 0 felt %v", s.Forces[0])
	}
}

func TestNeighborListRebuild(t *testing.T) {
	s := pairState(1.2)
	lj := newTestLJ(t, nil)
	lj.Compute(s)
	lj.Compute(s)
	if b := lj.NeighborList().Builds(); b != 1 {
		t.Fatalf("expected 1 build, got %d", b)
	}
	s.Positions[1].X += 0.3
	lj.Compute(s)
	if b := lj.NeighborList().Builds(); b != 2 {
		t.Errorf("expected a rebuild after moving past half the buffer, got %d builds", b)
	}
	s.ScaleBox(box.Cubic(9.9))
	lj.Compute(s)
	if b := lj.NeighborList().Builds(); b != 2 {
		t.Errorf("expected a 1%% compression to stay inside the buffer, got %d builds", b)
	}
	s.ScaleBox(box.Cubic(8))
	lj.Compute(s)
	if b := lj.NeighborList().Builds(); b != 3 {
		t.Errorf("expected a rebuild after a large compression, got %d builds", b)
	}
	tilted := box.Cubic(8)
	tilted.XY = 0.1
	s.ScaleBox(tilted)
	lj.Compute(s)
	if b := lj.NeighborList().Builds(); b != 4 {
		t.Errorf("expected a rebuild after a tilt change, got %d builds", b)
	}
}

func bruteForcePairs(s *dynamo.State, rl float64, ex Exclusions) [][]int {
	pairs := make([][]int, s.N())
	for i := range pairs {
		for j := i + 1; j < s.N(); j++ {
			if r3.Norm(s.Box.MinImage(r3.Sub(s.Positions[i], s.Positions[j]))) < rl && !ex.Has(i, j) {
				pairs[i] = append(pairs[i], j)
			}
		}
	}
	return pairs
}

func TestCellListMatchesAllPairs(t *testing.T) {
	boxes := []struct {
		name string
		box  box.Box
	}{
		{"cubic", box.Cubic(12)},
		{"tilted", box.Box{Lx: 12, Ly: 11, Lz: 10, XY: 0.1, XZ: -0.05, YZ: 0.2}},
	}
	for _, tt := range boxes {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(7))
			s := dynamo.NewState(600, tt.box, 1)
			for i := range s.Positions {
				// some particles sit outside the primary cell
				f := r3.Vec{X: rng.Float64()*1.4 - 0.7, Y: rng.Float64() - 0.5, Z: rng.Float64() - 0.5}
				s.Positions[i] = s.Box.Cartesian(f)
			}
			ex := NewExclusions([][2]int{{0, 1}, {5, 6}}, [][3]int{{2, 3, 4}})
			nl := NewNeighborList(2.5, 0.4, ex, compute.NewCPU(4))
			nl.Update(s)
			if !nl.cells {
				t.Fatalf("expected the cell grid for %v, got dims %v", s.Box, nl.grid.dim)
			}
			want := bruteForcePairs(s, 2.9, ex)
			for i := range want {
				if !slices.Equal(nl.Pairs(i), want[i]) {
					t.Fatalf("particle %d: got %v, want %v", i, nl.Pairs(i), want[i])
				}
			}
		})
	}
}

func TestSmallBoxFallsBackToAllPairs(t *testing.T) {
	s := dynamo.NewState(3, box.Cubic(6), 1)
	s.Positions[1] = r3.Vec{X: 2.8}
	s.Positions[2] = r3.Vec{X: -2.9}
	nl := NewNeighborList(2.5, 0.4, nil, nil)
	nl.Update(s)
	if nl.cells {
		t.Fatal("expected the all-pairs search for a box two cutoffs wide")
	}
	want := bruteForcePairs(s, 2.9, nil)
	for i := range want {
		if !slices.Equal(nl.Pairs(i), want[i]) {
			t.Errorf("particle %d: got %v, want %v", i, nl.Pairs(i), want[i])
		}
	}
}

func TestParallelMatchesSerial(t *testing.T) {
	build := func() *dynamo.State {
		s := dynamo.NewState(343, box.Cubic(8), 3)
		k := 0
		for i := 0; i < 7; i++ {
			for j := 0; j < 7; j++ {
				for l := 0; l < 7; l++ {
					p := r3.Vec{X: float64(i)*1.1 + 0.05*float64(l), Y: float64(j) * 1.1, Z: float64(l)*1.1 - 0.03*float64(i)}
					s.Positions[k] = s.Box.Wrap(p)
					k++
				}
			}
		}
		return s
	}
	serial, parallel := build(), build()
	es, ws := newTestLJ(t, compute.NewCPU(1)).Compute(serial)
	ep, wp := newTestLJ(t, compute.NewCPU(4)).Compute(parallel)
	if math.Abs(es-ep) > 1e-9*math.Abs(es) {
		t.Errorf("energies differ: %g vs %g", es, ep)
	}
	for i := range ws {
		if math.Abs(ws[i]-wp[i]) > 1e-9*(1+math.Abs(ws[i])) {
			t.Errorf("virial[%d] differs: %g vs %g", i, ws[i], wp[i])
		}
	}
	for i := range serial.Forces {
		if r3.Norm(r3.Sub(serial.Forces[i], parallel.Forces[i])) > 1e-9 {
			t.Fatalf("force %d differs", i)
		}
	}
}

func TestCoulombShifted(t *testing.T) {
	s := pairState(1)
	s.Charges[0], s.Charges[1] = 1, -1
	c := NewCoulomb(NewNeighborList(2.5, 0.4, nil, nil), 1)
	e, _ := c.Compute(s)
	want := -(1 - 1/2.5 + (1-2.5)/(2.5*2.5))
	if math.Abs(e-want) > 1e-12 {
		t.Errorf("expected %g, got %g", want, e)
	}
	if s.Forces[1].X >= 0 {
		t.Errorf("opposite charges should attract, got %v", s.Forces[1])
	}

	far := pairState(2.5 - 1e-9)
	far.Charges[0], far.Charges[1] = 1, 1
	if e, _ := c.Compute(far); math.Abs(e) > 1e-6 {
		t.Errorf("expected energy to vanish at the cutoff, got %g", e)
	}
}

// numericForce checks -dE/dx on particle p along axis x by central
// differences.
func numericForce(f dynamo.Force, s *dynamo.State, p int) r3.Vec {
	const h = 1e-6
	grad := func(set func(v *r3.Vec, d float64)) float64 {
		c := s.Clone()
		set(&c.Positions[p], h)
		ep, _ := f.Compute(c)
		c = s.Clone()
		set(&c.Positions[p], -h)
		em, _ := f.Compute(c)
		return -(ep - em) / (2 * h)
	}
	return r3.Vec{
		X: grad(func(v *r3.Vec, d float64) { v.X += d }),
		Y: grad(func(v *r3.Vec, d float64) { v.Y += d }),
		Z: grad(func(v *r3.Vec, d float64) { v.Z += d }),
	}
}

func TestBondedForcesMatchGradient(t *testing.T) {
	s := dynamo.NewState(3, box.Cubic(10), 1)
	s.Positions[0] = r3.Vec{X: 1.1, Y: 0.1}
	s.Positions[1] = r3.Vec{}
	s.Positions[2] = r3.Vec{X: -0.3, Y: 0.9, Z: 0.2}

	forces := []dynamo.Force{
		&HarmonicBond{Bonds: []Bond{{I: 0, J: 1, K: 100, R0: 1}, {I: 1, J: 2, K: 50, R0: 0.9}}},
		&HarmonicAngle{Angles: []Angle{{I: 0, J: 1, K: 2, KTheta: 30, Theta0: 1.9}}},
	}
	for _, f := range forces {
		for p := 0; p < 3; p++ {
			c := s.Clone()
			f.Compute(c)
			want := numericForce(f, s, p)
			if r3.Norm(r3.Sub(c.Forces[p], want)) > 1e-4 {
				t.Errorf("%s particle %d: expected %v, got %v", f.Name(), p, want, c.Forces[p])
			}
		}
	}
}

func TestHarmonicAngleAtRest(t *testing.T) {
	s := dynamo.NewState(3, box.Cubic(10), 1)
	s.Positions[0] = r3.Vec{X: 1}
	s.Positions[2] = r3.Vec{Y: 1}
	h := &HarmonicAngle{Angles: []Angle{{I: 0, J: 1, K: 2, KTheta: 10, Theta0: math.Pi / 2}}}
	e, _ := h.Compute(s)
	if math.Abs(e) > 1e-12 {
		t.Errorf("expected zero energy at the rest angle, got %g", e)
	}
}
