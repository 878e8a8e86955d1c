// Package molecules builds idealised all-atom polymer chains. Geometry is
// planar and uses fixed bond lengths; it only needs to be good enough for the
// packer and the shrink stage to take over.
package molecules

import (
	"fmt"
	"math"

	"github.com/san-kum/polysim/internal/topology"
	"gonum.org/v1/gonum/spatial/r3"
)

// Factory builds one chain of the given number of repeat units.
type Factory func(length int) (*topology.Topology, error)

const (
	ccBond   = 0.154
	chBond   = 0.109
	ringBond = 0.140
	haBond   = 0.108
	csBond   = 0.176
	// tetrahedral half angle
	halfTet = 109.47 * math.Pi / 360
)

// PolyEthylene builds a -(CH2-CH2)n- chain with methyl end groups.
func PolyEthylene(length int) (*topology.Topology, error) {
	if length < 1 {
		return nil, fmt.Errorf("polyethylene: length %d must be at least 1", length)
	}
	top := &topology.Topology{}
	n := 2 * length
	dx := ccBond * math.Sin(halfTet)
	dy := ccBond * math.Cos(halfTet)

	carbons := make([]int, n)
	for k := 0; k < n; k++ {
		pos := r3.Vec{X: float64(k) * dx, Y: float64(k%2) * dy}
		carbons[k] = top.AddAtom(topology.Atom{Name: "C", Element: "C", Mass: 12.011, Position: pos})
		if k > 0 {
			top.AddBond(carbons[k-1], carbons[k])
		}
	}

	for k, c := range carbons {
		out := 1.0
		if k%2 == 0 {
			out = -1.0
		}
		base := top.Atoms[c].Position
		for _, z := range []float64{-1, 1} {
			d := r3.Vec{Y: out * math.Cos(halfTet), Z: z * math.Sin(halfTet)}
			addHydrogen(top, c, r3.Add(base, r3.Scale(chBond, d)))
		}
		if k == 0 || k == n-1 {
			sx := -1.0
			if k == n-1 {
				sx = 1.0
			}
			addHydrogen(top, c, r3.Add(base, r3.Vec{X: sx * chBond}))
		}
	}
	top.GenerateAngles()
	return top, nil
}

// PPS builds poly(p-phenylene sulfide) with length phenylene rings joined by
// sulfur bridges and hydrogen caps on the terminal rings.
func PPS(length int) (*topology.Topology, error) {
	if length < 1 {
		return nil, fmt.Errorf("pps: length %d must be at least 1", length)
	}
	top := &topology.Topology{}
	unit := 2*ringBond + 2*csBond

	var prevPara = -1
	for k := 0; k < length; k++ {
		centre := r3.Vec{X: float64(k) * unit}
		ring := make([]int, 6)
		for i := range ring {
			theta := math.Pi - float64(i)*math.Pi/3
			pos := r3.Add(centre, r3.Vec{X: ringBond * math.Cos(theta), Y: ringBond * math.Sin(theta)})
			ring[i] = top.AddAtom(topology.Atom{Name: "CA", Element: "C", Mass: 12.011, Aromatic: true, Position: pos})
			if i > 0 {
				top.AddBond(ring[i-1], ring[i])
			}
		}
		top.AddBond(ring[5], ring[0])

		// ring[0] points along -x, ring[3] along +x
		for _, i := range []int{1, 2, 4, 5} {
			theta := math.Pi - float64(i)*math.Pi/3
			d := r3.Vec{X: math.Cos(theta), Y: math.Sin(theta)}
			addHydrogen(top, ring[i], r3.Add(top.Atoms[ring[i]].Position, r3.Scale(haBond, d)))
		}

		if prevPara >= 0 {
			top.AddBond(prevPara, ring[0])
		} else {
			addHydrogen(top, ring[0], r3.Add(top.Atoms[ring[0]].Position, r3.Vec{X: -haBond}))
		}

		if k == length-1 {
			addHydrogen(top, ring[3], r3.Add(top.Atoms[ring[3]].Position, r3.Vec{X: haBond}))
			break
		}
		s := top.AddAtom(topology.Atom{
			Name: "S", Element: "S", Mass: 32.06,
			Position: r3.Add(top.Atoms[ring[3]].Position, r3.Vec{X: csBond}),
		})
		top.AddBond(ring[3], s)
		prevPara = s
	}
	top.GenerateAngles()
	return top, nil
}

func addHydrogen(top *topology.Topology, heavy int, pos r3.Vec) {
	h := top.AddAtom(topology.Atom{Name: "H", Element: "H", Mass: 1.008, Position: pos})
	top.AddBond(heavy, h)
}
