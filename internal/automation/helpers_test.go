package automation

import (
	"github.com/san-kum/polysim/internal/topology"
	"gonum.org/v1/gonum/spatial/r3"
)

// testLattice is 27 Lennard-Jones atoms spread through a 3.5 nm cube.
func testLattice() *topology.Topology {
	top := &topology.Topology{}
	const n, l = 3, 3.5
	a := l / n
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				top.AddAtom(topology.Atom{
					Type: "A", Mass: 12, Epsilon: 0.5, Sigma: 0.35,
					Position: r3.Vec{
						X: -l/2 + (float64(i)+0.5)*a,
						Y: -l/2 + (float64(j)+0.5)*a,
						Z: -l/2 + (float64(k)+0.5)*a,
					},
				})
			}
		}
	}
	return top
}
