package box

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Lattice vectors follow a1 = (Lx, 0, 0), a2 = (XY·Ly, Ly, 0) and
// a3 = (XZ·Lz, YZ·Lz, Lz).

// Fractional returns p in lattice coordinates, each in [-1/2, 1/2) for a
// point inside the box.
func (b Box) Fractional(p r3.Vec) r3.Vec {
	sz := p.Z / b.Lz
	sy := (p.Y - b.YZ*b.Lz*sz) / b.Ly
	sx := (p.X - b.XY*b.Ly*sy - b.XZ*b.Lz*sz) / b.Lx
	return r3.Vec{X: sx, Y: sy, Z: sz}
}

// Cartesian is the inverse of Fractional.
func (b Box) Cartesian(s r3.Vec) r3.Vec {
	return r3.Vec{
		X: s.X*b.Lx + s.Y*b.XY*b.Ly + s.Z*b.XZ*b.Lz,
		Y: s.Y*b.Ly + s.Z*b.YZ*b.Lz,
		Z: s.Z * b.Lz,
	}
}

// MinImage returns the periodic image of d closest to the origin.
func (b Box) MinImage(d r3.Vec) r3.Vec {
	if img := math.Round(d.Z / b.Lz); img != 0 {
		d.X -= img * b.XZ * b.Lz
		d.Y -= img * b.YZ * b.Lz
		d.Z -= img * b.Lz
	}
	if img := math.Round(d.Y / b.Ly); img != 0 {
		d.X -= img * b.XY * b.Ly
		d.Y -= img * b.Ly
	}
	if img := math.Round(d.X / b.Lx); img != 0 {
		d.X -= img * b.Lx
	}
	return d
}

// Wrap maps p back into the primary cell.
func (b Box) Wrap(p r3.Vec) r3.Vec {
	s := b.Fractional(p)
	s.X -= math.Floor(s.X + 0.5)
	s.Y -= math.Floor(s.Y + 0.5)
	s.Z -= math.Floor(s.Z + 0.5)
	return b.Cartesian(s)
}
