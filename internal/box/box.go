package box

import (
	"fmt"
	"math"
)

// Box is an orthorhombic box with optional tilt factors. Coordinates inside
// the box span [-L/2, L/2) along each axis.
type Box struct {
	Lx, Ly, Lz float64
	XY, XZ, YZ float64
}

func Cubic(l float64) Box {
	return Box{Lx: l, Ly: l, Lz: l}
}

func FromLengths(l [3]float64) Box {
	return Box{Lx: l[0], Ly: l[1], Lz: l[2]}
}

func (b Box) Lengths() [3]float64 {
	return [3]float64{b.Lx, b.Ly, b.Lz}
}

func (b Box) Tilts() [3]float64 {
	return [3]float64{b.XY, b.XZ, b.YZ}
}

func (b Box) Volume() float64 {
	return b.Lx * b.Ly * b.Lz
}

// Valid reports whether every edge length is positive and finite.
func (b Box) Valid() bool {
	for _, l := range b.Lengths() {
		if !(l > 0) || math.IsInf(l, 0) {
			return false
		}
	}
	return true
}

// Scale multiplies the edge lengths by f, leaving tilts untouched.
func (b Box) Scale(f float64) Box {
	b.Lx *= f
	b.Ly *= f
	b.Lz *= f
	return b
}

// Interpolate returns the box a fraction f of the way from a to b.
// f=0 yields a and f=1 yields b exactly.
func Interpolate(a, b Box, f float64) Box {
	lerp := func(x, y float64) float64 { return x*(1-f) + y*f }
	return Box{
		Lx: lerp(a.Lx, b.Lx),
		Ly: lerp(a.Ly, b.Ly),
		Lz: lerp(a.Lz, b.Lz),
		XY: lerp(a.XY, b.XY),
		XZ: lerp(a.XZ, b.XZ),
		YZ: lerp(a.YZ, b.YZ),
	}
}

func (b Box) String() string {
	return fmt.Sprintf("[%.4f %.4f %.4f | %.3f %.3f %.3f]", b.Lx, b.Ly, b.Lz, b.XY, b.XZ, b.YZ)
}
