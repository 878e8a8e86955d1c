package box

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// AmuToGram converts atomic mass units to grams.
	AmuToGram = 1.66054e-24
	nmToCm    = 1e-7
	cmToNm    = 1e7

	// fixedVolumeTolerance bounds the relative mismatch allowed when all
	// three edges are fixed.
	fixedVolumeTolerance = 1e-3
)

type Axis int

const (
	X Axis = iota
	Y
	Z
)

func (a Axis) String() string {
	switch a {
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	}
	return fmt.Sprintf("axis(%d)", int(a))
}

// Fixed pins one edge of the box to Length nanometres.
type Fixed struct {
	Axis   Axis
	Length float64
}

// Solve returns a box whose volume holds totalMass (amu) at density (g/cm³).
// Unconstrained boxes are cubic. With one fixed edge the other two are
// solved equal; with two fixed edges the third absorbs the volume. With all
// three fixed the product must match the required volume.
func Solve(totalMass, density float64, fixed ...Fixed) (Box, error) {
	if !(totalMass > 0) {
		return Box{}, fmt.Errorf("%w: total mass %g amu must be positive", ErrInvalidConstraint, totalMass)
	}
	if !(density > 0) {
		return Box{}, fmt.Errorf("%w: density %g g/cm^3 must be positive", ErrInvalidConstraint, density)
	}

	var lengths [3]float64
	var set [3]bool
	fixedCm := make([]float64, 0, len(fixed))
	for _, f := range fixed {
		if f.Axis < X || f.Axis > Z {
			return Box{}, fmt.Errorf("%w: unknown %s", ErrInvalidConstraint, f.Axis)
		}
		if set[f.Axis] {
			return Box{}, fmt.Errorf("%w: %s edge fixed twice", ErrInvalidConstraint, f.Axis)
		}
		if !(f.Length > 0) {
			return Box{}, fmt.Errorf("%w: fixed %s edge %g nm must be positive", ErrInvalidConstraint, f.Axis, f.Length)
		}
		set[f.Axis] = true
		lengths[f.Axis] = f.Length
		fixedCm = append(fixedCm, f.Length*nmToCm)
	}

	vol := totalMass * AmuToGram / density // cm^3

	var l float64
	switch len(fixedCm) {
	case 0:
		l = math.Cbrt(vol)
	case 1:
		l = math.Sqrt(vol / fixedCm[0])
	case 2:
		l = vol / floats.Prod(fixedCm)
	default:
		got := floats.Prod(fixedCm)
		if math.Abs(got-vol)/vol > fixedVolumeTolerance {
			return Box{}, fmt.Errorf("%w: fixed edges give volume %.6g nm^3, density requires %.6g nm^3",
				ErrInvalidConstraint, got*1e21, vol*1e21)
		}
		return FromLengths(lengths), nil
	}
	l *= cmToNm

	for i := range lengths {
		if !set[i] {
			lengths[i] = l
		}
	}
	return FromLengths(lengths), nil
}
