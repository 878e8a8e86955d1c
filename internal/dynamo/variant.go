package dynamo

import "fmt"

type variantKind int

const (
	constantVariant variantKind = iota
	rampVariant
)

// Variant is a scalar control signal: either a constant or a linear ramp
// from A to B starting at timestep T0 and lasting Duration steps. The zero
// value is the constant 0.
type Variant struct {
	kind     variantKind
	a, b     float64
	t0       uint64
	duration uint64
}

func Constant(v float64) Variant {
	return Variant{kind: constantVariant, a: v, b: v}
}

func Ramp(a, b float64, t0, duration uint64) Variant {
	return Variant{kind: rampVariant, a: a, b: b, t0: t0, duration: duration}
}

// ValueAt evaluates the signal at timestep t. A ramp holds A before T0 and B
// from T0+Duration on.
func (v Variant) ValueAt(t uint64) float64 {
	if v.kind == constantVariant {
		return v.a
	}
	switch {
	case t < v.t0:
		return v.a
	case t >= v.t0+v.duration:
		return v.b
	}
	f := float64(t-v.t0) / float64(v.duration)
	return v.a*(1-f) + v.b*f
}

// Initial is the value the signal starts from.
func (v Variant) Initial() float64 { return v.a }

// Final is the value the signal settles on.
func (v Variant) Final() float64 { return v.b }

func (v Variant) IsRamp() bool { return v.kind == rampVariant }

// Start and End bound the ramp in timesteps. Both are zero for constants.
func (v Variant) Start() uint64 { return v.t0 }
func (v Variant) End() uint64   { return v.t0 + v.duration }

// Scale multiplies every value of the signal by f.
func (v Variant) Scale(f float64) Variant {
	v.a *= f
	v.b *= f
	return v
}

func (v Variant) String() string {
	if v.kind == constantVariant {
		return fmt.Sprintf("%g", v.a)
	}
	return fmt.Sprintf("ramp(%g->%g, t=%d+%d)", v.a, v.b, v.t0, v.duration)
}
