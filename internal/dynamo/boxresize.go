package dynamo

import (
	"github.com/san-kum/polysim/internal/box"
)

// BoxResize moves the box from Box1 to Box2 following Fraction, a signal
// from 0 to 1. Once the signal has reached its end every further update is
// a no-op, so an expired resize can stay attached.
type BoxResize struct {
	Box1, Box2 box.Box
	Fraction   Variant
	trigger    Trigger
}

// NewBoxResize schedules a linear resize over duration steps starting at t0.
// The box is updated every period steps counted from t0, and always at
// t0+duration so the run ends exactly on Box2.
func NewBoxResize(from, to box.Box, t0, duration, period uint64) *BoxResize {
	return &BoxResize{
		Box1:     from,
		Box2:     to,
		Fraction: Ramp(0, 1, t0, duration),
		trigger:  Or{Periodic{Period: period, Phase: t0 % max(period, 1)}, On(t0 + duration)},
	}
}

func (r *BoxResize) Trigger() Trigger { return r.trigger }

// Expired reports whether the resize can no longer change the box at t.
func (r *BoxResize) Expired(t uint64) bool { return t > r.Fraction.End() }

// BoxAt is the scheduled box at timestep t.
func (r *BoxResize) BoxAt(t uint64) box.Box {
	f := r.Fraction.ValueAt(t)
	switch f {
	case 0:
		return r.Box1
	case 1:
		return r.Box2
	}
	return box.Interpolate(r.Box1, r.Box2, f)
}

func (r *BoxResize) Update(s *State) error {
	if r.Expired(s.Timestep) {
		return nil
	}
	s.ScaleBox(r.BoxAt(s.Timestep))
	return nil
}
