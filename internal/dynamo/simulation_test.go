package dynamo

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/polysim/internal/box"
	"gonum.org/v1/gonum/spatial/r3"
)

// drift moves every particle at its velocity.
type drift struct {
	attached int
	detached int
	steps    int
}

func (d *drift) Kind() string { return "drift" }
func (d *drift) Attach(*State) error {
	d.attached++
	return nil
}
func (d *drift) Detach() { d.detached++ }
func (d *drift) StepOne(s *State, dt float64) {
	for i := range s.Positions {
		s.Positions[i] = s.Box.Wrap(r3.Add(s.Positions[i], r3.Scale(dt, s.Velocities[i])))
	}
	d.steps++
}
func (d *drift) StepTwo(*State, float64) {}

// blowup returns NaN forces once armed.
type blowup struct{ armed bool }

func (b *blowup) Name() string { return "blowup" }
func (b *blowup) Compute(s *State) (float64, Tensor) {
	if b.armed {
		s.Forces[0].X = math.NaN()
	}
	return 1, Tensor{}
}

type counter struct {
	trig  Trigger
	calls []uint64
}

func (c *counter) Trigger() Trigger { return c.trig }
func (c *counter) Write(sim *Simulation) error {
	c.calls = append(c.calls, sim.State().Timestep)
	return nil
}

func TestRunAdvancesTimestep(t *testing.T) {
	s := NewState(2, box.Cubic(5), 1)
	sim := NewSimulation(s)
	if err := sim.Run(1); !errors.Is(err, ErrNoIntegrator) {
		t.Fatalf("expected ErrNoIntegrator, got %v", err)
	}

	in := NewIntegrator(0.01, &blowup{})
	d := &drift{}
	if err := in.SetMethod(s, d); err != nil {
		t.Fatal(err)
	}
	sim.SetIntegrator(in)
	w := &counter{trig: Periodic{Period: 4}}
	sim.AddWriter(w)

	if err := sim.Run(10); err != nil {
		t.Fatal(err)
	}
	if err := sim.Run(6); err != nil {
		t.Fatal(err)
	}
	if s.Timestep != 16 || d.steps != 16 {
		t.Errorf("expected 16 steps, got timestep %d, %d steps", s.Timestep, d.steps)
	}
	want := []uint64{4, 8, 12, 16}
	if len(w.calls) != len(want) {
		t.Fatalf("expected writes at %v, got %v", want, w.calls)
	}
	for i := range want {
		if w.calls[i] != want[i] {
			t.Errorf("expected writes at %v, got %v", want, w.calls)
		}
	}
	if s.Energies["blowup"] != 1 || s.PotentialEnergy != 1 {
		t.Errorf("energies not recorded: %v", s.Energies)
	}
}

func TestSetMethodReplaces(t *testing.T) {
	s := NewState(1, box.Cubic(1), 1)
	in := NewIntegrator(0.01)
	a, b := &drift{}, &drift{}
	_ = in.SetMethod(s, a)
	_ = in.SetMethod(s, b)
	if len(in.Methods()) != 1 || in.Methods()[0] != b {
		t.Fatalf("expected only the second method, got %d", len(in.Methods()))
	}
	if a.detached != 1 || b.detached != 0 {
		t.Errorf("unexpected detach counts %d %d", a.detached, b.detached)
	}
	if !in.RemoveMethod(b) || in.RemoveMethod(b) {
		t.Error("RemoveMethod should succeed exactly once")
	}
}

func TestRunStopsOnInvalidState(t *testing.T) {
	s := NewState(1, box.Cubic(1), 1)
	f := &blowup{}
	in := NewIntegrator(0.01, f)
	_ = in.SetMethod(s, &drift{})
	sim := NewSimulation(s)
	sim.SetIntegrator(in)
	if err := sim.Run(5); err != nil {
		t.Fatal(err)
	}

	f.armed = true
	err := sim.Run(5)
	var serr *SimulationError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *SimulationError, got %v", err)
	}
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
	if serr.Timestep != 5 || s.Timestep != 5 {
		t.Errorf("expected failure at timestep 5, got %d (state %d)", serr.Timestep, s.Timestep)
	}
}

func TestBoxResize(t *testing.T) {
	s := NewState(1, box.Cubic(20), 1)
	s.Positions[0] = r3.Vec{X: 5}
	r := NewBoxResize(s.Box, box.Cubic(10), 0, 1000, 10)
	in := NewIntegrator(0.001)
	_ = in.SetMethod(s, &drift{})
	sim := NewSimulation(s)
	sim.SetIntegrator(in)
	sim.AddUpdater(r)

	if err := sim.Run(500); err != nil {
		t.Fatal(err)
	}
	if math.Abs(s.Box.Lx-15) > 1e-12 {
		t.Errorf("expected Lx 15 halfway, got %g", s.Box.Lx)
	}
	if err := sim.Run(500); err != nil {
		t.Fatal(err)
	}
	if s.Box != box.Cubic(10) {
		t.Fatalf("expected final box %s, got %s", box.Cubic(10), s.Box)
	}
	if math.Abs(s.Positions[0].X-2.5) > 1e-9 {
		t.Errorf("expected particle scaled to 2.5, got %g", s.Positions[0].X)
	}

	// expired: later updates never touch the box
	s.Box = box.Cubic(12)
	if err := sim.Run(100); err != nil {
		t.Fatal(err)
	}
	if s.Box != box.Cubic(12) {
		t.Errorf("expired resize changed the box to %s", s.Box)
	}
}

func TestBoxResizeUnalignedEnd(t *testing.T) {
	r := NewBoxResize(box.Cubic(20), box.Cubic(10), 5, 1003, 10)
	if !r.Trigger().Fire(1008) {
		t.Error("expected an update at the end of the ramp")
	}
	if !r.Trigger().Fire(15) || r.Trigger().Fire(10) {
		t.Error("period should be anchored at the ramp start")
	}
	if r.BoxAt(1008) != box.Cubic(10) {
		t.Errorf("expected the final box at the ramp end, got %s", r.BoxAt(1008))
	}
}
