package dynamo

import (
	"fmt"
	"time"
)

// Updater changes the state between steps, e.g. the box.
type Updater interface {
	Trigger() Trigger
	Update(s *State) error
}

// Writer records the simulation without changing it.
type Writer interface {
	Trigger() Trigger
	Write(sim *Simulation) error
}

// Simulation advances one State with one Integrator. Updaters and writers
// run after each step whose timestep their trigger accepts.
type Simulation struct {
	state      *State
	integrator *Integrator
	updaters   []Updater
	writers    []Writer

	tps        float64
	walltime   time.Duration
	stepsTaken uint64
}

func NewSimulation(s *State) *Simulation {
	return &Simulation{state: s}
}

func (sim *Simulation) State() *State { return sim.state }

// Integrator returns the attached integrator, or nil.
func (sim *Simulation) Integrator() *Integrator { return sim.integrator }

func (sim *Simulation) SetIntegrator(in *Integrator) { sim.integrator = in }

func (sim *Simulation) AddUpdater(u Updater) { sim.updaters = append(sim.updaters, u) }
func (sim *Simulation) AddWriter(w Writer)   { sim.writers = append(sim.writers, w) }

func (sim *Simulation) Updaters() []Updater { return append([]Updater(nil), sim.updaters...) }
func (sim *Simulation) Writers() []Writer   { return append([]Writer(nil), sim.writers...) }

// TPS is the step rate of the current or most recent run.
func (sim *Simulation) TPS() float64 { return sim.tps }

// Walltime is the time spent stepping across all runs.
func (sim *Simulation) Walltime() time.Duration { return sim.walltime }

// Run advances the state by steps. It blocks until done and is not retried
// on failure; the state is left at the last completed timestep.
func (sim *Simulation) Run(steps int) error {
	if steps < 0 {
		return fmt.Errorf("%w: steps %d", ErrParameterBounds, steps)
	}
	if sim.integrator == nil {
		return ErrNoIntegrator
	}
	s := sim.state
	start := time.Now()
	defer func() { sim.walltime += time.Since(start) }()

	for i := 0; i < steps; i++ {
		if err := sim.integrator.Step(s); err != nil {
			return &SimulationError{Step: i, Timestep: s.Timestep, Wrapped: err}
		}
		s.Timestep++
		sim.stepsTaken++

		for _, u := range sim.updaters {
			if !u.Trigger().Fire(s.Timestep) {
				continue
			}
			if err := u.Update(s); err != nil {
				return &SimulationError{Step: i + 1, Timestep: s.Timestep, Wrapped: err}
			}
		}
		if s.Stale() {
			sim.integrator.ComputeForces(s)
		}

		if el := time.Since(start).Seconds(); el > 0 {
			sim.tps = float64(i+1) / el
		}
		for _, w := range sim.writers {
			if !w.Trigger().Fire(s.Timestep) {
				continue
			}
			if err := w.Write(sim); err != nil {
				return &SimulationError{Step: i + 1, Timestep: s.Timestep, Wrapped: err}
			}
		}
	}
	return nil
}
