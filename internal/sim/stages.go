package sim

import (
	"fmt"
	"time"

	"github.com/san-kum/polysim/internal/box"
	"github.com/san-kum/polysim/internal/dynamo"
	"github.com/san-kum/polysim/internal/integrators"
)

// NPTOptions are the optional barostat settings of RunNPT.
type NPTOptions struct {
	Couple     string
	BoxDOF     [6]bool
	RescaleAll bool
	Gamma      float64
	Thermalize bool
}

func DefaultNPTOptions() NPTOptions {
	return NPTOptions{
		Couple:     "xyz",
		BoxDOF:     [6]bool{true, true, true, false, false, false},
		Thermalize: true,
	}
}

// LangevinOptions are the optional bath settings of RunLangevin.
type LangevinOptions struct {
	DefaultGamma         float64
	DefaultGammaR        [3]float64
	TallyReservoirEnergy bool
	Thermalize           bool
}

func DefaultLangevinOptions() LangevinOptions {
	return LangevinOptions{
		DefaultGamma:  1,
		DefaultGammaR: [3]float64{1, 1, 1},
		Thermalize:    true,
	}
}

// TemperatureRamp returns a ramp from start to final over steps, beginning
// at the current timestep. It does not change the engine.
func (e *Engine) TemperatureRamp(steps int, start, final float64) dynamo.Variant {
	return dynamo.Ramp(start, final, e.Timestep(), uint64(max(steps, 0)))
}

// RunShrink resizes the box linearly from its current shape to finalBox
// over steps, updating it every period steps, while an NVT thermostat holds
// kT. The resize stays attached after the stage and does nothing once
// expired.
func (e *Engine) RunShrink(steps, period int, kT dynamo.Variant, tauKT float64, finalBox [3]float64, thermalize bool) error {
	if err := e.usable(steps); err != nil {
		return err
	}
	target := box.FromLengths(finalBox)
	if !target.Valid() {
		return fmt.Errorf("%w: final box lengths %v", ErrGeometry, finalBox)
	}
	if period < 0 {
		return fmt.Errorf("%w: box update period %d", dynamo.ErrParameterBounds, period)
	}
	m, err := integrators.NewShrinkNVT(kT, tauKT)
	if err != nil {
		return err
	}
	if e.N() == 0 {
		return fmt.Errorf("%w: shrink a state with no particles", ErrIntegratorState)
	}

	t0 := e.Timestep()
	resize := dynamo.NewBoxResize(e.Box(), target, t0, uint64(steps), uint64(period))
	e.log.Debug().Str("from", e.Box().String()).Str("to", target.String()).Uint64("t0", t0).Int("period", period).Msg("box resize scheduled")

	return e.stage("shrink", Shrinking, m, steps, kT, thermalize, resize)
}

// RunNVT runs steps under a Nosé-Hoover thermostat. A ramped kT makes the
// stage an anneal.
func (e *Engine) RunNVT(steps int, kT dynamo.Variant, tauKT float64, thermalize bool) error {
	if err := e.usable(steps); err != nil {
		return err
	}
	m, err := integrators.NewNVT(kT, tauKT)
	if err != nil {
		return err
	}
	phase := Producing
	if kT.IsRamp() {
		phase = Annealing
	}
	return e.stage("nvt", phase, m, steps, kT, thermalize)
}

// RunNPT runs steps at kT and pressure. tauKT and tauP couple the
// thermostat and barostat.
func (e *Engine) RunNPT(steps int, kT, pressure dynamo.Variant, tauKT, tauP float64, opts NPTOptions) error {
	if err := e.usable(steps); err != nil {
		return err
	}
	m, err := integrators.NewNPT(kT, tauKT, integrators.NPTParams{
		S:          pressure,
		TauS:       tauP,
		Couple:     opts.Couple,
		BoxDOF:     opts.BoxDOF,
		RescaleAll: opts.RescaleAll,
		Gamma:      opts.Gamma,
	})
	if err != nil {
		return err
	}
	return e.stage("npt", Equilibrating, m, steps, kT, opts.Thermalize)
}

// RunNVE integrates without a thermostat and never thermalizes.
func (e *Engine) RunNVE(steps int) error {
	if err := e.usable(steps); err != nil {
		return err
	}
	return e.stage("nve", Producing, integrators.NewNVE(), steps, dynamo.Variant{}, false)
}

// RunLangevin runs steps coupled to a Langevin bath at kT. With alpha > 0
// the drag of each particle is alpha times its diameter.
func (e *Engine) RunLangevin(steps int, kT dynamo.Variant, alpha float64, opts LangevinOptions) error {
	if err := e.usable(steps); err != nil {
		return err
	}
	m, err := integrators.NewLangevin(kT, integrators.LangevinParams{
		Alpha:                alpha,
		DefaultGamma:         opts.DefaultGamma,
		DefaultGammaR:        opts.DefaultGammaR,
		TallyReservoirEnergy: opts.TallyReservoirEnergy,
	})
	if err != nil {
		return err
	}
	return e.stage("langevin", Producing, m, steps, kT, opts.Thermalize)
}

func (e *Engine) usable(steps int) error {
	if e.phase == Finished {
		return ErrClosed
	}
	if steps < 0 {
		return fmt.Errorf("%w: steps %d", dynamo.ErrParameterBounds, steps)
	}
	return nil
}

// stage sets the method, thermalizes at the starting value of kT, attaches
// the stage's updaters and runs. Updaters are only attached once the method
// and velocities are in place. A failed run leaves the state at its last
// completed timestep.
func (e *Engine) stage(name string, phase Phase, m dynamo.Method, steps int, kT dynamo.Variant, thermalize bool, updaters ...dynamo.Updater) error {
	if err := e.setMethod(m); err != nil {
		return err
	}
	s := e.sim.State()
	if thermalize {
		if err := s.Thermalize(kT.Initial()); err != nil {
			return fmt.Errorf("thermalize at kT %g: %w", kT.Initial(), err)
		}
	}
	for _, u := range updaters {
		e.sim.AddUpdater(u)
	}
	e.phase = phase

	st := Stage{Name: name, Phase: phase, Method: m.Kind(), Steps: steps, StartTimestep: s.Timestep}
	for _, o := range e.observers {
		o.StageStarted(st)
	}
	e.log.Info().Str("stage", name).Str("method", m.Kind()).Int("steps", steps).Uint64("timestep", s.Timestep).Msg("stage started")

	nve := m.Kind() == integrators.KindNVE
	if nve {
		e.drift.Reset()
	}
	start := time.Now()
	err := e.sim.Run(steps)
	st.Elapsed = time.Since(start)
	st.EndTimestep = s.Timestep
	if sec := st.Elapsed.Seconds(); sec > 0 {
		st.TPS = float64(st.EndTimestep-st.StartTimestep) / sec
	}
	for _, o := range e.observers {
		o.StageFinished(st, err)
	}

	if err != nil {
		e.log.Error().Err(err).Str("stage", name).Uint64("timestep", s.Timestep).Msg("stage failed")
		return err
	}
	ev := e.log.Info().Str("stage", name).Uint64("timestep", s.Timestep).Dur("elapsed", st.Elapsed).Float64("tps", st.TPS)
	if nve {
		ev = ev.Float64("energy_drift", e.drift.Value())
	}
	ev.Msg("stage finished")
	return nil
}
