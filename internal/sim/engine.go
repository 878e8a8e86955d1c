// Package sim is the staged simulation engine. An Engine owns one live
// particle state, reduced to MD units, and advances it through ensemble
// stages (shrink, NVT, NPT, NVE, Langevin) that replace the integration
// method in place. Every stage blocks until its steps are done.
package sim

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/san-kum/polysim/internal/box"
	"github.com/san-kum/polysim/internal/compute"
	"github.com/san-kum/polysim/internal/dynamo"
	"github.com/san-kum/polysim/internal/metrics"
	"github.com/san-kum/polysim/internal/physics"
	"github.com/san-kum/polysim/internal/topology"
	"github.com/san-kum/polysim/internal/traj"
	"github.com/san-kum/polysim/internal/units"
	"gonum.org/v1/gonum/spatial/r3"
)

// Engine is not safe for concurrent use. Independent engines share nothing
// and may run in parallel.
type Engine struct {
	cfg    Config
	ref    units.ReferenceUnits
	sim    *dynamo.Simulation
	forces []dynamo.Force
	method dynamo.Method
	phase  Phase

	traj      *traj.Writer
	table     *metrics.Table
	drift     *metrics.EnergyDrift
	dev       compute.Device
	ownsDev   bool
	observers []Observer
	log       zerolog.Logger
}

// New reduces typed and b to MD units and prepares the state, force terms
// and writers. No integrator exists until the first stage runs.
func New(typed *topology.Topology, b box.Box, cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if typed == nil {
		typed = &topology.Topology{}
	}
	if !b.Valid() {
		return nil, fmt.Errorf("%w: initial box %s", ErrGeometry, b)
	}

	ref := units.Identity()
	if cfg.AutoScale {
		var err error
		if ref, err = units.Compute(typed); err != nil {
			return nil, err
		}
	}

	e := &Engine{
		cfg:       cfg,
		ref:       ref,
		dev:       cfg.Device,
		observers: append([]Observer(nil), cfg.Observers...),
		log:       cfg.Logger.With().Str("component", "engine").Logger(),
	}
	if e.dev == nil {
		e.dev = compute.NewCPU(0)
		e.ownsDev = true
	}

	rb := box.Box{
		Lx: ref.ReduceLength(b.Lx), Ly: ref.ReduceLength(b.Ly), Lz: ref.ReduceLength(b.Lz),
		XY: b.XY, XZ: b.XZ, YZ: b.YZ,
	}
	s, eps, sig := reducedState(typed, rb, ref, cfg.Seed)

	if cfg.Restart != "" {
		fr, _, err := traj.ReadLast(cfg.Restart)
		if err != nil {
			e.closeDevice()
			return nil, fmt.Errorf("restart from %s: %w", cfg.Restart, err)
		}
		if err := fr.Apply(s); err != nil {
			e.closeDevice()
			return nil, fmt.Errorf("restart from %s: %w", cfg.Restart, err)
		}
		e.log.Info().Str("file", cfg.Restart).Uint64("timestep", s.Timestep).Msg("restarting from trajectory")
	}

	forces, err := buildForces(typed, s, ref, eps, sig, cfg, e.dev)
	if err != nil {
		e.closeDevice()
		return nil, err
	}
	e.forces = forces
	e.sim = dynamo.NewSimulation(s)

	if err := e.addWriters(); err != nil {
		e.Close()
		return nil, err
	}

	e.log.Info().
		Int("particles", s.N()).
		Int("types", len(s.TypeNames)).
		Str("ref", ref.String()).
		Str("box", rb.String()).
		Str("device", e.dev.Name()).
		Msg("engine configured")
	return e, nil
}

type typeKey struct {
	name    string
	epsilon float64
	sigma   float64
}

// reducedState builds the particle state. Every distinct (type, epsilon,
// sigma) gets its own type id; repeated names are suffixed.
func reducedState(top *topology.Topology, b box.Box, ref units.ReferenceUnits, seed uint64) (*dynamo.State, []float64, []float64) {
	s := dynamo.NewState(top.Len(), b, seed)
	ids := make(map[typeKey]int)
	used := make(map[string]int)
	var eps, sig []float64
	for i := range top.Atoms {
		a := &top.Atoms[i]
		k := typeKey{a.Type, a.Epsilon, a.Sigma}
		id, ok := ids[k]
		if !ok {
			id = len(s.TypeNames)
			ids[k] = id
			name := a.Type
			if n := used[a.Type]; n > 0 {
				name = a.Type + "_" + strconv.Itoa(n)
			}
			used[a.Type]++
			s.TypeNames = append(s.TypeNames, name)
			eps = append(eps, ref.ReduceEnergy(a.Epsilon))
			sig = append(sig, ref.ReduceLength(a.Sigma))
		}
		s.TypeIDs[i] = id
		s.Positions[i] = b.Wrap(r3.Scale(1/ref.Distance, a.Position))
		s.Masses[i] = ref.ReduceMass(a.Mass)
		s.Charges[i] = a.Charge
		if d := ref.ReduceLength(a.Sigma); d > 0 {
			s.Diameters[i] = d
		}
	}
	return s, eps, sig
}

func buildForces(top *topology.Topology, s *dynamo.State, ref units.ReferenceUnits, eps, sig []float64, cfg Config, dev compute.Device) ([]dynamo.Force, error) {
	bonds := make([][2]int, len(top.Bonds))
	hb := &physics.HarmonicBond{Bonds: make([]physics.Bond, len(top.Bonds))}
	for i, b := range top.Bonds {
		bonds[i] = [2]int{b.I, b.J}
		hb.Bonds[i] = physics.Bond{I: b.I, J: b.J, K: ref.ReduceBondK(b.K), R0: ref.ReduceLength(b.R0)}
	}
	angles := make([][3]int, len(top.Angles))
	ha := &physics.HarmonicAngle{Angles: make([]physics.Angle, len(top.Angles))}
	for i, a := range top.Angles {
		angles[i] = [3]int{a.I, a.J, a.K}
		ha.Angles[i] = physics.Angle{I: a.I, J: a.J, K: a.K, KTheta: ref.ReduceEnergy(a.KTheta), Theta0: a.Theta0}
	}

	nl := physics.NewNeighborList(cfg.RCut, cfg.NListBuffer, physics.NewExclusions(bonds, angles), dev)
	lj, err := physics.NewLJ(nl, eps, sig)
	if err != nil {
		return nil, err
	}
	forces := []dynamo.Force{lj}
	for _, q := range s.Charges {
		if q != 0 {
			forces = append(forces, physics.NewCoulomb(nl, physics.CoulombConstant/(ref.Energy*ref.Distance)))
			break
		}
	}
	if len(hb.Bonds) > 0 {
		forces = append(forces, hb)
	}
	if len(ha.Angles) > 0 {
		forces = append(forces, ha)
	}
	return forces, nil
}

func (e *Engine) addWriters() error {
	s := e.sim.State()
	if e.cfg.TrajectoryFile != "" && e.cfg.TrajectoryWriteFreq > 0 {
		header := map[string]string{
			"natoms":       strconv.Itoa(s.N()),
			"types":        strings.Join(s.TypeNames, ","),
			"seed":         strconv.FormatUint(s.Seed(), 10),
			"dt":           strconv.FormatFloat(e.cfg.Dt, 'g', -1, 64),
			"ref_mass":     strconv.FormatFloat(e.ref.Mass, 'g', -1, 64),
			"ref_energy":   strconv.FormatFloat(e.ref.Energy, 'g', -1, 64),
			"ref_distance": strconv.FormatFloat(e.ref.Distance, 'g', -1, 64),
		}
		open := traj.Create
		if e.cfg.Restart != "" && filepath.Clean(e.cfg.Restart) == filepath.Clean(e.cfg.TrajectoryFile) {
			open = traj.Resume
		}
		w, err := open(e.cfg.TrajectoryFile, s.N(), header, e.cfg.TrajectoryWriteFreq)
		if err != nil {
			return err
		}
		e.traj = w
		e.sim.AddWriter(w)
	}
	if e.cfg.LogFile != "" && e.cfg.LogWriteFreq > 0 {
		t, err := metrics.CreateTable(e.cfg.LogFile, e.cfg.LogWriteFreq, e.ForceNames(), e.cfg.Restart != "")
		if err != nil {
			return err
		}
		e.table = t
		e.sim.AddWriter(t)
	}
	period := e.cfg.LogWriteFreq
	if period == 0 {
		period = driftPeriod
	}
	e.drift = metrics.NewEnergyDrift(period)
	e.sim.AddWriter(e.drift)
	return nil
}

const driftPeriod = 100

// EnergyDrift is the largest relative total energy change seen during the
// last NVE stage.
func (e *Engine) EnergyDrift() float64 { return e.drift.Value() }

func (e *Engine) AddObserver(o Observer) { e.observers = append(e.observers, o) }

func (e *Engine) ReferenceUnits() units.ReferenceUnits { return e.ref }
func (e *Engine) Phase() Phase                         { return e.phase }
func (e *Engine) Timestep() uint64                     { return e.sim.State().Timestep }
func (e *Engine) Box() box.Box                         { return e.sim.State().Box }
func (e *Engine) N() int                               { return e.sim.State().N() }
func (e *Engine) Device() compute.Device               { return e.dev }
func (e *Engine) TPS() float64                         { return e.sim.TPS() }

// Snapshot returns a copy of the live state.
func (e *Engine) Snapshot() *dynamo.State { return e.sim.State().Clone() }

// Thermo evaluates the thermodynamic quantities of the live state.
func (e *Engine) Thermo() metrics.Thermo {
	s := e.sim.State()
	if s.Stale() && e.sim.Integrator() != nil {
		e.sim.Integrator().ComputeForces(s)
	}
	return metrics.Compute(s)
}

func (e *Engine) ForceNames() []string {
	names := make([]string, len(e.forces))
	for i, f := range e.forces {
		names[i] = f.Name()
	}
	return names
}

func (e *Engine) Dt() float64 { return e.cfg.Dt }

// SetDt changes the timestep, including that of a live integrator.
func (e *Engine) SetDt(dt float64) error {
	if !(dt > 0) {
		return fmt.Errorf("%w: dt %g", dynamo.ErrParameterBounds, dt)
	}
	e.cfg.Dt = dt
	if in := e.sim.Integrator(); in != nil {
		in.Dt = dt
	}
	return nil
}

// Method returns the attached integration method. Before the first stage
// there is none and the error is dynamo.ErrNoIntegrator.
func (e *Engine) Method() (dynamo.Method, error) {
	if e.sim.Integrator() == nil || e.method == nil {
		return nil, dynamo.ErrNoIntegrator
	}
	return e.method, nil
}

func (e *Engine) MethodKind() (string, error) {
	m, err := e.Method()
	if err != nil {
		return "", err
	}
	return m.Kind(), nil
}

// MethodCount is the number of methods attached to the integrator.
func (e *Engine) MethodCount() int {
	if in := e.sim.Integrator(); in != nil {
		return len(in.Methods())
	}
	return 0
}

// setMethod creates the integrator on first use; afterwards it swaps the
// attached method for m, keeping the state and the timestep.
func (e *Engine) setMethod(m dynamo.Method) error {
	s := e.sim.State()
	if s.N() == 0 {
		return fmt.Errorf("%w: attach %s to a state with no particles", ErrIntegratorState, m.Kind())
	}
	in := e.sim.Integrator()
	if in == nil {
		in = dynamo.NewIntegrator(e.cfg.Dt, e.forces...)
		e.sim.SetIntegrator(in)
		if err := in.SetMethod(s, m); err != nil {
			return fmt.Errorf("%w: %v", ErrIntegratorState, err)
		}
		e.method = m
		return nil
	}
	if e.method != nil {
		in.RemoveMethod(e.method)
		e.method = nil
	}
	if err := in.AddMethod(s, m); err != nil {
		return fmt.Errorf("%w: %v", ErrIntegratorState, err)
	}
	e.method = m
	return nil
}

// Close flushes and closes the writers. The engine is Finished afterwards.
func (e *Engine) Close() error {
	if e.phase == Finished {
		return nil
	}
	e.phase = Finished
	var errs []error
	if e.traj != nil {
		errs = append(errs, e.traj.Close())
	}
	if e.table != nil {
		errs = append(errs, e.table.Close())
	}
	e.closeDevice()
	e.log.Info().Uint64("timestep", e.Timestep()).Msg("engine closed")
	return errors.Join(errs...)
}

func (e *Engine) closeDevice() {
	if e.ownsDev && e.dev != nil {
		e.dev.Close()
		e.dev = nil
	}
}
