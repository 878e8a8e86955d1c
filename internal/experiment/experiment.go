// Package experiment runs the sample workflow of a job: build and pack the
// molecules, apply the forcefield, construct the engine and execute the
// stage plan, recording progress in the job document.
package experiment

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/san-kum/polysim/internal/automation"
	"github.com/san-kum/polysim/internal/box"
	"github.com/san-kum/polysim/internal/builder"
	"github.com/san-kum/polysim/internal/compute"
	"github.com/san-kum/polysim/internal/config"
	"github.com/san-kum/polysim/internal/metrics"
	"github.com/san-kum/polysim/internal/sim"
	"github.com/san-kum/polysim/internal/storage"
	"github.com/san-kum/polysim/internal/topology"
	"github.com/san-kum/polysim/internal/units"
)

type Options struct {
	Registry  *Registry
	Logger    zerolog.Logger
	Observers []sim.Observer
}

// Experiment holds one configuration through system building.
type Experiment struct {
	cfg  *config.Config
	reg  *Registry
	opts Options
	log  zerolog.Logger

	typed   *topology.Topology
	packBox box.Box
	target  box.Box
}

func New(cfg *config.Config, opts Options) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	return &Experiment{cfg: cfg, reg: opts.Registry, opts: opts, log: opts.Logger}, nil
}

func (e *Experiment) Config() *config.Config    { return e.cfg }
func (e *Experiment) Typed() *topology.Topology { return e.typed }
func (e *Experiment) PackBox() box.Box          { return e.packBox }
func (e *Experiment) TargetBox() box.Box        { return e.target }

// Build creates the molecules, packs them with the configured system type
// and applies the forcefield.
func (e *Experiment) Build() error {
	factory, err := e.reg.GetMolecule(e.cfg.Molecule)
	if err != nil {
		return err
	}
	ff, err := e.reg.GetForcefield(e.cfg.Forcefield)
	if err != nil {
		return err
	}

	e.log.Info().Msg("Creating the system...")
	b, err := builder.New(factory, e.cfg.NMols, e.cfg.ChainLengths, e.cfg.Density, builder.Options{
		Seed:          e.cfg.PackSeed,
		EpsilonFactor: e.cfg.EFactor,
		Logger:        e.log,
	})
	if err != nil {
		return err
	}
	if err := b.SetTargetBox(e.cfg.BoxConstraints.Fixed()...); err != nil {
		return err
	}
	if _, e.packBox, err = b.Generate(e.cfg.SystemType, e.cfg.ExpandFactor); err != nil {
		return err
	}
	if e.typed, err = b.ApplyForcefield(ff, e.cfg.RemoveHydrogens); err != nil {
		return err
	}
	e.target, _ = b.TargetBox()
	e.log.Info().Msg("System generated...")
	return nil
}

// EngineConfig maps the statepoint onto engine parameters writing into dir.
func (e *Experiment) EngineConfig(dir string, dev compute.Device) sim.Config {
	c := sim.DefaultConfig()
	c.AutoScale = e.cfg.AutoScale
	c.Dt = e.cfg.Dt
	c.RCut = e.cfg.RCut
	c.Seed = e.cfg.SimSeed
	c.TrajectoryWriteFreq = e.cfg.GSDWriteFreq
	c.LogWriteFreq = e.cfg.LogWriteFreq
	c.TrajectoryFile = ""
	c.LogFile = ""
	if dir != "" {
		c.TrajectoryFile = filepath.Join(dir, storage.TrajectoryFile)
		c.LogFile = filepath.Join(dir, storage.LogFile)
	}
	c.Device = dev
	c.Logger = e.log
	c.Observers = e.opts.Observers
	return c
}

// Result summarizes a finished sample.
type Result struct {
	JobID         string
	EFactor       float64
	Ref           units.ReferenceUnits
	FinalTimestep uint64
	Box           box.Box
	Thermo        metrics.Thermo
	Elapsed       time.Duration
}

// Sample runs the job's statepoint to completion. A job with a trajectory
// but no done flag restarts from its last frame and skips the stages the
// document already marks as done.
func Sample(ctx context.Context, job *storage.Job, opts Options) (*Result, error) {
	start := time.Now()
	cfg, err := job.Statepoint()
	if err != nil {
		return nil, err
	}
	opts.Logger = opts.Logger.With().Str("job", job.ID).Logger()
	ex, err := New(cfg, opts)
	if err != nil {
		return nil, err
	}
	if err := ex.Build(); err != nil {
		return nil, err
	}

	dev, err := compute.NewDevice(cfg.Device)
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	ecfg := ex.EngineConfig(job.Dir, dev)
	restart := job.HasTrajectory() && !job.Doc.Done
	if restart {
		ecfg.Restart = ecfg.TrajectoryFile
	}

	ex.log.Info().Msg("Starting simulation...")
	eng, err := sim.New(ex.typed, ex.packBox, ecfg)
	if err != nil {
		return nil, err
	}
	defer eng.Close()

	if err := job.SetReferenceUnits(eng.ReferenceUnits(), cfg.GSDWriteFreq, cfg.LogWriteFreq); err != nil {
		return nil, err
	}

	plan := automation.FromConfig(cfg)
	skip := 0
	if restart {
		plan.Stages, skip = pending(plan.Stages, job.Doc)
		ex.log.Info().Int("skipped", skip).Int("remaining", len(plan.Stages)).Msg("resuming stage plan")
	}
	err = automation.Run(ctx, eng, plan, automation.Options{
		TargetBox: ex.target,
		StageDone: func(i int, st config.Stage) error { return job.MarkStage(skip+i, st.Kind) },
	})
	if err != nil {
		if ferr := job.Fail(eng.Timestep(), err); ferr != nil {
			ex.log.Error().Err(ferr).Msg("record failure")
		}
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}
	if err := job.Finish(eng.Timestep()); err != nil {
		return nil, err
	}
	ex.log.Info().Uint64("final_timestep", eng.Timestep()).Msg("Simulation finished")

	return &Result{
		JobID:         job.ID,
		EFactor:       cfg.EFactor,
		Ref:           eng.ReferenceUnits(),
		FinalTimestep: eng.Timestep(),
		Box:           eng.Box(),
		Thermo:        eng.Thermo(),
		Elapsed:       time.Since(start),
	}, nil
}

// pending drops the stages the document records as completed, by plan
// position, and returns how many it dropped.
func pending(stages []config.Stage, doc storage.Document) ([]config.Stage, int) {
	n := min(max(doc.StagesDone, 0), len(stages))
	return stages[n:], n
}
