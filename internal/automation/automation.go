// Package automation turns a run configuration into an ordered stage plan
// and executes it on a staged engine, one blocking stage at a time.
package automation

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/san-kum/polysim/internal/box"
	"github.com/san-kum/polysim/internal/config"
	"github.com/san-kum/polysim/internal/dynamo"
	"github.com/san-kum/polysim/internal/sim"
	"github.com/san-kum/polysim/internal/units"
	"gopkg.in/yaml.v3"
)

var ErrNoTarget = errors.New("automation: shrink stage has no target box")

// Engine is the part of sim.Engine a plan drives.
type Engine interface {
	Timestep() uint64
	ReferenceUnits() units.ReferenceUnits
	TemperatureRamp(steps int, start, final float64) dynamo.Variant
	RunShrink(steps, period int, kT dynamo.Variant, tauKT float64, finalBox [3]float64, thermalize bool) error
	RunNVT(steps int, kT dynamo.Variant, tauKT float64, thermalize bool) error
	RunNPT(steps int, kT, pressure dynamo.Variant, tauKT, tauP float64, opts sim.NPTOptions) error
	RunNVE(steps int) error
	RunLangevin(steps int, kT dynamo.Variant, alpha float64, opts sim.LangevinOptions) error
}

// Plan is an ordered list of stages.
type Plan struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Stages      []config.Stage `yaml:"stages"`
}

// FromConfig returns cfg's explicit stages, or else the default sequence:
// shrink at shrink_kT, an NVT anneal from NVT_start_kT to NVT_final_kT and,
// when NPT_steps is set, NPT at NPT_kT and NPT_p. Stages with no steps are
// left out of the default sequence.
func FromConfig(cfg *config.Config) *Plan {
	p := &Plan{Name: cfg.Molecule}
	if len(cfg.Stages) > 0 {
		p.Stages = append(p.Stages, cfg.Stages...)
	} else {
		if cfg.ShrinkSteps > 0 {
			p.Stages = append(p.Stages, config.Stage{
				Kind: config.StageShrink, Steps: cfg.ShrinkSteps, KT: cfg.ShrinkKT, Period: cfg.ShrinkPeriod,
			})
		}
		if cfg.NVTSteps > 0 {
			st := config.Stage{Kind: config.StageNVT, Steps: cfg.NVTSteps, KT: cfg.NVTStartKT}
			if cfg.NVTFinalKT != cfg.NVTStartKT {
				final := cfg.NVTFinalKT
				st.KTFinal = &final
			}
			p.Stages = append(p.Stages, st)
		}
		if cfg.NPTSteps > 0 {
			p.Stages = append(p.Stages, config.Stage{
				Kind: config.StageNPT, Steps: cfg.NPTSteps, KT: cfg.NPTKT, Pressure: cfg.NPTP,
			})
		}
	}
	for i := range p.Stages {
		st := &p.Stages[i]
		if st.TauKT == 0 {
			st.TauKT = cfg.TauKT
		}
		if st.TauP == 0 {
			st.TauP = cfg.TauP
		}
		if st.Kind == config.StageShrink && st.Period == 0 {
			st.Period = cfg.ShrinkPeriod
		}
	}
	return p
}

func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	wrapper := config.DefaultConfig()
	wrapper.Stages = p.Stages
	if err := wrapper.Validate(); err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return &p, nil
}

func (p *Plan) TotalSteps() int {
	n := 0
	for _, st := range p.Stages {
		n += st.Steps
	}
	return n
}

// Options carries what a plan needs beyond its stages. TargetBox, in
// nanometres, is the shrink target of stages without a FinalBox.
// StageDone runs after every completed stage; an error from it stops the
// plan.
type Options struct {
	TargetBox box.Box
	StageDone func(idx int, st config.Stage) error
}

// Run executes the plan in order. ctx is checked between stages only: a
// running stage always completes or fails on its own.
func Run(ctx context.Context, e Engine, p *Plan, opts Options) error {
	for i, st := range p.Stages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("before stage %d (%s): %w", i+1, st.Kind, err)
		}
		if err := runStage(e, st, opts); err != nil {
			return fmt.Errorf("stage %d (%s): %w", i+1, st.Kind, err)
		}
		if opts.StageDone != nil {
			if err := opts.StageDone(i, st); err != nil {
				return err
			}
		}
	}
	return nil
}

func runStage(e Engine, st config.Stage, opts Options) error {
	kT := dynamo.Constant(st.KT)
	if st.KTFinal != nil {
		kT = e.TemperatureRamp(st.Steps, st.KT, *st.KTFinal)
	}
	switch st.Kind {
	case config.StageShrink:
		final, err := shrinkTarget(e, st, opts.TargetBox)
		if err != nil {
			return err
		}
		return e.RunShrink(st.Steps, st.Period, kT, st.TauKT, final, st.ShouldThermalize())
	case config.StageNVT:
		return e.RunNVT(st.Steps, kT, st.TauKT, st.ShouldThermalize())
	case config.StageNPT:
		o := sim.DefaultNPTOptions()
		if st.Couple != "" {
			o.Couple = st.Couple
		}
		o.Thermalize = st.ShouldThermalize()
		return e.RunNPT(st.Steps, kT, dynamo.Constant(st.Pressure), st.TauKT, st.TauP, o)
	case config.StageNVE:
		return e.RunNVE(st.Steps)
	case config.StageLangevin:
		o := sim.DefaultLangevinOptions()
		o.Thermalize = st.ShouldThermalize()
		return e.RunLangevin(st.Steps, kT, st.Alpha, o)
	}
	return fmt.Errorf("%w: stage kind %q", config.ErrInvalid, st.Kind)
}

// shrinkTarget is the stage's FinalBox, or the target box in reduced
// units.
func shrinkTarget(e Engine, st config.Stage, target box.Box) ([3]float64, error) {
	if st.FinalBox != nil {
		return *st.FinalBox, nil
	}
	if !target.Valid() {
		return [3]float64{}, ErrNoTarget
	}
	ref := e.ReferenceUnits()
	l := target.Lengths()
	return [3]float64{ref.ReduceLength(l[0]), ref.ReduceLength(l[1]), ref.ReduceLength(l[2])}, nil
}
