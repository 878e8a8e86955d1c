// Package builder assembles polymer chains into a sparse packed system and
// applies a forcefield to it.
package builder

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/san-kum/polysim/internal/box"
	"github.com/san-kum/polysim/internal/forcefield"
	"github.com/san-kum/polysim/internal/molecules"
	"github.com/san-kum/polysim/internal/topology"
)

// SystemPack is the only supported generation mode.
const SystemPack = "pack"

type Options struct {
	// Packer defaults to DefaultPacker(Seed).
	Packer        Packer
	Seed          uint64
	// EpsilonFactor scales every typed epsilon. Zero means 1.
	EpsilonFactor float64
	Logger        zerolog.Logger
}

type Builder struct {
	chains  []*topology.Topology
	mass    float64
	density float64

	target    box.Box
	hasTarget bool

	system  *topology.Topology
	packBox box.Box
	typed   *topology.Topology

	opts Options
	log  zerolog.Logger
}

// New instantiates counts[i] chains of lengths[i] repeat units for each i,
// in order.
func New(factory molecules.Factory, counts, lengths []int, density float64, opts Options) (*Builder, error) {
	if factory == nil {
		return nil, fmt.Errorf("builder: nil molecule factory")
	}
	if len(counts) != len(lengths) {
		return nil, fmt.Errorf("builder: %d molecule counts for %d chain lengths", len(counts), len(lengths))
	}
	if !(density > 0) {
		return nil, fmt.Errorf("%w: density %g g/cm^3 must be positive", box.ErrInvalidConstraint, density)
	}
	if opts.Packer == nil {
		opts.Packer = DefaultPacker(opts.Seed)
	}
	if opts.EpsilonFactor == 0 {
		opts.EpsilonFactor = 1
	}

	b := &Builder{density: density, opts: opts, log: opts.Logger.With().Str("component", "builder").Logger()}
	for i, n := range counts {
		if n <= 0 {
			return nil, fmt.Errorf("builder: count %d for chain length %d must be positive", n, lengths[i])
		}
		for k := 0; k < n; k++ {
			c, err := factory(lengths[i])
			if err != nil {
				return nil, err
			}
			b.mass += c.Mass()
			b.chains = append(b.chains, c)
		}
	}
	if len(b.chains) == 0 {
		return nil, fmt.Errorf("builder: no molecules requested")
	}
	b.log.Debug().Int("chains", len(b.chains)).Float64("mass_amu", b.mass).Msg("molecules built")
	return b, nil
}

func (b *Builder) Mass() float64    { return b.mass }
func (b *Builder) NumChains() int   { return len(b.chains) }
func (b *Builder) Density() float64 { return b.density }
func (b *Builder) PackBox() box.Box { return b.packBox }
func (b *Builder) Packed() bool     { return b.system != nil }

// SetTargetBox solves the target box with the given fixed edges.
func (b *Builder) SetTargetBox(fixed ...box.Fixed) error {
	t, err := box.Solve(b.mass, b.density, fixed...)
	if err != nil {
		return err
	}
	b.target = t
	b.hasTarget = true
	return nil
}

// TargetBox returns the box at the requested density, solving an
// unconstrained one if none has been set.
func (b *Builder) TargetBox() (box.Box, error) {
	if !b.hasTarget {
		if err := b.SetTargetBox(); err != nil {
			return box.Box{}, err
		}
	}
	return b.target, nil
}

// Pack places every chain inside the target box scaled by expandFactor.
func (b *Builder) Pack(expandFactor float64) (*topology.Topology, box.Box, error) {
	if !(expandFactor > 0) {
		return nil, box.Box{}, fmt.Errorf("%w: expand factor %g must be positive", ErrPacking, expandFactor)
	}
	target, err := b.TargetBox()
	if err != nil {
		return nil, box.Box{}, err
	}
	pb := target.Scale(expandFactor)
	sys, err := b.opts.Packer.Pack(b.chains, pb)
	if err != nil {
		return nil, box.Box{}, err
	}
	b.system, b.packBox, b.typed = sys, pb, nil
	b.log.Info().
		Int("atoms", sys.Len()).
		Str("target_box", target.String()).
		Str("pack_box", pb.String()).
		Msg("system packed")
	return sys, pb, nil
}

// Generate builds the initial configuration with the named mode.
func (b *Builder) Generate(systemType string, expandFactor float64) (*topology.Topology, box.Box, error) {
	switch systemType {
	case SystemPack:
		return b.Pack(expandFactor)
	default:
		return nil, box.Box{}, fmt.Errorf("%w: system type %q, only %q is supported",
			ErrUnsupportedConfiguration, systemType, SystemPack)
	}
}

// ApplyForcefield types the packed system. With stripHydrogens the result is
// reduced to united atoms.
func (b *Builder) ApplyForcefield(ff forcefield.Forcefield, stripHydrogens bool) (*topology.Topology, error) {
	if b.system == nil {
		return nil, ErrNotPacked
	}
	typed, err := ff.Apply(b.system)
	if err != nil {
		return nil, err
	}
	if f := b.opts.EpsilonFactor; f != 1 {
		for i := range typed.Atoms {
			typed.Atoms[i].Epsilon *= f
		}
	}
	if stripHydrogens {
		b.log.Info().Msg("Removing hydrogen atoms and adjusting heavy atoms")
		if err := typed.StripHydrogens(); err != nil {
			return nil, err
		}
	}
	b.typed = typed
	b.log.Info().Str("forcefield", ff.Name()).Int("atoms", typed.Len()).Msg("forcefield applied")
	return typed, nil
}

// Typed returns the last forcefield-applied system, or nil.
func (b *Builder) Typed() *topology.Topology { return b.typed }
