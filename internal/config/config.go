// Package config is the parameter record of one run: system generation,
// stage temperatures and pressures, step counts and writer cadence. Files
// are YAML or TOML, chosen by extension, and keys follow the statepoint
// names of the original workflow.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/san-kum/polysim/internal/box"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalid = errors.New("config: invalid parameters")
	ErrFormat  = errors.New("config: unsupported file format")
)

const (
	DefaultMolecule     = "PolyEthylene"
	DefaultDensity      = 1.1
	DefaultSystemType   = "pack"
	DefaultForcefield   = "oplsaa"
	DefaultExpandFactor = 7.0
	DefaultTau          = 0.1
	DefaultSeed         = 42
	DefaultDt           = 0.0001
	DefaultRCut         = 2.5
)

// Stage kinds accepted in a stage plan.
const (
	StageShrink   = "shrink"
	StageNVT      = "nvt"
	StageNPT      = "npt"
	StageNVE      = "nve"
	StageLangevin = "langevin"
)

// BoxConstraints pins box edges in nanometres. Nil edges are solved from
// the density.
type BoxConstraints struct {
	X *float64 `yaml:"x" toml:"x" validate:"omitempty,gt=0"`
	Y *float64 `yaml:"y" toml:"y" validate:"omitempty,gt=0"`
	Z *float64 `yaml:"z" toml:"z" validate:"omitempty,gt=0"`
}

// Fixed lists the pinned edges for box.Solve.
func (b BoxConstraints) Fixed() []box.Fixed {
	var out []box.Fixed
	for i, l := range []*float64{b.X, b.Y, b.Z} {
		if l != nil {
			out = append(out, box.Fixed{Axis: box.Axis(i), Length: *l})
		}
	}
	return out
}

// Stage is one entry of an explicit stage plan. Zero couplings fall back to
// the run's tau_kT and tau_p. KTFinal turns KT into a ramp over the stage.
// FinalBox, in reduced units, overrides the shrink target derived from the
// density.
type Stage struct {
	Kind       string      `yaml:"kind" toml:"kind" validate:"required,oneof=shrink nvt npt nve langevin"`
	Steps      int         `yaml:"steps" toml:"steps" validate:"gte=0"`
	KT         float64     `yaml:"kT" toml:"kT" validate:"gte=0"`
	KTFinal    *float64    `yaml:"kT_final,omitempty" toml:"kT_final,omitempty" validate:"omitempty,gte=0"`
	Pressure   float64     `yaml:"pressure,omitempty" toml:"pressure,omitempty"`
	Period     int         `yaml:"period,omitempty" toml:"period,omitempty" validate:"gte=0"`
	TauKT      float64     `yaml:"tau_kT,omitempty" toml:"tau_kT,omitempty" validate:"gte=0"`
	TauP       float64     `yaml:"tau_p,omitempty" toml:"tau_p,omitempty" validate:"gte=0"`
	Alpha      float64     `yaml:"alpha,omitempty" toml:"alpha,omitempty" validate:"gte=0"`
	Couple     string      `yaml:"couple,omitempty" toml:"couple,omitempty" validate:"omitempty,oneof=xyz xy xz yz none"`
	FinalBox   *[3]float64 `yaml:"final_box,omitempty" toml:"final_box,omitempty"`
	Thermalize *bool       `yaml:"thermalize,omitempty" toml:"thermalize,omitempty"`
}

// ShouldThermalize defaults to true, as every ensemble stage does.
func (s Stage) ShouldThermalize() bool {
	return s.Thermalize == nil || *s.Thermalize
}

type Config struct {
	Molecule        string         `yaml:"molecule" toml:"molecule" validate:"required,oneof=PolyEthylene PPS"`
	NMols           []int          `yaml:"n_mols" toml:"n_mols" validate:"required,min=1,dive,gt=0"`
	ChainLengths    []int          `yaml:"chain_lengths" toml:"chain_lengths" validate:"required,min=1,dive,gt=0"`
	Density         float64        `yaml:"density" toml:"density" validate:"gt=0"`
	SystemType      string         `yaml:"system_type" toml:"system_type" validate:"required"`
	Forcefield      string         `yaml:"forcefield" toml:"forcefield" validate:"required,oneof=oplsaa oplsaa-pps"`
	BoxConstraints  BoxConstraints `yaml:"box_constraints" toml:"box_constraints"`
	ExpandFactor    float64        `yaml:"expand_factor" toml:"expand_factor" validate:"gte=1"`
	RemoveHydrogens bool           `yaml:"remove_hydrogens" toml:"remove_hydrogens"`
	EFactor         float64        `yaml:"e_factor" toml:"e_factor" validate:"gt=0"`
	PackSeed        uint64         `yaml:"pack_seed" toml:"pack_seed"`

	TauKT     float64 `yaml:"tau_kT" toml:"tau_kT" validate:"gt=0"`
	TauP      float64 `yaml:"tau_p" toml:"tau_p" validate:"gt=0"`
	SimSeed   uint64  `yaml:"sim_seed" toml:"sim_seed"`
	Dt        float64 `yaml:"dt" toml:"dt" validate:"gt=0"`
	RCut      float64 `yaml:"r_cut" toml:"r_cut" validate:"gt=0"`
	AutoScale bool    `yaml:"auto_scale" toml:"auto_scale"`
	Device    string  `yaml:"device" toml:"device" validate:"omitempty,oneof=cpu serial gpu auto"`

	ShrinkKT     float64 `yaml:"shrink_kT" toml:"shrink_kT" validate:"gte=0"`
	ShrinkSteps  int     `yaml:"shrink_steps" toml:"shrink_steps" validate:"gte=0"`
	ShrinkPeriod int     `yaml:"shrink_period" toml:"shrink_period" validate:"gt=0"`

	NVTStartKT float64 `yaml:"NVT_start_kT" toml:"NVT_start_kT" validate:"gte=0"`
	NVTFinalKT float64 `yaml:"NVT_final_kT" toml:"NVT_final_kT" validate:"gte=0"`
	NVTSteps   int     `yaml:"NVT_steps" toml:"NVT_steps" validate:"gte=0"`

	NPTKT    float64 `yaml:"NPT_kT" toml:"NPT_kT" validate:"gte=0"`
	NPTSteps int     `yaml:"NPT_steps" toml:"NPT_steps" validate:"gte=0"`
	NPTP     float64 `yaml:"NPT_p" toml:"NPT_p"`

	GSDWriteFreq uint64 `yaml:"gsd_write_freq" toml:"gsd_write_freq"`
	LogWriteFreq uint64 `yaml:"log_write_freq" toml:"log_write_freq"`

	Stages []Stage `yaml:"stages,omitempty" toml:"stages,omitempty" validate:"dive"`
}

// DefaultConfig is the polyethylene state point of the original workflow.
// NPT is off: the workflow listed NPT parameters but never ran the stage.
func DefaultConfig() *Config {
	return &Config{
		Molecule:     DefaultMolecule,
		NMols:        []int{30},
		ChainLengths: []int{10},
		Density:      DefaultDensity,
		SystemType:   DefaultSystemType,
		Forcefield:   DefaultForcefield,
		ExpandFactor: DefaultExpandFactor,
		EFactor:      1,
		PackSeed:     DefaultSeed,
		TauKT:        DefaultTau,
		TauP:         DefaultTau,
		SimSeed:      DefaultSeed,
		Dt:           DefaultDt,
		RCut:         DefaultRCut,
		AutoScale:    true,
		Device:       "cpu",
		ShrinkKT:     8,
		ShrinkSteps:  200000,
		ShrinkPeriod: 1000,
		NVTStartKT:   8,
		NVTFinalKT:   2,
		NVTSteps:     500000,
		NPTKT:        2,
		NPTP:         0.001,
		GSDWriteFreq: 10000,
		LogWriteFreq: 1000,
	}
}

var validate = validator.New()

// Validate checks field bounds and the pairing of n_mols with
// chain_lengths.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if len(c.NMols) != len(c.ChainLengths) {
		return fmt.Errorf("%w: %d n_mols entries for %d chain_lengths", ErrInvalid, len(c.NMols), len(c.ChainLengths))
	}
	return nil
}

// Clone copies c deeply enough that edits to the copy never reach c.
func (c *Config) Clone() *Config {
	out := *c
	out.NMols = append([]int(nil), c.NMols...)
	out.ChainLengths = append([]int(nil), c.ChainLengths...)
	out.BoxConstraints = BoxConstraints{X: clonePtr(c.BoxConstraints.X), Y: clonePtr(c.BoxConstraints.Y), Z: clonePtr(c.BoxConstraints.Z)}
	out.Stages = nil
	for _, st := range c.Stages {
		st.KTFinal = clonePtr(st.KTFinal)
		st.FinalBox = clonePtr(st.FinalBox)
		st.Thermalize = clonePtr(st.Thermalize)
		out.Stages = append(out.Stages, st)
	}
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func format(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml", nil
	case ".toml":
		return "toml", nil
	}
	return "", fmt.Errorf("%w: %q", ErrFormat, filepath.Ext(path))
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	kind, err := format(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	switch kind {
	case "yaml":
		err = yaml.Unmarshal(data, cfg)
	case "toml":
		_, err = toml.Decode(string(data), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	kind, err := format(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if kind == "toml" {
		return toml.NewEncoder(f).Encode(cfg)
	}
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}
