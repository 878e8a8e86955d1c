package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/polysim/internal/box"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "PolyEthylene", cfg.Molecule)
	require.Equal(t, []int{30}, cfg.NMols)
	require.Equal(t, 200000, cfg.ShrinkSteps)
	require.Equal(t, 8.0, cfg.NVTStartKT)
	require.Equal(t, 2.0, cfg.NVTFinalKT)
	require.Zero(t, cfg.NPTSteps)
	require.True(t, cfg.AutoScale)
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "sp.yaml", `
molecule: PPS
forcefield: oplsaa-pps
n_mols: [5, 2]
chain_lengths: [4, 8]
density: 1.35
box_constraints:
  z: 4.5
NVT_steps: 1000
stages:
  - kind: shrink
    steps: 100
    kT: 6
    period: 10
  - kind: nvt
    steps: 50
    kT: 6
    kT_final: 2
    thermalize: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "PPS", cfg.Molecule)
	require.Equal(t, []int{5, 2}, cfg.NMols)
	require.Equal(t, 1.35, cfg.Density)
	require.Equal(t, 1000, cfg.NVTSteps)
	// untouched keys keep their defaults
	require.Equal(t, 8.0, cfg.ShrinkKT)
	require.Equal(t, []box.Fixed{{Axis: box.Z, Length: 4.5}}, cfg.BoxConstraints.Fixed())

	require.Len(t, cfg.Stages, 2)
	require.Equal(t, StageShrink, cfg.Stages[0].Kind)
	require.True(t, cfg.Stages[0].ShouldThermalize())
	require.NotNil(t, cfg.Stages[1].KTFinal)
	require.Equal(t, 2.0, *cfg.Stages[1].KTFinal)
	require.False(t, cfg.Stages[1].ShouldThermalize())
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "sp.toml", `
molecule = "PolyEthylene"
n_mols = [10]
chain_lengths = [20]
e_factor = 0.5
remove_hydrogens = true

[[stages]]
kind = "npt"
steps = 500
kT = 2.0
pressure = 0.01
couple = "xy"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []int{20}, cfg.ChainLengths)
	require.Equal(t, 0.5, cfg.EFactor)
	require.True(t, cfg.RemoveHydrogens)
	require.Len(t, cfg.Stages, 1)
	require.Equal(t, "xy", cfg.Stages[0].Couple)
	require.Equal(t, 0.01, cfg.Stages[0].Pressure)
}

func TestSaveLoad(t *testing.T) {
	for _, name := range []string{"sp.yaml", "sp.toml"} {
		t.Run(name, func(t *testing.T) {
			cfg := GetPreset("slab")
			cfg.SimSeed = 7
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, Save(path, cfg))
			got, err := Load(path)
			require.NoError(t, err)
			require.Equal(t, cfg, got)
		})
	}
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := Load(writeFile(t, "sp.json", "{}"))
	require.ErrorIs(t, err, ErrFormat)
	require.ErrorIs(t, Save(filepath.Join(t.TempDir(), "sp.ini"), DefaultConfig()), ErrFormat)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero density", func(c *Config) { c.Density = 0 }},
		{"unknown molecule", func(c *Config) { c.Molecule = "Nylon" }},
		{"unknown forcefield", func(c *Config) { c.Forcefield = "gaff" }},
		{"mismatched chains", func(c *Config) { c.NMols = []int{1, 2} }},
		{"zero count", func(c *Config) { c.NMols = []int{0} }},
		{"negative dt", func(c *Config) { c.Dt = -1 }},
		{"bad box edge", func(c *Config) { c.BoxConstraints.X = ptr(-2) }},
		{"bad stage kind", func(c *Config) { c.Stages = []Stage{{Kind: "nph", Steps: 1}} }},
		{"bad couple", func(c *Config) { c.Stages = []Stage{{Kind: StageNPT, Steps: 1, Couple: "xx"}} }},
		{"unknown device", func(c *Config) { c.Device = "tpu" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestPresets(t *testing.T) {
	names := ListPresets()
	require.Contains(t, names, "quick")
	require.IsIncreasing(t, names)
	for _, name := range names {
		require.NoError(t, GetPreset(name).Validate(), name)
	}
	require.Nil(t, GetPreset("missing"))
}

func TestGetPresetIsACopy(t *testing.T) {
	a := GetPreset("slab")
	*a.BoxConstraints.X = 99
	a.NMols[0] = 1
	b := GetPreset("slab")
	require.Equal(t, 5.0, *b.BoxConstraints.X)
	require.Equal(t, 30, b.NMols[0])
}
