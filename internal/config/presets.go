package config

import "sort"

func ptr(v float64) *float64 { return &v }
func flag(v bool) *bool      { return &v }

// Presets are named starting points for common runs. GetPreset returns a
// copy, so callers may edit it.
var Presets = map[string]*Config{
	"polyethylene": DefaultConfig(),
	"pps": func() *Config {
		c := DefaultConfig()
		c.Molecule = "PPS"
		c.NMols = []int{20}
		c.ChainLengths = []int{8}
		c.Density = 1.3
		c.Forcefield = "oplsaa-pps"
		return c
	}(),
	"united-atom": func() *Config {
		c := DefaultConfig()
		c.RemoveHydrogens = true
		return c
	}(),
	"npt": func() *Config {
		c := DefaultConfig()
		c.NPTSteps = 500000
		return c
	}(),
	"slab": func() *Config {
		c := DefaultConfig()
		c.BoxConstraints = BoxConstraints{X: ptr(5), Y: ptr(5)}
		return c
	}(),
	"quick": func() *Config {
		c := DefaultConfig()
		c.NMols = []int{4}
		c.ChainLengths = []int{3}
		c.ExpandFactor = 3
		c.Dt = 0.001
		c.ShrinkSteps = 2000
		c.ShrinkPeriod = 10
		c.NVTSteps = 2000
		c.GSDWriteFreq = 500
		c.LogWriteFreq = 100
		return c
	}(),
	"langevin": func() *Config {
		c := DefaultConfig()
		c.Stages = []Stage{
			{Kind: StageShrink, Steps: 200000, KT: 8, Period: 1000},
			{Kind: StageLangevin, Steps: 100000, KT: 8, KTFinal: ptr(2), Alpha: 0.1},
			{Kind: StageNVE, Steps: 100000, Thermalize: flag(false)},
		}
		return c
	}(),
}

func GetPreset(name string) *Config {
	c, ok := Presets[name]
	if !ok {
		return nil
	}
	return c.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
