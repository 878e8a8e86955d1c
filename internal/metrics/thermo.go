// Package metrics computes thermodynamic quantities of a running state and
// writes them as a whitespace-separated log table.
package metrics

import "github.com/san-kum/polysim/internal/dynamo"

// Thermo is one sample of the thermodynamic quantities of a state, in
// reduced units.
type Thermo struct {
	KineticTemperature float64
	PotentialEnergy    float64
	KineticEnergy      float64
	Volume             float64
	Pressure           float64
	PressureTensor     dynamo.Tensor
	ForceEnergies      map[string]float64
}

func (t Thermo) TotalEnergy() float64 { return t.KineticEnergy + t.PotentialEnergy }

// Compute samples s. Energies and the virial come from the last force
// evaluation.
func Compute(s *dynamo.State) Thermo {
	pt := s.PressureTensor()
	fe := make(map[string]float64, len(s.Energies))
	for k, v := range s.Energies {
		fe[k] = v
	}
	return Thermo{
		KineticTemperature: s.Temperature(),
		PotentialEnergy:    s.PotentialEnergy,
		KineticEnergy:      s.KineticEnergy(),
		Volume:             s.Box.Volume(),
		Pressure:           pt.Trace() / 3,
		PressureTensor:     pt,
		ForceEnergies:      fe,
	}
}
