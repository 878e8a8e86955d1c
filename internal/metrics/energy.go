package metrics

import (
	"math"

	"github.com/san-kum/polysim/internal/dynamo"
)

// EnergyDrift tracks the largest relative change of the total energy since
// the first observation. It is meaningful for NVE stages only.
type EnergyDrift struct {
	name          string
	initialEnergy float64
	currentEnergy float64
	maxDrift      float64
	samples       int
	trigger       dynamo.Trigger
}

func NewEnergyDrift(period uint64) *EnergyDrift {
	return &EnergyDrift{
		name:    "energy_drift",
		trigger: dynamo.Periodic{Period: period},
	}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(s *dynamo.State) {
	energy := s.KineticEnergy() + s.PotentialEnergy

	if e.samples == 0 {
		e.initialEnergy = energy
	}

	e.currentEnergy = energy
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Samples() int { return e.samples }

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.currentEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}

// Trigger and Write let the drift tracker ride along as a writer.
func (e *EnergyDrift) Trigger() dynamo.Trigger { return e.trigger }

func (e *EnergyDrift) Write(sim *dynamo.Simulation) error {
	e.Observe(sim.State())
	return nil
}
