package sim

import "time"

// Phase is the engine state. It only changes through the Run* operations and
// Close.
type Phase int

const (
	Configured Phase = iota
	Shrinking
	Annealing
	Equilibrating
	Producing
	Finished
)

var phaseNames = [...]string{"configured", "shrinking", "annealing", "equilibrating", "producing", "finished"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Stage describes one Run* call.
type Stage struct {
	Name          string
	Phase         Phase
	Method        string
	Steps         int
	StartTimestep uint64
	EndTimestep   uint64
	Elapsed       time.Duration
	TPS           float64
}

// Observer is notified around every stage. StageFinished receives the
// stage's error, if any.
type Observer interface {
	StageStarted(st Stage)
	StageFinished(st Stage, err error)
}
