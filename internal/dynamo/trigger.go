package dynamo

// Trigger decides whether an operation runs at a timestep.
type Trigger interface {
	Fire(timestep uint64) bool
}

// Periodic fires every Period steps offset by Phase. A zero period never
// fires.
type Periodic struct {
	Period uint64
	Phase  uint64
}

func (p Periodic) Fire(t uint64) bool {
	if p.Period == 0 || t < p.Phase {
		return false
	}
	return (t-p.Phase)%p.Period == 0
}

// On fires at exactly one timestep.
type On uint64

func (o On) Fire(t uint64) bool { return t == uint64(o) }

// Or fires when any of its triggers fires.
type Or []Trigger

func (o Or) Fire(t uint64) bool {
	for _, tr := range o {
		if tr.Fire(t) {
			return true
		}
	}
	return false
}
