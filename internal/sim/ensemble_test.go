package sim

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/san-kum/polysim/internal/box"
	"github.com/san-kum/polysim/internal/dynamo"
)

func TestRunEnsembleIndependentEngines(t *testing.T) {
	steps := []int{10, 20, 30}
	final := make([]uint64, len(steps))
	errs := RunEnsemble(context.Background(), len(steps), 2, func(ctx context.Context, idx int) error {
		cfg := testConfig()
		cfg.Seed = uint64(idx + 1)
		e, err := New(lattice(2, 2.8), box.Cubic(2.8), cfg)
		if err != nil {
			return err
		}
		defer e.Close()
		if err := e.RunNVT(steps[idx], dynamo.Constant(1), 0.5, true); err != nil {
			return err
		}
		final[idx] = e.Timestep()
		return nil
	})
	for i, err := range errs {
		if err != nil {
			t.Fatalf("member %d: %v", i, err)
		}
		if final[i] != uint64(steps[i]) {
			t.Errorf("member %d ended at %d, want %d", i, final[i], steps[i])
		}
	}
}

func TestRunEnsembleErrorsByIndex(t *testing.T) {
	boom := errors.New("boom")
	errs := RunEnsemble(context.Background(), 4, 0, func(ctx context.Context, idx int) error {
		if idx == 2 {
			return boom
		}
		return nil
	})
	for i, err := range errs {
		if (i == 2) != errors.Is(err, boom) {
			t.Errorf("member %d: unexpected error %v", i, err)
		}
	}
}

func TestRunEnsembleCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var ran atomic.Int32
	errs := RunEnsemble(ctx, 3, 1, func(ctx context.Context, idx int) error {
		ran.Add(1)
		return nil
	})
	if ran.Load() != 0 {
		t.Errorf("%d members ran after cancel", ran.Load())
	}
	for i, err := range errs {
		if !errors.Is(err, context.Canceled) {
			t.Errorf("member %d: expected context.Canceled, got %v", i, err)
		}
	}
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		p    Phase
		want string
	}{
		{Configured, "configured"},
		{Shrinking, "shrinking"},
		{Annealing, "annealing"},
		{Equilibrating, "equilibrating"},
		{Producing, "producing"},
		{Finished, "finished"},
		{Phase(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("Phase(%d) = %q, want %q", tt.p, got, tt.want)
		}
	}
}
