package experiment

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/polysim/internal/config"
	"github.com/san-kum/polysim/internal/sim"
	"github.com/san-kum/polysim/internal/storage"
)

// SweepResult is one member of an epsilon-factor sweep. Err is set when the
// member failed; the other members still run.
type SweepResult struct {
	EFactor float64
	JobID   string
	Result  *Result
	Err     error
}

// Sweep creates one job per epsilon factor from base and samples them
// concurrently on at most workers goroutines. Every member builds its own
// system and engine.
func Sweep(ctx context.Context, st *storage.Store, base *config.Config, factors []float64, workers int, opts Options) ([]SweepResult, error) {
	if len(factors) == 0 {
		return nil, fmt.Errorf("%w: empty e_factor list", config.ErrInvalid)
	}
	if err := st.Init(); err != nil {
		return nil, err
	}
	results := make([]SweepResult, len(factors))
	jobs := make([]*storage.Job, len(factors))
	for i, f := range factors {
		cfg := base.Clone()
		cfg.EFactor = f
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("e_factor %g: %w", f, err)
		}
		job, err := st.Create(cfg)
		if err != nil {
			return nil, err
		}
		jobs[i] = job
		results[i] = SweepResult{EFactor: f, JobID: job.ID}
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}

	errs := sim.RunEnsemble(ctx, len(jobs), workers, func(ctx context.Context, idx int) error {
		res, err := Sample(ctx, jobs[idx], opts)
		results[idx].Result = res
		return err
	})
	for i, err := range errs {
		results[i].Err = err
	}
	return results, errors.Join(errs...)
}
