package sim

import (
	"context"
	"runtime"
	"sync"
)

// Member runs one independent staged simulation. It must build its own
// Engine; engines are never shared between members.
type Member func(ctx context.Context, idx int) error

// RunEnsemble runs n members on at most workers goroutines and returns
// their errors by index. Members that have not started when ctx is done
// are skipped with ctx.Err(); a running member is not interrupted.
func RunEnsemble(ctx context.Context, n, workers int, run Member) []error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	errs := make([]error, n)
	sem := make(chan struct{}, workers)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[idx] = ctx.Err()
				return
			}
			defer func() { <-sem }()
			if err := ctx.Err(); err != nil {
				errs[idx] = err
				return
			}
			errs[idx] = run(ctx, idx)
		}(i)
	}
	wg.Wait()
	return errs
}
