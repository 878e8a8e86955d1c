package compute

import (
	"fmt"
	"runtime"
	"sync"
)

// minChunk is the smallest range worth handing to a separate goroutine.
const minChunk = 64

type CPU struct {
	workers int
}

// NewCPU returns a CPU device with the given worker count; n <= 0 uses
// every core.
func NewCPU(n int) *CPU {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return &CPU{workers: n}
}

func (c *CPU) Name() string {
	if c.workers == 1 {
		return "serial"
	}
	return fmt.Sprintf("cpu(%d)", c.workers)
}

func (c *CPU) Workers() int { return c.workers }
func (c *CPU) Close()       {}

func (c *CPU) ParallelFor(n int, fn func(worker, start, end int)) {
	if n <= 0 {
		return
	}
	workers := c.workers
	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers <= 1 {
		fn(0, 0, n)
		return
	}

	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			break
		}
		wg.Add(1)
		go func(worker, s, e int) {
			defer wg.Done()
			fn(worker, s, e)
		}(w, start, end)
	}
	wg.Wait()
}
