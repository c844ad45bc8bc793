package errgroup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/LerianStudio/lib-stablecoin/stablecoin/log"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/runtime"
)

// ErrPanicRecovered is returned for a task that panics.
var ErrPanicRecovered = errors.New("errgroup: panic recovered")

// Collector runs n indexed tasks concurrently and keeps every failure.
// One failing task does not cancel the others.
type Collector struct {
	logger log.Logger
	limit  int
}

// NewCollector returns a Collector. limit bounds concurrency; zero or less
// means one goroutine per task.
func NewCollector(logger log.Logger, limit int) *Collector {
	return &Collector{logger: logger, limit: limit}
}

// Run calls fn(ctx, i) for every i in [0, n). The returned slice has length
// n and holds the error of task i at index i, or nil.
func (c *Collector) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	if n == 0 {
		return errs
	}

	var sem chan struct{}
	if c != nil && c.limit > 0 {
		sem = make(chan struct{}, c.limit)
	}

	var logger log.Logger
	if c != nil {
		logger = c.logger
	}

	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)

		if sem != nil {
			sem <- struct{}{}
		}

		go func(i int) {
			defer wg.Done()
			defer func() {
				if sem != nil {
					<-sem
				}
			}()
			defer func() {
				if recovered := recover(); recovered != nil {
					runtime.HandlePanicValue(ctx, logger, recovered, "errgroup", "collector.Run")
					errs[i] = fmt.Errorf("%w: %v", ErrPanicRecovered, recovered)
				}
			}()

			errs[i] = fn(ctx, i)
		}(i)
	}

	wg.Wait()

	return errs
}
