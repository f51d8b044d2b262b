package solver

import (
	"context"
	"math/rand"

	"golang.org/x/sync/errgroup"
)

// GenerateSeatingParallel splits maxAttempts across workers, each with its
// own generator seeded from o's generator in worker order. Results merge in
// worker order under the same strictly-greater rule as the sequential
// search, so a fixed seed and worker count always give the same seating.
func (o *Optimizer) GenerateSeatingParallel(ctx context.Context, maxAttempts, workers int) (Solution, error) {
	if workers <= 1 {
		return o.GenerateSeatingContext(ctx, maxAttempts)
	}

	rngs := make([]*rand.Rand, workers)
	for i := range rngs {
		rngs[i] = rand.New(rand.NewSource(o.rng.Int63()))
	}

	results := make([]*Solution, workers)
	g, gctx := errgroup.WithContext(ctx)
	for i := range workers {
		attempts := maxAttempts / workers
		if i < maxAttempts%workers {
			attempts++
		}
		g.Go(func() error {
			best, err := o.search(gctx, attempts, rngs[i], nil)
			results[i] = best
			return err
		})
	}
	err := g.Wait()

	tracker := &seatingTracker{accept: o.onAccept}
	for _, r := range results {
		if r != nil && tracker.beats(*r) {
			tracker.add(*r)
		}
	}
	if tracker.best != nil {
		return *tracker.best, err
	}
	return o.fallback(), err
}
