package core

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ContextCheckInterval is how many rows a worker processes between
// cancellation checks.
const ContextCheckInterval = 1000

// mapRows applies fn to every element of in using up to workers contiguous
// partitions and returns results in input order. When several partitions
// fail, the error from the earliest partition is returned so failures are
// reported deterministically.
func mapRows[In, Out any](ctx context.Context, workers int, in []In, fn func(i int, v In) (Out, error)) ([]Out, error) {
	out := make([]Out, len(in))
	if len(in) == 0 {
		return out, nil
	}
	if workers < 1 {
		workers = 1
	}

	chunk := (len(in) + workers - 1) / workers
	parts := (len(in) + chunk - 1) / chunk
	errs := make([]error, parts)

	var g errgroup.Group
	g.SetLimit(workers)
	for p := range parts {
		start := p * chunk
		end := min(start+chunk, len(in))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if (i-start)%ContextCheckInterval == 0 {
					if err := ctx.Err(); err != nil {
						errs[p] = err
						return nil
					}
				}
				v, err := fn(i, in[i])
				if err != nil {
					errs[p] = err
					return nil
				}
				out[i] = v
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
