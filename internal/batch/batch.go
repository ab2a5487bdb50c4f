// Package batch runs independent jobs on a bounded number of goroutines.
package batch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one job.
type Result[T any] struct {
	Value T
	Err   error
}

// Run calls fn on every job with at most workers calls in flight and returns
// the results in job order. A failing job only fills its own slot; the
// others keep running. Jobs not yet started when ctx is cancelled get
// ctx.Err().
func Run[J, T any](
	ctx context.Context,
	jobs []J,
	workers int,
	fn func(ctx context.Context, job J) (T, error),
) []Result[T] {

	results := make([]Result[T], len(jobs))
	g := new(errgroup.Group)
	g.SetLimit(max(1, workers))
	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			v, err := fn(ctx, job)
			results[i] = Result[T]{Value: v, Err: err}
			return nil
		})
	}
	g.Wait()
	return results
}
