// Package workerpool runs independent units of work on a bounded number of
// goroutines and collects one result slot per unit.
package workerpool

import (
	"context"
	"fmt"
	"runtime"

	log "github.com/sirupsen/logrus"
	"k8s.io/client-go/util/workqueue"

	"mlflow-migrate/internal/core/domain"
)

// Pool bounds how many units run at once. It holds no goroutines between
// calls and can be shared across phases.
type Pool struct {
	workers int
}

// New creates a pool with the given degree of parallelism (at least 1).
func New(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// ForThreads sizes the pool to the CPU count when useThreads is set and to a
// single worker otherwise.
func ForThreads(useThreads bool) *Pool {
	if !useThreads {
		return New(1)
	}
	return New(runtime.NumCPU())
}

// Workers reports the degree of parallelism.
func (p *Pool) Workers() int {
	return p.workers
}

// Result is the outcome of one unit.
type Result[T any] struct {
	Value T
	Err   error
}

// Map applies fn to every item and waits for all of them. Results are in
// input order regardless of the pool size. A failing or panicking unit does
// not affect its siblings. Units skipped because ctx was cancelled report
// domain.ErrNotDispatched.
func Map[In, Out any](ctx context.Context, p *Pool, items []In, fn func(context.Context, In) (Out, error)) []Result[Out] {
	results := make([]Result[Out], len(items))
	for i := range results {
		results[i].Err = domain.ErrNotDispatched
	}

	workqueue.ParallelizeUntil(ctx, p.workers, len(items), func(i int) {
		results[i] = call(ctx, items[i], fn)
	})
	return results
}

// Each is Map for units that only report an error.
func Each[In any](ctx context.Context, p *Pool, items []In, fn func(context.Context, In) error) []error {
	results := Map(ctx, p, items, func(ctx context.Context, item In) (struct{}, error) {
		return struct{}{}, fn(ctx, item)
	})
	errs := make([]error, len(results))
	for i, r := range results {
		errs[i] = r.Err
	}
	return errs
}

func call[In, Out any](ctx context.Context, item In, fn func(context.Context, In) (Out, error)) (res Result[Out]) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("worker recovered from panic")
			res = Result[Out]{Err: fmt.Errorf("%w: %v", domain.ErrWorkerPanic, r)}
		}
	}()
	v, err := fn(ctx, item)
	return Result[Out]{Value: v, Err: err}
}
