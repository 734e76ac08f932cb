package sim

import (
	"context"
	"fmt"
	"runtime"

	"github.com/san-kum/fixstep/internal/dynamo"
	"github.com/san-kum/fixstep/internal/integrators"
	"golang.org/x/sync/errgroup"
)

// Factory builds a fresh integrator. Ensemble calls it once per run so that
// no two goroutines share scratch buffers.
type Factory func() (integrators.Integrator, error)

// Ensemble runs independent trajectories in parallel.
type Ensemble struct {
	factory Factory
	metrics func() []Metric
	workers int
}

func NewEnsemble(factory Factory) *Ensemble {
	return &Ensemble{factory: factory, workers: runtime.GOMAXPROCS(0)}
}

// WithMetrics sets a constructor for per-run metrics.
func (e *Ensemble) WithMetrics(fn func() []Metric) *Ensemble {
	e.metrics = fn
	return e
}

func (e *Ensemble) WithWorkers(n int) *Ensemble {
	if n > 0 {
		e.workers = n
	}
	return e
}

// Run simulates every initial state with cfg. The first failure cancels the
// remaining runs and is returned.
func (e *Ensemble) Run(ctx context.Context, x0s []dynamo.State, cfg Config) ([]*Result, error) {
	results := make([]*Result, len(x0s))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, x0 := range x0s {
		g.Go(func() error {
			integ, err := e.factory()
			if err != nil {
				return fmt.Errorf("run %d: %w", i, err)
			}
			s := New(integ)
			if e.metrics != nil {
				for _, m := range e.metrics() {
					s.AddMetric(m)
				}
			}
			res, err := s.Run(ctx, x0, cfg)
			if err != nil {
				return fmt.Errorf("run %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
