package executor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/basil/pkg/config"
	"github.com/devicelab-dev/basil/pkg/core"
)

// Worker is one browser session that pulls tests from the queue.
type Worker struct {
	ID      int
	Driver  core.WebDriver
	Cleanup func()
}

// ParallelRunner runs tests across several sessions.
type ParallelRunner struct {
	workers []Worker
	cfg     *config.Config
	config  RunnerConfig
}

// NewParallelRunner creates a parallel runner with one worker per session.
func NewParallelRunner(workers []Worker, cfg *config.Config, rc RunnerConfig) *ParallelRunner {
	return &ParallelRunner{workers: workers, cfg: cfg, config: rc}
}

// Run executes tests using a work queue. All workers pull from the same queue
// until it is empty.
func (pr *ParallelRunner) Run(ctx context.Context, cases []Case) (*RunResult, error) {
	if len(pr.workers) == 0 {
		return nil, fmt.Errorf("no workers available")
	}
	ex, err := newExecution(pr.config, cases)
	if err != nil {
		return nil, err
	}
	for _, w := range pr.workers {
		ex.writer.AddSession(w.Driver.SessionID())
	}

	queue := make(chan int, len(cases))
	for i := range cases {
		queue <- i
	}
	close(queue)

	start := time.Now()
	var g errgroup.Group
	for _, w := range pr.workers {
		w := w
		g.Go(func() error {
			if w.Cleanup != nil {
				defer w.Cleanup()
			}
			// Each worker has its own session, results go to distinct slots.
			s := NewSession(w.Driver, pr.cfg, w.ID)
			for idx := range queue {
				ex.execute(ctx, s, idx)
			}
			return nil
		})
	}
	_ = g.Wait()

	return ex.finish(time.Since(start))
}
