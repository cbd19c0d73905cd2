package orchestration

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

type workerRun func(context.Context) error

func panicSafeNamedWorker(name string, run func(context.Context) error) workerRun {
	return func(ctx context.Context) (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("%s worker panicked: %v", name, recovered)
			}
		}()

		if err = run(ctx); err != nil {
			return fmt.Errorf("%s worker failed: %w", name, err)
		}

		return nil
	}
}

// goWorker runs a named worker on its own goroutine, logs its failure and
// closes done when it returns.
func goWorker(ctx context.Context, name string, run func(context.Context) error) (done <-chan struct{}) {
	finished := make(chan struct{})
	worker := panicSafeNamedWorker(name, run)
	go func() {
		defer close(finished)
		if err := worker(ctx); err != nil {
			logger.ErrorContext(ctx, "background worker stopped", "worker", name, "error", err)
		}
	}()
	return finished
}

// sleep waits d on clk, returning early with the context error on cancellation.
func sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := clk.Timer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
