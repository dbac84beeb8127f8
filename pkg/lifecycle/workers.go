package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/dispatch/pkg/log"
)

// Workers tracks goroutines owned by a component (serve loops, background
// processors) so that StopInternal can cancel them and wait for them.
type Workers struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger log.Logger
}

// NewWorkers creates an empty worker group.
func NewWorkers(logger log.Logger) *Workers {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Workers{logger: logger}
}

// Context returns a fresh cancellable context for the workers and
// remembers its cancel function. Workers outlive the operation that spawned
// them, so the context is rooted at Background rather than at the caller's
// operation context.
func (w *Workers) Context() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()
	return ctx
}

// Go runs fn on a tracked goroutine.
func (w *Workers) Go(fn func()) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		fn()
	}()
}

// Cancel cancels the context returned by Context, if any.
func (w *Workers) Cancel() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// WaitWithTimeout waits for all workers to finish with a timeout.
// Returns ErrShutdownTimeout if the timeout expires.
func (w *Workers) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		w.logger.Warn("workers did not finish in time",
			log.Duration("timeout", timeout),
		)
		return ErrShutdownTimeout
	}
}
