package wipe

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/JustRK-07/SIH-disk-wipeout/internal/dispatch"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/errs"
)

// Handle controls a running asynchronous operation.
type Handle struct {
	// Progress streams pass progress. Closed when the operation ends.
	// Slow consumers drop updates rather than stalling the wipe.
	Progress <-chan dispatch.PassProgress

	cancel context.CancelFunc
	g      *errgroup.Group

	mu     sync.Mutex
	result *Result
}

// Cancel requests a cooperative abort. The operation finishes its
// current chunk, syncs, and certifies before Wait returns.
func (h *Handle) Cancel() { h.cancel() }

// Wait blocks until the operation reaches a terminal state.
func (h *Handle) Wait() (*Result, error) {
	err := h.g.Wait()
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, err
}

// Start launches the operation in the background and returns a Handle
// for progress, cancellation, and the final result.
func (o *Orchestrator) Start(ctx context.Context, req *dispatch.WipeRequest) (*Handle, error) {
	identity := req.Device.Identity()
	if !o.tryAcquire(identity) {
		return nil, errors.Mark(
			errors.Newf("device %s already has an operation in progress", req.Device.Path),
			errs.ErrDeviceBusy)
	}

	runCtx, cancel := context.WithCancel(ctx)
	progress := make(chan dispatch.PassProgress, 64)
	h := &Handle{
		Progress: progress,
		cancel:   cancel,
	}

	g, gctx := errgroup.WithContext(runCtx)
	h.g = g
	g.Go(func() error {
		defer o.release(identity)
		defer close(progress)
		defer cancel()

		res, err := o.run(gctx, req, func(p dispatch.PassProgress) {
			select {
			case progress <- p:
			default:
			}
		})

		h.mu.Lock()
		h.result = res
		h.mu.Unlock()
		return err
	})

	return h, nil
}
