package dispatch

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/JustRK-07/SIH-disk-wipeout/internal/device"
)

// Executor runs one pass against a device. Implementations must honor
// cooperative cancellation at sub-second granularity and must return a
// PassResult even for cancelled passes (outcome PARTIAL, bytes reached)
// so verification can scope its sampling correctly.
type Executor interface {
	Execute(ctx context.Context, spec PassSpec, dev device.Device, progress ProgressFunc) PassResult
}

// Dispatcher plans and executes passes through an Executor binding.
type Dispatcher struct {
	logger   zerolog.Logger
	executor Executor
}

// NewDispatcher wires a Dispatcher to its platform Executor.
func NewDispatcher(logger zerolog.Logger, executor Executor) *Dispatcher {
	return &Dispatcher{
		logger:   logger.With().Str("component", "dispatcher").Logger(),
		executor: executor,
	}
}

// Plan maps (device class, method, pass count) to an ordered pass plan.
// Incompatible combinations are rejected here, before anything touches
// the device.
func (d *Dispatcher) Plan(req *WipeRequest, dev device.Device, passTimeout time.Duration) (*PassPlan, error) {
	if req.Passes < 1 {
		return nil, errors.Newf("pass count must be >= 1, got %d", req.Passes)
	}

	patterns := methodPatterns(req.Method)
	if patterns == nil {
		return nil, errors.Newf("unsupported wipe method: %s", req.Method)
	}

	switch req.Method {
	case MethodSecureErase:
		// Hardware secure-erase is a single firmware operation and is
		// exclusive of software overwrite passes.
		if req.Passes != 1 {
			return nil, errors.Newf("method %s implies pass count 1, got %d", req.Method, req.Passes)
		}
		if dev.Class == device.ClassRemovable || dev.Class == device.ClassUnknown {
			return nil, errors.Newf("method %s is not available for media class %s", req.Method, dev.Class)
		}
	case MethodDOD5220:
		if req.Passes != len(patterns) {
			return nil, errors.Newf("method %s requires exactly %d passes, got %d", req.Method, len(patterns), req.Passes)
		}
	}

	total := req.Passes
	if req.Method == MethodDOD5220 {
		total = len(patterns)
	}

	plan := &PassPlan{Passes: make([]PassSpec, 0, total)}
	for i := 0; i < total; i++ {
		plan.Passes = append(plan.Passes, PassSpec{
			Index:             i,
			Method:            req.Method,
			Pattern:           patterns[i%len(patterns)],
			EstimatedDuration: estimateDuration(dev),
			Timeout:           passTimeout,
		})
	}

	d.logger.Debug().
		Str("device", dev.Path).
		Str("method", string(req.Method)).
		Int("passes", len(plan.Passes)).
		Msg("pass plan built")

	return plan, nil
}

// Execute runs a single pass with its timeout applied. A timeout is a
// FAILED result, never a hang.
func (d *Dispatcher) Execute(ctx context.Context, spec PassSpec, dev device.Device, progress ProgressFunc) PassResult {
	passCtx := ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		passCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	d.logger.Info().
		Str("device", dev.Path).
		Int("pass", spec.Index).
		Str("pattern", string(spec.Pattern)).
		Msg("pass started")

	result := d.executor.Execute(passCtx, spec, dev, progress)

	d.logger.Info().
		Str("device", dev.Path).
		Int("pass", spec.Index).
		Str("outcome", string(result.Outcome)).
		Uint64("bytes", result.BytesWritten).
		Msg("pass finished")

	return result
}

// estimateDuration is a rough full-sweep estimate by media class, used
// for operator display only.
func estimateDuration(dev device.Device) time.Duration {
	var mbps float64
	switch dev.Class {
	case device.ClassNVMe:
		mbps = 900
	case device.ClassSSD:
		mbps = 350
	default:
		mbps = 120
	}
	seconds := float64(dev.SizeBytes()) / (mbps * 1024 * 1024)
	return time.Duration(seconds * float64(time.Second))
}
