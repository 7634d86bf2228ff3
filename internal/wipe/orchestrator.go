// Package wipe drives a full erase operation through its state machine:
// authorize, inspect hidden areas, erase, verify, certify. Every run
// ends with exactly one signed certificate, whatever the outcome.
package wipe

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/JustRK-07/SIH-disk-wipeout/internal/certificate"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/config"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/device"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/dispatch"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/errs"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/hiddenarea"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/metrics"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/safety"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/verify"
)

// State is the operation's position in the wipe lifecycle.
type State string

const (
	StatePending        State = "PENDING"
	StateAuthorizing    State = "AUTHORIZING"
	StateDetectingHPA   State = "DETECTING_HIDDEN"
	StateRemovingHidden State = "REMOVING_HIDDEN"
	StateErasing        State = "ERASING"
	StateVerifying      State = "VERIFYING"
	StateCertifying     State = "CERTIFYING"
	StateDone           State = "DONE"
	StateAborted        State = "ABORTED"
	StateFailed         State = "FAILED"
)

// Result is the outcome of one wipe operation. Certificate is non-nil
// whenever certification itself succeeded, including failed operations.
type Result struct {
	State       State
	Certificate *certificate.Certificate
}

// ReadAtCloser is what verification needs from a read-back handle.
type ReadAtCloser interface {
	io.ReaderAt
	io.Closer
}

// OpenReadFunc opens a device for verification read-back.
type OpenReadFunc func(path string) (ReadAtCloser, error)

// Deps are the orchestrator's collaborators. Inspector may be nil on
// platforms without hidden-area support; detection is then skipped with
// a warning on the certificate.
type Deps struct {
	Guard      *safety.Guard
	Inspector  *hiddenarea.Inspector
	Dispatcher *dispatch.Dispatcher
	Engine     *verify.Engine
	Builder    *certificate.Builder
	Store      *certificate.Store
	Prober     device.Prober
	OpenRead   OpenReadFunc
}

// Orchestrator runs wipe operations. One operation per device at a
// time; concurrent requests for the same device fail with ErrDeviceBusy.
type Orchestrator struct {
	cfg    *config.Config
	logger zerolog.Logger
	deps   Deps

	mu     sync.Mutex
	active map[string]struct{}
}

// NewOrchestrator wires an Orchestrator.
func NewOrchestrator(cfg *config.Config, logger zerolog.Logger, deps Deps) *Orchestrator {
	if deps.OpenRead == nil {
		deps.OpenRead = func(path string) (ReadAtCloser, error) { return os.Open(path) }
	}
	return &Orchestrator{
		cfg:    cfg,
		logger: logger.With().Str("component", "orchestrator").Logger(),
		deps:   deps,
		active: make(map[string]struct{}),
	}
}

func (o *Orchestrator) tryAcquire(identity string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.active[identity]; busy {
		return false
	}
	o.active[identity] = struct{}{}
	return true
}

func (o *Orchestrator) release(identity string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, identity)
}

// Run executes the operation synchronously. The returned Result carries
// the terminal state and the certificate when one was issued; the error
// explains why a run did not reach DONE.
func (o *Orchestrator) Run(ctx context.Context, req *dispatch.WipeRequest, progress dispatch.ProgressFunc) (*Result, error) {
	identity := req.Device.Identity()
	if !o.tryAcquire(identity) {
		return nil, errors.Mark(
			errors.Newf("device %s already has an operation in progress", req.Device.Path),
			errs.ErrDeviceBusy)
	}
	defer o.release(identity)
	return o.run(ctx, req, progress)
}

// operation is the mutable per-run record the certificate is built from.
type operation struct {
	id       string
	state    State
	req      *dispatch.WipeRequest
	dev      device.Device
	decision *safety.Decision
	progress dispatch.ProgressFunc

	hiddenBefore *hiddenarea.Report
	hiddenAfter  *hiddenarea.Report
	passResults  []dispatch.PassResult
	verdict      *verify.Verdict
	warnings     []string
	aborted      bool
	failure      error
}

func (op *operation) warn(format string, args ...any) {
	op.warnings = append(op.warnings, errors.Newf(format, args...).Error())
}

func (o *Orchestrator) setState(op *operation, s State) {
	o.logger.Info().
		Str("operation", op.id).
		Str("device", op.dev.Path).
		Str("from", string(op.state)).
		Str("to", string(s)).
		Msg("state transition")
	op.state = s
	if op.progress != nil {
		op.progress(dispatch.PassProgress{Phase: string(s)})
	}
}

func (o *Orchestrator) run(ctx context.Context, req *dispatch.WipeRequest, progress dispatch.ProgressFunc) (*Result, error) {
	op := &operation{
		id:       uuid.New().String(),
		state:    StatePending,
		req:      req,
		dev:      req.Device,
		progress: progress,
	}

	o.logger.Info().
		Str("operation", op.id).
		Str("device", op.dev.Path).
		Str("method", string(req.Method)).
		Int("passes", req.Passes).
		Msg("wipe operation started")

	o.authorize(op)
	if op.failure == nil {
		o.inspectHidden(ctx, op)
	}
	if op.failure == nil && !op.aborted {
		o.erase(ctx, op)
	}
	if op.failure == nil && !op.aborted && req.Verify {
		o.verifyErasure(ctx, op)
	}

	cert, certErr := o.certify(ctx, op)

	terminal := StateDone
	switch {
	case op.failure != nil:
		terminal = StateFailed
	case op.aborted:
		terminal = StateAborted
	}
	o.setState(op, terminal)
	metrics.Operations.WithLabelValues(string(terminal)).Inc()

	result := &Result{State: terminal, Certificate: cert}
	if certErr != nil {
		// A wipe without its certificate is unattestable; surface this
		// even when the erase itself went fine.
		return result, certErr
	}
	if op.failure != nil {
		return result, op.failure
	}
	if op.aborted {
		return result, errors.Mark(errors.Newf("operation %s cancelled", op.id), errs.ErrCancelled)
	}
	return result, nil
}

// authorize runs the safety gate. A denial is a terminal failure with
// zero passes executed; the decision is still recorded for the
// certificate.
func (o *Orchestrator) authorize(op *operation) {
	o.setState(op, StateAuthorizing)

	class := o.deps.Guard.Classify(op.dev)
	decision, err := o.deps.Guard.Authorize(op.req, class)
	op.decision = decision
	if err != nil {
		op.failure = err
	}
}

// inspectHidden detects HPA/DCO state and removes the areas when
// requested. Removal failures are fatal only under
// RequireHiddenAreaClearance; otherwise the certificate carries the
// warning and the hidden sectors stay out of the erase extent.
func (o *Orchestrator) inspectHidden(ctx context.Context, op *operation) {
	o.setState(op, StateDetectingHPA)

	if o.deps.Inspector == nil {
		op.warn("hidden area inspection unavailable on this platform")
		return
	}

	report, err := o.deps.Inspector.Detect(ctx, op.dev.Path)
	if err != nil {
		if op.req.RequireHiddenAreaClearance {
			op.failure = err
			return
		}
		op.warn("hidden area detection failed: %v", err)
		return
	}
	op.hiddenBefore = &report

	if !report.HPAPresent() && !report.DCOPresent() {
		return
	}
	if !op.req.RemoveHiddenAreas {
		if op.req.RequireHiddenAreaClearance {
			op.failure = errors.Mark(
				errors.Newf("device %s has hidden areas and removal was not requested", op.dev.Path),
				errs.ErrRemovalFailed)
			return
		}
		op.warn("hidden areas present and left in place: HPA=%d DCO=%d sectors", report.HPASize(), report.DCOSize())
		return
	}

	// Removal reconfigures the drive; make sure it is still the same
	// device before touching it.
	if o.deps.Prober != nil {
		dev, err := device.Revalidate(o.deps.Prober, op.dev)
		if err != nil {
			op.failure = err
			return
		}
		op.dev = dev
	}

	o.setState(op, StateRemovingHidden)
	after := report

	if report.HPAPresent() {
		r, err := o.deps.Inspector.RemoveHPA(ctx, op.dev.Path)
		if err != nil {
			o.hiddenRemovalFailed(op, err)
			return
		}
		after = r
		metrics.HiddenAreasRemoved.WithLabelValues("hpa").Inc()
	}
	if after.DCOPresent() {
		r, err := o.deps.Inspector.RemoveDCO(ctx, op.dev.Path, op.req.ForceDCO)
		if err != nil {
			o.hiddenRemovalFailed(op, err)
			return
		}
		after = r
		metrics.HiddenAreasRemoved.WithLabelValues("dco").Inc()
	}
	op.hiddenAfter = &after

	// Removal grew the addressable extent; re-snapshot so the erase
	// sweeps the newly exposed sectors.
	if o.deps.Prober != nil {
		dev, err := device.Revalidate(o.deps.Prober, op.dev)
		if err != nil {
			op.failure = err
			return
		}
		op.dev = dev
	}
}

func (o *Orchestrator) hiddenRemovalFailed(op *operation, err error) {
	if op.req.RequireHiddenAreaClearance {
		op.failure = err
		return
	}
	op.warn("hidden area removal failed: %v", err)
}

// erase plans and executes the overwrite passes. A FAILED pass halts the
// operation unless the request tolerates erase failures; a cancelled
// pass aborts it.
func (o *Orchestrator) erase(ctx context.Context, op *operation) {
	if o.deps.Prober != nil {
		dev, err := device.Revalidate(o.deps.Prober, op.dev)
		if err != nil {
			op.failure = err
			return
		}
		op.dev = dev
	}

	plan, err := o.deps.Dispatcher.Plan(op.req, op.dev, o.cfg.PassTimeout())
	if err != nil {
		op.failure = err
		return
	}

	o.setState(op, StateErasing)

	// Stamp the phase onto the executor's per-chunk updates so
	// subscribers see bytes and phase through the one sink.
	var passProgress dispatch.ProgressFunc
	if op.progress != nil {
		passProgress = func(p dispatch.PassProgress) {
			p.Phase = string(StateErasing)
			op.progress(p)
		}
	}

	for _, spec := range plan.Passes {
		if err := ctx.Err(); err != nil {
			op.aborted = true
			op.warn("operation cancelled before pass %d", spec.Index)
			return
		}

		result := o.deps.Dispatcher.Execute(ctx, spec, op.dev, passProgress)
		op.passResults = append(op.passResults, result)
		metrics.BytesWritten.Add(float64(result.BytesWritten))

		switch result.Outcome {
		case dispatch.OutcomePartial:
			op.aborted = true
			return
		case dispatch.OutcomeFailed:
			if !op.req.TolerateEraseFailure {
				op.failure = errors.Mark(
					errors.Newf("pass %d failed: %s", result.Index, result.Error),
					errs.ErrEraseFailed)
				return
			}
			op.warn("pass %d failed and was tolerated: %s", result.Index, result.Error)
		}
	}
}

// verifyErasure samples the device read-back. It never runs for aborted
// operations: a half-written extent cannot earn any verdict, least of
// all a PASS.
func (o *Orchestrator) verifyErasure(ctx context.Context, op *operation) {
	o.setState(op, StateVerifying)

	expect := verify.ExpectationForMethod(op.req.Method)

	r, err := o.deps.OpenRead(op.dev.Path)
	if err != nil {
		o.recordInconclusive(op, expect, errors.Wrapf(err, "opening %s for verification", op.dev.Path))
		return
	}
	defer r.Close()

	verdict, err := o.deps.Engine.Verify(ctx, r, op.dev.SizeBytes(), expect, op.req.PreWipeDigests)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			op.aborted = true
			op.warn("verification cancelled")
			return
		}
		if errors.Is(err, errs.ErrVerificationInconclusive) {
			o.recordInconclusive(op, expect, err)
			return
		}
		op.failure = err
		return
	}
	op.verdict = verdict
	metrics.Verdicts.WithLabelValues(string(verdict.Classification)).Inc()
}

// recordInconclusive handles a device that could not be sampled at all.
// That cannot clear the device, but it is not an operation failure
// either: the certificate carries a SUSPECT verdict with no samples and
// the reason as a warning.
func (o *Orchestrator) recordInconclusive(op *operation, expect verify.Expectation, err error) {
	op.warn("verification inconclusive: %v", err)
	op.verdict = &verify.Verdict{
		Classification: verify.ClassificationSuspect,
		Expectation:    expect,
		ExtentBytes:    op.dev.SizeBytes(),
		VerifiedAt:     time.Now().UTC(),
	}
	metrics.Verdicts.WithLabelValues(string(verify.ClassificationSuspect)).Inc()
}

// certify builds, signs, chains, and stores the certificate. This is
// the one step that runs on every terminal path.
func (o *Orchestrator) certify(ctx context.Context, op *operation) (*certificate.Certificate, error) {
	o.setState(op, StateCertifying)

	// A cancelled operation still gets its certificate; certification
	// must not inherit the cancellation that aborted the erase.
	ctx = context.WithoutCancel(ctx)

	status := certificate.StatusComplete
	switch {
	case op.failure != nil:
		status = certificate.StatusFailed
	case op.aborted:
		status = certificate.StatusIncomplete
	case op.req.Verify && op.verdict == nil:
		status = certificate.StatusIncomplete
	}
	if op.failure != nil {
		op.warn("operation failed: %v", op.failure)
	}

	cert := &certificate.Certificate{
		ID:        op.id,
		Operator:  op.req.Operator,
		CreatedAt: time.Now().UTC(),
		Status:    status,
		Device:    op.dev,
		Request: certificate.RequestRecord{
			Method:               op.req.Method,
			Passes:               op.req.Passes,
			Verify:               op.req.Verify,
			RemoveHiddenAreas:    op.req.RemoveHiddenAreas,
			ForceDCO:             op.req.ForceDCO,
			TolerateEraseFailure: op.req.TolerateEraseFailure,
			SystemDiskOverride:   op.req.AllowSystemDisk,
		},
		HiddenBefore: op.hiddenBefore,
		HiddenAfter:  op.hiddenAfter,
		PassResults:  op.passResults,
		Verdict:      op.verdict,
		Warnings:     op.warnings,
	}
	if op.decision != nil {
		cert.SafetyDecisions = []safety.Decision{*op.decision}
	}

	// Detached certification: signing uses the store's chain head but a
	// store outage must not lose the signed record, so chain lookup
	// failures degrade to an unchained certificate with a warning.
	prior := ""
	if o.deps.Store != nil {
		h, err := o.deps.Store.LatestHash(ctx, op.dev.Identity())
		if err != nil {
			cert.Warnings = append(cert.Warnings, errors.Wrap(err, "chain head lookup failed").Error())
		} else {
			prior = h
		}
	}

	if err := o.deps.Builder.Sign(cert, prior); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "signing certificate for operation %s", op.id), errs.ErrSigningFailed)
	}

	if o.deps.Store != nil {
		if err := o.deps.Store.Put(ctx, cert); err != nil {
			return cert, errors.Wrapf(err, "storing certificate %s", cert.ID)
		}
	}
	return cert, nil
}
