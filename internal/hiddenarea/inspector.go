package hiddenarea

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/JustRK-07/SIH-disk-wipeout/internal/errs"
)

// PlatformSource issues the vendor-specific commands that read and
// reconfigure sector counts. Implementations wrap hdparm-class ioctls on
// Linux; tests substitute fakes.
type PlatformSource interface {
	// ReadSectorCounts returns (native, current, physical) max sector
	// counts for the device at path.
	ReadSectorCounts(ctx context.Context, path string) (native, current, physical uint64, err error)
	// ClearHPA restores the current max to the native max.
	ClearHPA(ctx context.Context, path string) error
	// ClearDCO restores factory capacity. Destructive to the overlay
	// configuration, which is why callers gate it behind a force flag.
	ClearDCO(ctx context.Context, path string) error
}

// Inspector detects and removes hidden areas through a PlatformSource.
type Inspector struct {
	source PlatformSource
	logger zerolog.Logger
}

// NewInspector builds an Inspector over a platform binding.
func NewInspector(source PlatformSource, logger zerolog.Logger) *Inspector {
	return &Inspector{
		source: source,
		logger: logger.With().Str("component", "hidden-area-inspector").Logger(),
	}
}

// Detect reads the sector counts and builds a validated Report. A flaky
// read is retried once; a second failure surfaces as ErrDetectionFailed
// so the orchestrator can refuse to certify a clean device.
func (in *Inspector) Detect(ctx context.Context, path string) (Report, error) {
	var native, current, physical uint64

	op := func() error {
		var err error
		native, current, physical, err = in.source.ReadSectorCounts(ctx, path)
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(500*time.Millisecond), 1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return Report{}, errors.Mark(
			errors.Wrapf(err, "reading sector counts for %s", path),
			errs.ErrDetectionFailed)
	}

	report, err := NewReport(native, current, physical)
	if err != nil {
		return Report{}, err
	}

	in.logger.Info().
		Str("device", path).
		Uint64("native", native).
		Uint64("current", current).
		Uint64("physical", physical).
		Bool("hpa", report.HPAPresent()).
		Bool("dco", report.DCOPresent()).
		Msg("hidden area detection complete")
	return report, nil
}

// RemoveHPA clears a detected HPA and re-detects to confirm the drive
// actually did it. The returned Report is the post-removal state.
func (in *Inspector) RemoveHPA(ctx context.Context, path string) (Report, error) {
	if err := in.source.ClearHPA(ctx, path); err != nil {
		return Report{}, errors.Mark(errors.Wrapf(err, "clearing HPA on %s", path), errs.ErrRemovalFailed)
	}

	// Trust but verify: firmware can accept the command and quietly keep
	// the area in place.
	report, err := in.Detect(ctx, path)
	if err != nil {
		return Report{}, errors.Mark(errors.Wrapf(err, "re-detecting after HPA removal on %s", path), errs.ErrRemovalFailed)
	}
	if report.HPAPresent() {
		return report, errors.Mark(
			errors.Newf("HPA still present on %s after removal (%d sectors hidden)", path, report.HPASize()),
			errs.ErrRemovalFailed)
	}

	in.logger.Info().Str("device", path).Msg("HPA removed")
	return report, nil
}

// RemoveDCO clears a detected DCO. DCO restore can alter reported drive
// features beyond capacity, so it only runs with force set.
func (in *Inspector) RemoveDCO(ctx context.Context, path string, force bool) (Report, error) {
	if !force {
		return Report{}, errors.Mark(
			errors.Newf("DCO removal on %s requires the force flag", path),
			errs.ErrRemovalFailed)
	}

	if err := in.source.ClearDCO(ctx, path); err != nil {
		return Report{}, errors.Mark(errors.Wrapf(err, "clearing DCO on %s", path), errs.ErrRemovalFailed)
	}

	report, err := in.Detect(ctx, path)
	if err != nil {
		return Report{}, errors.Mark(errors.Wrapf(err, "re-detecting after DCO removal on %s", path), errs.ErrRemovalFailed)
	}
	if report.DCOPresent() {
		return report, errors.Mark(
			errors.Newf("DCO still present on %s after removal (%d sectors hidden)", path, report.DCOSize()),
			errs.ErrRemovalFailed)
	}

	in.logger.Info().Str("device", path).Msg("DCO removed")
	return report, nil
}
