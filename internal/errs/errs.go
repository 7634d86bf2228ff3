// Package errs defines the error taxonomy shared across the wipe engine.
// Callers classify failures with errors.Is against these sentinels; the
// concrete errors carry wrapped detail.
package errs

import "github.com/cockroachdb/errors"

var (
	// ErrAuthorizationDenied marks a SafetyGuard refusal. Never retried.
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrDetectionFailed marks a hidden-area query error. Retried once by
	// the inspector, then treated as "unknown", not "absent".
	ErrDetectionFailed = errors.New("hidden area detection failed")

	// ErrRemovalFailed marks a failed HPA/DCO removal, including the case
	// where the tool reported success but re-detection still sees the area.
	ErrRemovalFailed = errors.New("hidden area removal failed")

	// ErrEraseFailed marks a pass-level failure. Halts the operation unless
	// the request opted into best-effort wiping.
	ErrEraseFailed = errors.New("erase pass failed")

	// ErrCancelled marks user-initiated cancellation. Not a fault: the
	// operation still produces an INCOMPLETE certificate.
	ErrCancelled = errors.New("operation cancelled")

	// ErrVerificationInconclusive marks sampling that could not read the
	// device post-wipe. The verdict is forced to SUSPECT, never PASS.
	ErrVerificationInconclusive = errors.New("verification inconclusive")

	// ErrSigningFailed marks a certificate signing failure. The operation
	// outcome is still returned but cannot be persisted as a trusted record.
	ErrSigningFailed = errors.New("certificate signing failed")

	// ErrDeviceBusy is returned when another wipe already holds the
	// exclusive per-device lock.
	ErrDeviceBusy = errors.New("device busy")

	// ErrDeviceGone is returned when re-validation finds the target device
	// removed or changed mid-operation.
	ErrDeviceGone = errors.New("device no longer present")
)
