// Package safety gates every destructive call. The guard only classifies
// and authorizes; it never erases, and every decision it takes is an
// auditable record that ends up in the certificate.
package safety

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/JustRK-07/SIH-disk-wipeout/internal/config"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/device"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/dispatch"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/errs"
)

// Classification of a target device.
type Classification string

const (
	ClassificationSystemDisk  Classification = "SYSTEM_DISK"
	ClassificationRemovableOK Classification = "REMOVABLE_OK"
	ClassificationFixedOK     Classification = "FIXED_OK"
)

// Decision is the auditable record of one authorization check. Override
// attempts are recorded even when erasure ultimately does not proceed.
type Decision struct {
	ID                string         `json:"id"`
	Time              time.Time      `json:"time"`
	DevicePath        string         `json:"device_path"`
	Classification    Classification `json:"classification"`
	Authorized        bool           `json:"authorized"`
	Reason            string         `json:"reason,omitempty"`
	OverrideAttempted bool           `json:"override_attempted"`
	OverrideGranted   bool           `json:"override_granted"`
}

// Guard classifies devices and authorizes wipe requests.
type Guard struct {
	cfg    config.SafetyConfig
	logger zerolog.Logger
}

// NewGuard builds a Guard from policy configuration.
func NewGuard(cfg config.SafetyConfig, logger zerolog.Logger) *Guard {
	return &Guard{
		cfg:    cfg,
		logger: logger.With().Str("component", "safety-guard").Logger(),
	}
}

// Classify buckets a device for authorization. The allow list never
// downgrades a system disk: it stays SYSTEM_DISK no matter what the
// operator registered.
func (g *Guard) Classify(d device.Device) Classification {
	if d.IsSystemDisk {
		return ClassificationSystemDisk
	}
	if d.Class == device.ClassRemovable {
		return ClassificationRemovableOK
	}
	return ClassificationFixedOK
}

// Authorize decides whether the request may proceed. The returned
// Decision is always non-nil so denials stay auditable; the error is
// marked ErrAuthorizationDenied when erasure must not start.
func (g *Guard) Authorize(req *dispatch.WipeRequest, class Classification) (*Decision, error) {
	dec := &Decision{
		ID:             uuid.New().String(),
		Time:           time.Now().UTC(),
		DevicePath:     req.Device.Path,
		Classification: class,
	}

	if g.listed(g.cfg.DeniedDevices, req.Device) {
		return g.deny(dec, "device is on the operator deny list")
	}

	// Pre-registered known-safe devices skip the interactive confirmation
	// requirement; everything else about the policy still applies.
	preRegistered := class != ClassificationSystemDisk && g.listed(g.cfg.AllowedDevices, req.Device)

	if g.cfg.RequireConfirmation && !preRegistered && req.ConfirmToken == "" {
		return g.deny(dec, "confirmation token required")
	}

	if class == ClassificationSystemDisk {
		dec.OverrideAttempted = req.AllowSystemDisk
		if !req.AllowSystemDisk {
			return g.deny(dec, "target is a system disk")
		}
		// Two-factor confirmation: the override token must be present and
		// distinct from the first confirmation token.
		if req.OverrideToken == "" {
			return g.deny(dec, "system disk override requires a second confirmation token")
		}
		if req.OverrideToken == req.ConfirmToken {
			return g.deny(dec, "system disk override token must differ from the confirmation token")
		}
		dec.OverrideGranted = true
		g.logger.Warn().
			Str("device", req.Device.Path).
			Str("decision", dec.ID).
			Msg("system disk override granted")
	}

	dec.Authorized = true
	g.logger.Info().
		Str("device", req.Device.Path).
		Str("classification", string(class)).
		Str("decision", dec.ID).
		Msg("wipe authorized")
	return dec, nil
}

func (g *Guard) deny(dec *Decision, reason string) (*Decision, error) {
	dec.Authorized = false
	dec.Reason = reason
	g.logger.Warn().
		Str("device", dec.DevicePath).
		Str("classification", string(dec.Classification)).
		Str("reason", reason).
		Msg("wipe denied")
	return dec, errors.Mark(errors.Newf("wipe of %s denied: %s", dec.DevicePath, reason), errs.ErrAuthorizationDenied)
}

func (g *Guard) listed(list []string, d device.Device) bool {
	for _, entry := range list {
		if strings.EqualFold(entry, d.Path) || (d.Serial != "" && strings.EqualFold(entry, d.Serial)) {
			return true
		}
	}
	return false
}
