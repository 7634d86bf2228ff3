// Package hiddenarea detects and removes HPA/DCO regions, the vendor
// mechanisms that hide capacity from the OS and could carry data through
// a naive wipe.
package hiddenarea

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/JustRK-07/SIH-disk-wipeout/internal/errs"
)

// Report holds the three raw sector counts and derives HPA/DCO state.
// Invariant: current <= native <= physical. A report violating it is
// rejected at construction, never silently clamped.
type Report struct {
	NativeMaxSectors  uint64    `json:"native_max_sectors"`
	CurrentMaxSectors uint64    `json:"current_max_sectors"`
	PhysicalSectors   uint64    `json:"physical_sectors"`
	DetectedAt        time.Time `json:"detected_at"`
}

// NewReport validates the sector counts and builds a Report.
func NewReport(native, current, physical uint64) (Report, error) {
	if current > native {
		return Report{}, errors.Mark(
			errors.Newf("invalid sector counts: current %d > native %d", current, native),
			errs.ErrDetectionFailed)
	}
	if native > physical {
		return Report{}, errors.Mark(
			errors.Newf("invalid sector counts: native %d > physical %d", native, physical),
			errs.ErrDetectionFailed)
	}
	return Report{
		NativeMaxSectors:  native,
		CurrentMaxSectors: current,
		PhysicalSectors:   physical,
		DetectedAt:        time.Now().UTC(),
	}, nil
}

// HPAPresent reports whether a Host Protected Area hides sectors.
func (r Report) HPAPresent() bool { return r.NativeMaxSectors > r.CurrentMaxSectors }

// HPASize is the number of sectors hidden by the HPA.
func (r Report) HPASize() uint64 { return r.NativeMaxSectors - r.CurrentMaxSectors }

// DCOPresent reports whether a Device Configuration Overlay restricts
// capacity below the physical sector count.
func (r Report) DCOPresent() bool { return r.PhysicalSectors > r.NativeMaxSectors }

// DCOSize is the number of sectors hidden by the DCO.
func (r Report) DCOSize() uint64 { return r.PhysicalSectors - r.NativeMaxSectors }
