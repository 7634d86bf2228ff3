// Package device models the storage targets the engine operates on. A
// Device is an immutable snapshot taken at operation start; destructive
// steps re-validate it because a target can be unplugged mid-operation.
package device

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/JustRK-07/SIH-disk-wipeout/internal/errs"
)

// MediaClass describes the kind of storage medium.
type MediaClass string

const (
	ClassHDD       MediaClass = "hdd"
	ClassSSD       MediaClass = "ssd"
	ClassNVMe      MediaClass = "nvme"
	ClassRemovable MediaClass = "removable"
	ClassUnknown   MediaClass = "unknown"
)

// DefaultSectorSize is assumed when the platform does not report one.
const DefaultSectorSize = 512

// Device is a point-in-time snapshot of a storage target.
type Device struct {
	Path         string     `json:"path"`
	Sectors      uint64     `json:"sectors"`
	SectorSize   uint32     `json:"sector_size"`
	Class        MediaClass `json:"class"`
	Model        string     `json:"model"`
	Serial       string     `json:"serial"`
	IsSystemDisk bool       `json:"is_system_disk"`
	SnapshotAt   time.Time  `json:"snapshot_at"`
}

// SizeBytes returns the addressable capacity of the snapshot.
func (d Device) SizeBytes() uint64 {
	return d.Sectors * uint64(d.SectorSize)
}

// Identity returns a stable identifier for chaining certificates across
// operations: serial when known, device path otherwise.
func (d Device) Identity() string {
	if d.Serial != "" {
		return d.Serial
	}
	return d.Path
}

// Prober re-snapshots devices. The concrete implementation queries the
// platform; tests supply fakes.
type Prober interface {
	Snapshot(path string) (Device, error)
}

// Revalidate re-probes the device and checks it is still the same target.
// A missing device or one that changed identity/shrank fails the check.
func Revalidate(p Prober, orig Device) (Device, error) {
	cur, err := p.Snapshot(orig.Path)
	if err != nil {
		return Device{}, errors.Mark(errors.Wrapf(err, "revalidate %s", orig.Path), errs.ErrDeviceGone)
	}
	if orig.Serial != "" && cur.Serial != orig.Serial {
		return Device{}, errors.Mark(
			errors.Newf("device %s changed identity: serial %q became %q", orig.Path, orig.Serial, cur.Serial),
			errs.ErrDeviceGone)
	}
	if cur.Sectors < orig.Sectors {
		return Device{}, errors.Mark(
			errors.Newf("device %s shrank from %d to %d sectors", orig.Path, orig.Sectors, cur.Sectors),
			errs.ErrDeviceGone)
	}
	return cur, nil
}
