package device

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustRK-07/SIH-disk-wipeout/internal/errs"
)

type stubProber struct {
	dev Device
	err error
}

func (s *stubProber) Snapshot(string) (Device, error) { return s.dev, s.err }

func TestSizeBytes(t *testing.T) {
	d := Device{Sectors: 1000, SectorSize: 4096}
	assert.Equal(t, uint64(4096000), d.SizeBytes())
}

func TestIdentityPrefersSerial(t *testing.T) {
	assert.Equal(t, "SN1", Device{Path: "/dev/sda", Serial: "SN1"}.Identity())
	assert.Equal(t, "/dev/sda", Device{Path: "/dev/sda"}.Identity())
}

func TestRevalidateAcceptsSameDevice(t *testing.T) {
	orig := Device{Path: "/dev/sdb", Serial: "SN1", Sectors: 1000, SectorSize: 512}
	cur, err := Revalidate(&stubProber{dev: orig}, orig)
	require.NoError(t, err)
	assert.Equal(t, orig.Serial, cur.Serial)
}

func TestRevalidateDetectsMissingDevice(t *testing.T) {
	orig := Device{Path: "/dev/sdb", Serial: "SN1", Sectors: 1000}
	_, err := Revalidate(&stubProber{err: errors.New("no such device")}, orig)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrDeviceGone))
}

func TestRevalidateDetectsSwappedDevice(t *testing.T) {
	orig := Device{Path: "/dev/sdb", Serial: "SN1", Sectors: 1000}
	swapped := Device{Path: "/dev/sdb", Serial: "SN2", Sectors: 1000}

	_, err := Revalidate(&stubProber{dev: swapped}, orig)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrDeviceGone))
}

func TestRevalidateDetectsShrunkDevice(t *testing.T) {
	orig := Device{Path: "/dev/sdb", Serial: "SN1", Sectors: 1000}
	shrunk := Device{Path: "/dev/sdb", Serial: "SN1", Sectors: 900}

	_, err := Revalidate(&stubProber{dev: shrunk}, orig)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrDeviceGone))
}

func TestRevalidateAcceptsGrownDevice(t *testing.T) {
	// Hidden area removal legitimately grows the addressable extent.
	orig := Device{Path: "/dev/sdb", Serial: "SN1", Sectors: 800}
	grown := Device{Path: "/dev/sdb", Serial: "SN1", Sectors: 1000}

	cur, err := Revalidate(&stubProber{dev: grown}, orig)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), cur.Sectors)
}
