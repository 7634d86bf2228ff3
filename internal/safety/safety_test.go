package safety

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustRK-07/SIH-disk-wipeout/internal/config"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/device"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/dispatch"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/errs"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/logging"
)

func guard(cfg config.SafetyConfig) *Guard {
	return NewGuard(cfg, logging.Nop())
}

func request(dev device.Device) *dispatch.WipeRequest {
	return &dispatch.WipeRequest{Device: dev, Method: dispatch.MethodRandom, Passes: 1, ConfirmToken: "CONFIRM"}
}

func TestClassify(t *testing.T) {
	g := guard(config.SafetyConfig{})

	assert.Equal(t, ClassificationSystemDisk, g.Classify(device.Device{IsSystemDisk: true, Class: device.ClassRemovable}))
	assert.Equal(t, ClassificationRemovableOK, g.Classify(device.Device{Class: device.ClassRemovable}))
	assert.Equal(t, ClassificationFixedOK, g.Classify(device.Device{Class: device.ClassSSD}))
}

func TestDenyListWins(t *testing.T) {
	g := guard(config.SafetyConfig{
		DeniedDevices:  []string{"/dev/sda"},
		AllowedDevices: []string{"/dev/sda"},
	})
	dev := device.Device{Path: "/dev/sda", Class: device.ClassSSD}

	dec, err := g.Authorize(request(dev), g.Classify(dev))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrAuthorizationDenied))
	require.NotNil(t, dec)
	assert.False(t, dec.Authorized)
	assert.NotEmpty(t, dec.Reason)
}

func TestConfirmationTokenRequired(t *testing.T) {
	g := guard(config.SafetyConfig{RequireConfirmation: true})
	dev := device.Device{Path: "/dev/sdb", Class: device.ClassSSD}

	req := request(dev)
	req.ConfirmToken = ""
	_, err := g.Authorize(req, g.Classify(dev))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrAuthorizationDenied))

	req.ConfirmToken = "CONFIRM"
	dec, err := g.Authorize(req, g.Classify(dev))
	require.NoError(t, err)
	assert.True(t, dec.Authorized)
}

func TestAllowListSkipsConfirmation(t *testing.T) {
	g := guard(config.SafetyConfig{
		RequireConfirmation: true,
		AllowedDevices:      []string{"SN-LAB-42"},
	})
	dev := device.Device{Path: "/dev/sdc", Serial: "SN-LAB-42", Class: device.ClassRemovable}

	req := request(dev)
	req.ConfirmToken = ""
	dec, err := g.Authorize(req, g.Classify(dev))
	require.NoError(t, err)
	assert.True(t, dec.Authorized)
}

func TestSystemDiskDeniedWithoutOverride(t *testing.T) {
	g := guard(config.SafetyConfig{RequireConfirmation: true})
	dev := device.Device{Path: "/dev/sda", IsSystemDisk: true, Class: device.ClassSSD}

	dec, err := g.Authorize(request(dev), g.Classify(dev))
	require.Error(t, err)
	assert.False(t, dec.Authorized)
	assert.False(t, dec.OverrideAttempted)
}

func TestSystemDiskOverrideNeedsDistinctSecondToken(t *testing.T) {
	g := guard(config.SafetyConfig{RequireConfirmation: true})
	dev := device.Device{Path: "/dev/sda", IsSystemDisk: true, Class: device.ClassSSD}

	req := request(dev)
	req.AllowSystemDisk = true

	// Missing second token.
	dec, err := g.Authorize(req, g.Classify(dev))
	require.Error(t, err)
	assert.True(t, dec.OverrideAttempted)
	assert.False(t, dec.OverrideGranted)

	// Second token identical to the first.
	req.OverrideToken = req.ConfirmToken
	_, err = g.Authorize(req, g.Classify(dev))
	require.Error(t, err)

	// Distinct second token.
	req.OverrideToken = "REALLY WIPE /dev/sda"
	dec, err = g.Authorize(req, g.Classify(dev))
	require.NoError(t, err)
	assert.True(t, dec.Authorized)
	assert.True(t, dec.OverrideGranted)
}

func TestAllowListNeverDowngradesSystemDisk(t *testing.T) {
	g := guard(config.SafetyConfig{
		RequireConfirmation: true,
		AllowedDevices:      []string{"/dev/sda"},
	})
	dev := device.Device{Path: "/dev/sda", IsSystemDisk: true, Class: device.ClassSSD}

	assert.Equal(t, ClassificationSystemDisk, g.Classify(dev))
	_, err := g.Authorize(request(dev), g.Classify(dev))
	require.Error(t, err)
}
