package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustRK-07/SIH-disk-wipeout/internal/certificate"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/device"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/dispatch"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/verify"
)

func sampleCert() *certificate.Certificate {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &certificate.Certificate{
		ID:        "op-1",
		Issuer:    "SIH Disk Wipeout",
		CreatedAt: now,
		Status:    certificate.StatusComplete,
		Device: device.Device{
			Path:       "/dev/sdb",
			Sectors:    1000,
			SectorSize: 512,
			Class:      device.ClassHDD,
			Model:      "TESTDISK",
			Serial:     "SN1",
		},
		Request: certificate.RequestRecord{Method: dispatch.MethodRandom, Passes: 1, Verify: true},
		PassResults: []dispatch.PassResult{{
			Index: 0, Method: dispatch.MethodRandom, Pattern: dispatch.PatternRandom,
			BytesWritten: 512000, StartTime: now, EndTime: now.Add(time.Minute),
			Outcome: dispatch.OutcomeSuccess,
		}},
		Verdict: &verify.Verdict{
			Classification:   verify.ClassificationPass,
			Expectation:      verify.ExpectRandom,
			MeanEntropy:      7.99,
			MinEntropy:       7.95,
			EntropyThreshold: 7.5,
		},
		ContentHash: "abc123",
		Scheme:      certificate.SchemeHMACSHA256,
		Signature:   "def456",
	}
}

func TestRenderTextCoversAllSections(t *testing.T) {
	text := RenderText(sampleCert())

	assert.Contains(t, text, "NIST SP 800-88")
	assert.Contains(t, text, "/dev/sdb")
	assert.Contains(t, text, "SN1")
	assert.Contains(t, text, "PASS")
	assert.Contains(t, text, "abc123")
	assert.Contains(t, text, "hmac-sha256")
	assert.Contains(t, text, "(none)")
}

func TestWriteJSONRoundTrips(t *testing.T) {
	dir := t.TempDir()
	cert := sampleCert()

	path, err := WriteJSON(cert, dir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded certificate.Certificate
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, cert.ID, loaded.ID)
	assert.Equal(t, cert.ContentHash, loaded.ContentHash)
}

func TestWriteErrorsSurface(t *testing.T) {
	// A regular file where the report directory should be makes MkdirAll
	// fail; the caller must see the error, not a silent missing report.
	blocked := filepath.Join(t.TempDir(), "reports")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o644))

	_, err := WriteJSON(sampleCert(), blocked)
	assert.Error(t, err)
	_, err = WriteText(sampleCert(), blocked)
	assert.Error(t, err)
}

func TestWriteTextProducesFile(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteText(sampleCert(), dir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "MEDIA SANITIZATION REPORT")
	assert.Contains(t, path, "erasure_dev_sdb_20250601_120000.txt")
}
