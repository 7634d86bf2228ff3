package certificate

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustRK-07/SIH-disk-wipeout/internal/config"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/device"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/dispatch"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/logging"
)

func testCertificate(serial string) *Certificate {
	return &Certificate{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Status:    StatusComplete,
		Device: device.Device{
			Path:       "/dev/sdz",
			Sectors:    1000000,
			SectorSize: 512,
			Class:      device.ClassSSD,
			Model:      "TESTDISK 1000",
			Serial:     serial,
		},
		Request: RequestRecord{Method: dispatch.MethodRandom, Passes: 1, Verify: true},
		PassResults: []dispatch.PassResult{{
			Index:        0,
			Method:       dispatch.MethodRandom,
			Pattern:      dispatch.PatternRandom,
			BytesWritten: 512000000,
			Outcome:      dispatch.OutcomeSuccess,
		}},
	}
}

func hmacBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder(config.CertificateConfig{Issuer: "test", HMACSecret: "shared-test-secret"}, logging.Nop())
	require.NoError(t, err)
	return b
}

func TestHMACSignAndVerify(t *testing.T) {
	b := hmacBuilder(t)
	cert := testCertificate("SN123")

	require.NoError(t, b.Sign(cert, ""))
	assert.Equal(t, SchemeHMACSHA256, cert.Scheme)
	assert.NotEmpty(t, cert.ContentHash)
	assert.NotEmpty(t, cert.Signature)
	assert.Empty(t, cert.PublicKey)

	require.NoError(t, b.Verify(cert))
}

func TestEd25519SignAndVerify(t *testing.T) {
	seed := make([]byte, 32)
	_, err := rand.Read(seed)
	require.NoError(t, err)
	keyPath := filepath.Join(t.TempDir(), "signing.key")
	require.NoError(t, os.WriteFile(keyPath, seed, 0o600))

	b, err := NewBuilder(config.CertificateConfig{Issuer: "test", SigningKey: keyPath}, logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, SchemeEd25519, b.Scheme())

	cert := testCertificate("SN123")
	require.NoError(t, b.Sign(cert, "deadbeef"))
	assert.Equal(t, "deadbeef", cert.PriorHash)
	assert.NotEmpty(t, cert.PublicKey)
	require.NoError(t, b.Verify(cert))

	// Ed25519 certificates verify standalone, through a builder that
	// never saw the private key.
	other := hmacBuilder(t)
	require.NoError(t, other.Verify(cert))
}

func TestTamperedCertificateFailsVerification(t *testing.T) {
	b := hmacBuilder(t)
	cert := testCertificate("SN123")
	require.NoError(t, b.Sign(cert, ""))

	cert.PassResults[0].BytesWritten++
	assert.Error(t, b.Verify(cert))
}

func TestTamperedVerdictFieldFailsVerification(t *testing.T) {
	b := hmacBuilder(t)
	cert := testCertificate("SN123")
	require.NoError(t, b.Sign(cert, ""))

	cert.Status = StatusIncomplete
	assert.Error(t, b.Verify(cert))
}

func TestStoreRoundTripAndChain(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "certs.db"), logging.Nop())
	require.NoError(t, err)
	defer store.Close()

	b := hmacBuilder(t)
	ctx := context.Background()

	prior, err := store.LatestHash(ctx, "SN123")
	require.NoError(t, err)
	assert.Empty(t, prior)

	first := testCertificate("SN123")
	require.NoError(t, b.Sign(first, prior))
	require.NoError(t, store.Put(ctx, first))

	prior, err = store.LatestHash(ctx, "SN123")
	require.NoError(t, err)
	assert.Equal(t, first.ContentHash, prior)

	second := testCertificate("SN123")
	second.CreatedAt = first.CreatedAt.Add(time.Minute)
	require.NoError(t, b.Sign(second, prior))
	require.NoError(t, store.Put(ctx, second))

	loaded, err := store.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ContentHash, loaded.PriorHash)
	require.NoError(t, b.Verify(loaded))

	entries, err := store.List(ctx, "SN123", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)

	require.NoError(t, store.VerifyChain(ctx, "SN123"))
}

func TestStoreRejectsUnsignedCertificate(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "certs.db"), logging.Nop())
	require.NoError(t, err)
	defer store.Close()

	err = store.Put(context.Background(), testCertificate("SN123"))
	require.Error(t, err)
}

func TestChainBreakDetected(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "certs.db"), logging.Nop())
	require.NoError(t, err)
	defer store.Close()

	b := hmacBuilder(t)
	ctx := context.Background()

	first := testCertificate("SN123")
	require.NoError(t, b.Sign(first, ""))
	require.NoError(t, store.Put(ctx, first))

	// A certificate chained from a fabricated hash must be flagged.
	rogue := testCertificate("SN123")
	rogue.CreatedAt = first.CreatedAt.Add(time.Minute)
	require.NoError(t, b.Sign(rogue, "0000000000000000"))
	require.NoError(t, store.Put(ctx, rogue))

	assert.Error(t, store.VerifyChain(ctx, "SN123"))
}
