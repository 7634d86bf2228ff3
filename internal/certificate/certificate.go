// Package certificate builds, signs, and persists erasure certificates.
// A certificate is the tamper-evident record of one wipe operation:
// exactly one is produced per run, whatever the outcome.
package certificate

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"

	"github.com/JustRK-07/SIH-disk-wipeout/internal/config"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/device"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/dispatch"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/errs"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/hiddenarea"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/safety"
	"github.com/JustRK-07/SIH-disk-wipeout/internal/verify"
)

// Status is the terminal state the certificate attests to.
type Status string

const (
	StatusComplete   Status = "COMPLETE"
	StatusIncomplete Status = "INCOMPLETE"
	StatusFailed     Status = "FAILED"
)

// Signing schemes. The scheme is part of the signed record so a reader
// knows how to check it.
const (
	SchemeEd25519    = "ed25519"
	SchemeHMACSHA256 = "hmac-sha256"
)

// Tool identity embedded in every certificate.
const (
	ToolName    = "SIH Disk Wipeout"
	ToolVersion = "1.0.0"
)

// RequestRecord is the sanitized copy of the wipe request embedded in
// the certificate. Confirmation tokens never leave the process.
type RequestRecord struct {
	Method               dispatch.Method `json:"method"`
	Passes               int             `json:"passes"`
	Verify               bool            `json:"verify"`
	RemoveHiddenAreas    bool            `json:"remove_hidden_areas"`
	ForceDCO             bool            `json:"force_dco"`
	TolerateEraseFailure bool            `json:"tolerate_erase_failure"`
	SystemDiskOverride   bool            `json:"system_disk_override"`
}

// Certificate is the full erasure record. ContentHash covers every field
// except itself, Signature, and PublicKey; PriorHash chains it to the
// previous certificate for the same device.
type Certificate struct {
	ID          string    `json:"id"`
	Issuer      string    `json:"issuer"`
	Tool        string    `json:"tool"`
	ToolVersion string    `json:"tool_version"`
	Operator    string    `json:"operator,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Status      Status    `json:"status"`

	Device  device.Device `json:"device"`
	Request RequestRecord `json:"request"`

	SafetyDecisions []safety.Decision     `json:"safety_decisions"`
	HiddenBefore    *hiddenarea.Report    `json:"hidden_area_before,omitempty"`
	HiddenAfter     *hiddenarea.Report    `json:"hidden_area_after,omitempty"`
	PassResults     []dispatch.PassResult `json:"pass_results"`
	Verdict         *verify.Verdict       `json:"verdict,omitempty"`
	Warnings        []string              `json:"warnings,omitempty"`

	PriorHash   string `json:"prior_hash"`
	ContentHash string `json:"content_hash"`
	Scheme      string `json:"scheme"`
	Signature   string `json:"signature"`
	PublicKey   string `json:"public_key,omitempty"`
}

// Builder signs certificates. With a signing key file configured it uses
// Ed25519; otherwise it falls back to HMAC-SHA256 over a shared secret.
type Builder struct {
	issuer  string
	scheme  string
	private ed25519.PrivateKey
	public  ed25519.PublicKey
	secret  []byte
	encMode cbor.EncMode
	logger  zerolog.Logger
}

// NewBuilder loads signing material per configuration. An empty HMAC
// secret gets a random per-process one, which still tamper-protects the
// certificate in storage but cannot be re-verified after restart; the
// warning makes that trade explicit.
func NewBuilder(cfg config.CertificateConfig, logger zerolog.Logger) (*Builder, error) {
	// Deterministic encoding: map keys sorted, shortest-form integers.
	// Hashing anything else would make signatures depend on encoder mood.
	encMode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, errors.Wrap(err, "building canonical CBOR encoder")
	}

	b := &Builder{
		issuer:  cfg.Issuer,
		encMode: encMode,
		logger:  logger.With().Str("component", "certificate-builder").Logger(),
	}

	if cfg.SigningKey != "" {
		seed, err := os.ReadFile(cfg.SigningKey)
		if err != nil {
			return nil, errors.Wrapf(err, "reading signing key %s", cfg.SigningKey)
		}
		if len(seed) != ed25519.SeedSize {
			return nil, errors.Newf("signing key %s must be a raw %d-byte ed25519 seed, got %d bytes",
				cfg.SigningKey, ed25519.SeedSize, len(seed))
		}
		b.private = ed25519.NewKeyFromSeed(seed)
		b.public = b.private.Public().(ed25519.PublicKey)
		b.scheme = SchemeEd25519
		return b, nil
	}

	b.scheme = SchemeHMACSHA256
	if cfg.HMACSecret != "" {
		b.secret = []byte(cfg.HMACSecret)
		return b, nil
	}

	b.secret = make([]byte, 32)
	if _, err := rand.Read(b.secret); err != nil {
		return nil, errors.Wrap(err, "generating ephemeral HMAC secret")
	}
	b.logger.Warn().Msg("no signing key or HMAC secret configured; certificates signed with an ephemeral secret cannot be verified after restart")
	return b, nil
}

// Scheme returns the active signing scheme.
func (b *Builder) Scheme() string { return b.scheme }

// Sign finalizes the certificate: chains it to priorHash, computes the
// canonical content hash, and signs it. Mutates cert in place.
func (b *Builder) Sign(cert *Certificate, priorHash string) error {
	cert.Issuer = b.issuer
	cert.Tool = ToolName
	cert.ToolVersion = ToolVersion
	cert.PriorHash = priorHash
	cert.Scheme = b.scheme

	digest, err := b.contentHash(cert)
	if err != nil {
		return errors.Mark(err, errs.ErrSigningFailed)
	}
	cert.ContentHash = hex.EncodeToString(digest)

	switch b.scheme {
	case SchemeEd25519:
		cert.Signature = hex.EncodeToString(ed25519.Sign(b.private, digest))
		cert.PublicKey = hex.EncodeToString(b.public)
	case SchemeHMACSHA256:
		mac := hmac.New(sha256.New, b.secret)
		mac.Write(digest)
		cert.Signature = hex.EncodeToString(mac.Sum(nil))
		cert.PublicKey = ""
	default:
		return errors.Mark(errors.Newf("unknown signing scheme %q", b.scheme), errs.ErrSigningFailed)
	}

	b.logger.Info().
		Str("certificate", cert.ID).
		Str("device", cert.Device.Path).
		Str("status", string(cert.Status)).
		Str("scheme", cert.Scheme).
		Msg("certificate signed")
	return nil
}

// Verify recomputes the content hash and checks the signature. Ed25519
// certificates carry their public key and verify standalone; HMAC ones
// verify only against this builder's secret.
func (b *Builder) Verify(cert *Certificate) error {
	digest, err := b.contentHash(cert)
	if err != nil {
		return err
	}
	if hex.EncodeToString(digest) != cert.ContentHash {
		return errors.Newf("certificate %s content hash mismatch", cert.ID)
	}

	sig, err := hex.DecodeString(cert.Signature)
	if err != nil {
		return errors.Wrapf(err, "decoding signature of certificate %s", cert.ID)
	}

	switch cert.Scheme {
	case SchemeEd25519:
		pub, err := hex.DecodeString(cert.PublicKey)
		if err != nil {
			return errors.Wrapf(err, "decoding public key of certificate %s", cert.ID)
		}
		if len(pub) != ed25519.PublicKeySize || !ed25519.Verify(ed25519.PublicKey(pub), digest, sig) {
			return errors.Newf("certificate %s signature invalid", cert.ID)
		}
	case SchemeHMACSHA256:
		mac := hmac.New(sha256.New, b.secret)
		mac.Write(digest)
		if !hmac.Equal(mac.Sum(nil), sig) {
			return errors.Newf("certificate %s HMAC invalid", cert.ID)
		}
	default:
		return errors.Newf("certificate %s has unknown scheme %q", cert.ID, cert.Scheme)
	}
	return nil
}

// contentHash canonically encodes the certificate with the hash and
// signature fields cleared and returns its SHA-256 digest.
func (b *Builder) contentHash(cert *Certificate) ([]byte, error) {
	body := *cert
	body.ContentHash = ""
	body.Signature = ""
	body.PublicKey = ""

	encoded, err := b.encMode.Marshal(&body)
	if err != nil {
		return nil, errors.Wrap(err, "canonical encoding of certificate")
	}
	sum := sha256.Sum256(encoded)
	return sum[:], nil
}
