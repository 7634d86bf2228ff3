package certificate

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Store is the append-only certificate ledger backed by SQLite. Rows are
// inserted and read, never updated or deleted; the hash chain makes any
// out-of-band tampering visible.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS certificates (
	id              TEXT PRIMARY KEY,
	device_identity TEXT NOT NULL,
	device_path     TEXT NOT NULL,
	status          TEXT NOT NULL,
	content_hash    TEXT NOT NULL,
	prior_hash      TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL,
	payload         BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_certificates_device
	ON certificates(device_identity, created_at);
`

// OpenStore opens (creating if needed) the certificate database at path.
func OpenStore(path string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating certificate store directory for %s", path)
	}

	// WAL keeps readers (certs list/show) from blocking a wipe that is
	// about to append its certificate.
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, errors.Wrapf(err, "opening certificate store %s", path)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(storeSchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "initializing certificate store %s", path)
	}

	return &Store{
		db:     db,
		logger: logger.With().Str("component", "certificate-store").Logger(),
	}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Put appends a signed certificate. Unsigned certificates are rejected:
// the ledger only ever holds records that can be checked.
func (s *Store) Put(ctx context.Context, cert *Certificate) error {
	if cert.ContentHash == "" || cert.Signature == "" {
		return errors.Newf("refusing to store unsigned certificate %s", cert.ID)
	}

	payload, err := json.MarshalIndent(cert, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encoding certificate %s", cert.ID)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO certificates (id, device_identity, device_path, status, content_hash, prior_hash, created_at, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cert.ID, cert.Device.Identity(), cert.Device.Path, string(cert.Status),
		cert.ContentHash, cert.PriorHash, cert.CreatedAt.UTC(), payload)
	if err != nil {
		return errors.Wrapf(err, "storing certificate %s", cert.ID)
	}

	s.logger.Info().
		Str("certificate", cert.ID).
		Str("device", cert.Device.Path).
		Msg("certificate stored")
	return nil
}

// Get loads one certificate by ID.
func (s *Store) Get(ctx context.Context, id string) (*Certificate, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM certificates WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Newf("certificate %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading certificate %s", id)
	}

	var cert Certificate
	if err := json.Unmarshal(payload, &cert); err != nil {
		return nil, errors.Wrapf(err, "decoding certificate %s", id)
	}
	return &cert, nil
}

// Entry is one row of the ledger listing.
type Entry struct {
	ID             string    `json:"id"`
	DeviceIdentity string    `json:"device_identity"`
	DevicePath     string    `json:"device_path"`
	Status         Status    `json:"status"`
	ContentHash    string    `json:"content_hash"`
	PriorHash      string    `json:"prior_hash"`
	CreatedAt      time.Time `json:"created_at"`
}

// List returns ledger entries newest first, optionally filtered by
// device identity. limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, deviceIdentity string, limit int) ([]Entry, error) {
	query := `SELECT id, device_identity, device_path, status, content_hash, prior_hash, created_at
		FROM certificates`
	args := []any{}
	if deviceIdentity != "" {
		query += ` WHERE device_identity = ?`
		args = append(args, deviceIdentity)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "listing certificates")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var status string
		if err := rows.Scan(&e.ID, &e.DeviceIdentity, &e.DevicePath, &status, &e.ContentHash, &e.PriorHash, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning certificate row")
		}
		e.Status = Status(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LatestHash returns the content hash of the newest certificate for the
// device identity, or "" when the device has no history. New
// certificates chain from this value.
func (s *Store) LatestHash(ctx context.Context, deviceIdentity string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT content_hash FROM certificates
		 WHERE device_identity = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`, deviceIdentity).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "reading latest certificate hash for %s", deviceIdentity)
	}
	return hash, nil
}

// VerifyChain walks the device's certificate chain oldest to newest and
// checks that every prior_hash links to the preceding content hash.
func (s *Store) VerifyChain(ctx context.Context, deviceIdentity string) error {
	entries, err := s.List(ctx, deviceIdentity, 0)
	if err != nil {
		return err
	}

	// Reverse to chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	prior := ""
	for _, e := range entries {
		if e.PriorHash != prior {
			return errors.Newf("certificate %s breaks the chain: prior hash %q, expected %q", e.ID, e.PriorHash, prior)
		}
		prior = e.ContentHash
	}
	return nil
}
