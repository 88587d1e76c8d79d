// Package mirror provides the durable local mirror of the last-known shared
// document.
//
// The mirror exists so the client has a document the instant it starts,
// before any network round trip completes. It holds exactly one serialized
// document in a single-row SQLite table: read once at startup, overwritten
// wholesale on every accepted mutation and every adopted remote snapshot.
// The remote store stays authoritative; mirror durability is best-effort.
package mirror

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"louvor/internal/schema"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// documentKey matches the storage key the original web client used, so a
// mirror can be inspected or migrated by key.
const documentKey = "ipac_praise_app_data_v1"

// Store is the local mirror database.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates or opens the mirror database at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// The caller must Close() when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create mirror directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mirror database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping mirror database: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &Store{conn: conn, path: path}
	if err := s.initSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS document (
			key        TEXT PRIMARY KEY,
			data       TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`
	if _, err := s.conn.Exec(ddl); err != nil {
		return fmt.Errorf("failed to create mirror schema: %w", err)
	}
	return nil
}

// Load reads the last persisted document. Returns (nil, nil) when the
// mirror is empty; the caller decides how to seed.
func (s *Store) Load() (*schema.Document, error) {
	var data []byte
	err := s.conn.QueryRow(
		"SELECT data FROM document WHERE key = ?", documentKey,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mirror: %w", err)
	}

	doc, err := schema.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("mirror holds an unreadable document: %w", err)
	}
	return doc, nil
}

// Save overwrites the mirrored document with the given one. The write is
// whole-document; there are no partial updates.
func (s *Store) Save(doc *schema.Document) error {
	data, err := schema.Encode(doc)
	if err != nil {
		return err
	}

	_, err = s.conn.Exec(`
		INSERT INTO document (key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		documentKey, data, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write mirror: %w", err)
	}
	return nil
}

// Path returns the mirror database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the mirror database.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	// Checkpoint the WAL so the main file is current on disk.
	_, _ = s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close mirror database: %w", err)
	}
	s.conn = nil
	return nil
}
