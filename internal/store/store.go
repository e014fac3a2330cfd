// Package store provides the local SQLite copy of the ingestion tracking
// record. It is the fallback used when the object-storage copy cannot be
// read or written, and it survives process restarts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/scout-go/internal/rag"
	"github.com/54b3r/scout-go/internal/tracking"
)

// corpusKey is the tracking_meta key holding the bound corpus ID.
const corpusKey = "corpus_id"

// SQLiteStore is a tracking.Backend backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ tracking.Backend = (*SQLiteStore)(nil)

// DefaultDBPath returns the default path for the tracking database.
// It resolves to ~/.scout/tracking.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".scout")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "tracking.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// One connection: a single writer, and ":memory:" stays one database.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tracking_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS documents (
    ref      TEXT PRIMARY KEY,
    metadata TEXT  -- JSON-encoded rag.DocumentMetadata, NULL when unknown
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Name implements tracking.Backend.
func (s *SQLiteStore) Name() string { return "sqlite" }

// Read implements tracking.Backend. An empty database reports found=false.
func (s *SQLiteStore) Read(ctx context.Context) (*tracking.Record, bool, error) {
	corpusID, hasMeta, err := s.corpusID(ctx)
	if err != nil {
		return nil, false, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT ref, metadata FROM documents ORDER BY ref`)
	if err != nil {
		return nil, false, fmt.Errorf("store: read documents: %w", err)
	}
	defer rows.Close()

	rec := tracking.NewRecord(corpusID)
	for rows.Next() {
		var ref string
		var raw sql.NullString
		if err := rows.Scan(&ref, &raw); err != nil {
			return nil, false, fmt.Errorf("store: read scan: %w", err)
		}
		var md *rag.DocumentMetadata
		if raw.Valid {
			var m rag.DocumentMetadata
			if err := json.Unmarshal([]byte(raw.String), &m); err == nil {
				md = &m
			}
		}
		rec.Add(ref, md)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("store: read rows: %w", err)
	}

	if !hasMeta && rec.Len() == 0 {
		return nil, false, nil
	}
	return rec, true, nil
}

// corpusID returns the stored corpus binding.
func (s *SQLiteStore) corpusID(ctx context.Context) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM tracking_meta WHERE key = ?`, corpusKey).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("store: read corpus id: %w", err)
	}
	return id, true, nil
}

// Write implements tracking.Backend. The previous record is replaced in a
// single transaction.
func (s *SQLiteStore) Write(ctx context.Context, rec *tracking.Record) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: write begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("store: write clear: %w", err)
	}
	const upsertMeta = `INSERT INTO tracking_meta (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err = tx.ExecContext(ctx, upsertMeta, corpusKey, rec.CorpusID); err != nil {
		return fmt.Errorf("store: write corpus id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO documents (ref, metadata) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("store: write prepare: %w", err)
	}
	defer stmt.Close()

	for _, ref := range rec.Refs() {
		var raw sql.NullString
		if md, ok := rec.Metadata[ref]; ok {
			b, mErr := json.Marshal(md)
			if mErr != nil {
				err = fmt.Errorf("store: encode metadata for %s: %w", ref, mErr)
				return err
			}
			raw = sql.NullString{String: string(b), Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, ref, raw); err != nil {
			return fmt.Errorf("store: write document %s: %w", ref, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: write commit: %w", err)
	}
	return nil
}

// Reset implements tracking.Backend.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents; DELETE FROM tracking_meta;`); err != nil {
		return fmt.Errorf("store: reset: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
