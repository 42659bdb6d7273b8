package artifact

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps all artifacts in a single SQLite database, one row
// per key. Useful when an experiment produces many small datapoints
// and per-file overhead starts to matter, or when artifacts should
// travel as one file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) an artifact database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("artifact: sqlite store requires a database path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("artifact: open database: %w", err)
	}
	// Single connection keeps writes serialized through one handle;
	// WAL lets loads proceed while a save is in flight.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("artifact: %s: %w", pragma, err)
		}
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS artifacts (
		kind        TEXT NOT NULL,
		id          TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		created_at  INTEGER NOT NULL,
		run_id      TEXT NOT NULL,
		body        BLOB NOT NULL,
		PRIMARY KEY (kind, id)
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("artifact: initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Exists(key Key) (bool, error) {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM artifacts WHERE kind = ? AND id = ?`,
		string(key.Kind), key.ID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &IOError{Op: "exists", Key: key, Err: err}
	}
	return true, nil
}

func (s *SQLiteStore) Load(key Key, out any) (Meta, error) {
	var data []byte
	err := s.db.QueryRow(
		`SELECT body FROM artifacts WHERE kind = ? AND id = ?`,
		string(key.Kind), key.ID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Meta{}, ErrNotFound
	}
	if err != nil {
		return Meta{}, &IOError{Op: "load", Key: key, Err: err}
	}
	meta, err := decode(data, out)
	if err != nil {
		return Meta{}, &IOError{Op: "decode", Key: key, Err: err}
	}
	return meta, nil
}

func (s *SQLiteStore) Save(key Key, artifact any, meta Meta) error {
	data, err := encode(artifact, meta)
	if err != nil {
		return &IOError{Op: "encode", Key: key, Err: err}
	}
	// A single INSERT OR REPLACE is one transaction: concurrent loads
	// of the same key see either the old row or the new one.
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO artifacts (kind, id, fingerprint, created_at, run_id, body)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(key.Kind), key.ID, meta.Fingerprint, meta.CreatedAt.UnixNano(), meta.RunID, data)
	if err != nil {
		return &IOError{Op: "save", Key: key, Err: err}
	}
	return nil
}

func (s *SQLiteStore) Stale(key Key, fingerprint string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	var stored string
	err := s.db.QueryRow(
		`SELECT fingerprint FROM artifacts WHERE kind = ? AND id = ?`,
		string(key.Kind), key.ID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, &IOError{Op: "stale", Key: key, Err: err}
	}
	return stored != fingerprint, nil
}

func (s *SQLiteStore) List(kind Kind) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT id FROM artifacts WHERE kind = ? ORDER BY id`, string(kind))
	if err != nil {
		return nil, &IOError{Op: "list", Key: Key{Kind: kind}, Err: err}
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &IOError{Op: "list", Key: Key{Kind: kind}, Err: err}
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, &IOError{Op: "list", Key: Key{Kind: kind}, Err: err}
	}
	return ids, nil
}

func (s *SQLiteStore) Delete(key Key) error {
	if _, err := s.db.Exec(
		`DELETE FROM artifacts WHERE kind = ? AND id = ?`,
		string(key.Kind), key.ID); err != nil {
		return &IOError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
