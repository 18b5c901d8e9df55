// Package sqlitestore persists layer snapshots in a single SQLite table.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/goliatone/go-stratabase/pkg/state"
)

// Store is a state.Store[state.Layer] backed by SQLite. Each row holds one
// snapshot keyed by Ref.Identifier().
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open creates or opens the database at path. An empty path opens a private
// in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path == "" {
		dsn = ":memory:"
	} else if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == "" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		key TEXT PRIMARY KEY,
		domain TEXT NOT NULL,
		scope TEXT NOT NULL,
		document TEXT NOT NULL,
		snapshot_id TEXT NOT NULL DEFAULT '',
		etag TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL DEFAULT '',
		extra TEXT
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}
	return &Store{db: db, path: path, now: time.Now}, nil
}

// Load implements state.Store.
func (s *Store) Load(ctx context.Context, ref state.Ref) (state.Layer, state.Meta, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return nil, state.Meta{}, false, err
	}
	var (
		document, updatedAt string
		extra               sql.NullString
		meta                state.Meta
	)
	row := s.db.QueryRowContext(ctx, `SELECT document, snapshot_id, etag, updated_at, extra FROM snapshots WHERE key = ?`, key)
	if err := row.Scan(&document, &meta.SnapshotID, &meta.ETag, &updatedAt, &extra); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, state.Meta{}, false, nil
		}
		return nil, state.Meta{}, false, fmt.Errorf("select %s: %w", key, err)
	}
	if updatedAt != "" {
		if meta.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, state.Meta{}, false, fmt.Errorf("decode updated_at for %s: %w", key, err)
		}
	}
	if extra.Valid && extra.String != "" {
		if err := json.Unmarshal([]byte(extra.String), &meta.Extra); err != nil {
			return nil, state.Meta{}, false, fmt.Errorf("decode extra for %s: %w", key, err)
		}
	}
	layer, err := state.DecodeLayer(document)
	if err != nil {
		return nil, state.Meta{}, false, err
	}
	return layer, meta, true, nil
}

// Save implements state.Store. A zero UpdatedAt is stamped with the current
// time.
func (s *Store) Save(ctx context.Context, ref state.Ref, snapshot state.Layer, meta state.Meta) (state.Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return state.Meta{}, err
	}
	document, err := state.EncodeLayer(snapshot)
	if err != nil {
		return state.Meta{}, err
	}
	if meta.UpdatedAt.IsZero() {
		meta.UpdatedAt = s.now().UTC()
	}
	var extra sql.NullString
	if meta.Extra != nil {
		raw, err := json.Marshal(meta.Extra)
		if err != nil {
			return state.Meta{}, fmt.Errorf("encode extra: %w", err)
		}
		extra = sql.NullString{String: string(raw), Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO snapshots(key, domain, scope, document, snapshot_id, etag, updated_at, extra)
		VALUES(?,?,?,?,?,?,?,?)
		ON CONFLICT(key) DO UPDATE SET
			document=excluded.document,
			snapshot_id=excluded.snapshot_id,
			etag=excluded.etag,
			updated_at=excluded.updated_at,
			extra=excluded.extra`,
		key, ref.Domain, ref.Scope.Name, document, meta.SnapshotID, meta.ETag,
		meta.UpdatedAt.Format(time.RFC3339Nano), extra); err != nil {
		return state.Meta{}, fmt.Errorf("upsert %s: %w", key, err)
	}
	return meta, nil
}

// Delete removes the snapshot for ref. It reports whether a row existed.
func (s *Store) Delete(ctx context.Context, ref state.Ref) (bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Keys returns the stored keys for domain in ascending order.
func (s *Store) Keys(ctx context.Context, domain string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM snapshots WHERE domain = ? ORDER BY key`, domain)
	if err != nil {
		return nil, fmt.Errorf("select keys: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
