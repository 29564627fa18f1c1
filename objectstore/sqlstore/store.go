// Package sqlstore is a single-node objectstore.Store backed by
// modernc.org/sqlite, giving fusio-manifest a real, atomically CAS'd object
// store for local development and CI without a network object store. WAL
// mode and a busy timeout are applied via DSN pragmas, and every write goes
// through a transactional compare-then-update so the CAS precondition is
// checked and applied atomically.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // pure Go sqlite driver

	"github.com/viant/fusio-manifest/objectstore"
)

// Store wraps *sql.DB with a single objects table keyed by object key,
// versioned by a monotonically increasing integer used as the Tag.
type Store struct {
	db *sql.DB
}

// Open opens or creates the backing database at path (or a DSN), applying
// WAL and busy-timeout pragmas to file databases (in-memory DSNs are used
// as given), and ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := withPragmas(path)
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	s := &Store{db: sqldb}
	if err := s.ensureSchema(ctx); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return s, nil
}

func withPragmas(path string) string {
	if path == ":memory:" || strings.HasPrefix(strings.ToLower(path), "file::memory:") {
		return path
	}
	dsn := fmt.Sprintf("file:%s", path)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS objects (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		version INTEGER NOT NULL
	)`)
	return err
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Get(ctx context.Context, key string) ([]byte, objectstore.Tag, error) {
	var data []byte
	var version int64
	err := s.db.QueryRowContext(ctx, `SELECT data, version FROM objects WHERE key = ?`, key).Scan(&data, &version)
	if err == sql.ErrNoRows {
		return nil, "", objectstore.ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("sqlstore: get %s: %w", key, err)
	}
	return data, tagOf(version), nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte, precond objectstore.Precondition) (objectstore.Tag, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("sqlstore: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var curVersion int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM objects WHERE key = ?`, key).Scan(&curVersion)
	exists := err == nil
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("sqlstore: read for cas %s: %w", key, err)
	}

	switch precond.Kind {
	case objectstore.PreconditionIfNotExists:
		if exists {
			return "", objectstore.ErrPreconditionFailed
		}
	case objectstore.PreconditionIfMatch:
		if !exists || tagOf(curVersion) != precond.Tag {
			return "", objectstore.ErrPreconditionFailed
		}
	case objectstore.PreconditionNone:
	}

	newVersion := curVersion + 1
	if exists {
		res, err := tx.ExecContext(ctx, `UPDATE objects SET data = ?, version = ? WHERE key = ? AND version = ?`,
			data, newVersion, key, curVersion)
		if err != nil {
			return "", fmt.Errorf("sqlstore: update %s: %w", key, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Lost the race between the read and the update.
			return "", objectstore.ErrPreconditionFailed
		}
	} else {
		if _, err := tx.ExecContext(ctx, `INSERT INTO objects(key, data, version) VALUES(?, ?, ?)`, key, data, newVersion); err != nil {
			return "", fmt.Errorf("sqlstore: insert %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("sqlstore: commit: %w", err)
	}
	return tagOf(newVersion), nil
}

func (s *Store) List(ctx context.Context, prefix string, startAfter string) ([]objectstore.ObjectMeta, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, version, length(data) FROM objects
		WHERE key LIKE ? AND key > ? ORDER BY key`, prefix+"%", startAfter)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list %s: %w", prefix, err)
	}
	defer rows.Close()

	var out []objectstore.ObjectMeta
	for rows.Next() {
		var key string
		var version int64
		var size int64
		if err := rows.Scan(&key, &version, &size); err != nil {
			return nil, fmt.Errorf("sqlstore: scan: %w", err)
		}
		out = append(out, objectstore.ObjectMeta{Key: key, Tag: tagOf(version), Size: size})
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM objects WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlstore: delete %s: %w", key, err)
	}
	return nil
}

func tagOf(version int64) objectstore.Tag {
	return objectstore.Tag(fmt.Sprintf("%d", version))
}

var _ objectstore.Store = (*Store)(nil)
