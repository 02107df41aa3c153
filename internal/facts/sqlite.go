package facts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists facts in a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) the fact database at path and applies
// any pending schema migrations.
func Open(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("facts: creating database directory: %w", err)
	}

	dsn := "file:" + path + "?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("facts: opening database: %w", err)
	}
	// modernc.org/sqlite serializes writers; a single connection avoids
	// SQLITE_BUSY on concurrent access through the shared cache.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("facts: creating schema_version: %w", err)
	}

	var version int
	err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return fmt.Errorf("facts: reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("facts: beginning migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("facts: migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("facts: recording migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("facts: committing migration %d: %w", m.version, err)
		}
	}
	return nil
}

var migrations = []struct {
	version int
	stmt    string
}{
	{1, `CREATE TABLE facts (
		key        TEXT NOT NULL,
		identity   TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (key, identity)
	)`},
	{2, `CREATE TABLE audit (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		ts           TEXT NOT NULL,
		run_id       TEXT,
		event        TEXT NOT NULL,
		payload_json TEXT NOT NULL
	)`},
}

func (s *SQLiteStore) Get(ctx context.Context, key, identity string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM facts WHERE key = ? AND identity = ?`,
		key, identity,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("facts: get %s/%s: %w", key, identity, err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, identity, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO facts (key, identity, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (key, identity) DO UPDATE SET
		   value = excluded.value,
		   updated_at = excluded.updated_at`,
		key, identity, value, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("facts: set %s/%s: %w", key, identity, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key, identity string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM facts WHERE key = ? AND identity = ?`,
		key, identity,
	)
	if err != nil {
		return fmt.Errorf("facts: delete %s/%s: %w", key, identity, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, key string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT identity, value FROM facts WHERE key = ? ORDER BY identity`,
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("facts: list %s: %w", key, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var identity, value string
		if err := rows.Scan(&identity, &value); err != nil {
			return nil, fmt.Errorf("facts: list %s: %w", key, err)
		}
		out[identity] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("facts: list %s: %w", key, err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
