package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS cache_units (
	domain   TEXT NOT NULL,
	key      TEXT NOT NULL,
	payload  BLOB NOT NULL,
	built_at TIMESTAMP NOT NULL,
	PRIMARY KEY (domain, key)
);
`

// SQLiteStore persists cache snapshots in a local sqlite file. It is the
// default backend; a single process owns the file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "open sqlite")
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "exec %s", pragma)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "migrate sqlite")
	}
	return nil
}

func (s *SQLiteStore) SaveUnit(ctx context.Context, domain, key string, payload any, builtAt time.Time) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrapf(err, "encode unit %s/%s", domain, key)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache_units (domain, key, payload, built_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (domain, key) DO UPDATE SET
			payload = excluded.payload,
			built_at = excluded.built_at`,
		domain, key, body, builtAt.UTC())
	if err != nil {
		return eris.Wrapf(err, "save unit %s/%s", domain, key)
	}
	return nil
}

func (s *SQLiteStore) LoadDomain(ctx context.Context, domain string) ([]PersistedUnit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, payload, built_at
		FROM cache_units
		WHERE domain = ?
		ORDER BY key`, domain)
	if err != nil {
		return nil, eris.Wrapf(err, "load domain %s", domain)
	}
	defer rows.Close()

	var units []PersistedUnit
	for rows.Next() {
		var u PersistedUnit
		if err := rows.Scan(&u.Key, &u.Payload, &u.BuiltAt); err != nil {
			return nil, eris.Wrap(err, "scan unit")
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "iterate units")
	}
	return units, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
