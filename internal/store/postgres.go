package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

const postgresMigration = `
CREATE TABLE IF NOT EXISTS cache_units (
	domain   TEXT NOT NULL,
	key      TEXT NOT NULL,
	payload  JSONB NOT NULL,
	built_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (domain, key)
);
`

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PostgresStore persists cache snapshots in Postgres, for deployments where
// multiple replicas share one snapshot set.
type PostgresStore struct {
	pool Pool
}

func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

func (s *PostgresStore) SaveUnit(ctx context.Context, domain, key string, payload any, builtAt time.Time) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrapf(err, "postgres: encode unit %s/%s", domain, key)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO cache_units (domain, key, payload, built_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (domain, key) DO UPDATE SET
			payload = excluded.payload,
			built_at = excluded.built_at`,
		domain, key, body, builtAt.UTC())
	if err != nil {
		return eris.Wrapf(err, "postgres: save unit %s/%s", domain, key)
	}
	return nil
}

func (s *PostgresStore) LoadDomain(ctx context.Context, domain string) ([]PersistedUnit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT key, payload, built_at
		FROM cache_units
		WHERE domain = $1
		ORDER BY key`, domain)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load domain %s", domain)
	}
	defer rows.Close()

	var units []PersistedUnit
	for rows.Next() {
		var u PersistedUnit
		if err := rows.Scan(&u.Key, &u.Payload, &u.BuiltAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan unit")
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate units")
	}
	return units, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
