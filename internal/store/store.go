// Package store persists built cache units so an interrupted or restarted
// process resumes a build instead of refetching every unit.
package store

import (
	"context"
	"time"
)

// PersistedUnit is one cache unit as stored on disk.
type PersistedUnit struct {
	Key     string
	Payload []byte // JSON-encoded domain payload
	BuiltAt time.Time
}

// SnapshotStore defines the persistence interface for cache snapshots.
type SnapshotStore interface {
	// SaveUnit upserts one unit; the previous build's row is replaced.
	SaveUnit(ctx context.Context, domain, key string, payload any, builtAt time.Time) error
	// LoadDomain returns every persisted unit for a domain.
	LoadDomain(ctx context.Context, domain string) ([]PersistedUnit, error)

	Migrate(ctx context.Context) error
	Close() error
}
