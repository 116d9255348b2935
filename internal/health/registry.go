// Package health tracks per-source liveness with an exponential backoff
// schedule so dead upstreams are probed less and less often.
package health

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Status is the probe-derived liveness of one upstream source.
type Status string

const (
	StatusLive     Status = "live"
	StatusDegraded Status = "degraded"
	StatusDead     Status = "dead"
	StatusUnknown  Status = "unknown"
)

// Backoff schedule. A live source is always eligible; failing sources back
// off up to once per day.
const (
	degradedInterval = 15 * time.Minute
	deadInterval     = 60 * time.Minute
	dead24hInterval  = 6 * time.Hour
	dead7dInterval   = 24 * time.Hour

	deadThreshold = 4 // consecutive failures before a source counts as dead
)

// SourceHealth is the exported snapshot for one source.
type SourceHealth struct {
	Source       string     `json:"source"`
	Status       Status     `json:"status"`
	ErrorCount   int        `json:"error_count"`
	LastChecked  *time.Time `json:"last_checked,omitempty"`
	NextEligible *time.Time `json:"next_eligible,omitempty"`
}

type entry struct {
	status       Status
	errorCount   int
	firstFailure time.Time
	lastChecked  time.Time
	nextEligible time.Time
}

// Registry records probe outcomes and answers whether a source is inside its
// backoff window. Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	clock   clockwork.Clock
}

// NewRegistry creates a Registry using the real clock.
func NewRegistry() *Registry {
	return NewRegistryWithClock(clockwork.NewRealClock())
}

// NewRegistryWithClock creates a Registry with an injected clock.
func NewRegistryWithClock(clock clockwork.Clock) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		clock:   clock,
	}
}

// ShouldSkip reports whether the source is still inside its backoff window.
// Unknown sources are never skipped.
func (r *Registry) ShouldSkip(source string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[source]
	if !ok || e.nextEligible.IsZero() {
		return false
	}
	return r.clock.Now().Before(e.nextEligible)
}

// RecordSuccess marks a source live and clears its backoff window. A live
// source is always eligible; backoff applies only after failures.
func (r *Registry) RecordSuccess(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.get(source)
	if e.status == StatusDead {
		zap.L().Info("health: source recovered", zap.String("source", source))
	}
	e.status = StatusLive
	e.errorCount = 0
	e.firstFailure = time.Time{}
	e.lastChecked = r.clock.Now()
	e.nextEligible = time.Time{}
}

// RecordFailure increments the failure count and extends the backoff window.
func (r *Registry) RecordFailure(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.get(source)
	now := r.clock.Now()
	e.errorCount++
	e.lastChecked = now
	if e.firstFailure.IsZero() {
		e.firstFailure = now
	}
	if e.errorCount >= deadThreshold {
		e.status = StatusDead
	} else {
		e.status = StatusDegraded
	}
	e.nextEligible = now.Add(r.backoff(e, now))
}

// backoff computes the next probe interval from the failure history.
func (r *Registry) backoff(e *entry, now time.Time) time.Duration {
	if !e.firstFailure.IsZero() {
		down := now.Sub(e.firstFailure)
		if down > 7*24*time.Hour {
			return dead7dInterval
		}
		if down > 24*time.Hour {
			return dead24hInterval
		}
	}
	if e.errorCount >= deadThreshold {
		return deadInterval
	}
	return degradedInterval
}

// Status returns the current status of a source.
func (r *Registry) Status(source string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[source]
	if !ok {
		return StatusUnknown
	}
	return e.status
}

// Summary returns a snapshot of every tracked source, sorted by name.
func (r *Registry) Summary() []SourceHealth {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]SourceHealth, 0, len(r.entries))
	for name, e := range r.entries {
		sh := SourceHealth{
			Source:     name,
			Status:     e.status,
			ErrorCount: e.errorCount,
		}
		if !e.lastChecked.IsZero() {
			t := e.lastChecked
			sh.LastChecked = &t
		}
		if !e.nextEligible.IsZero() {
			t := e.nextEligible
			sh.NextEligible = &t
		}
		out = append(out, sh)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

func (r *Registry) get(source string) *entry {
	e, ok := r.entries[source]
	if !ok {
		e = &entry{status: StatusUnknown}
		r.entries[source] = e
	}
	return e
}
