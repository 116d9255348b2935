package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pinwater/waterwatch/internal/metrics"
	"github.com/pinwater/waterwatch/internal/model"
	"github.com/pinwater/waterwatch/internal/store"
)

// Builder enumerates and fetches one cache domain's unit space.
type Builder interface {
	Domain() string
	// Units returns the enumerable unit keys, e.g. the 51 state codes.
	Units() []string
	// TTL is the domain's freshness window; a persisted unit younger than
	// this is skipped when a build resumes.
	TTL() time.Duration
	// FetchUnit pulls one unit from upstream.
	FetchUnit(ctx context.Context, key string) (any, error)
	// DecodeUnit revives a persisted unit payload.
	DecodeUnit(data []byte) (any, error)
}

// ErrBuildInProgress is the informational conflict returned when a build is
// triggered while one is already running for the domain.
var ErrBuildInProgress = eris.New("build already in progress")

// ErrUnknownDomain is returned for unregistered cache domains.
var ErrUnknownDomain = eris.New("unknown cache domain")

const buildTimeout = 45 * time.Minute

type domainState struct {
	builder  Builder
	building atomic.Bool // single-flight guard

	mu        sync.Mutex
	failed    []string
	lastBuild time.Time
}

// Coordinator owns the build lifecycle for every cache domain: idle until
// first warmed, building while units stream in, ready when all units are
// loaded. At most one build per domain runs at any time.
type Coordinator struct {
	store       *Store
	snapshots   store.SnapshotStore // nil disables persistence
	clock       clockwork.Clock
	concurrency int

	mu      sync.RWMutex
	domains map[string]*domainState
}

// NewCoordinator creates a coordinator over the given store. snapshots may
// be nil.
func NewCoordinator(s *Store, snapshots store.SnapshotStore, clock clockwork.Clock, concurrency int) *Coordinator {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Coordinator{
		store:       s,
		snapshots:   snapshots,
		clock:       clock,
		concurrency: concurrency,
		domains:     make(map[string]*domainState),
	}
}

// Register adds a domain builder. Not safe to call once builds have started.
func (c *Coordinator) Register(b Builder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.domains[b.Domain()] = &domainState{builder: b}
}

// Domains lists the registered cache domains.
func (c *Coordinator) Domains() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.domains))
	for name := range c.domains {
		out = append(out, name)
	}
	return out
}

// Restore loads persisted units into the live cache so a restart resumes
// instead of rebuilding from scratch.
func (c *Coordinator) Restore(ctx context.Context) error {
	if c.snapshots == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, ds := range c.domains {
		units, err := c.snapshots.LoadDomain(ctx, name)
		if err != nil {
			return eris.Wrapf(err, "cache: restore %s", name)
		}
		restored := 0
		for _, u := range units {
			payload, err := ds.builder.DecodeUnit(u.Payload)
			if err != nil {
				zap.L().Warn("cache: dropping undecodable persisted unit",
					zap.String("domain", name),
					zap.String("key", u.Key),
					zap.Error(err),
				)
				continue
			}
			c.store.Commit(name, u.Key, payload, u.BuiltAt)
			restored++
		}
		if restored > 0 {
			zap.L().Info("cache: restored domain from snapshot",
				zap.String("domain", name),
				zap.Int("units", restored),
			)
		}
	}
	return nil
}

// EnsureWarmed is the idempotent request-path warm-up: ready domains are a
// no-op, a domain already building is left alone, anything else gets a
// detached background build. It never blocks on the build itself.
func (c *Coordinator) EnsureWarmed(domain string) {
	st := c.Status(domain)
	if st.State == model.CacheReady || st.State == model.CacheBuilding {
		return
	}
	if _, err := c.TriggerBuild(domain); err != nil && !eris.Is(err, ErrBuildInProgress) {
		zap.L().Warn("cache: warm-up trigger failed", zap.String("domain", domain), zap.Error(err))
	}
}

// TriggerBuild starts a detached background build for a domain. A second
// trigger while one is in flight returns ErrBuildInProgress and performs no
// upstream calls. The returned status reflects the moment of the call.
func (c *Coordinator) TriggerBuild(domain string) (model.CacheBuildStatus, error) {
	c.mu.RLock()
	ds, ok := c.domains[domain]
	c.mu.RUnlock()
	if !ok {
		return model.CacheBuildStatus{}, ErrUnknownDomain
	}

	if !ds.building.CompareAndSwap(false, true) {
		return c.Status(domain), ErrBuildInProgress
	}

	go func() {
		defer ds.building.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), buildTimeout)
		defer cancel()
		c.runBuild(ctx, ds)
	}()

	return c.Status(domain), nil
}

// runBuild fetches every stale unit, committing each as it completes. A
// failed unit is recorded and skipped; it never aborts the rest.
func (c *Coordinator) runBuild(ctx context.Context, ds *domainState) {
	b := ds.builder
	domain := b.Domain()
	units := b.Units()
	started := c.clock.Now()

	ds.mu.Lock()
	ds.failed = nil
	ds.mu.Unlock()

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	var fetched atomic.Int64
	for _, key := range units {
		if u, ok := c.store.Read(domain, key); ok && c.clock.Now().Sub(u.BuiltAt) < b.TTL() {
			continue // fresh from a previous build or restart: resume, don't refetch
		}
		g.Go(func() error {
			payload, err := b.FetchUnit(gCtx, key)
			if err != nil {
				metrics.CacheUnitFailures.WithLabelValues(domain).Inc()
				zap.L().Warn("cache: unit fetch failed",
					zap.String("domain", domain),
					zap.String("unit", key),
					zap.Error(err),
				)
				ds.mu.Lock()
				ds.failed = append(ds.failed, key)
				ds.mu.Unlock()
				return nil // keep going
			}
			now := c.clock.Now()
			c.store.Commit(domain, key, payload, now)
			metrics.CacheUnitsLoaded.WithLabelValues(domain).Inc()
			fetched.Add(1)
			c.persist(gCtx, domain, key, payload, now)
			return nil
		})
	}
	_ = g.Wait()

	ds.mu.Lock()
	ds.lastBuild = c.clock.Now()
	ds.mu.Unlock()

	zap.L().Info("cache: build finished",
		zap.String("domain", domain),
		zap.Int64("fetched", fetched.Load()),
		zap.Int("loaded", c.store.Count(domain)),
		zap.Int("total", len(units)),
		zap.Duration("elapsed", c.clock.Now().Sub(started)),
	)
}

func (c *Coordinator) persist(ctx context.Context, domain, key string, payload any, builtAt time.Time) {
	if c.snapshots == nil {
		return
	}
	if err := c.snapshots.SaveUnit(ctx, domain, key, payload, builtAt); err != nil {
		zap.L().Warn("cache: snapshot persist failed",
			zap.String("domain", domain),
			zap.String("unit", key),
			zap.Error(err),
		)
	}
}

// Status returns the cheap-to-poll build status for a domain.
func (c *Coordinator) Status(domain string) model.CacheBuildStatus {
	c.mu.RLock()
	ds, ok := c.domains[domain]
	c.mu.RUnlock()
	if !ok {
		return model.CacheBuildStatus{Domain: domain, State: model.CacheIdle}
	}

	total := len(ds.builder.Units())
	loaded := c.store.Count(domain)

	st := model.CacheBuildStatus{
		Domain:      domain,
		State:       model.CacheIdle,
		LoadedUnits: loaded,
		TotalUnits:  total,
	}

	ds.mu.Lock()
	if !ds.lastBuild.IsZero() {
		t := ds.lastBuild
		st.LastBuildTime = &t
	}
	st.FailedUnits = append(st.FailedUnits, ds.failed...)
	ds.mu.Unlock()

	switch {
	case ds.building.Load():
		st.State = model.CacheBuilding
	case loaded >= total && total > 0:
		st.State = model.CacheReady
	}
	return st
}

// StatusAll returns the status of every registered domain.
func (c *Coordinator) StatusAll() []model.CacheBuildStatus {
	out := make([]model.CacheBuildStatus, 0, len(c.Domains()))
	for _, d := range c.Domains() {
		out = append(out, c.Status(d))
	}
	return out
}
