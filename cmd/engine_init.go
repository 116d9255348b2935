package main

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pinwater/waterwatch/internal/cache"
	"github.com/pinwater/waterwatch/internal/dossier"
	"github.com/pinwater/waterwatch/internal/health"
	"github.com/pinwater/waterwatch/internal/scorer"
	"github.com/pinwater/waterwatch/internal/signal"
	"github.com/pinwater/waterwatch/internal/source"
	"github.com/pinwater/waterwatch/internal/store"
	"github.com/pinwater/waterwatch/pkg/geocode"
)

// engineEnv holds the wired engine components shared by every command.
type engineEnv struct {
	Assembler *dossier.Assembler
	Locator   geocode.Client
	Coord     *cache.Coordinator
	Cache     *cache.Store
	Health    *health.Registry

	snapshots store.SnapshotStore
}

func (e *engineEnv) Close() {
	if e.snapshots != nil {
		if err := e.snapshots.Close(); err != nil {
			zap.L().Warn("close snapshot store", zap.Error(err))
		}
	}
}

// initEngine wires sources, caches, and the assembler from config. Cache
// snapshots are restored so builds resume instead of starting over.
func initEngine(ctx context.Context) (*engineEnv, error) {
	healthReg := health.NewRegistry()
	registry, err := source.LoadRegistry(cfg.Sources, healthReg)
	if err != nil {
		return nil, err
	}

	snapshots, err := initSnapshots(ctx)
	if err != nil {
		return nil, err
	}

	cacheStore := cache.NewStore()
	index := cache.NewPointIndex()
	coord := cache.NewCoordinator(cacheStore, snapshots, clockwork.NewRealClock(), cfg.Cache.BuildConcurrency)
	coord.Register(cache.NewAttainsBuilder(
		source.NewAttainsClient(registry.Chain("attains")),
		time.Duration(cfg.Cache.AttainsTTLDays)*24*time.Hour,
	))
	coord.Register(cache.NewSDWISBuilder(
		source.NewSDWISClient(registry.Chain("sdwis"), registry.Chain("sdwis-violations")),
		time.Duration(cfg.Cache.SDWISTTLDays)*24*time.Hour,
	))
	coord.Register(cache.NewWWTPBuilder(
		source.NewFRSClient(registry.Chain("frs")),
		index,
		time.Duration(cfg.Cache.WWTPTTLDays)*24*time.Hour,
	))
	if err := coord.Restore(ctx); err != nil {
		zap.L().Warn("cache restore failed, starting cold", zap.Error(err))
	}

	adapters := []source.Adapter{
		source.NewUSGSAdapter(registry.Chain("usgs-nwis")),
		source.NewWQPAdapter(registry.Chain("wqp")),
		source.NewICISAdapter(registry.Chain("icis")),
		source.NewECHOAdapter(registry.Chain("echo")),
		source.NewUCMRAdapter(registry.Chain("ucmr")),
		source.NewFWSAdapter(registry.Chain("fws")),
		source.NewEJScreenAdapter(registry.Chain("ejscreen")),
		dossier.NewImpairmentsAdapter(cacheStore),
		dossier.NewDrinkingWaterAdapter(cacheStore),
		dossier.NewHazardAdapter(cacheStore, index),
	}

	assembler := dossier.NewAssembler(
		adapters,
		coord,
		scorer.New(cfg.Scoring),
		signal.New(cfg.Signals),
		cfg.Sources,
	)

	return &engineEnv{
		Assembler: assembler,
		Locator:   geocode.New(geocode.WithRateLimit(cfg.Geocode.RatePerSec)),
		Coord:     coord,
		Cache:     cacheStore,
		Health:    healthReg,
		snapshots: snapshots,
	}, nil
}

func initSnapshots(ctx context.Context) (store.SnapshotStore, error) {
	var (
		s   store.SnapshotStore
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite", "":
		s, err = store.NewSQLite(cfg.Store.Path)
	case "postgres":
		s, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, eris.Wrap(err, "migrate snapshot store")
	}
	return s, nil
}
