package dossier

import (
	"context"

	"github.com/pinwater/waterwatch/internal/cache"
	"github.com/pinwater/waterwatch/internal/model"
	"github.com/pinwater/waterwatch/internal/source"
)

// Cache-backed adapters. These satisfy source.Adapter but answer from the
// in-process cache, so a request never waits on a bulk upstream. A miss
// means the domain's build has not covered this unit yet; it is reported as
// a failed result, and the fired warm-up will cover the next request.

type impairmentsAdapter struct {
	store *cache.Store
}

func NewImpairmentsAdapter(store *cache.Store) source.Adapter {
	return &impairmentsAdapter{store: store}
}

func (a *impairmentsAdapter) Domain() model.Domain { return model.DomainImpairments }

func (a *impairmentsAdapter) Fetch(_ context.Context, q source.Query) model.SourceResult {
	unit, ok := a.store.Read(cache.DomainAttains, q.Location.State)
	if !ok {
		return model.Failed(model.DomainImpairments, model.ErrCacheMiss)
	}
	return model.Succeeded(model.DomainImpairments, "attains-cache", unit.Payload)
}

type drinkingWaterAdapter struct {
	store *cache.Store
}

func NewDrinkingWaterAdapter(store *cache.Store) source.Adapter {
	return &drinkingWaterAdapter{store: store}
}

func (a *drinkingWaterAdapter) Domain() model.Domain { return model.DomainDrinkingWater }

func (a *drinkingWaterAdapter) Fetch(_ context.Context, q source.Query) model.SourceResult {
	unit, ok := a.store.Read(cache.DomainSDWIS, q.Location.State)
	if !ok {
		return model.Failed(model.DomainDrinkingWater, model.ErrCacheMiss)
	}
	return model.Succeeded(model.DomainDrinkingWater, "sdwis-cache", unit.Payload)
}

type hazardAdapter struct {
	store *cache.Store
	index *cache.PointIndex
}

func NewHazardAdapter(store *cache.Store, index *cache.PointIndex) source.Adapter {
	return &hazardAdapter{store: store, index: index}
}

func (a *hazardAdapter) Domain() model.Domain { return model.DomainHazard }

func (a *hazardAdapter) Fetch(_ context.Context, q source.Query) model.SourceResult {
	// An empty index is indistinguishable from "no plants nearby" unless we
	// check that the state's unit was actually built.
	if _, ok := a.store.Read(cache.DomainWWTP, q.Location.State); !ok {
		return model.Failed(model.DomainHazard, model.ErrCacheMiss)
	}
	nearby := a.index.Near(q.Location.Latitude, q.Location.Longitude, q.RadiusKM)
	summary := &model.HazardSummary{
		NearbyWWTPs:  nearby,
		SearchRadius: q.RadiusKM,
	}
	if len(nearby) > 0 {
		summary.NearestKM = a.index.NearestKM(q.Location.Latitude, q.Location.Longitude, q.RadiusKM)
	}
	return model.Succeeded(model.DomainHazard, "wwtp-index", summary)
}
