package dossier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinwater/waterwatch/internal/cache"
	"github.com/pinwater/waterwatch/internal/config"
	"github.com/pinwater/waterwatch/internal/model"
	"github.com/pinwater/waterwatch/internal/scorer"
	"github.com/pinwater/waterwatch/internal/signal"
	"github.com/pinwater/waterwatch/internal/source"
)

type stubAdapter struct {
	domain model.Domain
	result model.SourceResult
	delay  time.Duration
}

func (s *stubAdapter) Domain() model.Domain { return s.domain }

func (s *stubAdapter) Fetch(ctx context.Context, _ source.Query) model.SourceResult {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return model.Failed(s.domain, model.ErrTimeout)
		}
	}
	return s.result
}

func testAssembler(adapters ...source.Adapter) *Assembler {
	return NewAssembler(
		adapters,
		nil,
		scorer.New(config.ScoringConfig{LowConfidenceThreshold: 50}),
		signal.New(config.SignalsConfig{DefaultLimit: 25, OxygenStressMgL: 5}),
		config.SourcesConfig{MaxConcurrent: 8, SearchRadiusKM: 10, SampleWindowDays: 90},
	)
}

func TestAssembleSettlesAllResults(t *testing.T) {
	adapters := []source.Adapter{
		&stubAdapter{
			domain: model.DomainDrinkingWater,
			result: model.Succeeded(model.DomainDrinkingWater, "sdwis", &model.DrinkingWaterSummary{
				State: "OH", SystemCount: 3, PopulationServed: 9000,
			}),
		},
		&stubAdapter{
			domain: model.DomainEnforcement,
			result: model.Failed(model.DomainEnforcement, model.ErrUpstream),
		},
	}

	report := testAssembler(adapters...).Assemble(context.Background(), model.Location{State: "OH"})
	require.NotNil(t, report)
	assert.NotEmpty(t, report.ID)

	// Failed domain appears as an explicit nil section.
	require.Contains(t, report.Sections, model.DomainEnforcement)
	assert.Nil(t, report.Sections[model.DomainEnforcement])
	assert.NotNil(t, report.Sections[model.DomainDrinkingWater])
	require.NotNil(t, report.Composite)
}

func TestAssembleAllSourcesFail(t *testing.T) {
	var adapters []source.Adapter
	for _, d := range []model.Domain{
		model.DomainWaterQuality, model.DomainDrinkingWater, model.DomainEnforcement,
	} {
		adapters = append(adapters, &stubAdapter{domain: d, result: model.Failed(d, model.ErrExhausted)})
	}

	report := testAssembler(adapters...).Assemble(context.Background(), model.Location{State: "OH"})
	require.NotNil(t, report)

	for d, section := range report.Sections {
		assert.Nil(t, section, "section %s should be nil", d)
	}
	require.NotNil(t, report.Composite)
	assert.Equal(t, float64(0), report.Composite.Confidence)
	assert.Empty(t, report.Signals)
}

func TestAssembleOneFailureDoesNotVoidOthers(t *testing.T) {
	slow := &stubAdapter{
		domain: model.DomainContamination,
		result: model.Failed(model.DomainContamination, model.ErrTimeout),
		delay:  10 * time.Millisecond,
	}
	ok := &stubAdapter{
		domain: model.DomainDrinkingWater,
		result: model.Succeeded(model.DomainDrinkingWater, "sdwis", &model.DrinkingWaterSummary{
			State: "OH", SystemCount: 1, PopulationServed: 100,
		}),
	}

	report := testAssembler(slow, ok).Assemble(context.Background(), model.Location{State: "OH"})
	assert.Nil(t, report.Sections[model.DomainContamination])
	assert.NotNil(t, report.Sections[model.DomainDrinkingWater])
}

func TestSignalsRunsOnlyRealtimeAndEnforcement(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rt := &stubAdapter{
		domain: model.DomainRealtime,
		result: model.Succeeded(model.DomainRealtime, "usgs-nwis", &model.RealtimeReadings{
			Sites: 1,
			Readings: []model.Reading{
				{SiteID: "s1", SiteName: "s1", Param: "DO", Value: 3.5, Timestamp: base},
				{SiteID: "s1", SiteName: "s1", Param: "DO", Value: 6.0, Timestamp: base.Add(-time.Hour)},
				{SiteID: "s1", SiteName: "s1", Param: "conductivity", Value: 550, Timestamp: base},
				{SiteID: "s1", SiteName: "s1", Param: "conductivity", Value: 400, Timestamp: base.Add(-time.Hour)},
			},
		}),
	}
	other := &stubAdapter{
		domain: model.DomainDrinkingWater,
		result: model.Succeeded(model.DomainDrinkingWater, "sdwis", &model.DrinkingWaterSummary{}),
	}

	a := NewAssembler(
		[]source.Adapter{rt, other},
		nil,
		scorer.New(config.ScoringConfig{LowConfidenceThreshold: 50}),
		signal.New(config.SignalsConfig{
			OxygenFloorMgL: 4, OxygenDropPct: 30, ConductivityRisePct: 30,
			TurbidityFloorNTU: 50, TurbiditySurgePct: 100, DefaultLimit: 25,
		}),
		config.SourcesConfig{MaxConcurrent: 4},
	)

	events, status := a.Signals(context.Background(), "OH", 0)
	require.Len(t, events, 1)
	assert.Equal(t, model.SignalDischargeSignature, events[0].Type)
	assert.Contains(t, status, model.DomainRealtime)
	assert.NotContains(t, status, model.DomainDrinkingWater)
}

func TestCachedAdaptersMissWhenCold(t *testing.T) {
	store := cache.NewStore()
	index := cache.NewPointIndex()
	q := source.Query{Location: model.Location{State: "OH", Latitude: 40, Longitude: -82}, RadiusKM: 10}

	for _, ad := range []source.Adapter{
		NewImpairmentsAdapter(store),
		NewDrinkingWaterAdapter(store),
		NewHazardAdapter(store, index),
	} {
		res := ad.Fetch(context.Background(), q)
		assert.Equal(t, model.ResultFailed, res.Status)
		assert.Equal(t, model.ErrCacheMiss, res.ErrorKind)
	}
}

func TestCachedAdaptersServeCommittedUnits(t *testing.T) {
	store := cache.NewStore()
	index := cache.NewPointIndex()
	now := time.Now()

	store.Commit(cache.DomainAttains, "OH", &model.ImpairmentSummary{State: "OH", AssessedUnits: 10, ImpairedUnits: 2}, now)
	store.Commit(cache.DomainWWTP, "OH", []model.Facility{}, now)
	index.ReplaceState("OH", []model.Facility{
		{ID: "f1", Name: "Mill Creek WWTP", State: "OH", Latitude: 40.01, Longitude: -82.01},
	})

	q := source.Query{Location: model.Location{State: "OH", Latitude: 40, Longitude: -82}, RadiusKM: 10}

	res := NewImpairmentsAdapter(store).Fetch(context.Background(), q)
	require.True(t, res.OK())
	imp, ok := res.Value.(*model.ImpairmentSummary)
	require.True(t, ok)
	assert.Equal(t, 2, imp.ImpairedUnits)

	res = NewHazardAdapter(store, index).Fetch(context.Background(), q)
	require.True(t, res.OK())
	hz, ok := res.Value.(*model.HazardSummary)
	require.True(t, ok)
	require.Len(t, hz.NearbyWWTPs, 1)
	assert.Greater(t, hz.NearestKM, 0.0)
}
