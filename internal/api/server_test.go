package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinwater/waterwatch/internal/cache"
	"github.com/pinwater/waterwatch/internal/config"
	"github.com/pinwater/waterwatch/internal/dossier"
	"github.com/pinwater/waterwatch/internal/health"
	"github.com/pinwater/waterwatch/internal/model"
	"github.com/pinwater/waterwatch/internal/scorer"
	"github.com/pinwater/waterwatch/internal/signal"
	"github.com/pinwater/waterwatch/internal/source"
	"github.com/pinwater/waterwatch/pkg/geocode"
)

type fakeLocator struct {
	loc model.Location
	err error
}

func (f *fakeLocator) Locate(_ context.Context, _ geocode.Query) (model.Location, error) {
	return f.loc, f.err
}

type stubAdapter struct {
	domain model.Domain
	result model.SourceResult
}

func (s *stubAdapter) Domain() model.Domain { return s.domain }

func (s *stubAdapter) Fetch(_ context.Context, _ source.Query) model.SourceResult {
	return s.result
}

type fakeBuilder struct {
	domain string
	units  []string
}

func (b *fakeBuilder) Domain() string     { return b.domain }
func (b *fakeBuilder) Units() []string    { return b.units }
func (b *fakeBuilder) TTL() time.Duration { return time.Hour }

func (b *fakeBuilder) FetchUnit(_ context.Context, key string) (any, error) {
	return &model.ImpairmentSummary{State: key, AssessedUnits: 10, ImpairedUnits: 1}, nil
}

func (b *fakeBuilder) DecodeUnit(data []byte) (any, error) {
	var s model.ImpairmentSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func newTestServer(t *testing.T, locator geocode.Client, adapters ...source.Adapter) *Server {
	t.Helper()
	store := cache.NewStore()
	coord := cache.NewCoordinator(store, nil, clockwork.NewRealClock(), 2)
	coord.Register(&fakeBuilder{domain: cache.DomainAttains, units: []string{"OH"}})

	assembler := dossier.NewAssembler(
		adapters,
		nil,
		scorer.New(config.ScoringConfig{LowConfidenceThreshold: 50}),
		signal.New(config.SignalsConfig{DefaultLimit: 25}),
		config.SourcesConfig{MaxConcurrent: 4, SearchRadiusKM: 10, SampleWindowDays: 90},
	)
	return NewServer(assembler, locator, coord, store, health.NewRegistry(), config.ServerConfig{Port: 0})
}

func doRequest(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, &fakeLocator{})
	rec := doRequest(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestReportMissingLocation(t *testing.T) {
	s := newTestServer(t, &fakeLocator{})
	rec := doRequest(t, s, http.MethodGet, "/v1/report")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "required")
}

func TestReportInvalidCoordinates(t *testing.T) {
	s := newTestServer(t, &fakeLocator{})
	rec := doRequest(t, s, http.MethodGet, "/v1/report?lat=91&lon=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportUnresolvableAddress(t *testing.T) {
	s := newTestServer(t, &fakeLocator{err: geocode.ErrNoMatch})
	rec := doRequest(t, s, http.MethodGet, "/v1/report?address=nowhere")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportSuccess(t *testing.T) {
	locator := &fakeLocator{loc: model.Location{Latitude: 40, Longitude: -82, State: "OH", StateFIPS: "39"}}
	ok := &stubAdapter{
		domain: model.DomainDrinkingWater,
		result: model.Succeeded(model.DomainDrinkingWater, "sdwis", &model.DrinkingWaterSummary{
			State: "OH", SystemCount: 3, PopulationServed: 9000,
		}),
	}
	failed := &stubAdapter{
		domain: model.DomainEnforcement,
		result: model.Failed(model.DomainEnforcement, model.ErrUpstream),
	}
	s := newTestServer(t, locator, ok, failed)

	rec := doRequest(t, s, http.MethodGet, "/v1/report?lat=40&lon=-82")
	require.Equal(t, http.StatusOK, rec.Code)

	var report struct {
		Evidence       map[string]json.RawMessage `json:"evidence"`
		CompositeScore *model.CompositeScore      `json:"composite_score"`
		GeneratedAt    time.Time                  `json:"generated_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.NotNil(t, report.CompositeScore)
	assert.False(t, report.GeneratedAt.IsZero())
	// Failed domain serialized as explicit null.
	assert.Equal(t, "null", string(report.Evidence["enforcement"]))
	assert.NotEqual(t, "null", string(report.Evidence["drinking_water"]))
}

func TestSignalsRequiresKnownState(t *testing.T) {
	s := newTestServer(t, &fakeLocator{})

	rec := doRequest(t, s, http.MethodGet, "/v1/signals")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/v1/signals?state=ZZ")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignalsReturnsSourceSummary(t *testing.T) {
	rt := &stubAdapter{
		domain: model.DomainRealtime,
		result: model.Succeeded(model.DomainRealtime, "usgs-nwis", &model.RealtimeReadings{Sites: 1}),
	}
	s := newTestServer(t, &fakeLocator{}, rt)

	rec := doRequest(t, s, http.MethodGet, "/v1/signals?state=OH&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Signals []model.SignalEvent       `json:"signals"`
		Sources map[string]map[string]any `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Sources, "realtime")
}

func TestCacheBuildLifecycle(t *testing.T) {
	s := newTestServer(t, &fakeLocator{})

	rec := doRequest(t, s, http.MethodPost, "/v1/cache/attains/build")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	// The build is detached; wait for it to commit its single unit.
	require.Eventually(t, func() bool {
		return s.store.Count(cache.DomainAttains) == 1
	}, 2*time.Second, 10*time.Millisecond)

	rec = doRequest(t, s, http.MethodGet, "/v1/cache/attains/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var status model.CacheBuildStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, model.CacheReady, status.State)
	assert.Equal(t, 1, status.LoadedUnits)
}

func TestCacheBulkSetsCacheControl(t *testing.T) {
	s := newTestServer(t, &fakeLocator{})
	s.store.Commit(cache.DomainAttains, "OH", &model.ImpairmentSummary{State: "OH"}, time.Now())

	rec := doRequest(t, s, http.MethodGet, "/v1/cache/attains")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "max-age=300, stale-while-revalidate=3600", rec.Header().Get("Cache-Control"))
}

func TestCacheUnknownDomain(t *testing.T) {
	s := newTestServer(t, &fakeLocator{})

	for _, req := range []struct{ method, target string }{
		{http.MethodPost, "/v1/cache/nope/build"},
		{http.MethodGet, "/v1/cache/nope/status"},
		{http.MethodGet, "/v1/cache/nope"},
	} {
		rec := doRequest(t, s, req.method, req.target)
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", req.method, req.target)
	}
}
