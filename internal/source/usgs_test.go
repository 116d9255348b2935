package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinwater/waterwatch/internal/model"
)

const nwisFixture = `{
	"value": {
		"timeSeries": [
			{
				"sourceInfo": {
					"siteName": "POTOMAC RIVER NEAR WASH, DC LITTLE FALLS PUMP STA",
					"siteCode": [{"value": "01646500"}],
					"geoLocation": {"geogLocation": {"latitude": 38.94977778, "longitude": -77.12763889}}
				},
				"variable": {
					"variableCode": [{"value": "00300"}],
					"unit": {"unitCode": "mg/l"}
				},
				"values": [{"value": [
					{"value": "8.4", "dateTime": "2026-03-01T10:00:00-05:00"},
					{"value": "8.1", "dateTime": "2026-03-01T10:15:00-05:00"},
					{"value": "7.9", "dateTime": "2026-03-01T10:30:00-05:00"}
				]}]
			},
			{
				"sourceInfo": {
					"siteName": "POTOMAC RIVER NEAR WASH, DC LITTLE FALLS PUMP STA",
					"siteCode": [{"value": "01646500"}],
					"geoLocation": {"geogLocation": {"latitude": 38.94977778, "longitude": -77.12763889}}
				},
				"variable": {
					"variableCode": [{"value": "00095"}],
					"unit": {"unitCode": "mS/cm"}
				},
				"values": [{"value": [
					{"value": "0.42", "dateTime": "2026-03-01T10:30:00-05:00"}
				]}]
			},
			{
				"sourceInfo": {
					"siteName": "SENTINEL SITE",
					"siteCode": [{"value": "99999999"}],
					"geoLocation": {"geogLocation": {"latitude": 0, "longitude": 0}}
				},
				"variable": {
					"variableCode": [{"value": "00010"}],
					"unit": {"unitCode": "deg C"}
				},
				"values": [{"value": [
					{"value": "-999999", "dateTime": "2026-03-01T10:30:00-05:00"}
				]}]
			}
		]
	}
}`

func TestUSGSFetchNormalizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(nwisFixture))
	}))
	defer srv.Close()

	a := NewUSGSAdapter(NewChain("usgs-nwis", []Endpoint{{Name: "test", URL: srv.URL}}, time.Second, nil, nil))
	res := a.Fetch(context.Background(), Query{Location: model.Location{State: "MD"}})
	require.True(t, res.OK())

	rt, ok := res.Value.(*model.RealtimeReadings)
	require.True(t, ok)
	assert.Equal(t, 1, rt.Sites) // sentinel site's only reading is dropped

	byParam := make(map[string][]model.Reading)
	for _, r := range rt.Readings {
		byParam[r.Param] = append(byParam[r.Param], r)
	}

	// Two newest DO samples kept, newest first.
	require.Len(t, byParam["DO"], 2)
	assert.InDelta(t, 7.9, byParam["DO"][0].Value, 0.001)
	assert.InDelta(t, 8.1, byParam["DO"][1].Value, 0.001)
	assert.Equal(t, "mg/L", byParam["DO"][0].Unit)

	// mS/cm converted to uS/cm.
	require.Len(t, byParam["conductivity"], 1)
	assert.InDelta(t, 420, byParam["conductivity"][0].Value, 0.001)
	assert.Equal(t, "uS/cm", byParam["conductivity"][0].Unit)

	// Sentinel value dropped entirely.
	assert.Empty(t, byParam["temperature"])
}

func TestUSGSFetchUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := NewUSGSAdapter(NewChain("usgs-nwis", []Endpoint{{Name: "test", URL: srv.URL}}, time.Second, nil, nil))
	res := a.Fetch(context.Background(), Query{Location: model.Location{State: "MD"}})
	assert.Equal(t, model.ResultFailed, res.Status)
	assert.Equal(t, model.ErrUpstream, res.ErrorKind)
}

func TestNormalizeUnitRejectsUnknown(t *testing.T) {
	_, _, ok := normalizeUnit("DO", "percent saturation")
	assert.False(t, ok)

	_, _, ok = normalizeUnit("conductivity", "ohm")
	assert.False(t, ok)

	unit, factor, ok := normalizeUnit("turbidity", "FNU")
	require.True(t, ok)
	assert.Equal(t, "NTU", unit)
	assert.Equal(t, 1.0, factor)
}
