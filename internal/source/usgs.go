package source

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pinwater/waterwatch/internal/model"
)

// usgsCodes maps NWIS parameter codes to canonical parameter keys.
var usgsCodes = map[string]string{
	"00300": "DO",
	"00010": "temperature",
	"00400": "pH",
	"63680": "turbidity",
	"00095": "conductivity",
	"00060": "discharge",
	"00065": "gage_height",
	"00480": "salinity",
}

// USGSAdapter pulls instantaneous sensor readings from NWIS. It keeps the
// two most recent samples per site/parameter pair so the detector can
// compute rate of change.
type USGSAdapter struct {
	chain *Chain
}

// NewUSGSAdapter creates the real-time readings adapter.
func NewUSGSAdapter(chain *Chain) *USGSAdapter {
	return &USGSAdapter{chain: chain}
}

// Domain implements Adapter.
func (a *USGSAdapter) Domain() model.Domain { return model.DomainRealtime }

// Raw NWIS shapes. Only the fields we read are declared; everything is
// optional because site metadata is frequently incomplete.
type nwisResponse struct {
	Value struct {
		TimeSeries []nwisSeries `json:"timeSeries"`
	} `json:"value"`
}

type nwisSeries struct {
	SourceInfo struct {
		SiteName string `json:"siteName"`
		SiteCode []struct {
			Value string `json:"value"`
		} `json:"siteCode"`
		GeoLocation struct {
			GeogLocation struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"geogLocation"`
		} `json:"geoLocation"`
	} `json:"sourceInfo"`
	Variable struct {
		VariableCode []struct {
			Value string `json:"value"`
		} `json:"variableCode"`
		Unit struct {
			UnitCode string `json:"unitCode"`
		} `json:"unit"`
	} `json:"variable"`
	Values []struct {
		Value []struct {
			Value    string `json:"value"`
			DateTime string `json:"dateTime"`
		} `json:"value"`
	} `json:"values"`
}

// Fetch implements Adapter.
func (a *USGSAdapter) Fetch(ctx context.Context, q Query) model.SourceResult {
	body, endpoint, kind, err := a.chain.Get(ctx, map[string]string{
		"state": strings.ToLower(q.Location.State),
	})
	if err != nil {
		return model.Failed(model.DomainRealtime, kind)
	}

	var resp nwisResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		zap.L().Debug("usgs: malformed payload", zap.Error(err))
		return model.Failed(model.DomainRealtime, model.ErrMalformed)
	}

	readings := normalizeNWIS(resp.Value.TimeSeries)
	sites := make(map[string]struct{})
	for _, r := range readings {
		sites[r.SiteID] = struct{}{}
	}

	return model.Succeeded(model.DomainRealtime, endpoint, &model.RealtimeReadings{
		Readings: readings,
		Sites:    len(sites),
	})
}

// normalizeNWIS flattens time series into canonical readings, keeping the
// two newest samples per site/parameter.
func normalizeNWIS(series []nwisSeries) []model.Reading {
	var out []model.Reading
	for _, ts := range series {
		if len(ts.SourceInfo.SiteCode) == 0 || len(ts.Variable.VariableCode) == 0 {
			continue
		}
		param, ok := usgsCodes[ts.Variable.VariableCode[0].Value]
		if !ok {
			continue
		}
		unit, factor, ok := normalizeUnit(param, ts.Variable.Unit.UnitCode)
		if !ok {
			continue // unmappable unit: drop, never guess
		}

		var samples []model.Reading
		for _, vs := range ts.Values {
			for _, v := range vs.Value {
				val, err := strconv.ParseFloat(v.Value, 64)
				if err != nil || val <= -99999 { // NWIS sentinel for missing
					continue
				}
				t, err := time.Parse(time.RFC3339, v.DateTime)
				if err != nil {
					continue
				}
				samples = append(samples, model.Reading{
					SiteID:    ts.SourceInfo.SiteCode[0].Value,
					SiteName:  ts.SourceInfo.SiteName,
					Latitude:  ts.SourceInfo.GeoLocation.GeogLocation.Latitude,
					Longitude: ts.SourceInfo.GeoLocation.GeogLocation.Longitude,
					Param:     param,
					Value:     val * factor,
					Unit:      unit,
					Timestamp: t,
				})
			}
		}
		sort.Slice(samples, func(i, j int) bool {
			return samples[i].Timestamp.After(samples[j].Timestamp)
		})
		if len(samples) > 2 {
			samples = samples[:2]
		}
		out = append(out, samples...)
	}
	return out
}

// normalizeUnit maps an upstream unit code to the canonical unit for a
// parameter, with a multiplicative conversion factor. Unknown units are
// rejected rather than guessed.
func normalizeUnit(param, unitCode string) (unit string, factor float64, ok bool) {
	u := strings.ToLower(strings.TrimSpace(unitCode))
	switch param {
	case "DO":
		if strings.HasPrefix(u, "mg/l") {
			return "mg/L", 1, true
		}
	case "temperature":
		if strings.HasPrefix(u, "deg c") || u == "c" {
			return "degC", 1, true
		}
	case "conductivity":
		if strings.HasPrefix(u, "us/cm") || strings.HasPrefix(u, "µs/cm") {
			return "uS/cm", 1, true
		}
		if strings.HasPrefix(u, "ms/cm") {
			return "uS/cm", 1000, true
		}
	case "turbidity":
		// FNU and NTU are treated as equivalent for thresholding.
		if strings.HasPrefix(u, "ntu") || strings.HasPrefix(u, "fnu") {
			return "NTU", 1, true
		}
	case "pH":
		return "pH", 1, true
	case "salinity":
		if strings.HasPrefix(u, "ppt") || strings.HasPrefix(u, "psu") {
			return "ppt", 1, true
		}
	case "discharge":
		if strings.HasPrefix(u, "ft3/s") || strings.HasPrefix(u, "cfs") {
			return "cfs", 1, true
		}
	case "gage_height":
		if strings.HasPrefix(u, "ft") {
			return "ft", 1, true
		}
	}
	return "", 0, false
}
