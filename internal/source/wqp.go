package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pinwater/waterwatch/internal/model"
)

// wqpParams maps WQP characteristic names to canonical parameter keys.
var wqpParams = map[string]string{
	"Dissolved oxygen (DO)":  "DO",
	"Temperature, water":     "temperature",
	"pH":                     "pH",
	"Turbidity":              "turbidity",
	"Total suspended solids": "TSS",
	"Nitrogen, mixed forms (NH3), (NH4), organic, (NO2) and (NO3)": "TN",
	"Total Nitrogen, mixed forms":                                  "TN",
	"Nitrogen":                                                     "TN",
	"Phosphorus":                                                   "TP",
	"Escherichia coli":                                             "bacteria",
	"Enterococcus":                                                 "bacteria",
	"Fecal Coliform":                                               "bacteria",
	"Chlorophyll a":                                                "chlorophyll",
	"Specific conductance":                                         "conductivity",
	"Salinity":                                                     "salinity",
	"Secchi depth":                                                 "secchi",
}

// WQPAdapter summarizes recent discrete samples from the Water Quality
// Portal for the request's state. The portal is slow; the chain uses the
// bulk timeout.
type WQPAdapter struct {
	chain *Chain
}

// NewWQPAdapter creates the discrete-sample adapter.
func NewWQPAdapter(chain *Chain) *WQPAdapter {
	return &WQPAdapter{chain: chain}
}

// Domain implements Adapter.
func (a *WQPAdapter) Domain() model.Domain { return model.DomainWaterQuality }

// Fetch implements Adapter.
func (a *WQPAdapter) Fetch(ctx context.Context, q Query) model.SourceResult {
	body, endpoint, kind, err := a.chain.Get(ctx, map[string]string{
		"fips":  q.Location.StateFIPS,
		"start": startDate(q.Now, q.WindowDays),
	})
	if err != nil {
		return model.Failed(model.DomainWaterQuality, kind)
	}

	summary, err := parseWQPResults(body, q.WindowDays)
	if err != nil {
		zap.L().Debug("wqp: malformed payload", zap.Error(err))
		return model.Failed(model.DomainWaterQuality, model.ErrMalformed)
	}
	return model.Succeeded(model.DomainWaterQuality, endpoint, summary)
}

// parseWQPResults reads the portal's CSV result export and keeps the latest
// sample per canonical parameter.
func parseWQPResults(body []byte, windowDays int) (*model.WaterQualitySummary, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, err
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	summary := &model.WaterQualitySummary{
		Latest:     make(map[string]model.Reading),
		WindowDays: windowDays,
	}
	stations := make(map[string]struct{})

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // skip unparseable rows, keep the rest
		}

		param, ok := wqpParams[get(rec, "characteristicname")]
		if !ok {
			continue
		}
		val, err := strconv.ParseFloat(get(rec, "resultmeasurevalue"), 64)
		if err != nil {
			continue
		}
		station := get(rec, "monitoringlocationidentifier")
		when, _ := time.Parse("2006-01-02", get(rec, "activitystartdate"))

		summary.SampleCount++
		if station != "" {
			stations[station] = struct{}{}
		}

		prev, seen := summary.Latest[param]
		if !seen || when.After(prev.Timestamp) {
			summary.Latest[param] = model.Reading{
				SiteID:    station,
				Param:     param,
				Value:     val,
				Unit:      get(rec, "resultmeasure/measureunitcode"),
				Timestamp: when,
			}
		}
	}

	summary.StationCount = len(stations)
	return summary, nil
}
