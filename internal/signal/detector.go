// Package signal scans real-time readings for correlated anomaly signatures.
// A discharge signature needs at least two of three indicators (oxygen crash,
// conductivity spike, turbidity surge) at one site inside the same window;
// single-parameter threshold alerts only fire when no signature does.
package signal

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/pinwater/waterwatch/internal/config"
	"github.com/pinwater/waterwatch/internal/metrics"
	"github.com/pinwater/waterwatch/internal/model"
)

// Detector evaluates readings against configured anomaly thresholds.
type Detector struct {
	cfg config.SignalsConfig
}

func New(cfg config.SignalsConfig) *Detector {
	return &Detector{cfg: cfg}
}

// siteWindow groups a site's readings by parameter, newest first.
type siteWindow struct {
	id, name string
	lat, lon float64
	latest   time.Time
	params   map[string][]model.Reading
}

// Detect scans readings and merges in advisory signals from enforcement
// evidence, returning at most limit events in severity-then-recency order.
// Internal faults are recovered; detection is best-effort and never fails
// the surrounding report.
func (d *Detector) Detect(readings []model.Reading, enforcement *model.EnforcementSummary, limit int) (events []model.SignalEvent) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("signal: recovered internal fault", zap.Any("panic", r))
			events = nil
		}
	}()

	for _, site := range groupBySite(readings) {
		events = append(events, d.detectSite(site)...)
	}
	events = append(events, advisories(enforcement)...)

	model.SortSignals(events)
	if limit <= 0 {
		limit = d.cfg.DefaultLimit
	}
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}

	for _, e := range events {
		metrics.SignalsEmitted.WithLabelValues(string(e.Type), string(e.Severity)).Inc()
	}
	return events
}

// detectSite evaluates one site's window. Readings per parameter arrive
// newest first; the indicator heuristics compare the latest sample against
// the previous one.
func (d *Detector) detectSite(site *siteWindow) []model.SignalEvent {
	var indicators []string

	if latest, prev, ok := pair(site.params["DO"]); ok {
		if latest.Value < d.cfg.OxygenFloorMgL && dropPct(prev.Value, latest.Value) >= d.cfg.OxygenDropPct {
			indicators = append(indicators, fmt.Sprintf(
				"dissolved oxygen crashed %.1f to %.1f mg/L", prev.Value, latest.Value))
		}
	}
	if latest, prev, ok := pair(site.params["conductivity"]); ok {
		if risePct(prev.Value, latest.Value) >= d.cfg.ConductivityRisePct {
			indicators = append(indicators, fmt.Sprintf(
				"conductivity spiked %.0f to %.0f uS/cm", prev.Value, latest.Value))
		}
	}
	if latest, prev, ok := pair(site.params["turbidity"]); ok {
		if latest.Value > d.cfg.TurbidityFloorNTU && risePct(prev.Value, latest.Value) >= d.cfg.TurbiditySurgePct {
			indicators = append(indicators, fmt.Sprintf(
				"turbidity surged %.0f to %.0f NTU", prev.Value, latest.Value))
		}
	}

	if len(indicators) >= 2 {
		severity := model.SeverityMedium
		if len(indicators) == 3 {
			severity = model.SeverityHigh
		}
		return []model.SignalEvent{{
			Type:       model.SignalDischargeSignature,
			Severity:   severity,
			Title:      fmt.Sprintf("Probable discharge event at %s", site.name),
			Reason:     join(indicators),
			SiteID:     site.id,
			SiteName:   site.name,
			Latitude:   site.lat,
			Longitude:  site.lon,
			Timestamp:  site.latest,
			Indicators: len(indicators),
		}}
	}

	return d.parameterAlerts(site)
}

// parameterAlerts emits standalone threshold alerts for a site that did not
// produce a discharge signature.
func (d *Detector) parameterAlerts(site *siteWindow) []model.SignalEvent {
	var events []model.SignalEvent
	alert := func(title, reason string, ts time.Time) {
		events = append(events, model.SignalEvent{
			Type:      model.SignalParameterAlert,
			Severity:  model.SeverityLow,
			Title:     title,
			Reason:    reason,
			SiteID:    site.id,
			SiteName:  site.name,
			Latitude:  site.lat,
			Longitude: site.lon,
			Timestamp: ts,
		})
	}

	if latest, ok := newest(site.params["DO"]); ok && latest.Value < d.cfg.OxygenStressMgL {
		alert(fmt.Sprintf("Low dissolved oxygen at %s", site.name),
			fmt.Sprintf("%.1f mg/L, below the %.1f mg/L aquatic stress threshold",
				latest.Value, d.cfg.OxygenStressMgL), latest.Timestamp)
	}
	if latest, ok := newest(site.params["temperature"]); ok && latest.Value > d.cfg.ThermalStressC {
		alert(fmt.Sprintf("Thermal stress at %s", site.name),
			fmt.Sprintf("%.1f C, above the %.1f C threshold",
				latest.Value, d.cfg.ThermalStressC), latest.Timestamp)
	}
	if latest, ok := newest(site.params["turbidity"]); ok && latest.Value > d.cfg.TurbidityStandalone {
		alert(fmt.Sprintf("High turbidity at %s", site.name),
			fmt.Sprintf("%.0f NTU, above the %.0f NTU threshold",
				latest.Value, d.cfg.TurbidityStandalone), latest.Timestamp)
	}
	return events
}

// advisories derives low-urgency signals from recent formal enforcement
// actions.
func advisories(enforcement *model.EnforcementSummary) []model.SignalEvent {
	if enforcement == nil {
		return nil
	}
	var events []model.SignalEvent
	for _, action := range enforcement.RecentActions {
		severity := model.SeverityInfo
		if time.Since(action.Date) < 90*24*time.Hour {
			severity = model.SeverityLow
		}
		events = append(events, model.SignalEvent{
			Type:      model.SignalEnforcementAction,
			Severity:  severity,
			Title:     fmt.Sprintf("Enforcement action against %s", action.Facility),
			Reason:    action.Type,
			Timestamp: action.Date,
		})
	}
	return events
}

func groupBySite(readings []model.Reading) []*siteWindow {
	sites := make(map[string]*siteWindow)
	for _, r := range readings {
		site, ok := sites[r.SiteID]
		if !ok {
			site = &siteWindow{
				id:     r.SiteID,
				name:   r.SiteName,
				lat:    r.Latitude,
				lon:    r.Longitude,
				params: make(map[string][]model.Reading),
			}
			sites[r.SiteID] = site
		}
		site.params[r.Param] = append(site.params[r.Param], r)
		if r.Timestamp.After(site.latest) {
			site.latest = r.Timestamp
		}
	}

	out := make([]*siteWindow, 0, len(sites))
	for _, site := range sites {
		for _, rs := range site.params {
			sort.Slice(rs, func(i, j int) bool { return rs[i].Timestamp.After(rs[j].Timestamp) })
		}
		out = append(out, site)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// pair returns the newest and previous readings for a parameter.
func pair(rs []model.Reading) (latest, prev model.Reading, ok bool) {
	if len(rs) < 2 {
		return latest, prev, false
	}
	return rs[0], rs[1], true
}

func newest(rs []model.Reading) (model.Reading, bool) {
	if len(rs) == 0 {
		return model.Reading{}, false
	}
	return rs[0], true
}

func dropPct(prev, latest float64) float64 {
	if prev <= 0 {
		return 0
	}
	return (prev - latest) / prev * 100
}

func risePct(prev, latest float64) float64 {
	if prev <= 0 {
		return 0
	}
	return (latest - prev) / prev * 100
}

func join(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "; " + p
	}
	return out
}
