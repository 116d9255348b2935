package model

import (
	"sort"
	"time"
)

// SignalSeverity orders anomaly signals from most to least urgent.
type SignalSeverity string

const (
	SeverityHigh   SignalSeverity = "high"
	SeverityMedium SignalSeverity = "medium"
	SeverityLow    SignalSeverity = "low"
	SeverityInfo   SignalSeverity = "info"
)

// severityRank gives the total order used for sorting: high < medium < low < info.
var severityRank = map[SignalSeverity]int{
	SeverityHigh:   0,
	SeverityMedium: 1,
	SeverityLow:    2,
	SeverityInfo:   3,
}

// SignalType identifies the detection path that produced a signal.
type SignalType string

const (
	SignalDischargeSignature SignalType = "discharge_signature"
	SignalParameterAlert     SignalType = "parameter_alert"
	SignalEnforcementAction  SignalType = "enforcement_action"
	SignalAdvisory           SignalType = "advisory"
)

// SignalEvent is a transient anomaly signal. Events are never persisted.
type SignalEvent struct {
	Type       SignalType     `json:"type"`
	Severity   SignalSeverity `json:"severity"`
	Title      string         `json:"title"`
	Reason     string         `json:"reason"`
	SiteID     string         `json:"site_id,omitempty"`
	SiteName   string         `json:"site_name,omitempty"`
	Latitude   float64        `json:"latitude,omitempty"`
	Longitude  float64        `json:"longitude,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Indicators int            `json:"indicators,omitempty"` // correlated indicator count
}

// SortSignals orders events by severity (high first), ties broken by
// timestamp descending.
func SortSignals(events []SignalEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		ri, rj := severityRank[events[i].Severity], severityRank[events[j].Severity]
		if ri != rj {
			return ri < rj
		}
		return events[i].Timestamp.After(events[j].Timestamp)
	})
}

// Reading is one normalized real-time parameter sample at a monitoring site.
// Values are already unit-normalized at the adapter boundary: DO in mg/L,
// conductivity in uS/cm, turbidity in NTU, temperature in degrees C.
type Reading struct {
	SiteID    string    `json:"site_id"`
	SiteName  string    `json:"site_name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Param     string    `json:"param"` // DO, temperature, pH, turbidity, conductivity, ...
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
}
