// Package model defines the domain types shared across the dossier pipeline:
// resolved locations, per-source evidence, scores, and anomaly signals.
package model

import "time"

// Domain identifies one evidence domain in the dossier.
type Domain string

const (
	DomainWaterQuality  Domain = "water_quality"  // WQP discrete samples
	DomainImpairments   Domain = "impairments"    // ATTAINS assessment units
	DomainDrinkingWater Domain = "drinking_water" // SDWIS systems + violations
	DomainPermits       Domain = "permits"        // ICIS-NPDES discharge permits
	DomainEnforcement   Domain = "enforcement"    // ECHO compliance
	DomainContamination Domain = "contamination"  // UCMR PFAS screening
	DomainHabitat       Domain = "habitat"        // species / critical habitat
	DomainHazard        Domain = "hazard"         // WWTP proximity
	DomainEquity        Domain = "equity"         // EJScreen indicators
	DomainRealtime      Domain = "realtime"       // USGS NWIS instantaneous
)

// ResultStatus is the outcome of one adapter invocation.
type ResultStatus string

const (
	ResultOK     ResultStatus = "ok"
	ResultFailed ResultStatus = "failed"
)

// ErrorKind classifies adapter failures.
type ErrorKind string

const (
	ErrTimeout   ErrorKind = "timeout"
	ErrUpstream  ErrorKind = "upstream_status"
	ErrMalformed ErrorKind = "malformed_payload"
	ErrExhausted ErrorKind = "mirrors_exhausted"
	ErrSkipped   ErrorKind = "backoff_skip"
	ErrCacheMiss ErrorKind = "cache_miss"
)

// SourceResult is the immutable outcome of one source adapter call.
// Value is nil whenever Status is ResultFailed.
type SourceResult struct {
	Domain    Domain       `json:"domain"`
	Status    ResultStatus `json:"status"`
	Value     any          `json:"value,omitempty"`
	ErrorKind ErrorKind    `json:"error_kind,omitempty"`
	Source    string       `json:"source,omitempty"` // endpoint that answered
}

// OK reports whether the result carries a usable value.
func (r SourceResult) OK() bool {
	return r.Status == ResultOK && r.Value != nil
}

// Failed constructs a failure result for a domain.
func Failed(d Domain, kind ErrorKind) SourceResult {
	return SourceResult{Domain: d, Status: ResultFailed, ErrorKind: kind}
}

// Succeeded constructs a success result for a domain.
func Succeeded(d Domain, source string, value any) SourceResult {
	return SourceResult{Domain: d, Status: ResultOK, Source: source, Value: value}
}

// EvidenceBundle aggregates every SourceResult for a single request. It is
// created fresh per request and never shared across requests.
type EvidenceBundle struct {
	Location Location                `json:"location"`
	Results  map[Domain]SourceResult `json:"results"`
}

// NewEvidenceBundle creates an empty bundle for a resolved location.
func NewEvidenceBundle(loc Location) *EvidenceBundle {
	return &EvidenceBundle{
		Location: loc,
		Results:  make(map[Domain]SourceResult),
	}
}

// Get returns the result for a domain, or a failed placeholder when the
// domain was never queried.
func (b *EvidenceBundle) Get(d Domain) SourceResult {
	if r, ok := b.Results[d]; ok {
		return r
	}
	return Failed(d, ErrSkipped)
}

// Value returns the typed payload for a domain, or nil when missing/failed.
func Value[T any](b *EvidenceBundle, d Domain) *T {
	r := b.Get(d)
	if !r.OK() {
		return nil
	}
	v, ok := r.Value.(*T)
	if !ok {
		return nil
	}
	return v
}

// Location is a resolved request location.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	State     string  `json:"state"`      // two-letter code, e.g. "MD"
	StateFIPS string  `json:"state_fips"` // e.g. "24"
	Label     string  `json:"label,omitempty"`
}

// Report is the assembled response for a site lookup. A domain whose source
// failed entirely appears in Sections as an explicit nil, never as a
// request-level error.
type Report struct {
	ID          string          `json:"id"`
	Location    Location        `json:"location"`
	Sections    map[Domain]any  `json:"evidence"`
	Composite   *CompositeScore `json:"composite_score,omitempty"`
	Signals     []SignalEvent   `json:"signals,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
}
