package model

import "time"

// Canonical domain payloads. Every adapter normalizes its provider's raw
// shape into one of these before returning; downstream components never see
// provider field names.

// WaterQualitySummary summarizes recent discrete samples near a site.
type WaterQualitySummary struct {
	StationCount int                `json:"station_count"`
	SampleCount  int                `json:"sample_count"`
	Latest       map[string]Reading `json:"latest"` // by param key
	WindowDays   int                `json:"window_days"`
}

// ImpairmentSummary summarizes ATTAINS assessment units for a state.
type ImpairmentSummary struct {
	State          string   `json:"state"`
	AssessedUnits  int      `json:"assessed_units"`
	ImpairedUnits  int      `json:"impaired_units"`
	TopCauses      []string `json:"top_causes,omitempty"`
	ReportingCycle string   `json:"reporting_cycle,omitempty"`
}

// DrinkingWaterSummary summarizes SDWIS systems serving a state/area.
type DrinkingWaterSummary struct {
	State            string `json:"state"`
	SystemCount      int    `json:"system_count"`
	ActiveViolations int    `json:"active_violations"`
	HealthBased      int    `json:"health_based_violations"`
	PopulationServed int    `json:"population_served"`
}

// PermitSummary summarizes NPDES discharge permits near a site.
type PermitSummary struct {
	State        string `json:"state"`
	PermitCount  int    `json:"permit_count"`
	MajorPermits int    `json:"major_permits"`
	ExpiredCount int    `json:"expired_count"`
}

// EnforcementAction is one formal action against a facility.
type EnforcementAction struct {
	Facility string    `json:"facility"`
	Type     string    `json:"type"`
	Date     time.Time `json:"date"`
}

// EnforcementSummary summarizes ECHO compliance state.
type EnforcementSummary struct {
	State              string              `json:"state"`
	FacilityCount      int                 `json:"facility_count"`
	InViolation        int                 `json:"in_violation"`
	SignificantNoncomp int                 `json:"significant_noncompliance"`
	RecentActions      []EnforcementAction `json:"recent_actions,omitempty"`
}

// ContaminationSummary summarizes UCMR contaminant screening results.
type ContaminationSummary struct {
	ResultCount    int      `json:"result_count"`
	DetectionCount int      `json:"detection_count"`
	Contaminants   []string `json:"contaminants,omitempty"`
}

// HabitatSummary summarizes protected species presence near a site.
type HabitatSummary struct {
	SpeciesCount    int      `json:"species_count"`
	ListedSpecies   []string `json:"listed_species,omitempty"`
	CriticalHabitat bool     `json:"critical_habitat"`
}

// Facility is one permitted facility with a location.
type Facility struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	State     string  `json:"state"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// HazardSummary summarizes treatment-plant proximity for a site.
type HazardSummary struct {
	NearbyWWTPs  []Facility `json:"nearby_wwtps,omitempty"`
	NearestKM    float64    `json:"nearest_km,omitempty"`
	SearchRadius float64    `json:"search_radius_km"`
}

// EquitySummary holds demographic/equity indicators for a site's block group.
type EquitySummary struct {
	DemographicIndex  float64 `json:"demographic_index"` // percentile [0,100]
	LowIncomePct      float64 `json:"low_income_pct"`
	WastewaterPercile float64 `json:"wastewater_percentile"`
}

// RealtimeReadings is the live USGS NWIS evidence: the two most recent
// samples per parameter per site, newest first.
type RealtimeReadings struct {
	Readings []Reading `json:"readings"`
	Sites    int       `json:"sites"`
}
