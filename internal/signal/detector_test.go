package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinwater/waterwatch/internal/config"
	"github.com/pinwater/waterwatch/internal/model"
)

func testDetector() *Detector {
	return New(config.SignalsConfig{
		OxygenFloorMgL:      4.0,
		OxygenDropPct:       30,
		ConductivityRisePct: 30,
		TurbidityFloorNTU:   50,
		TurbiditySurgePct:   100,
		OxygenStressMgL:     5.0,
		ThermalStressC:      30,
		TurbidityStandalone: 100,
		DefaultLimit:        25,
	})
}

func readingPair(site, param string, prev, latest float64, base time.Time) []model.Reading {
	return []model.Reading{
		{SiteID: site, SiteName: site, Param: param, Value: latest, Timestamp: base},
		{SiteID: site, SiteName: site, Param: param, Value: prev, Timestamp: base.Add(-time.Hour)},
	}
}

func TestDetectDischargeSignatureTwoIndicators(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var readings []model.Reading
	readings = append(readings, readingPair("01646500", "DO", 6.0, 3.5, base)...)
	readings = append(readings, readingPair("01646500", "conductivity", 400, 550, base)...)

	events := testDetector().Detect(readings, nil, 0)

	require.Len(t, events, 1)
	assert.Equal(t, model.SignalDischargeSignature, events[0].Type)
	assert.Equal(t, model.SeverityMedium, events[0].Severity)
	assert.Equal(t, 2, events[0].Indicators)
	assert.Equal(t, "01646500", events[0].SiteID)
}

func TestDetectDischargeSignatureThreeIndicatorsIsHigh(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var readings []model.Reading
	readings = append(readings, readingPair("site-a", "DO", 7.0, 2.0, base)...)
	readings = append(readings, readingPair("site-a", "conductivity", 300, 600, base)...)
	readings = append(readings, readingPair("site-a", "turbidity", 20, 80, base)...)

	events := testDetector().Detect(readings, nil, 0)

	require.Len(t, events, 1)
	assert.Equal(t, model.SeverityHigh, events[0].Severity)
	assert.Equal(t, 3, events[0].Indicators)
}

func TestDetectSingleIndicatorFallsThroughToAlert(t *testing.T) {
	// DO crash alone is not a signature; it becomes a stress alert.
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	readings := readingPair("site-a", "DO", 6.0, 3.5, base)

	events := testDetector().Detect(readings, nil, 0)

	require.Len(t, events, 1)
	assert.Equal(t, model.SignalParameterAlert, events[0].Type)
	assert.Equal(t, model.SeverityLow, events[0].Severity)
}

func TestDetectThresholdsNotMet(t *testing.T) {
	// DO below floor but drop under 30%: no indicator, and 3.9 is below the
	// 5.0 stress threshold so a standalone alert still fires.
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var readings []model.Reading
	readings = append(readings, readingPair("site-a", "DO", 4.5, 3.9, base)...)
	readings = append(readings, readingPair("site-a", "conductivity", 400, 440, base)...)

	events := testDetector().Detect(readings, nil, 0)

	require.Len(t, events, 1)
	assert.Equal(t, model.SignalParameterAlert, events[0].Type)
}

func TestDetectOrderAndLimit(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var readings []model.Reading
	// site-a: 3-indicator signature (high).
	readings = append(readings, readingPair("site-a", "DO", 7.0, 2.0, base)...)
	readings = append(readings, readingPair("site-a", "conductivity", 300, 600, base)...)
	readings = append(readings, readingPair("site-a", "turbidity", 20, 80, base)...)
	// site-b: thermal alert (low).
	readings = append(readings, readingPair("site-b", "temperature", 28, 32, base.Add(time.Hour))...)
	// site-c: 2-indicator signature (medium).
	readings = append(readings, readingPair("site-c", "DO", 6.0, 3.0, base)...)
	readings = append(readings, readingPair("site-c", "conductivity", 400, 600, base)...)

	events := testDetector().Detect(readings, nil, 0)
	require.Len(t, events, 3)
	assert.Equal(t, model.SeverityHigh, events[0].Severity)
	assert.Equal(t, model.SeverityMedium, events[1].Severity)
	assert.Equal(t, model.SeverityLow, events[2].Severity)

	truncated := testDetector().Detect(readings, nil, 2)
	require.Len(t, truncated, 2)
	assert.Equal(t, model.SeverityHigh, truncated[0].Severity)
}

func TestDetectMergesEnforcementAdvisories(t *testing.T) {
	now := time.Now()
	enforcement := &model.EnforcementSummary{
		RecentActions: []model.EnforcementAction{
			{Facility: "Westside WWTP", Type: "Administrative Order", Date: now.AddDate(0, -1, 0)},
			{Facility: "Mill Creek Plant", Type: "Consent Decree", Date: now.AddDate(0, -8, 0)},
		},
	}

	events := testDetector().Detect(nil, enforcement, 0)

	require.Len(t, events, 2)
	assert.Equal(t, model.SignalEnforcementAction, events[0].Type)
	assert.Equal(t, model.SeverityLow, events[0].Severity)
	assert.Equal(t, model.SeverityInfo, events[1].Severity)
}

func TestDetectEmptyInput(t *testing.T) {
	events := testDetector().Detect(nil, nil, 0)
	assert.Empty(t, events)
}
