package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinwater/waterwatch/internal/config"
	"github.com/pinwater/waterwatch/internal/model"
)

func testScorer() *Scorer {
	return New(config.ScoringConfig{LowConfidenceThreshold: 50})
}

func fullBundle() *model.EvidenceBundle {
	b := model.NewEvidenceBundle(model.Location{State: "OH"})
	b.Results[model.DomainWaterQuality] = model.Succeeded(model.DomainWaterQuality, "wqp", &model.WaterQualitySummary{
		StationCount: 4, SampleCount: 120, WindowDays: 90,
		Latest: map[string]model.Reading{},
	})
	b.Results[model.DomainImpairments] = model.Succeeded(model.DomainImpairments, "attains", &model.ImpairmentSummary{
		State: "OH", AssessedUnits: 100, ImpairedUnits: 10,
	})
	b.Results[model.DomainRealtime] = model.Succeeded(model.DomainRealtime, "usgs-nwis", &model.RealtimeReadings{Sites: 2})
	b.Results[model.DomainDrinkingWater] = model.Succeeded(model.DomainDrinkingWater, "sdwis", &model.DrinkingWaterSummary{
		State: "OH", SystemCount: 12, PopulationServed: 50000,
	})
	b.Results[model.DomainPermits] = model.Succeeded(model.DomainPermits, "icis", &model.PermitSummary{
		State: "OH", PermitCount: 8, MajorPermits: 1,
	})
	b.Results[model.DomainEnforcement] = model.Succeeded(model.DomainEnforcement, "echo", &model.EnforcementSummary{
		State: "OH", FacilityCount: 8,
	})
	b.Results[model.DomainContamination] = model.Succeeded(model.DomainContamination, "ucmr", &model.ContaminationSummary{
		ResultCount: 40,
	})
	b.Results[model.DomainHazard] = model.Succeeded(model.DomainHazard, "frs", &model.HazardSummary{SearchRadius: 10})
	b.Results[model.DomainHabitat] = model.Succeeded(model.DomainHabitat, "fws", &model.HabitatSummary{})
	b.Results[model.DomainEquity] = model.Succeeded(model.DomainEquity, "ejscreen", &model.EquitySummary{
		DemographicIndex: 40, LowIncomePct: 30, WastewaterPercile: 40,
	})
	return b
}

func TestScoreFullEvidence(t *testing.T) {
	got := testScorer().Score(fullBundle())
	require.NotNil(t, got)

	assert.Equal(t, float64(100), got.Confidence)
	assert.Empty(t, got.Observations)
	require.Len(t, got.Categories, 5)
	for _, cat := range got.Categories {
		assert.NotEmpty(t, cat.Factors, "category %s should have factors", cat.Label)
		assert.GreaterOrEqual(t, cat.Score, 0.0)
		assert.LessOrEqual(t, cat.Score, 100.0)
	}
	assert.Contains(t, []string{"A", "B"}, got.LetterGrade)
}

func TestScoreMissingCategoriesLowersConfidence(t *testing.T) {
	// Only drinking water (25) and contamination (15) present: 40% of weight.
	b := model.NewEvidenceBundle(model.Location{State: "OH"})
	b.Results[model.DomainDrinkingWater] = model.Succeeded(model.DomainDrinkingWater, "sdwis", &model.DrinkingWaterSummary{
		State: "OH", SystemCount: 3, PopulationServed: 9000,
	})
	b.Results[model.DomainContamination] = model.Succeeded(model.DomainContamination, "ucmr", &model.ContaminationSummary{
		ResultCount: 10,
	})

	got := testScorer().Score(b)
	require.NotNil(t, got)

	assert.LessOrEqual(t, got.Confidence, 40.0)
	require.NotEmpty(t, got.Observations)
	assert.Equal(t, model.ObservationWarning, got.Observations[0].Severity)
}

func TestScoreZeroFactorCategoryExcluded(t *testing.T) {
	// Single dirty category; empty categories must not pull the mean up.
	b := model.NewEvidenceBundle(model.Location{State: "OH"})
	b.Results[model.DomainDrinkingWater] = model.Succeeded(model.DomainDrinkingWater, "sdwis", &model.DrinkingWaterSummary{
		State: "OH", SystemCount: 5, ActiveViolations: 10, HealthBased: 4, PopulationServed: 20000,
	})

	got := testScorer().Score(b)
	require.NotNil(t, got)

	var dw, wq model.CategoryScore
	for _, cat := range got.Categories {
		switch cat.Label {
		case "drinking water":
			dw = cat
		case "water quality":
			wq = cat
		}
	}
	assert.Empty(t, wq.Factors)
	assert.Equal(t, float64(0), wq.Confidence)
	// Composite equals the only available category's score.
	assert.Equal(t, dw.Score, got.Score)
}

func TestScoreLowPercentileEquityStillCounts(t *testing.T) {
	// Equity data below every trigger threshold is still evidence; the
	// surroundings category must not collapse to no-data.
	b := model.NewEvidenceBundle(model.Location{State: "OH"})
	b.Results[model.DomainEquity] = model.Succeeded(model.DomainEquity, "ejscreen", &model.EquitySummary{
		DemographicIndex: 20, LowIncomePct: 15, WastewaterPercile: 30,
	})

	got := testScorer().Score(b)
	require.NotNil(t, got)

	var sur model.CategoryScore
	for _, cat := range got.Categories {
		if cat.Label == "surroundings" {
			sur = cat
		}
	}
	require.NotEmpty(t, sur.Factors)
	assert.Greater(t, sur.Confidence, 0.0)
	assert.Equal(t, float64(100), sur.Score)
}

func TestScoreClampedAtZero(t *testing.T) {
	b := model.NewEvidenceBundle(model.Location{State: "OH"})
	b.Results[model.DomainDrinkingWater] = model.Succeeded(model.DomainDrinkingWater, "sdwis", &model.DrinkingWaterSummary{
		State: "OH", SystemCount: 2, ActiveViolations: 100, HealthBased: 50, PopulationServed: 1000,
	})
	b.Results[model.DomainContamination] = model.Succeeded(model.DomainContamination, "ucmr", &model.ContaminationSummary{
		ResultCount: 10, DetectionCount: 10, Contaminants: []string{"PFOA", "PFOS"},
	})

	got := testScorer().Score(b)
	require.NotNil(t, got)
	for _, cat := range got.Categories {
		assert.GreaterOrEqual(t, cat.Score, 0.0)
	}
	assert.GreaterOrEqual(t, got.Score, 0.0)
}

func TestScoreConfidenceMonotonic(t *testing.T) {
	full := testScorer().Score(fullBundle())
	require.NotNil(t, full)

	reduced := fullBundle()
	delete(reduced.Results, model.DomainWaterQuality)
	delete(reduced.Results, model.DomainImpairments)
	delete(reduced.Results, model.DomainRealtime)
	partial := testScorer().Score(reduced)
	require.NotNil(t, partial)

	assert.Less(t, partial.Confidence, full.Confidence)
}

func TestScoreEmptyBundle(t *testing.T) {
	got := testScorer().Score(model.NewEvidenceBundle(model.Location{}))
	require.NotNil(t, got)

	assert.Equal(t, float64(0), got.Confidence)
	assert.Empty(t, got.LetterGrade)
	require.NotEmpty(t, got.Observations)
}

func TestScoreRecoversFromPanic(t *testing.T) {
	got := testScorer().Score(nil)
	assert.Nil(t, got)
}
