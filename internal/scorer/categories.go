package scorer

import (
	"fmt"
	"math"

	"github.com/pinwater/waterwatch/internal/model"
)

// Category weights. The composite is the weighted mean of the categories
// that produced at least one factor.
const (
	weightWaterQuality  = 30
	weightDrinkingWater = 25
	weightCompliance    = 20
	weightContamination = 15
	weightSurroundings  = 10
)

// builder accumulates factors against a baseline of 100. Negative findings
// decrement; notable clean findings are recorded as neutral or positive
// factors without inflating the score.
type builder struct {
	score   float64
	factors []model.Factor
}

func newBuilder() *builder {
	return &builder{score: 100}
}

func (b *builder) add(name, value string, points float64) {
	impact := model.ImpactNeutral
	switch {
	case points < 0:
		impact = model.ImpactNegative
	case points > 0:
		impact = model.ImpactPositive
	}
	b.factors = append(b.factors, model.Factor{
		Name:   name,
		Value:  value,
		Impact: impact,
		Points: points,
	})
	b.score += points
}

func (b *builder) finish(label string, weight float64, available, relevant int) model.CategoryScore {
	cs := model.CategoryScore{
		Label:   label,
		Weight:  weight,
		Factors: b.factors,
	}
	if len(b.factors) == 0 {
		// No evidence: confidence 0, excluded from the composite. The
		// score field is meaningless here and left at zero.
		return cs
	}
	cs.Score = model.Clamp(b.score, 0, 100)
	cs.Confidence = model.Clamp(float64(available)/float64(relevant)*100, 0, 100)
	return cs
}

// scoreWaterQuality covers ambient condition: discrete samples, state
// impairment listings, and live sensor readings.
func scoreWaterQuality(bundle *model.EvidenceBundle) model.CategoryScore {
	b := newBuilder()
	available := 0

	if wq := model.Value[model.WaterQualitySummary](bundle, model.DomainWaterQuality); wq != nil {
		available++
		if wq.SampleCount == 0 {
			b.add("monitoring coverage", "no recent samples near site", -5)
		} else {
			b.add("monitoring coverage",
				fmt.Sprintf("%d samples from %d stations in last %d days",
					wq.SampleCount, wq.StationCount, wq.WindowDays), 0)
		}
		if r, ok := wq.Latest["DO"]; ok && r.Value < 5 {
			b.add("dissolved oxygen",
				fmt.Sprintf("%.1f %s, below aquatic-life threshold", r.Value, r.Unit), -15)
		}
		if r, ok := wq.Latest["turbidity"]; ok && r.Value > 50 {
			b.add("turbidity", fmt.Sprintf("%.0f %s", r.Value, r.Unit), -10)
		}
		if r, ok := wq.Latest["pH"]; ok && (r.Value < 6.5 || r.Value > 8.5) {
			b.add("pH", fmt.Sprintf("%.1f outside 6.5-8.5", r.Value), -10)
		}
	}

	if imp := model.Value[model.ImpairmentSummary](bundle, model.DomainImpairments); imp != nil {
		available++
		if imp.AssessedUnits > 0 {
			pct := float64(imp.ImpairedUnits) / float64(imp.AssessedUnits) * 100
			b.add("impaired waters",
				fmt.Sprintf("%d of %d assessed units impaired (%.0f%%)",
					imp.ImpairedUnits, imp.AssessedUnits, pct),
				-math.Min(pct/2, 25))
		}
	}

	if rt := model.Value[model.RealtimeReadings](bundle, model.DomainRealtime); rt != nil {
		available++
		if rt.Sites == 0 {
			b.add("live gauges", "no active gauges near site", -5)
		} else {
			b.add("live gauges", fmt.Sprintf("%d active gauges reporting", rt.Sites), 0)
		}
	}

	return b.finish("water quality", weightWaterQuality, available, 3)
}

// scoreDrinkingWater covers public water systems serving the area.
func scoreDrinkingWater(bundle *model.EvidenceBundle) model.CategoryScore {
	b := newBuilder()
	available := 0

	if dw := model.Value[model.DrinkingWaterSummary](bundle, model.DomainDrinkingWater); dw != nil {
		available++
		b.add("public systems",
			fmt.Sprintf("%d active systems serving %d people", dw.SystemCount, dw.PopulationServed), 0)
		if dw.ActiveViolations > 0 {
			b.add("active violations",
				fmt.Sprintf("%d unresolved violations", dw.ActiveViolations),
				-math.Min(float64(dw.ActiveViolations)*2, 30))
		}
		if dw.HealthBased > 0 {
			b.add("health-based violations",
				fmt.Sprintf("%d health-based violations", dw.HealthBased),
				-math.Min(float64(dw.HealthBased)*5, 30))
		}
	}

	return b.finish("drinking water", weightDrinkingWater, available, 1)
}

// scoreCompliance covers discharge permits and enforcement posture.
func scoreCompliance(bundle *model.EvidenceBundle) model.CategoryScore {
	b := newBuilder()
	available := 0

	if p := model.Value[model.PermitSummary](bundle, model.DomainPermits); p != nil {
		available++
		b.add("discharge permits",
			fmt.Sprintf("%d permits, %d major", p.PermitCount, p.MajorPermits),
			-math.Min(float64(p.MajorPermits)*3, 15))
		if p.ExpiredCount > 0 {
			b.add("expired permits",
				fmt.Sprintf("%d permits past expiration", p.ExpiredCount),
				-math.Min(float64(p.ExpiredCount)*2, 10))
		}
	}

	if e := model.Value[model.EnforcementSummary](bundle, model.DomainEnforcement); e != nil {
		available++
		if e.InViolation > 0 {
			b.add("facilities in violation",
				fmt.Sprintf("%d of %d facilities", e.InViolation, e.FacilityCount),
				-math.Min(float64(e.InViolation)*2, 20))
		}
		if e.SignificantNoncomp > 0 {
			b.add("significant noncompliance",
				fmt.Sprintf("%d facilities in significant noncompliance", e.SignificantNoncomp),
				-math.Min(float64(e.SignificantNoncomp)*5, 25))
		}
		if n := len(e.RecentActions); n > 0 {
			b.add("recent enforcement",
				fmt.Sprintf("%d formal actions in the last year", n),
				-math.Min(float64(n)*3, 15))
		}
		if e.InViolation == 0 && e.SignificantNoncomp == 0 && len(e.RecentActions) == 0 {
			b.add("enforcement record", "no violations or recent actions", 0)
		}
	}

	return b.finish("compliance", weightCompliance, available, 2)
}

// scoreContamination covers unregulated contaminant screening.
func scoreContamination(bundle *model.EvidenceBundle) model.CategoryScore {
	b := newBuilder()
	available := 0

	if c := model.Value[model.ContaminationSummary](bundle, model.DomainContamination); c != nil {
		available++
		if c.ResultCount == 0 {
			b.add("contaminant screening", "no monitoring results for area", -5)
		} else if c.DetectionCount == 0 {
			b.add("contaminant screening",
				fmt.Sprintf("%d results, no detections", c.ResultCount), 0)
		} else {
			pct := float64(c.DetectionCount) / float64(c.ResultCount) * 100
			b.add("contaminant detections",
				fmt.Sprintf("%d detections in %d results (%.0f%%), incl. %s",
					c.DetectionCount, c.ResultCount, pct, joinTop(c.Contaminants, 3)),
				-math.Min(10+pct/2, 40))
		}
	}

	return b.finish("contamination", weightContamination, available, 1)
}

// scoreSurroundings covers treatment-plant proximity, protected habitat, and
// equity indicators.
func scoreSurroundings(bundle *model.EvidenceBundle) model.CategoryScore {
	b := newBuilder()
	available := 0

	if h := model.Value[model.HazardSummary](bundle, model.DomainHazard); h != nil {
		available++
		switch n := len(h.NearbyWWTPs); {
		case n == 0:
			b.add("treatment plants", "none within search radius", 0)
		case h.NearestKM < 2:
			b.add("treatment plants",
				fmt.Sprintf("%d nearby, nearest %.1f km", n, h.NearestKM), -15)
		default:
			b.add("treatment plants",
				fmt.Sprintf("%d within %.0f km", n, h.SearchRadius), -5)
		}
	}

	if hab := model.Value[model.HabitatSummary](bundle, model.DomainHabitat); hab != nil {
		available++
		if hab.SpeciesCount > 0 {
			// Listed species indicate sensitive waters, not site hazard.
			b.add("protected species",
				fmt.Sprintf("%d listed species in watershed", hab.SpeciesCount), 0)
		}
		if hab.CriticalHabitat {
			b.add("critical habitat", "site overlaps designated critical habitat", -5)
		}
		if hab.SpeciesCount == 0 && !hab.CriticalHabitat {
			b.add("protected species", "none recorded for watershed", 0)
		}
	}

	if eq := model.Value[model.EquitySummary](bundle, model.DomainEquity); eq != nil {
		available++
		if eq.WastewaterPercile >= 80 {
			b.add("wastewater discharge burden",
				fmt.Sprintf("%.0fth percentile nationally", eq.WastewaterPercile), -10)
		}
		if eq.DemographicIndex >= 80 {
			b.add("demographic index",
				fmt.Sprintf("%.0fth percentile nationally", eq.DemographicIndex), -5)
		}
		if eq.WastewaterPercile < 80 && eq.DemographicIndex < 80 {
			b.add("equity indicators", "no elevated indicators for block group", 0)
		}
	}

	return b.finish("surroundings", weightSurroundings, available, 3)
}

func joinTop(items []string, n int) string {
	if len(items) == 0 {
		return "unspecified"
	}
	if len(items) > n {
		items = items[:n]
	}
	out := items[0]
	for _, s := range items[1:] {
		out += ", " + s
	}
	return out
}
