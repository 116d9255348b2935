// Package scorer folds an evidence bundle into a weighted composite score
// with an explicit confidence that degrades as evidence goes missing.
package scorer

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/pinwater/waterwatch/internal/config"
	"github.com/pinwater/waterwatch/internal/model"
)

// Scorer computes composite scores from evidence bundles.
type Scorer struct {
	cfg config.ScoringConfig
}

func New(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score maps a bundle to a composite score. A category without evidence is
// excluded from the weighted mean rather than counted as clean or dirty.
// Any internal panic is recovered here and reported as a nil score so the
// rest of the report still returns.
func (s *Scorer) Score(bundle *model.EvidenceBundle) (composite *model.CompositeScore) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("scorer: recovered internal fault", zap.Any("panic", r))
			composite = nil
		}
	}()

	categories := []model.CategoryScore{
		scoreWaterQuality(bundle),
		scoreDrinkingWater(bundle),
		scoreCompliance(bundle),
		scoreContamination(bundle),
		scoreSurroundings(bundle),
	}

	var totalWeight, availableWeight, weightedSum float64
	for _, cat := range categories {
		totalWeight += cat.Weight
		if len(cat.Factors) == 0 {
			continue
		}
		availableWeight += cat.Weight
		weightedSum += cat.Score * cat.Weight
	}

	composite = &model.CompositeScore{Categories: categories}
	if availableWeight > 0 {
		composite.Score = math.Round(weightedSum/availableWeight*100) / 100
	}
	composite.Confidence = math.Round(availableWeight / totalWeight * 100)
	composite.LetterGrade = letterGrade(composite.Score)

	if composite.Confidence < s.cfg.LowConfidenceThreshold {
		composite.Observations = append(composite.Observations, model.Observation{
			Severity: model.ObservationWarning,
			Text: fmt.Sprintf(
				"score is based on limited data: only %.0f%% of expected evidence was available",
				composite.Confidence),
		})
	}
	if availableWeight == 0 {
		composite.LetterGrade = ""
	}

	zap.L().Debug("scorer: composite computed",
		zap.Float64("score", composite.Score),
		zap.Float64("confidence", composite.Confidence),
		zap.String("grade", composite.LetterGrade),
	)
	return composite
}

func letterGrade(score float64) string {
	switch {
	case score >= 80:
		return "A"
	case score >= 60:
		return "B"
	case score >= 40:
		return "C"
	case score >= 20:
		return "D"
	default:
		return "F"
	}
}
