package model

// Impact is the sign of a factor's contribution to a category score.
type Impact string

const (
	ImpactPositive Impact = "positive"
	ImpactNegative Impact = "negative"
	ImpactNeutral  Impact = "neutral"
)

// Factor is one piece of evidence that moved a category score.
type Factor struct {
	Name   string  `json:"name"`
	Value  string  `json:"value"`
	Impact Impact  `json:"impact"`
	Points float64 `json:"points"` // signed adjustment applied
}

// CategoryScore is the deterministic scoring of one evidence category.
// A category with no contributing factors has Confidence 0 and is excluded
// from the composite weighted mean.
type CategoryScore struct {
	Label      string   `json:"label"`
	Score      float64  `json:"score"`      // [0,100]
	Confidence float64  `json:"confidence"` // [0,100]
	Weight     float64  `json:"weight"`
	Factors    []Factor `json:"factors"`
}

// ObservationSeverity orders observations by seriousness.
type ObservationSeverity string

const (
	ObservationWarning ObservationSeverity = "warning"
	ObservationNotice  ObservationSeverity = "notice"
)

// Observation is a human-readable note attached to a composite score.
type Observation struct {
	Severity ObservationSeverity `json:"severity"`
	Text     string              `json:"text"`
}

// CompositeScore is the weighted combination of category scores.
type CompositeScore struct {
	Score        float64         `json:"score"` // [0,100]
	LetterGrade  string          `json:"letter_grade"`
	Confidence   float64         `json:"confidence"` // [0,100]
	Categories   []CategoryScore `json:"categories"`
	Observations []Observation   `json:"observations,omitempty"`
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
