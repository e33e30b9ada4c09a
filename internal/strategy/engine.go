package strategy

import (
	"math"

	"StageSentinel/internal/model"
)

// Tiers maps a SATA score to the setup label shown next to it.
var Tiers = []struct {
	MinScore float64
	Label    string
}{
	{8, "High Probability Setup"},
	{6, "Medium Probability"},
}

// DefaultTier is the label for scores below every tier.
const DefaultTier = "Low Probability"

func mapTier(score float64) string {
	for _, t := range Tiers {
		if score >= t.MinScore {
			return t.Label
		}
	}
	return DefaultTier
}

// Evaluate breaks a day's SATA score into its weighted components and rates the setup.
func Evaluate(point model.StagePoint) model.SetupRating {
	score := clamp(point.SATAScore, 0, 10)
	return model.SetupRating{
		Score:      score,
		Components: components(score),
		Tier:       mapTier(score),
		Confidence: Confidence(score),
	}
}

// Confidence maps a 0-10 SATA score to a 0-100 alert confidence.
func Confidence(score float64) float64 {
	return math.Round(clamp(score, 0, 10) * 10)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
