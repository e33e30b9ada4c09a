package strategy

import (
	"math"

	"StageSentinel/internal/model"
)

// Component weights of a SATA score. They sum to 1.
var Weights = []struct {
	Name   string
	Weight float64
}{
	{"Stage Analysis", 0.4},
	{"Technical Setup", 0.3},
	{"Volume Analysis", 0.2},
	{"Risk Assessment", 0.1},
}

// components splits score by Weights, rounding each part to one decimal.
func components(score float64) []model.RatingComponent {
	out := make([]model.RatingComponent, len(Weights))
	for i, w := range Weights {
		out[i] = model.RatingComponent{
			Name:   w.Name,
			Weight: w.Weight,
			Value:  math.Round(score*w.Weight*10) / 10,
		}
	}
	return out
}
