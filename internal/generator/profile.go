package generator

import (
	"errors"
	"fmt"
	"math"

	"StageSentinel/internal/model"
)

// ErrInvalidProfile is returned when a StageProfile cannot partition a range.
var ErrInvalidProfile = errors.New("invalid stage profile")

// StageParams are the synthesis constants used while a series is in one stage.
type StageParams struct {
	Volatility float64 `yaml:"volatility" json:"volatility"`
	Drift      float64 `yaml:"drift" json:"drift"`
	VolumeMin  float64 `yaml:"volume_min" json:"volumeMin"`
	VolumeMax  float64 `yaml:"volume_max" json:"volumeMax"`
}

// StageProfile holds the tuning table of the generator.
// Ratios are the shares of the first three stage blocks; stage 4 takes the remainder.
type StageProfile struct {
	Ratios [3]float64     `yaml:"ratios" json:"ratios"`
	Params [4]StageParams `yaml:"params" json:"params"`
}

// DefaultProfile returns the 25/35/20/20 split with the stock per-stage constants.
func DefaultProfile() StageProfile {
	return StageProfile{
		Ratios: [3]float64{0.25, 0.35, 0.20},
		Params: [4]StageParams{
			{Volatility: 0.015, Drift: 0.0005, VolumeMin: 800_000, VolumeMax: 1_200_000},
			{Volatility: 0.025, Drift: 0.003, VolumeMin: 1_200_000, VolumeMax: 2_000_000},
			{Volatility: 0.03, Drift: 0.0001, VolumeMin: 1_000_000, VolumeMax: 2_000_000},
			{Volatility: 0.025, Drift: -0.002, VolumeMin: 1_100_000, VolumeMax: 1_800_000},
		},
	}
}

// ParamsFor returns the constants for stage s.
func (p StageProfile) ParamsFor(s model.Stage) StageParams {
	return p.Params[s-1]
}

// Validate checks that the ratios leave a non-negative remainder and that every
// stage has usable constants.
func (p StageProfile) Validate() error {
	sum := 0.0
	for i, r := range p.Ratios {
		if r < 0 || math.IsNaN(r) {
			return fmt.Errorf("%w: ratio %d is %v", ErrInvalidProfile, i+1, r)
		}
		sum += r
	}
	if sum > 1 {
		return fmt.Errorf("%w: ratios sum to %.3f", ErrInvalidProfile, sum)
	}
	for i, sp := range p.Params {
		if sp.Volatility < 0 {
			return fmt.Errorf("%w: stage %d volatility is negative", ErrInvalidProfile, i+1)
		}
		if sp.VolumeMin < 0 || sp.VolumeMax < sp.VolumeMin {
			return fmt.Errorf("%w: stage %d volume range [%.0f, %.0f]", ErrInvalidProfile, i+1, sp.VolumeMin, sp.VolumeMax)
		}
	}
	return nil
}

// Partition splits totalDays into four contiguous stage blocks.
// The first three lengths are floor(totalDays*ratio); the fourth absorbs the rounding slack.
func Partition(totalDays int, p StageProfile) [4]int {
	var blocks [4]int
	if totalDays <= 0 {
		return blocks
	}
	used := 0
	for i, r := range p.Ratios {
		blocks[i] = int(math.Floor(float64(totalDays) * r))
		used += blocks[i]
	}
	blocks[3] = totalDays - used
	return blocks
}

// stageAt returns the stage whose block contains day index i.
func stageAt(i int, blocks [4]int) model.Stage {
	end := 0
	for k := 0; k < 3; k++ {
		end += blocks[k]
		if i < end {
			return model.Stages[k]
		}
	}
	return model.StageDeclining
}
