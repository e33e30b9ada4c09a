package collector

import (
	"context"

	"StageSentinel/internal/generator"
	"StageSentinel/internal/model"
)

// Source produces stage series for a symbol and date range.
type Source interface {
	Series(ctx context.Context, symbol string, start, end model.Date, basePrice float64) (*model.StageSeries, error)
	Name() string
}

// SyntheticSource serves series from the stage generator.
type SyntheticSource struct {
	Generator *generator.Generator
}

// NewSyntheticSource wraps g.
func NewSyntheticSource(g *generator.Generator) *SyntheticSource {
	return &SyntheticSource{Generator: g}
}

func (s *SyntheticSource) Name() string { return "synthetic" }

func (s *SyntheticSource) Series(ctx context.Context, symbol string, start, end model.Date, basePrice float64) (*model.StageSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Generator.GenerateRange(symbol, start, end, basePrice)
}
