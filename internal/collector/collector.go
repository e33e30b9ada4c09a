package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"StageSentinel/internal/calculator"
	"StageSentinel/internal/model"
	"StageSentinel/internal/strategy"
)

// ErrEmptySeries is returned when a request covers no days.
var ErrEmptySeries = errors.New("series is empty")

const (
	rsiPeriod   = 14
	rangePeriod = 252
)

// Request selects the range to generate and the day to summarize.
type Request struct {
	Symbol    string
	Start     model.Date
	End       model.Date
	BasePrice float64
	// AsOf picks the summarized day. Zero means the last generated day.
	AsOf model.Date
}

// Snapshot is one generation run plus its summary.
type Snapshot struct {
	RunID       string             `json:"runId"`
	Source      string             `json:"source"`
	GeneratedAt time.Time          `json:"generatedAt"`
	Series      *model.StageSeries `json:"series,omitempty"`
	Index       int                `json:"index"`
	Current     model.StagePoint   `json:"current"`
	Indicators  *model.Indicators  `json:"indicators"`
	Rating      model.SetupRating  `json:"rating"`
}

// Transitions returns the transitions that happened on or before the summarized day.
func (s *Snapshot) Transitions() []model.StageTransition {
	var out []model.StageTransition
	for _, t := range s.Series.StageAnalysis.StageTransitions {
		if !t.Date.After(s.Current.Date.Time) {
			out = append(out, t)
		}
	}
	return out
}

// Collector orchestrates series generation and indicator computation.
type Collector struct {
	Source Source
	now    func() time.Time
}

// NewCollector creates a new Collector.
func NewCollector(src Source) *Collector {
	return &Collector{Source: src, now: time.Now}
}

// Collect generates the requested series and summarizes the AsOf day.
func (c *Collector) Collect(ctx context.Context, req Request) (*Snapshot, error) {
	series, err := c.Source.Series(ctx, req.Symbol, req.Start, req.End, req.BasePrice)
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", req.Symbol, err)
	}
	if series.Len() == 0 {
		return nil, fmt.Errorf("%s %s..%s: %w", req.Symbol, req.Start, req.End, ErrEmptySeries)
	}

	idx := series.Len() - 1
	if !req.AsOf.IsZero() {
		idx = model.DaysBetween(req.Start, req.AsOf)
		if idx < 0 {
			idx = 0
		}
		if idx > series.Len()-1 {
			idx = series.Len() - 1
		}
	}

	current := series.StageAnalysis.Stages[idx]
	snap := &Snapshot{
		RunID:       uuid.NewString(),
		Source:      c.Source.Name(),
		GeneratedAt: c.now(),
		Series:      series,
		Index:       idx,
		Current:     current,
		Indicators:  summarize(series, idx),
		Rating:      strategy.Evaluate(current),
	}
	log.Debug().
		Str("symbol", req.Symbol).
		Str("run_id", snap.RunID).
		Int("stage", int(current.Stage)).
		Float64("sata", current.SATAScore).
		Msg("series collected")
	return snap, nil
}

// summarize computes indicators from bars up to and including idx.
func summarize(series *model.StageSeries, idx int) *model.Indicators {
	bars := series.PriceData[:idx+1]
	last := bars[idx]
	ind := &model.Indicators{
		Date:             last.Date,
		Close:            last.Close,
		MovingAverage:    series.MovingAverage30W[idx].Value,
		Stage:            series.StageAnalysis.Stages[idx].Stage,
		SATAScore:        series.StageAnalysis.Stages[idx].SATAScore,
		RelativeStrength: series.StageAnalysis.RelativeStrength[idx].Value,
		Momentum:         series.StageAnalysis.Momentum[idx].Value,
	}

	if rsi, err := calculator.CalculateRSI(bars, rsiPeriod); err != nil {
		log.Warn().Err(err).Str("symbol", series.Symbol).Msg("RSI calculation failed, defaulting to 50")
		ind.RSI = 50
	} else {
		ind.RSI = rsi
	}

	if h, l, err := calculator.CalculateRange(bars, rangePeriod); err != nil {
		log.Warn().Err(err).Str("symbol", series.Symbol).Msg("range calculation failed")
		ind.PeriodHigh = last.Close
		ind.PeriodLow = last.Close
	} else {
		ind.PeriodHigh = h
		ind.PeriodLow = l
	}

	if pos, err := calculator.CalculateRangePosition(last.Close, ind.PeriodHigh, ind.PeriodLow); err != nil {
		log.Warn().Err(err).Str("symbol", series.Symbol).Msg("range position calculation failed")
		ind.RangePosition = 0.5
	} else {
		ind.RangePosition = pos
	}

	return ind
}
