// Package generator synthesizes daily OHLCV series that walk through the four
// Weinstein stages, together with the moving average, SATA score, relative
// strength and momentum series a stage-analysis chart plots.
//
// The output is demo data. Use WithSeed or WithRand when the same inputs must
// produce the same numbers.
package generator

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"StageSentinel/internal/calculator"
	"StageSentinel/internal/model"
)

const (
	// DefaultBasePrice is the opening price used when a caller gives none.
	DefaultBasePrice = 150.0
	// DefaultMAWindow is the trailing window of the "30W" moving average, in bars.
	DefaultMAWindow = 30
)

var (
	ErrInvalidDate  = errors.New("invalid date")
	ErrInvalidRange = errors.New("end date is before start date")
	ErrInvalidPrice = errors.New("base price must be positive")
)

// Generator produces StageSeries. A Generator without WithRand is safe for concurrent use.
type Generator struct {
	profile  StageProfile
	maWindow int
	newRand  func() Rand
}

// Option configures a Generator.
type Option func(*Generator)

// WithProfile replaces the stage tuning table.
func WithProfile(p StageProfile) Option {
	return func(g *Generator) { g.profile = p }
}

// WithMAWindow sets the moving-average window in bars.
func WithMAWindow(n int) Option {
	return func(g *Generator) { g.maWindow = n }
}

// WithSeed makes every Generate call draw from a fresh source seeded with seed,
// so identical inputs yield identical series.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.newRand = func() Rand { return NewSeededRand(seed) }
	}
}

// WithRand shares r across calls. The Generator is then only as concurrency-safe as r.
func WithRand(r Rand) Option {
	return func(g *Generator) {
		g.newRand = func() Rand { return r }
	}
}

// New creates a Generator with the default profile and an unseeded source.
func New(opts ...Option) (*Generator, error) {
	g := &Generator{
		profile:  DefaultProfile(),
		maWindow: DefaultMAWindow,
		newRand:  func() Rand { return globalRand{} },
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.profile.Validate(); err != nil {
		return nil, err
	}
	if g.maWindow < 1 {
		return nil, fmt.Errorf("moving average window must be positive, got %d", g.maWindow)
	}
	return g, nil
}

// Profile returns the tuning table in use.
func (g *Generator) Profile() StageProfile { return g.profile }

// Generate parses ISO dates and builds the series for [startDate, endDate).
func (g *Generator) Generate(symbol, startDate, endDate string, basePrice float64) (*model.StageSeries, error) {
	start, err := model.ParseDate(startDate)
	if err != nil {
		return nil, fmt.Errorf("%w: start: %v", ErrInvalidDate, err)
	}
	end, err := model.ParseDate(endDate)
	if err != nil {
		return nil, fmt.Errorf("%w: end: %v", ErrInvalidDate, err)
	}
	return g.GenerateRange(symbol, start, end, basePrice)
}

// GenerateRange builds one bar per day in [start, end). An empty range yields empty series.
func (g *Generator) GenerateRange(symbol string, start, end model.Date, basePrice float64) (*model.StageSeries, error) {
	if end.Before(start.Time) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, start, end)
	}
	if basePrice <= 0 || math.IsNaN(basePrice) || math.IsInf(basePrice, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrice, basePrice)
	}

	totalDays := model.DaysBetween(start, end)
	blocks := Partition(totalDays, g.profile)
	rng := g.newRand()

	series := &model.StageSeries{
		Symbol:           symbol,
		PriceData:        make([]model.DailyBar, 0, totalDays),
		MovingAverage30W: make([]model.MovingAveragePoint, 0, totalDays),
		StageAnalysis: model.StageAnalysis{
			Stages:           make([]model.StagePoint, 0, totalDays),
			RelativeStrength: make([]model.RelativeStrengthPoint, 0, totalDays),
			Momentum:         make([]model.MomentumPoint, 0, totalDays),
			StageTransitions: []model.StageTransition{},
		},
	}

	closes := make([]float64, 0, totalDays)
	currentPrice := basePrice
	currentStage := model.StageBasing
	stageStart := 0

	for i := 0; i < totalDays; i++ {
		date := start.AddDays(i)

		if s := stageAt(i, blocks); s != currentStage {
			series.StageAnalysis.StageTransitions = append(series.StageAnalysis.StageTransitions, model.StageTransition{
				Date:      date,
				FromStage: currentStage,
				ToStage:   s,
				Trigger:   TriggerFor(currentStage, s),
			})
			currentStage = s
			stageStart = i
		}

		params := g.profile.ParamsFor(currentStage)
		volume := params.VolumeMin + rng.Float64()*(params.VolumeMax-params.VolumeMin)

		change := (rng.Float64()-0.5)*params.Volatility + params.Drift
		open := currentPrice * (1 + (rng.Float64()-0.5)*0.005)
		closePrice := open * (1 + change)
		high := math.Max(open, closePrice) * (1 + rng.Float64()*0.01)
		low := math.Min(open, closePrice) * (1 - rng.Float64()*0.01)
		currentPrice = closePrice

		bar := model.DailyBar{
			Date:   date,
			Open:   round(open, 2),
			High:   round(high, 2),
			Low:    round(low, 2),
			Close:  round(closePrice, 2),
			Volume: int64(math.Floor(volume)),
		}
		series.PriceData = append(series.PriceData, bar)
		closes = append(closes, bar.Close)

		rawMA, err := calculator.CalculateSMA(closes, min(len(closes), g.maWindow))
		if err != nil {
			return nil, fmt.Errorf("moving average: %w", err)
		}
		ma := round(rawMA, 2)
		series.MovingAverage30W = append(series.MovingAverage30W, model.MovingAveragePoint{Date: date, Value: ma})

		priceVsMA := 0.0
		if ma > 0 {
			priceVsMA = (bar.Close - ma) / ma
		}

		score := g.sataScore(rng, currentStage, priceVsMA, i-stageStart, blocks[currentStage-1])
		series.StageAnalysis.Stages = append(series.StageAnalysis.Stages, model.StagePoint{
			Date:      date,
			Stage:     currentStage,
			SATAScore: round(score, 1),
		})

		rs := priceVsMA*100 + (rng.Float64()-0.5)*20
		series.StageAnalysis.RelativeStrength = append(series.StageAnalysis.RelativeStrength, model.RelativeStrengthPoint{
			Date:  date,
			Value: round(rs, 1),
		})

		momentum := change*1000 + (rng.Float64()-0.5)*10
		series.StageAnalysis.Momentum = append(series.StageAnalysis.Momentum, model.MomentumPoint{
			Date:  date,
			Value: round(momentum, 1),
		})
	}

	return series, nil
}

// sataScore draws the stage-conditioned score, clamped to [0, 10].
// daysInStage counts from the first day of the current stage; stageLen is that block's length.
func (g *Generator) sataScore(rng Rand, stage model.Stage, priceVsMA float64, daysInStage, stageLen int) float64 {
	var score float64
	switch stage {
	case model.StageBasing:
		score = 2 + rng.Float64()*6
	case model.StageAdvancing:
		score = 6 + rng.Float64()*4
		if priceVsMA > 0.05 {
			score = math.Min(10, score+1)
		}
	case model.StageTopping:
		score = 8
		if stageLen > 0 {
			score -= float64(daysInStage) / float64(stageLen) * 6
		}
		score = math.Max(2, score)
	case model.StageDeclining:
		score = rng.Float64() * 5
	default:
		score = 5
	}
	return math.Min(10, math.Max(0, score))
}

// Generate builds a series with a default, unseeded Generator.
func Generate(symbol, startDate, endDate string, basePrice float64) (*model.StageSeries, error) {
	g, err := New()
	if err != nil {
		return nil, err
	}
	return g.Generate(symbol, startDate, endDate, basePrice)
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
