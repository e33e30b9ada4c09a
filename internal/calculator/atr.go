package calculator

import (
	"errors"
	"math"

	"StageSentinel/internal/model"
)

// TrueRange returns the true range of every bar. The first bar has no prior
// close, so its true range is its high minus its low.
func TrueRange(bars []model.DailyBar) []float64 {
	tr := make([]float64, len(bars))
	for i, b := range bars {
		r := b.High - b.Low
		if i > 0 {
			prev := bars[i-1].Close
			r = math.Max(r, math.Max(math.Abs(b.High-prev), math.Abs(b.Low-prev)))
		}
		tr[i] = r
	}
	return tr
}

// CalculateATR returns the average true range of the last period bars,
// a plain rolling mean rather than Wilder smoothing.
func CalculateATR(bars []model.DailyBar, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(bars) < period {
		return 0, errors.New("not enough data for ATR calculation")
	}
	// only the window and the bar before it matter
	start := len(bars) - period
	if start > 0 {
		start--
	}
	tr := TrueRange(bars[start:])
	return CalculateSMA(tr, period)
}
