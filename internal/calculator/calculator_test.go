package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StageSentinel/internal/model"
)

func barsFromCloses(closes ...float64) []model.DailyBar {
	bars := make([]model.DailyBar, len(closes))
	for i, c := range closes {
		bars[i] = model.DailyBar{Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	return bars
}

func TestCalculateSMA(t *testing.T) {
	got, err := CalculateSMA([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, got, 1e-9)

	_, err = CalculateSMA([]float64{1, 2}, 3)
	assert.Error(t, err)
	_, err = CalculateSMA([]float64{1, 2}, 0)
	assert.Error(t, err)
}

func TestTrueRange(t *testing.T) {
	bars := []model.DailyBar{
		{High: 11, Low: 9, Close: 10},
		{High: 14, Low: 12, Close: 13},
		{High: 13.5, Low: 8, Close: 9},
		{High: 9.5, Low: 9.2, Close: 9.3},
	}
	// gap up measures from the prior close; the last bar reaches back to it
	assert.InDeltaSlice(t, []float64{2, 4, 5.5, 0.5}, TrueRange(bars), 1e-9)
	assert.Empty(t, TrueRange(nil))
}

func TestCalculateATR(t *testing.T) {
	bars := []model.DailyBar{
		{High: 11, Low: 9, Close: 10},
		{High: 14, Low: 12, Close: 13},
		{High: 13.5, Low: 8, Close: 9},
		{High: 9.5, Low: 9.2, Close: 9.3},
	}

	atr, err := CalculateATR(bars, 2)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, atr, 1e-9)

	// full window uses the first bar's high-low
	atr, err = CalculateATR(bars, 4)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, atr, 1e-9)

	atr, err = CalculateATR(bars[:3], 3)
	require.NoError(t, err)
	assert.InDelta(t, 11.5/3, atr, 1e-9)

	_, err = CalculateATR(bars, 5)
	assert.Error(t, err)
	_, err = CalculateATR(bars, 0)
	assert.Error(t, err)
}

func TestCalculateRSI(t *testing.T) {
	rsi, err := CalculateRSI(barsFromCloses(1, 2, 3), 14)
	require.NoError(t, err)
	assert.Equal(t, 50.0, rsi)

	rising := make([]float64, 20)
	for i := range rising {
		rising[i] = float64(100 + i)
	}
	rsi, err = CalculateRSI(barsFromCloses(rising...), 14)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rsi)

	falling := make([]float64, 20)
	for i := range falling {
		falling[i] = float64(100 - i)
	}
	rsi, err = CalculateRSI(barsFromCloses(falling...), 14)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, rsi, 1e-9)

	_, err = CalculateRSI(nil, 0)
	assert.Error(t, err)
}

func TestCalculateRange(t *testing.T) {
	bars := barsFromCloses(10, 20, 15, 12)
	high, low, err := CalculateRange(bars, 2)
	require.NoError(t, err)
	assert.Equal(t, 16.0, high)
	assert.Equal(t, 11.0, low)

	high, low, err = CalculateRange(bars, 0)
	require.NoError(t, err)
	assert.Equal(t, 21.0, high)
	assert.Equal(t, 9.0, low)

	_, _, err = CalculateRange(nil, 5)
	assert.Error(t, err)
}

func TestCalculateRangePosition(t *testing.T) {
	pos, err := CalculateRangePosition(15, 20, 10)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, pos, 1e-9)

	pos, _ = CalculateRangePosition(25, 20, 10)
	assert.Equal(t, 1.0, pos)
	pos, _ = CalculateRangePosition(5, 20, 10)
	assert.Equal(t, 0.0, pos)
	pos, _ = CalculateRangePosition(5, 10, 10)
	assert.Equal(t, 0.5, pos)

	_, err = CalculateRangePosition(5, 1, 10)
	assert.Error(t, err)
}
