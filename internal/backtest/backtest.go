// Package backtest replays a moving-average breakout strategy with an ATR
// trailing stop and optional pyramiding over a daily bar series.
package backtest

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"StageSentinel/internal/calculator"
	"StageSentinel/internal/model"
)

var (
	ErrInvalidConfig = errors.New("invalid backtest config")
	ErrNotEnoughData = errors.New("not enough bars for backtest")
)

// Config holds the strategy parameters.
type Config struct {
	MAPeriod    int     `json:"maPeriod"`
	ATRPeriod   int     `json:"atrPeriod"`
	ATRMultiple float64 `json:"atrMultiple"`
	Pyramid     bool    `json:"pyramid"`
	MaxAdds     int     `json:"maxAdds"`

	// FailThreshold is the return below which a closed trade counts as a fail.
	FailThreshold float64 `json:"failThreshold"`
}

// DefaultConfig enters on a close above the 20-day MA, trails the stop two
// 14-day ATRs below the high and pyramids at most twice.
func DefaultConfig() Config {
	return Config{
		MAPeriod:      20,
		ATRPeriod:     14,
		ATRMultiple:   2,
		Pyramid:       true,
		MaxAdds:       2,
		FailThreshold: -0.20,
	}
}

// Validate reports the first bad parameter.
func (c Config) Validate() error {
	switch {
	case c.MAPeriod <= 0:
		return fmt.Errorf("%w: ma period must be positive", ErrInvalidConfig)
	case c.ATRPeriod <= 0:
		return fmt.Errorf("%w: atr period must be positive", ErrInvalidConfig)
	case c.ATRMultiple <= 0:
		return fmt.Errorf("%w: atr multiple must be positive", ErrInvalidConfig)
	case c.MaxAdds < 0:
		return fmt.Errorf("%w: max adds must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Trade is one round trip. EntryPrice is the size-weighted average over the
// initial entry and every pyramid add.
type Trade struct {
	EntryDate  model.Date `json:"entryDate"`
	ExitDate   model.Date `json:"exitDate"`
	EntryPrice float64    `json:"entryPrice"`
	ExitPrice  float64    `json:"exitPrice"`
	Adds       int        `json:"adds"`
	Size       float64    `json:"size"`
	Return     float64    `json:"return"`
}

// Result is the trade list plus summary metrics. Percentages are rounded to
// two decimals. Open is the position still held on the last bar, marked to
// its close; it is not counted in the metrics.
type Result struct {
	Trades         []Trade `json:"trades"`
	Open           *Trade  `json:"open,omitempty"`
	TradeCount     int     `json:"tradeCount"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	Fails          int     `json:"fails"`
	WinRate        float64 `json:"winRate"`
	AvgPLPct       float64 `json:"avgPlPct"`
	TotalLossPct   float64 `json:"totalLossPct"`
	MaxDrawdownPct float64 `json:"maxDrawdownPct"`
}

type position struct {
	entryDate model.Date
	entry     float64
	size      float64
	stop      float64
	adds      int
}

// add averages price into the entry; each add is half the size of the previous one.
func (p *position) add(price float64) {
	p.adds++
	size := math.Pow(0.5, float64(p.adds))
	p.entry = (p.entry*p.size + price*size) / (p.size + size)
	p.size += size
}

func (p *position) close(date model.Date, price float64) Trade {
	return Trade{
		EntryDate:  p.entryDate,
		ExitDate:   date,
		EntryPrice: p.entry,
		ExitPrice:  price,
		Adds:       p.adds,
		Size:       p.size,
		Return:     (price - p.entry) / p.entry,
	}
}

// Run walks bars from the first day both indicators are defined. A flat
// position enters at the close when it is above the MA. An open position
// ratchets its stop up to high minus ATRMultiple ATRs and, when pyramiding,
// adds on a close above the previous high. A low under the stop exits at the
// stop, which can happen on the entry bar itself.
func Run(bars []model.DailyBar, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := max(cfg.MAPeriod, cfg.ATRPeriod)
	if len(bars) <= start {
		return nil, fmt.Errorf("%w: have %d bars, need more than %d", ErrNotEnoughData, len(bars), start)
	}

	closes := calculator.Closes(bars)
	res := &Result{Trades: []Trade{}}
	var pos *position
	for i := start; i < len(bars); i++ {
		bar := bars[i]
		ma, err := calculator.CalculateSMA(closes[:i+1], cfg.MAPeriod)
		if err != nil {
			return nil, err
		}
		atr, err := calculator.CalculateATR(bars[:i+1], cfg.ATRPeriod)
		if err != nil {
			return nil, err
		}

		if pos == nil {
			if bar.Close > ma {
				pos = &position{
					entryDate: bar.Date,
					entry:     bar.Close,
					size:      1,
					stop:      bar.Close - cfg.ATRMultiple*atr,
				}
			}
		} else {
			pos.stop = math.Max(pos.stop, bar.High-cfg.ATRMultiple*atr)
			if cfg.Pyramid && pos.adds < cfg.MaxAdds && bar.Close > bars[i-1].High {
				pos.add(bar.Close)
			}
		}

		if pos != nil && bar.Low < pos.stop {
			res.Trades = append(res.Trades, pos.close(bar.Date, pos.stop))
			pos = nil
		}
	}

	if pos != nil {
		last := bars[len(bars)-1]
		open := pos.close(last.Date, last.Close)
		res.Open = &open
	}
	res.summarize(cfg.FailThreshold)
	return res, nil
}

// summarize fills the metrics from the closed trades.
func (r *Result) summarize(failThreshold float64) {
	r.TradeCount = len(r.Trades)
	if r.TradeCount == 0 {
		return
	}

	total := decimal.Zero
	lossSum := decimal.Zero
	one := decimal.NewFromInt(1)
	equity, peak := one, one
	maxDD := decimal.Zero
	for _, t := range r.Trades {
		ret := decimal.NewFromFloat(t.Return)
		total = total.Add(ret)
		switch {
		case t.Return > 0:
			r.Wins++
		case t.Return < 0:
			r.Losses++
			lossSum = lossSum.Add(ret)
		}
		if t.Return < failThreshold {
			r.Fails++
		}

		// trades compound one after another
		equity = equity.Mul(one.Add(ret))
		if equity.GreaterThan(peak) {
			peak = equity
		}
		if dd := peak.Sub(equity).Div(peak); dd.GreaterThan(maxDD) {
			maxDD = dd
		}
	}

	n := decimal.NewFromInt(int64(r.TradeCount))
	r.WinRate = decimal.NewFromInt(int64(r.Wins)).Div(n).Round(4).InexactFloat64()
	r.AvgPLPct = pct(total.Div(n))
	r.TotalLossPct = pct(lossSum)
	r.MaxDrawdownPct = pct(maxDD)
}

func pct(d decimal.Decimal) float64 {
	return d.Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}
