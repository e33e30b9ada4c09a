package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"StageSentinel/internal/backtest"
	"StageSentinel/internal/config"
)

var (
	btATRMult float64
	btPyramid bool
	btMaxAdds int
)

var backtestCmd = &cobra.Command{
	Use:   "backtest SYMBOL",
	Short: "Backtest the MA breakout / ATR trailing stop strategy on a generated series",
	Long: `Generate a series and replay a 20-day MA breakout entry with an ATR
trailing stop and optional pyramiding over it. Prints the trades and metrics
as JSON.

Example usage:
  stagesentinel backtest AAPL --start 2020-01-01 --end 2024-12-31 --seed 7
  stagesentinel backtest NVDA --atr-mult 3 --pyramid=false --pretty`,
	Args: cobra.ExactArgs(1),
	RunE: runBacktest,
}

func init() {
	backtestCmd.Flags().Float64Var(&btATRMult, "atr-mult", 0, "Stop distance in ATRs (default: backtest.atr_multiple)")
	backtestCmd.Flags().BoolVar(&btPyramid, "pyramid", true, "Add to winners on a close above the previous high")
	backtestCmd.Flags().IntVar(&btMaxAdds, "max-adds", 0, "Pyramid adds per trade (default: backtest.max_adds)")
}

// backtestConfig applies the flags the user set over the backtest section.
func backtestConfig(cmd *cobra.Command, cfg *config.Config) (backtest.Config, error) {
	bt := cfg.BacktestConfig()
	flags := cmd.Flags()
	if flags.Changed("atr-mult") {
		bt.ATRMultiple = btATRMult
	}
	if flags.Changed("pyramid") {
		bt.Pyramid = btPyramid
	}
	if flags.Changed("max-adds") {
		bt.MaxAdds = btMaxAdds
	}
	return bt, bt.Validate()
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	bt, err := backtestConfig(cmd, cfg)
	if err != nil {
		return err
	}
	series, err := generateSeries(cmd, cfg, args[0])
	if err != nil {
		return err
	}
	res, err := backtest.Run(series.PriceData, bt)
	if err != nil {
		return err
	}
	log.Info().
		Str("symbol", series.Symbol).
		Int("days", series.Len()).
		Int("trades", res.TradeCount).
		Float64("avg_pl_pct", res.AvgPLPct).
		Msg("backtest finished")
	return printJSON(cmd, res)
}
