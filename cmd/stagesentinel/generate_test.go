package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StageSentinel/internal/backtest"
	"StageSentinel/internal/config"
	"StageSentinel/internal/generator"
	"StageSentinel/internal/model"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	return cfg
}

// seedCommand binds --seed on a fresh command so Changed starts clean.
func seedCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "generate"}
	cmd.Flags().Uint64Var(&genSeed, "seed", 0, "")
	require.NoError(t, cmd.Flags().Parse(args))
	t.Cleanup(func() { genSeed = 0 })
	return cmd
}

func generateWith(t *testing.T, opts []generator.Option) *model.StageSeries {
	t.Helper()
	g, err := generator.New(opts...)
	require.NoError(t, err)
	series, err := g.Generate("AAPL", "2024-01-01", "2024-03-01", 150)
	require.NoError(t, err)
	return series
}

func TestGeneratorOptions_SeedFlag(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Generator.Seed = 17
	pinned := generateWith(t, []generator.Option{generator.WithSeed(17)})

	t.Run("config seed without flag", func(t *testing.T) {
		cmd := seedCommand(t)
		assert.Equal(t, pinned, generateWith(t, generatorOptions(cmd, cfg)))
	})

	t.Run("flag overrides config seed", func(t *testing.T) {
		cmd := seedCommand(t, "--seed", "5")
		got := generateWith(t, generatorOptions(cmd, cfg))
		assert.Equal(t, generateWith(t, []generator.Option{generator.WithSeed(5)}), got)
		assert.NotEqual(t, pinned, got)
	})

	t.Run("zero seed flag is unseeded", func(t *testing.T) {
		cmd := seedCommand(t, "--seed", "0")
		first := generateWith(t, generatorOptions(cmd, cfg))
		second := generateWith(t, generatorOptions(cmd, cfg))
		assert.NotEqual(t, pinned, first)
		assert.NotEqual(t, first, second)
	})

	assert.Equal(t, uint64(17), cfg.Generator.Seed, "the loaded config is left untouched")
}

func TestBacktestConfig_Flags(t *testing.T) {
	cfg := defaultConfig(t)
	newCmd := func(args ...string) *cobra.Command {
		cmd := &cobra.Command{Use: "backtest"}
		cmd.Flags().Float64Var(&btATRMult, "atr-mult", 0, "")
		cmd.Flags().BoolVar(&btPyramid, "pyramid", true, "")
		cmd.Flags().IntVar(&btMaxAdds, "max-adds", 0, "")
		require.NoError(t, cmd.Flags().Parse(args))
		return cmd
	}

	bt, err := backtestConfig(newCmd(), cfg)
	require.NoError(t, err)
	assert.Equal(t, backtest.DefaultConfig(), bt)

	bt, err = backtestConfig(newCmd("--atr-mult", "3", "--pyramid=false"), cfg)
	require.NoError(t, err)
	assert.Equal(t, 3.0, bt.ATRMultiple)
	assert.False(t, bt.Pyramid)
	assert.Equal(t, 2, bt.MaxAdds)

	_, err = backtestConfig(newCmd("--max-adds", "-1"), cfg)
	assert.ErrorIs(t, err, backtest.ErrInvalidConfig)
}

func TestBacktestCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{
		"--config", filepath.Join(t.TempDir(), "absent.yaml"),
		"backtest", "aapl", "--start", "2022-01-01", "--end", "2024-01-01", "--seed", "7",
	})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		genStart, genEnd, genSeed = "", "", 0
	})
	require.NoError(t, rootCmd.Execute())

	var res backtest.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, len(res.Trades), res.TradeCount)
	for _, tr := range res.Trades {
		assert.LessOrEqual(t, tr.Adds, 2)
	}
}
