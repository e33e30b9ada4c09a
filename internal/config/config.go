package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"StageSentinel/internal/backtest"
	"StageSentinel/internal/generator"
	"StageSentinel/internal/model"
)

// WatchEntry is one symbol the scheduler replays and scans.
type WatchEntry struct {
	Symbol    string  `yaml:"symbol"`
	BasePrice float64 `yaml:"base_price"`
	Anchor    string  `yaml:"anchor"`
	CycleDays int     `yaml:"cycle_days"`
}

// AnchorDate parses Anchor.
func (w WatchEntry) AnchorDate() (model.Date, error) {
	return model.ParseDate(w.Anchor)
}

// Config holds all application configuration.
type Config struct {
	Generator struct {
		BasePrice float64                 `yaml:"base_price"`
		Seed      uint64                  `yaml:"seed"`
		MAWindow  int                     `yaml:"ma_window"`
		Profile   *generator.StageProfile `yaml:"profile"`
	} `yaml:"generator"`
	Watchlist []WatchEntry `yaml:"watchlist"`
	Schedule  struct {
		ScanCron   string `yaml:"scan_cron"`
		DigestCron string `yaml:"digest_cron"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Feed struct {
		StateFile     string  `yaml:"state_file"`
		MaxItems      int     `yaml:"max_items"`
		MinConfidence float64 `yaml:"min_confidence"`
	} `yaml:"feed"`
	Server struct {
		Addr           string        `yaml:"addr"`
		ReadTimeout    time.Duration `yaml:"read_timeout"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		RateLimitRPS   float64       `yaml:"rate_limit_rps"`
		RateLimitBurst int           `yaml:"rate_limit_burst"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
		MaxRangeDays   int           `yaml:"max_range_days"`
	} `yaml:"server"`
	Backtest struct {
		MAPeriod      int     `yaml:"ma_period"`
		ATRPeriod     int     `yaml:"atr_period"`
		ATRMultiple   float64 `yaml:"atr_multiple"`
		Pyramid       *bool   `yaml:"pyramid"`
		MaxAdds       int     `yaml:"max_adds"`
		FailThreshold float64 `yaml:"fail_threshold"`
	} `yaml:"backtest"`
	Export struct {
		Dir string `yaml:"dir"`
	} `yaml:"export"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides
// and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CRON_SCAN"); v != "" {
		c.Schedule.ScanCron = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("STAGE_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("STAGE_SEED: %w", err)
		}
		c.Generator.Seed = seed
	}
	if v := os.Getenv("BASE_PRICE"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("BASE_PRICE: %w", err)
		}
		c.Generator.BasePrice = price
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Generator.BasePrice == 0 {
		c.Generator.BasePrice = generator.DefaultBasePrice
	}
	if c.Generator.MAWindow == 0 {
		c.Generator.MAWindow = generator.DefaultMAWindow
	}
	if len(c.Watchlist) == 0 {
		c.Watchlist = []WatchEntry{{Symbol: "AAPL"}}
	}
	for i := range c.Watchlist {
		w := &c.Watchlist[i]
		if w.BasePrice == 0 {
			w.BasePrice = c.Generator.BasePrice
		}
		if w.Anchor == "" {
			w.Anchor = "2024-01-01"
		}
		if w.CycleDays == 0 {
			w.CycleDays = 365
		}
	}
	if c.Schedule.ScanCron == "" {
		c.Schedule.ScanCron = "0 */15 * * * *"
	}
	if c.Schedule.DigestCron == "" {
		c.Schedule.DigestCron = "0 0 22 * * 1-5"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/stage_sentinel.db"
	}
	if c.Feed.StateFile == "" {
		c.Feed.StateFile = "data/feed_state.json"
	}
	if c.Feed.MaxItems == 0 {
		c.Feed.MaxItems = 200
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.RateLimitRPS == 0 {
		c.Server.RateLimitRPS = 20
	}
	if c.Server.RateLimitBurst == 0 {
		c.Server.RateLimitBurst = 40
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.MaxRangeDays == 0 {
		c.Server.MaxRangeDays = 3650
	}
	bt := backtest.DefaultConfig()
	if c.Backtest.MAPeriod == 0 {
		c.Backtest.MAPeriod = bt.MAPeriod
	}
	if c.Backtest.ATRPeriod == 0 {
		c.Backtest.ATRPeriod = bt.ATRPeriod
	}
	if c.Backtest.ATRMultiple == 0 {
		c.Backtest.ATRMultiple = bt.ATRMultiple
	}
	if c.Backtest.Pyramid == nil {
		c.Backtest.Pyramid = &bt.Pyramid
	}
	if c.Backtest.MaxAdds == 0 {
		c.Backtest.MaxAdds = bt.MaxAdds
	}
	if c.Backtest.FailThreshold == 0 {
		c.Backtest.FailThreshold = bt.FailThreshold
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "data/export"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// Validate checks that all fields hold usable values.
func (c *Config) Validate() error {
	if c.Generator.BasePrice <= 0 {
		return errors.New("generator.base_price must be positive")
	}
	if c.Generator.MAWindow < 1 {
		return errors.New("generator.ma_window must be at least 1")
	}
	if c.Generator.Profile != nil {
		if err := c.Generator.Profile.Validate(); err != nil {
			return fmt.Errorf("generator.profile: %w", err)
		}
	}
	for i, w := range c.Watchlist {
		if w.Symbol == "" {
			return fmt.Errorf("watchlist[%d].symbol is required", i)
		}
		if w.BasePrice <= 0 {
			return fmt.Errorf("watchlist[%d].base_price must be positive", i)
		}
		if _, err := w.AnchorDate(); err != nil {
			return fmt.Errorf("watchlist[%d].anchor: %w", i, err)
		}
		if w.CycleDays <= 0 {
			return fmt.Errorf("watchlist[%d].cycle_days must be positive", i)
		}
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return errors.New("telegram.chat_id is required when telegram.bot_token is set")
	}
	if c.Feed.MaxItems < 1 {
		return errors.New("feed.max_items must be positive")
	}
	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
		return errors.New("server rate limits must not be negative")
	}
	if c.Server.MaxRangeDays < 1 {
		return errors.New("server.max_range_days must be positive")
	}
	if err := c.BacktestConfig().Validate(); err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	return nil
}

// BacktestConfig translates the backtest section into strategy parameters.
func (c *Config) BacktestConfig() backtest.Config {
	cfg := backtest.Config{
		MAPeriod:      c.Backtest.MAPeriod,
		ATRPeriod:     c.Backtest.ATRPeriod,
		ATRMultiple:   c.Backtest.ATRMultiple,
		Pyramid:       true,
		MaxAdds:       c.Backtest.MaxAdds,
		FailThreshold: c.Backtest.FailThreshold,
	}
	if c.Backtest.Pyramid != nil {
		cfg.Pyramid = *c.Backtest.Pyramid
	}
	return cfg
}

// GeneratorOptions translates the generator section into generator options.
func (c *Config) GeneratorOptions() []generator.Option {
	opts := []generator.Option{generator.WithMAWindow(c.Generator.MAWindow)}
	if c.Generator.Profile != nil {
		opts = append(opts, generator.WithProfile(*c.Generator.Profile))
	}
	if c.Generator.Seed != 0 {
		opts = append(opts, generator.WithSeed(c.Generator.Seed))
	}
	return opts
}
