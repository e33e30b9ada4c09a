package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"StageSentinel/internal/api"
	"StageSentinel/internal/collector"
	"StageSentinel/internal/feed"
	"StageSentinel/internal/generator"
	"StageSentinel/internal/metrics"
	"StageSentinel/internal/notifier"
	"StageSentinel/internal/recorder"
	"StageSentinel/internal/scheduler"
)

var scanOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the watchlist scheduler, Telegram bot and HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&scanOnStart, "scan-on-start", true, "Scan the watchlist once at startup")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log.Info().Msg("StageSentinel starting")

	gen, err := generator.New(cfg.GeneratorOptions()...)
	if err != nil {
		return fmt.Errorf("init generator: %w", err)
	}
	src := collector.NewSyntheticSource(gen)
	col := collector.NewCollector(src)
	log.Info().Str("source", src.Name()).Uint64("seed", cfg.Generator.Seed).Msg("data source ready")

	fm, err := feed.NewManager(cfg.Feed.StateFile, cfg.Feed.MaxItems)
	if err != nil {
		return fmt.Errorf("init feed: %w", err)
	}

	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()

	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
	reg := metrics.NewRegistry()
	reg.FeedUnread.Set(float64(fm.UnreadCount()))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := api.NewHub()
	go hub.Run(ctx)

	sched := scheduler.NewScheduler(ctx, col, fm, tn, rec, cfg.Watchlist)
	sched.Metrics = reg
	sched.Broadcaster = hub
	sched.MinConfidence = cfg.Feed.MinConfidence
	if err := sched.RegisterAll(cfg.Schedule.ScanCron, cfg.Schedule.DigestCron); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if tn.Enabled() {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	} else {
		log.Info().Msg("telegram not configured, notifications disabled")
	}

	if scanOnStart {
		go sched.ScanNow(ctx)
	}

	srv := api.NewServer(ctx, api.Options{
		Addr:             cfg.Server.Addr,
		ReadTimeout:      cfg.Server.ReadTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		RateLimitRPS:     cfg.Server.RateLimitRPS,
		RateLimitBurst:   cfg.Server.RateLimitBurst,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		BasePrice:        cfg.Generator.BasePrice,
		GeneratorOptions: cfg.GeneratorOptions(),
		MaxRangeDays:     cfg.Server.MaxRangeDays,
		Backtest:         cfg.BacktestConfig(),
	}, col, fm, rec, reg, hub)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	log.Info().Msg("StageSentinel is running. Press Ctrl+C to stop.")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received, stopping")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("api shutdown")
	}
	log.Info().Msg("StageSentinel stopped")
	return nil
}
