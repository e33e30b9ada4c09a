package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"StageSentinel/internal/collector"
	"StageSentinel/internal/config"
	"StageSentinel/internal/feed"
	"StageSentinel/internal/generator"
	"StageSentinel/internal/metrics"
	"StageSentinel/internal/model"
	"StageSentinel/internal/notifier"
	"StageSentinel/internal/recorder"
)

const (
	sendRetries  = 3
	digestLimit  = 20
	feedCmdLimit = 10
)

// Broadcaster receives every new alert, e.g. the WebSocket hub.
type Broadcaster interface {
	Broadcast(alert model.Alert)
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron        *cron.Cron
	Collector   *collector.Collector
	Feed        *feed.Manager
	Notifier    *notifier.TelegramNotifier
	Recorder    recorder.Recorder
	Metrics     *metrics.Registry
	Broadcaster Broadcaster
	Watchlist   []config.WatchEntry
	// MinConfidence is the lowest alert confidence pushed to Telegram. The feed keeps all alerts.
	MinConfidence float64
	Ctx           context.Context
	// Now is the scheduler's clock.
	Now func() time.Time

	scanMu sync.Mutex
}

// ScanResult is the outcome of one watchlist entry in a scan.
type ScanResult struct {
	Symbol   string
	Snapshot *collector.Snapshot
	Alert    *model.Alert
	Err      error
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, col *collector.Collector, fm *feed.Manager, tn *notifier.TelegramNotifier, rec recorder.Recorder, watchlist []config.WatchEntry) *Scheduler {
	logger := cron.PrintfLogger(&log.Logger)
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		Collector: col,
		Feed:      fm,
		Notifier:  tn,
		Recorder:  rec,
		Watchlist: watchlist,
		Ctx:       ctx,
		Now:       time.Now,
	}
}

// RegisterAll registers the watchlist scan and the unread digest.
func (s *Scheduler) RegisterAll(scanCron, digestCron string) error {
	if _, err := s.Cron.AddFunc(scanCron, s.scanTask); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	if _, err := s.Cron.AddFunc(digestCron, s.digestTask); err != nil {
		return fmt.Errorf("register digest task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Int("symbols", len(s.Watchlist)).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) scanTask() {
	s.ScanNow(s.Ctx)
}

// ScanNow scans every watchlist entry once and returns the per-symbol outcome.
func (s *Scheduler) ScanNow(ctx context.Context) []ScanResult {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	log.Info().Int("symbols", len(s.Watchlist)).Msg("running watchlist scan")
	results := make([]ScanResult, 0, len(s.Watchlist))
	for _, entry := range s.Watchlist {
		if ctx.Err() != nil {
			break
		}
		res := s.scanEntry(ctx, entry)
		if res.Err != nil {
			log.Error().Err(res.Err).Str("symbol", entry.Symbol).Msg("scan failed")
		}
		results = append(results, res)
	}
	s.updateUnread()
	return results
}

func (s *Scheduler) scanEntry(ctx context.Context, entry config.WatchEntry) ScanResult {
	res := ScanResult{Symbol: entry.Symbol}
	snap, err := s.snapshot(ctx, entry)
	if err != nil {
		res.Err = err
		return res
	}
	res.Snapshot = snap

	s.record(snap, entry)

	current := snap.Current.Stage
	last, seen := s.Feed.LastStage(entry.Symbol)
	s.Feed.SetLastStage(entry.Symbol, current)
	if !seen {
		log.Info().Str("symbol", entry.Symbol).Int("stage", int(current)).Msg("stage seeded")
		return res
	}
	if last == current {
		return res
	}

	alert := s.newAlert(snap, last, current)
	s.emit(alert)
	res.Alert = &alert
	return res
}

// CycleFor returns the replay cycle [start, end) of entry that contains today.
func CycleFor(entry config.WatchEntry, today model.Date) (model.Date, model.Date, error) {
	anchor, err := entry.AnchorDate()
	if err != nil {
		return model.Date{}, model.Date{}, err
	}
	if entry.CycleDays <= 0 {
		return model.Date{}, model.Date{}, fmt.Errorf("cycle_days must be positive, got %d", entry.CycleDays)
	}
	offset := model.DaysBetween(anchor, today)
	k := offset / entry.CycleDays
	if offset < 0 && offset%entry.CycleDays != 0 {
		k--
	}
	start := anchor.AddDays(k * entry.CycleDays)
	return start, start.AddDays(entry.CycleDays), nil
}

func (s *Scheduler) snapshot(ctx context.Context, entry config.WatchEntry) (*collector.Snapshot, error) {
	today := model.DateOf(s.Now())
	start, end, err := CycleFor(entry, today)
	if err != nil {
		return nil, fmt.Errorf("cycle for %s: %w", entry.Symbol, err)
	}

	began := time.Now()
	snap, err := s.Collector.Collect(ctx, collector.Request{
		Symbol:    entry.Symbol,
		Start:     start,
		End:       end,
		BasePrice: entry.BasePrice,
		AsOf:      today,
	})
	if s.Metrics != nil {
		s.Metrics.ObserveGeneration(s.Collector.Source.Name(), time.Since(began).Seconds(), err)
	}
	return snap, err
}

func (s *Scheduler) record(snap *collector.Snapshot, entry config.WatchEntry) {
	series := snap.Series
	run := &recorder.RunRecord{
		RunID:     snap.RunID,
		Symbol:    series.Symbol,
		Source:    snap.Source,
		StartDate: series.PriceData[0].Date,
		EndDate:   series.PriceData[series.Len()-1].Date.AddDays(1),
		BasePrice: entry.BasePrice,
		Days:      series.Len(),
		Stage:     snap.Current.Stage,
		SATAScore: snap.Current.SATAScore,
		Close:     snap.Indicators.Close,
		CreatedAt: snap.GeneratedAt,
	}
	if err := s.Recorder.RecordRun(run); err != nil {
		log.Error().Err(err).Str("run_id", snap.RunID).Msg("record run failed")
		return
	}
	if err := s.Recorder.RecordTransitions(snap.RunID, series.Symbol, snap.Transitions()); err != nil {
		log.Error().Err(err).Str("run_id", snap.RunID).Msg("record transitions failed")
	}
}

func (s *Scheduler) newAlert(snap *collector.Snapshot, from, to model.Stage) model.Alert {
	trigger := generator.TriggerFor(from, to)
	if ts := snap.Transitions(); len(ts) > 0 {
		if t := ts[len(ts)-1]; t.FromStage == from && t.ToStage == to {
			trigger = t.Trigger
		}
	}
	return model.Alert{
		ID:         uuid.NewString(),
		Kind:       model.AlertStageTransition,
		Symbol:     snap.Series.Symbol,
		Title:      fmt.Sprintf("%s entered Stage %d (%s)", snap.Series.Symbol, to, to),
		FromStage:  from,
		ToStage:    to,
		Trigger:    trigger,
		SATAScore:  snap.Current.SATAScore,
		Confidence: snap.Rating.Confidence,
		Price:      snap.Indicators.Close,
		CreatedAt:  s.Now(),
		Unread:     true,
	}
}

func (s *Scheduler) emit(alert model.Alert) {
	log.Info().
		Str("symbol", alert.Symbol).
		Int("from", int(alert.FromStage)).
		Int("to", int(alert.ToStage)).
		Float64("confidence", alert.Confidence).
		Msg("stage transition")

	s.Feed.Add(alert)
	if err := s.Recorder.RecordAlert(&alert); err != nil {
		log.Error().Err(err).Str("alert_id", alert.ID).Msg("record alert failed")
	}
	if s.Metrics != nil {
		s.Metrics.Alerts.Inc()
		s.Metrics.ObserveTransition(alert.FromStage, alert.ToStage)
	}
	if s.Broadcaster != nil {
		s.Broadcaster.Broadcast(alert)
	}
	if alert.Confidence >= s.MinConfidence {
		s.trySend(notifier.FormatAlert(&alert))
	}
}

func (s *Scheduler) digestTask() {
	log.Info().Msg("running digest task")
	unread := s.Feed.UnreadCount()
	alerts := s.Feed.List(feed.Filter{UnreadOnly: true, Limit: digestLimit})
	s.trySend(notifier.FormatDigest(alerts, unread))
	s.updateUnread()
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	switch strings.ToLower(fields[0]) {
	case "/stage":
		if len(fields) < 2 {
			return "Usage: /stage SYMBOL"
		}
		entry, ok := s.watchEntry(fields[1])
		if !ok {
			return fmt.Sprintf("%s is not on the watchlist", strings.ToUpper(fields[1]))
		}
		snap, err := s.snapshot(s.Ctx, entry)
		if err != nil {
			log.Error().Err(err).Str("symbol", entry.Symbol).Msg("stage command failed")
			return fmt.Sprintf("❌ %s: %v", entry.Symbol, err)
		}
		return notifier.FormatStageReport(snap)
	case "/scan":
		results := s.ScanNow(s.Ctx)
		alerts := 0
		for _, r := range results {
			if r.Alert != nil {
				alerts++
			}
		}
		return fmt.Sprintf("Scanned %d symbols, %d stage changes", len(results), alerts)
	case "/feed":
		return notifier.FormatFeed(s.Feed.List(feed.Filter{Limit: feedCmdLimit}))
	case "/read":
		n := s.Feed.MarkAllRead()
		s.updateUnread()
		return fmt.Sprintf("Marked %d alerts as read", n)
	default:
		return helpText
	}
}

const helpText = "Commands:\n• /stage SYMBOL\n• /scan\n• /feed\n• /read\n• /help"

func (s *Scheduler) watchEntry(symbol string) (config.WatchEntry, bool) {
	for _, w := range s.Watchlist {
		if strings.EqualFold(w.Symbol, symbol) {
			return w, true
		}
	}
	return config.WatchEntry{}, false
}

func (s *Scheduler) updateUnread() {
	if s.Metrics != nil {
		s.Metrics.FeedUnread.Set(float64(s.Feed.UnreadCount()))
	}
}

func (s *Scheduler) trySend(text string) {
	if !s.Notifier.Enabled() {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, sendRetries); err != nil {
		log.Error().Err(err).Msg("send notification failed")
	}
}
