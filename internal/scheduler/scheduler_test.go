package scheduler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StageSentinel/internal/collector"
	"StageSentinel/internal/config"
	"StageSentinel/internal/feed"
	"StageSentinel/internal/generator"
	"StageSentinel/internal/metrics"
	"StageSentinel/internal/model"
	"StageSentinel/internal/notifier"
	"StageSentinel/internal/recorder"
)

type recordingHub struct {
	mu     sync.Mutex
	alerts []model.Alert
}

func (h *recordingHub) Broadcast(a model.Alert) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alerts = append(h.alerts, a)
}

type fakeTelegram struct {
	mu   sync.Mutex
	text []string
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var payload map[string]string
	_ = json.NewDecoder(r.Body).Decode(&payload)
	f.mu.Lock()
	f.text = append(f.text, payload["text"])
	f.mu.Unlock()
	w.Write([]byte(`{"ok":true}`))
}

func (f *fakeTelegram) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.text...)
}

type fixture struct {
	sched    *Scheduler
	clock    time.Time
	hub      *recordingHub
	telegram *fakeTelegram
	rec      *recorder.SQLiteRecorder
}

// 100-day cycle: Basing days 0-24, Advancing 25-59, Topping 60-79, Declining 80-99.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	g, err := generator.New(generator.WithSeed(21))
	require.NoError(t, err)
	col := collector.NewCollector(collector.NewSyntheticSource(g))

	fm, err := feed.NewManager("", 50)
	require.NoError(t, err)

	rec, err := recorder.NewSQLiteRecorder(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })

	tg := &fakeTelegram{}
	srv := httptest.NewServer(tg)
	t.Cleanup(srv.Close)
	tn := notifier.NewTelegramNotifier("TOKEN", "1", "")
	tn.APIBase = srv.URL
	tn.Backoff = time.Millisecond

	watch := []config.WatchEntry{{Symbol: "AAPL", BasePrice: 150, Anchor: "2024-01-01", CycleDays: 100}}
	f := &fixture{hub: &recordingHub{}, telegram: tg, rec: rec}
	s := NewScheduler(context.Background(), col, fm, tn, rec, watch)
	s.Metrics = metrics.NewRegistry()
	s.Broadcaster = f.hub
	s.Now = func() time.Time { return f.clock }
	f.sched = s
	return f
}

func (f *fixture) scanAt(t *testing.T, day string) []ScanResult {
	t.Helper()
	d, err := model.ParseDate(day)
	require.NoError(t, err)
	f.clock = d.Add(9 * time.Hour)
	results := f.sched.ScanNow(context.Background())
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	return results
}

func TestCycleFor(t *testing.T) {
	entry := config.WatchEntry{Symbol: "X", Anchor: "2024-01-01", CycleDays: 10}
	cases := []struct {
		today, start, end string
	}{
		{"2024-01-01", "2024-01-01", "2024-01-11"},
		{"2024-01-10", "2024-01-01", "2024-01-11"},
		{"2024-01-11", "2024-01-11", "2024-01-21"},
		{"2023-12-31", "2023-12-22", "2024-01-01"},
		{"2023-12-22", "2023-12-22", "2024-01-01"},
	}
	for _, c := range cases {
		today, _ := model.ParseDate(c.today)
		start, end, err := CycleFor(entry, today)
		require.NoError(t, err)
		assert.Equal(t, c.start, start.String(), c.today)
		assert.Equal(t, c.end, end.String(), c.today)
	}

	_, _, err := CycleFor(config.WatchEntry{Anchor: "bad", CycleDays: 10}, model.Date{})
	assert.Error(t, err)
	_, _, err = CycleFor(config.WatchEntry{Anchor: "2024-01-01"}, model.Date{})
	assert.Error(t, err)
}

func TestScanNow_FirstScanSeedsStage(t *testing.T) {
	f := newFixture(t)

	res := f.scanAt(t, "2024-01-10")
	assert.Nil(t, res[0].Alert)
	assert.Equal(t, model.StageBasing, res[0].Snapshot.Current.Stage)
	assert.Equal(t, "2024-01-10", res[0].Snapshot.Indicators.Date.String())

	stage, ok := f.sched.Feed.LastStage("AAPL")
	require.True(t, ok)
	assert.Equal(t, model.StageBasing, stage)
	assert.Empty(t, f.sched.Feed.List(feed.Filter{}))
	assert.Empty(t, f.telegram.messages())

	runs, err := f.rec.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 100, runs[0].Days)
	assert.Equal(t, "2024-04-10", runs[0].EndDate.String())
}

func TestScanNow_AlertsOnStageChange(t *testing.T) {
	f := newFixture(t)

	f.scanAt(t, "2024-01-10")

	res := f.scanAt(t, "2024-02-01")
	require.NotNil(t, res[0].Alert)
	a := res[0].Alert
	assert.Equal(t, model.StageBasing, a.FromStage)
	assert.Equal(t, model.StageAdvancing, a.ToStage)
	assert.Equal(t, "Breakout above 30W MA on volume", a.Trigger)
	assert.Equal(t, "AAPL entered Stage 2 (Advancing)", a.Title)
	assert.True(t, a.Unread)
	assert.Equal(t, f.clock, a.CreatedAt)

	// Same stage again: nothing new.
	res = f.scanAt(t, "2024-02-02")
	assert.Nil(t, res[0].Alert)

	// Skipping the topping stage falls back to the generic trigger.
	res = f.scanAt(t, "2024-03-26")
	require.NotNil(t, res[0].Alert)
	assert.Equal(t, model.StageDeclining, res[0].Alert.ToStage)
	assert.Equal(t, generator.DefaultTrigger, res[0].Alert.Trigger)

	// The next cycle starts over in the basing stage.
	res = f.scanAt(t, "2024-04-11")
	require.NotNil(t, res[0].Alert)
	assert.Equal(t, model.StageDeclining, res[0].Alert.FromStage)
	assert.Equal(t, model.StageBasing, res[0].Alert.ToStage)
	assert.Equal(t, "Base formation, volume drying up", res[0].Alert.Trigger)

	alerts := f.sched.Feed.List(feed.Filter{})
	require.Len(t, alerts, 3)
	assert.Equal(t, model.StageBasing, alerts[0].ToStage, "newest first")
	assert.Len(t, f.hub.alerts, 3)
	assert.Len(t, f.telegram.messages(), 3)

	m := f.sched.Metrics
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Alerts))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FeedUnread))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("1", "2")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.Generations.WithLabelValues("synthetic", "ok")))
}

func TestScanNow_MinConfidenceGatesTelegramOnly(t *testing.T) {
	f := newFixture(t)
	f.sched.MinConfidence = 101

	f.scanAt(t, "2024-01-10")
	res := f.scanAt(t, "2024-02-01")
	require.NotNil(t, res[0].Alert)

	assert.Len(t, f.sched.Feed.List(feed.Filter{}), 1)
	assert.Len(t, f.hub.alerts, 1)
	assert.Empty(t, f.telegram.messages())
}

func TestDigestTask(t *testing.T) {
	f := newFixture(t)
	f.scanAt(t, "2024-01-10")
	f.scanAt(t, "2024-02-01")

	f.sched.digestTask()
	msgs := f.telegram.messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1], "1 unread")
	assert.Contains(t, msgs[1], "AAPL: 1 → 2")
}

func TestHandleCommand(t *testing.T) {
	f := newFixture(t)
	f.scanAt(t, "2024-01-10")
	f.scanAt(t, "2024-02-01")

	assert.Contains(t, f.sched.HandleCommand("/help"), "/stage SYMBOL")
	assert.Contains(t, f.sched.HandleCommand("hello"), "Commands:")
	assert.Equal(t, "Usage: /stage SYMBOL", f.sched.HandleCommand("/stage"))
	assert.Equal(t, "TSLA is not on the watchlist", f.sched.HandleCommand("/stage tsla"))

	report := f.sched.HandleCommand("/stage aapl")
	assert.Contains(t, report, "<b>AAPL</b> | 2024-02-01")
	assert.Contains(t, report, "Stage 2: Advancing")

	assert.Contains(t, f.sched.HandleCommand("/feed"), "AAPL entered Stage 2 (Advancing)")
	assert.Equal(t, "Marked 1 alerts as read", f.sched.HandleCommand("/read"))
	assert.Equal(t, 0, f.sched.Feed.UnreadCount())
	assert.Equal(t, "Scanned 1 symbols, 0 stage changes", f.sched.HandleCommand("/scan"))
}

func TestRegisterAll(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sched.RegisterAll("0 */15 * * * *", "0 0 22 * * 1-5"))
	assert.Len(t, f.sched.Cron.Entries(), 2)
	assert.Error(t, f.sched.RegisterAll("not a cron", "0 0 22 * * 1-5"))

	f.sched.Start()
	f.sched.Stop()
}
