package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"StageSentinel/internal/backtest"
	"StageSentinel/internal/collector"
	"StageSentinel/internal/feed"
	"StageSentinel/internal/generator"
	"StageSentinel/internal/model"
	"StageSentinel/internal/recorder"
)

const (
	defaultLookbackDays = 365
	defaultListLimit    = 50
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, generator.ErrInvalidDate),
		errors.Is(err, generator.ErrInvalidRange),
		errors.Is(err, generator.ErrInvalidPrice),
		errors.Is(err, collector.ErrEmptySeries),
		errors.Is(err, backtest.ErrInvalidConfig),
		errors.Is(err, backtest.ErrNotEnoughData):
		return http.StatusBadRequest
	case errors.Is(err, feed.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, status, err)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"time":    s.now().Unix(),
		"unread":  s.feed.UnreadCount(),
		"clients": s.hub.ClientCount(),
	})
}

// seriesQuery holds the parsed parameters shared by the stages endpoints.
type seriesQuery struct {
	symbol string
	start  model.Date
	end    model.Date
	asOf   model.Date
	base   float64
	seed   *uint64
}

func (s *Server) parseSeriesQuery(r *http.Request) (seriesQuery, error) {
	q := r.URL.Query()
	sq := seriesQuery{
		symbol: strings.ToUpper(mux.Vars(r)["symbol"]),
		end:    model.DateOf(s.now()),
		base:   s.opts.BasePrice,
	}

	var err error
	if v := q.Get("end"); v != "" {
		if sq.end, err = model.ParseDate(v); err != nil {
			return sq, fmt.Errorf("%w: end: %v", generator.ErrInvalidDate, err)
		}
	}
	sq.start = sq.end.AddDays(-defaultLookbackDays)
	if v := q.Get("start"); v != "" {
		if sq.start, err = model.ParseDate(v); err != nil {
			return sq, fmt.Errorf("%w: start: %v", generator.ErrInvalidDate, err)
		}
	}
	if span := model.DaysBetween(sq.start, sq.end); span > s.opts.MaxRangeDays {
		return sq, badRequest("range of %d days exceeds the %d day limit", span, s.opts.MaxRangeDays)
	}
	if v := q.Get("asof"); v != "" {
		if sq.asOf, err = model.ParseDate(v); err != nil {
			return sq, fmt.Errorf("%w: asof: %v", generator.ErrInvalidDate, err)
		}
	}
	if v := q.Get("base"); v != "" {
		if sq.base, err = strconv.ParseFloat(v, 64); err != nil {
			return sq, badRequest("base: %v", err)
		}
	}
	if v := q.Get("seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return sq, badRequest("seed: %v", err)
		}
		sq.seed = &seed
	}
	return sq, nil
}

// collectorFor returns the shared collector, or a seeded one when the request pins a seed.
func (s *Server) collectorFor(seed *uint64) (*collector.Collector, error) {
	if seed == nil {
		return s.collector, nil
	}
	opts := append(append([]generator.Option{}, s.opts.GeneratorOptions...), generator.WithSeed(*seed))
	g, err := generator.New(opts...)
	if err != nil {
		return nil, err
	}
	return collector.NewCollector(collector.NewSyntheticSource(g)), nil
}

func (s *Server) handleStages(w http.ResponseWriter, r *http.Request) {
	sq, err := s.parseSeriesQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	col, err := s.collectorFor(sq.seed)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	began := time.Now()
	series, err := col.Source.Series(r.Context(), sq.symbol, sq.start, sq.end, sq.base)
	s.observe(col, began, err)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

type snapshotResponse struct {
	RunID       string                  `json:"runId"`
	Source      string                  `json:"source"`
	GeneratedAt time.Time               `json:"generatedAt"`
	Start       model.Date              `json:"start"`
	End         model.Date              `json:"end"`
	Current     model.StagePoint        `json:"current"`
	Indicators  *model.Indicators       `json:"indicators"`
	Rating      model.SetupRating       `json:"rating"`
	Transitions []model.StageTransition `json:"transitions"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sq, err := s.parseSeriesQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	col, err := s.collectorFor(sq.seed)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	began := time.Now()
	snap, err := col.Collect(r.Context(), collector.Request{
		Symbol:    sq.symbol,
		Start:     sq.start,
		End:       sq.end,
		BasePrice: sq.base,
		AsOf:      sq.asOf,
	})
	s.observe(col, began, err)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	transitions := snap.Transitions()
	if transitions == nil {
		transitions = []model.StageTransition{}
	}
	writeJSON(w, http.StatusOK, snapshotResponse{
		RunID:       snap.RunID,
		Source:      snap.Source,
		GeneratedAt: snap.GeneratedAt,
		Start:       sq.start,
		End:         sq.end,
		Current:     snap.Current,
		Indicators:  snap.Indicators,
		Rating:      snap.Rating,
		Transitions: transitions,
	})
}

type backtestResponse struct {
	Symbol string           `json:"symbol"`
	Start  model.Date       `json:"start"`
	End    model.Date       `json:"end"`
	Config backtest.Config  `json:"config"`
	Result *backtest.Result `json:"result"`
}

// parseBacktestConfig overrides the configured strategy defaults from the query.
func (s *Server) parseBacktestConfig(r *http.Request) (backtest.Config, error) {
	q := r.URL.Query()
	cfg := s.opts.Backtest

	var err error
	if v := q.Get("atr_mult"); v != "" {
		if cfg.ATRMultiple, err = strconv.ParseFloat(v, 64); err != nil {
			return cfg, badRequest("atr_mult: %v", err)
		}
	}
	if v := q.Get("pyramid"); v != "" {
		if cfg.Pyramid, err = strconv.ParseBool(v); err != nil {
			return cfg, badRequest("pyramid: %v", err)
		}
	}
	if v := q.Get("max_adds"); v != "" {
		if cfg.MaxAdds, err = strconv.Atoi(v); err != nil {
			return cfg, badRequest("max_adds: %v", err)
		}
	}
	return cfg, cfg.Validate()
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	sq, err := s.parseSeriesQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cfg, err := s.parseBacktestConfig(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	col, err := s.collectorFor(sq.seed)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	began := time.Now()
	series, err := col.Source.Series(r.Context(), sq.symbol, sq.start, sq.end, sq.base)
	s.observe(col, began, err)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := backtest.Run(series.PriceData, cfg)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, backtestResponse{
		Symbol: sq.symbol,
		Start:  sq.start,
		End:    sq.end,
		Config: cfg,
		Result: res,
	})
}

func (s *Server) observe(col *collector.Collector, began time.Time, err error) {
	if s.metrics != nil {
		s.metrics.ObserveGeneration(col.Source.Name(), time.Since(began).Seconds(), err)
	}
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := feed.Filter{Symbol: q.Get("symbol"), Limit: defaultListLimit}

	var err error
	if v := q.Get("unread"); v != "" {
		if f.UnreadOnly, err = strconv.ParseBool(v); err != nil {
			s.fail(w, r, badRequest("unread: %v", err))
			return
		}
	}
	if v := q.Get("min_confidence"); v != "" {
		if f.MinConfidence, err = strconv.ParseFloat(v, 64); err != nil {
			s.fail(w, r, badRequest("min_confidence: %v", err))
			return
		}
	}
	if f.Limit, err = parseLimit(q.Get("limit")); err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": s.feed.List(f),
		"unread": s.feed.UnreadCount(),
	})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.feed.MarkRead(id); err != nil {
		s.fail(w, r, fmt.Errorf("%s: %w", id, err))
		return
	}
	s.syncUnread()
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "unread": false})
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	n := s.feed.MarkAllRead()
	s.syncUnread()
	writeJSON(w, http.StatusOK, map[string]int{"marked": n})
}

func (s *Server) syncUnread() {
	if s.metrics != nil {
		s.metrics.FeedUnread.Set(float64(s.feed.UnreadCount()))
	}
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	runs, err := s.recorder.RecentRuns(limit)
	if err != nil {
		s.fail(w, r, fmt.Errorf("recent runs: %w", err))
		return
	}
	if runs == nil {
		runs = []recorder.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func parseLimit(v string) (int, error) {
	if v == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, badRequest("limit must be a positive integer, got %q", v)
	}
	return n, nil
}
