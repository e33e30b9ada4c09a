// Package api serves generated stage series, the alert feed and run history
// over HTTP, and streams new alerts over WebSocket.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"StageSentinel/internal/backtest"
	"StageSentinel/internal/collector"
	"StageSentinel/internal/feed"
	"StageSentinel/internal/generator"
	"StageSentinel/internal/metrics"
	"StageSentinel/internal/recorder"
)

// Options configures the HTTP server.
type Options struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string
	// BasePrice is used when a request has no base parameter.
	BasePrice float64
	// GeneratorOptions rebuild the generator for requests that pass a seed.
	GeneratorOptions []generator.Option
	// MaxRangeDays caps the span between start and end of a series request.
	MaxRangeDays int
	// Backtest holds the strategy defaults for the backtest endpoint.
	Backtest backtest.Config
}

// DefaultMaxRangeDays is used when Options.MaxRangeDays is unset.
const DefaultMaxRangeDays = 3650

// Server is the HTTP/WebSocket API server.
type Server struct {
	opts       Options
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader
	limiter    *rate.Limiter

	hub       *Hub
	collector *collector.Collector
	feed      *feed.Manager
	recorder  recorder.Recorder
	metrics   *metrics.Registry
	now       func() time.Time
	ctx       context.Context
}

// NewServer creates a new API server. The hub must be running for /ws/alerts to accept clients.
func NewServer(ctx context.Context, opts Options, col *collector.Collector, fm *feed.Manager, rec recorder.Recorder, reg *metrics.Registry, hub *Hub) *Server {
	if opts.BasePrice <= 0 {
		opts.BasePrice = generator.DefaultBasePrice
	}
	if opts.MaxRangeDays <= 0 {
		opts.MaxRangeDays = DefaultMaxRangeDays
	}
	if opts.Backtest == (backtest.Config{}) {
		opts.Backtest = backtest.DefaultConfig()
	}
	s := &Server{
		opts:      opts,
		router:    mux.NewRouter(),
		hub:       hub,
		collector: col,
		feed:      fm,
		recorder:  rec,
		metrics:   reg,
		now:       time.Now,
		ctx:       ctx,
	}
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.instrument, s.rateLimit)

	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods(http.MethodGet)

	s.router.HandleFunc("/api/v1/stages/{symbol}", s.handleStages).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/stages/{symbol}/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/stages/{symbol}/backtest", s.handleBacktest).Methods(http.MethodGet)

	s.router.HandleFunc("/api/v1/alerts", s.handleListAlerts).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/alerts/read", s.handleMarkAllRead).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/alerts/{id}/read", s.handleMarkRead).Methods(http.MethodPost)

	s.router.HandleFunc("/api/v1/runs", s.handleRuns).Methods(http.MethodGet)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	s.router.HandleFunc("/ws/alerts", s.handleWebSocket)
}

// Handler returns the router wrapped with CORS.
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(s.router)
}

// Start listens on Options.Addr. It returns nil after Stop.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}
	log.Info().Str("addr", s.opts.Addr).Msg("api server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.opts.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.hub.serve(s.ctx, conn)
}
