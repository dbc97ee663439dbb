// Package server exposes the dialogue engine over an HTTP JSON API.
//
// The API groups into four surfaces:
//
//   - /api/characters — catalog listing and the conversation lifecycle
//     (open, message, learn, close) per character.
//   - /api/player     — the player's inventory, clues, and skills.
//   - /api/saves      — save-slot management backed by the configured store.
//   - operational     — /healthz, /readyz, and /metrics.
//
// All /api routes pass through the observability middleware, which traces
// requests and records durations. Errors are returned as JSON objects with a
// single "error" field.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/timeportal/engine/internal/character"
	"github.com/timeportal/engine/internal/convo"
	"github.com/timeportal/engine/internal/health"
	"github.com/timeportal/engine/internal/memory"
	"github.com/timeportal/engine/internal/observe"
	"github.com/timeportal/engine/internal/player"
)

// shutdownTimeout bounds graceful drain of in-flight requests.
const shutdownTimeout = 10 * time.Second

// GameControl is the subset of application operations the save and reset
// endpoints need. The application layer implements it.
type GameControl interface {
	// SaveGame persists the current game state into the named slot.
	SaveGame(ctx context.Context, slot string) error

	// LoadGame replaces the current game state with the named slot's contents.
	LoadGame(ctx context.Context, slot string) error

	// DeleteSave removes the named slot.
	DeleteSave(ctx context.Context, slot string) error

	// ListSaves returns the available slots, most recent first.
	ListSaves(ctx context.Context) ([]SlotSummary, error)

	// ResetGame wipes all memory and player progress.
	ResetGame(ctx context.Context) error
}

// SlotSummary describes one save slot in API responses.
type SlotSummary struct {
	Slot    string    `json:"slot"`
	SavedAt time.Time `json:"saved_at"`
}

// Server serves the HTTP API. Construct with New, then call Run.
type Server struct {
	engine  *convo.Engine
	catalog *character.Catalog
	memory  *memory.Manager
	player  *player.Store
	game    GameControl

	health  *health.Handler
	metrics *observe.Metrics
	logger  *slog.Logger

	httpServer *http.Server
}

// Option is a functional option for New.
type Option func(*Server)

// WithGameControl wires the save/load/reset endpoints. Without it those
// endpoints return 503.
func WithGameControl(g GameControl) Option {
	return func(s *Server) { s.game = g }
}

// WithHealth sets the health handler serving /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) {
		if h != nil {
			s.health = h
		}
	}
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Server listening on addr once Run is called.
func New(addr string, engine *convo.Engine, catalog *character.Catalog, mem *memory.Manager, ps *player.Store, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, errors.New("server: engine must not be nil")
	}
	if catalog == nil {
		return nil, errors.New("server: catalog must not be nil")
	}
	if mem == nil {
		return nil, errors.New("server: memory manager must not be nil")
	}
	if ps == nil {
		return nil, errors.New("server: player store must not be nil")
	}

	s := &Server{
		engine:  engine,
		catalog: catalog,
		memory:  mem,
		player:  ps,
		health:  health.New(),
		metrics: observe.DefaultMetrics(),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Handler builds the full route table. Exposed so tests can drive the API
// through httptest without binding a socket.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/characters", s.handleListCharacters)
	api.HandleFunc("GET /api/characters/{id}", s.handleGetCharacter)
	api.HandleFunc("POST /api/characters/{id}/open", s.handleOpen)
	api.HandleFunc("POST /api/characters/{id}/message", s.handleMessage)
	api.HandleFunc("POST /api/characters/{id}/learn", s.handleLearn)
	api.HandleFunc("POST /api/characters/{id}/close", s.handleClose)
	api.HandleFunc("GET /api/player", s.handlePlayer)
	api.HandleFunc("GET /api/saves", s.handleListSaves)
	api.HandleFunc("POST /api/saves/{slot}", s.handleSave)
	api.HandleFunc("POST /api/saves/{slot}/load", s.handleLoad)
	api.HandleFunc("DELETE /api/saves/{slot}", s.handleDeleteSave)
	api.HandleFunc("POST /api/game/reset", s.handleReset)

	root := http.NewServeMux()
	root.Handle("/api/", observe.Middleware(s.metrics)(api))
	root.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(root)
	return root
}

// Run serves HTTP until ctx is cancelled, then drains gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.httpServer.Addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server outside of Run's cancellation path.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
