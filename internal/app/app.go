// Package app wires all subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the HTTP API and drives autosaves, and Shutdown
// tears everything down in order.
//
// For testing, inject doubles via functional options (WithProvider,
// WithSaveStore, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/timeportal/engine/internal/character"
	"github.com/timeportal/engine/internal/config"
	"github.com/timeportal/engine/internal/convo"
	"github.com/timeportal/engine/internal/health"
	"github.com/timeportal/engine/internal/memory"
	"github.com/timeportal/engine/internal/player"
	"github.com/timeportal/engine/internal/resilience"
	"github.com/timeportal/engine/internal/save"
	"github.com/timeportal/engine/internal/server"
	"github.com/timeportal/engine/pkg/provider/llm"
)

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config

	catalog  *character.Catalog
	memory   *memory.Manager
	player   *player.Store
	provider llm.Provider
	saves    save.Store
	engine   *convo.Engine
	srv      *server.Server

	// saveMu serialises whole-game snapshot operations (save, load, reset)
	// so a load never interleaves with an autosave.
	saveMu sync.Mutex

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithCatalog injects a character catalog instead of loading one from the
// configured YAML file.
func WithCatalog(c *character.Catalog) Option {
	return func(a *App) { a.catalog = c }
}

// WithProvider injects an LLM provider instead of creating one from the
// registry.
func WithProvider(p llm.Provider) Option {
	return func(a *App) { a.provider = p }
}

// WithSaveStore injects a save store instead of creating one from config.
func WithSaveStore(s save.Store) Option {
	return func(a *App) { a.saves = s }
}

// New creates an App by wiring all subsystems together. The registry supplies
// LLM provider factories; main.go registers the built-in ones. Use Option
// functions to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, registry *config.Registry, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	if err := a.initCatalog(); err != nil {
		return nil, fmt.Errorf("app: init catalog: %w", err)
	}
	if err := a.initProvider(registry); err != nil {
		return nil, fmt.Errorf("app: init provider: %w", err)
	}
	if err := a.initSaves(ctx); err != nil {
		return nil, fmt.Errorf("app: init saves: %w", err)
	}

	var memOpts []memory.Option
	if cfg.Game.MaxTurns > 0 {
		memOpts = append(memOpts, memory.WithMaxTurns(cfg.Game.MaxTurns))
	}
	if cfg.Game.KeepLast > 0 {
		memOpts = append(memOpts, memory.WithKeepLast(cfg.Game.KeepLast))
	}
	a.memory = memory.NewManager(a.catalog, memOpts...)
	a.player = player.NewStore(cfg.Game.PlayerName)

	engine, err := convo.NewEngine(a.catalog, a.memory, a.player, a.provider,
		convo.WithReplyTimeout(cfg.Game.ReplyTimeout.Std()),
		convo.WithTemperature(cfg.Game.Temperature),
		convo.WithMaxTokens(cfg.Game.MaxTokens),
		convo.WithFallbackReply(cfg.Game.FallbackReply),
	)
	if err != nil {
		return nil, fmt.Errorf("app: init engine: %w", err)
	}
	a.engine = engine

	h := health.New(
		health.ProviderChecker(a.provider),
		health.SaveStoreChecker(a.saves),
		health.CatalogChecker(a.catalog),
	)
	srv, err := server.New(cfg.Server.ListenAddr, a.engine, a.catalog, a.memory, a.player,
		server.WithGameControl(a),
		server.WithHealth(h),
	)
	if err != nil {
		return nil, fmt.Errorf("app: init server: %w", err)
	}
	a.srv = srv

	return a, nil
}

// initCatalog loads the character catalog unless one was injected.
func (a *App) initCatalog() error {
	if a.catalog != nil {
		return nil
	}
	catalog, err := character.LoadCatalogFile(a.cfg.Game.CharactersPath)
	if err != nil {
		return err
	}
	a.catalog = catalog
	slog.Info("loaded character catalog",
		"path", a.cfg.Game.CharactersPath,
		"characters", catalog.Len())
	return nil
}

// initProvider builds the LLM provider chain: the primary from config, plus a
// circuit-breaker failover group when fallbacks are configured.
func (a *App) initProvider(registry *config.Registry) error {
	if a.provider != nil {
		return nil
	}
	if registry == nil {
		return errors.New("registry is required when no provider is injected")
	}

	primary, err := registry.CreateLLM(a.cfg.Provider)
	if err != nil {
		return fmt.Errorf("create primary provider %q: %w", a.cfg.Provider.Name, err)
	}

	if len(a.cfg.Provider.Fallbacks) == 0 {
		a.provider = primary
		return nil
	}

	group := resilience.NewLLMFallback(primary, a.cfg.Provider.Name, resilience.FallbackConfig{})
	for _, fb := range a.cfg.Provider.Fallbacks {
		p, err := registry.CreateLLM(fb)
		if err != nil {
			return fmt.Errorf("create fallback provider %q: %w", fb.Name, err)
		}
		group.AddFallback(fb.Name, p)
		slog.Info("registered fallback provider", "name", fb.Name, "model", fb.Model)
	}
	a.provider = group
	return nil
}

// initSaves builds the save store from config unless one was injected.
func (a *App) initSaves(ctx context.Context) error {
	if a.saves != nil {
		return nil
	}

	switch a.cfg.Save.Backend {
	case config.SavePostgres:
		pool, err := pgxpool.New(ctx, a.cfg.Save.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		store := save.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("migrate save schema: %w", err)
		}
		a.saves = store
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})
	default:
		a.saves = save.NewMemStore()
	}
	return nil
}

// Run serves the HTTP API and drives autosaves until ctx is cancelled. On the
// way out every open conversation is closed so session durations are recorded.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.srv.Run(gctx)
	})
	if interval := a.cfg.Save.AutosaveInterval.Std(); interval > 0 {
		g.Go(func() error {
			a.autosaveLoop(gctx, interval)
			return nil
		})
	}

	slog.Info("app running",
		"addr", a.cfg.Server.ListenAddr,
		"characters", a.catalog.Len(),
		"provider", a.cfg.Provider.Name)

	err := g.Wait()

	a.engine.CloseAll(context.Background())
	return err
}

// autosaveLoop writes the game into the autosave slot on a fixed interval.
func (a *App) autosaveLoop(ctx context.Context, interval time.Duration) {
	slot := a.cfg.Save.AutosaveSlot
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.SaveGame(ctx, slot); err != nil {
				slog.Warn("autosave failed", "slot", slot, "err", err)
				continue
			}
			slog.Debug("autosave written", "slot", slot)
		}
	}
}

// SaveGame persists the current game state into the named slot.
func (a *App) SaveGame(ctx context.Context, slot string) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	snap := &save.Snapshot{
		Player:  a.player.Snapshot(),
		Records: a.memory.Export(),
	}
	if err := a.saves.Save(ctx, slot, snap); err != nil {
		return fmt.Errorf("app: save %q: %w", slot, err)
	}
	return nil
}

// LoadGame replaces the current game state with the named slot's contents.
// All open conversations are closed first.
func (a *App) LoadGame(ctx context.Context, slot string) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	snap, err := a.saves.Load(ctx, slot)
	if err != nil {
		return fmt.Errorf("app: load %q: %w", slot, err)
	}

	a.engine.CloseAll(ctx)
	a.memory.Import(snap.Records)
	a.player.Restore(snap.Player)
	slog.Info("game loaded", "slot", slot, "saved_at", snap.SavedAt)
	return nil
}

// DeleteSave removes the named slot.
func (a *App) DeleteSave(ctx context.Context, slot string) error {
	return a.saves.Delete(ctx, slot)
}

// ListSaves returns the available slots, most recent first.
func (a *App) ListSaves(ctx context.Context) ([]server.SlotSummary, error) {
	slots, err := a.saves.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]server.SlotSummary, 0, len(slots))
	for _, s := range slots {
		out = append(out, server.SlotSummary{Slot: s.Slot, SavedAt: s.SavedAt})
	}
	return out, nil
}

// ResetGame wipes all memory and player progress and closes every open
// conversation. Save slots are left untouched.
func (a *App) ResetGame(ctx context.Context) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.engine.CloseAll(ctx)
	a.memory.Reset()
	a.player.Reset()
	slog.Info("game reset")
	return nil
}

// Engine exposes the conversation engine for embedding callers.
func (a *App) Engine() *convo.Engine { return a.engine }

// ApplyGameTuning pushes hot-reloadable game tuning to the running engine.
// History bounds and the player name stay as loaded; they need a restart.
func (a *App) ApplyGameTuning(game config.GameConfig) {
	a.engine.SetTuning(game.ReplyTimeout.Std(), game.Temperature, game.MaxTokens)
	slog.Info("game tuning applied",
		slog.Duration("reply_timeout", game.ReplyTimeout.Std()),
		slog.Float64("temperature", game.Temperature),
		slog.Int("max_tokens", game.MaxTokens))
}

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// compile-time check: App satisfies the server's game control surface.
var _ server.GameControl = (*App)(nil)
