package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/gippro/learnsync/internal/action"
	"github.com/gippro/learnsync/internal/chat"
	"github.com/gippro/learnsync/internal/config"
	"github.com/gippro/learnsync/internal/database"
	"github.com/gippro/learnsync/internal/events"
	"github.com/gippro/learnsync/internal/handler"
	"github.com/gippro/learnsync/internal/jobs"
	"github.com/gippro/learnsync/internal/middleware"
	"github.com/gippro/learnsync/internal/model"
	"github.com/gippro/learnsync/internal/remote"
	"github.com/gippro/learnsync/internal/session"
	"github.com/gippro/learnsync/internal/simulator"
	"github.com/gippro/learnsync/internal/syncer"
	"github.com/gippro/learnsync/pkg/jwt"
)

// App holds the client context: one store, one session, one mirror
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	store  remote.Store

	Layout     syncer.Layout
	Engine     *syncer.Engine
	Sessions   *session.Manager
	Dispatcher *action.Dispatcher
	Hub        *events.Hub
	Tutor      *chat.Tutor
	Market     *simulator.Simulator
	Ticker     *jobs.PriceTicker

	limiter *middleware.RateLimiter
	detach  []func()
}

// Options overrides collaborators, mainly for tests
type Options struct {
	// Provider replaces the configured sign-in provider
	Provider session.Provider
	// Completer replaces the chat API client
	Completer chat.Completer
	// MarketSource seeds the simulator
	MarketSource rand.Source
}

// Open connects the configured store backend and builds the app on it
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, auth, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var verifier *jwt.Verifier
	if cfg.Session.InitialAuthToken != "" {
		verifier, err = jwt.NewVerifier(cfg.Session.PublicKeyPath, cfg.Session.Issuer)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("loading token verifier: %w", err)
		}
	}

	provider := session.Select(cfg.Session.InitialAuthToken, verifier, auth, cfg.Session.AnonymousID)
	return New(cfg, store, logger, Options{Provider: provider}), nil
}

// OpenStore connects the backend named by cfg.Store.Backend. The returned
// authenticator is non-nil when the backend binds connections to user tokens.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (remote.Store, session.Authenticator, error) {
	switch cfg.Store.Backend {
	case config.BackendSurreal:
		db := database.NewSurrealDB(database.Config{
			Host:      cfg.Database.Host,
			Port:      cfg.Database.Port,
			User:      cfg.Database.User,
			Password:  cfg.Database.Password,
			Namespace: cfg.Database.Namespace,
			Database:  cfg.Store.AppID,
		})
		if err := db.Connect(ctx); err != nil {
			return nil, nil, err
		}
		logger.Info("connected to surrealdb", "host", cfg.Database.Host, "namespace", cfg.Database.Namespace)
		return remote.NewSurrealStore(db, logger), db, nil

	case config.BackendRedis:
		rcfg := remote.DefaultRedisConfig()
		rcfg.Host = cfg.Redis.Host
		rcfg.Port = cfg.Redis.Port
		rcfg.Password = cfg.Redis.Password
		rcfg.DB = cfg.Redis.DB
		rcfg.PoolSize = cfg.Redis.PoolSize
		rcfg.DialTimeout = cfg.Redis.DialTimeout
		rcfg.Prefix = cfg.Store.AppID
		store, err := remote.NewRedisStore(ctx, rcfg, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to redis", "addr", rcfg.Addr())
		return store, nil, nil

	case config.BackendMemory:
		store := remote.NewMemoryStore()
		if cfg.IsDevelopment() {
			if err := SeedDemo(ctx, store, syncer.NewLayout(cfg.Store.AppID)); err != nil {
				return nil, nil, err
			}
		}
		logger.Info("using in-memory store")
		return store, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// New assembles the app over store
func New(cfg *config.Config, store remote.Store, logger *slog.Logger, opts Options) *App {
	if logger == nil {
		logger = slog.Default()
	}

	layout := syncer.NewLayout(cfg.Store.AppID)
	engine := syncer.NewEngine(store, layout, logger.With("component", "syncer"))

	provider := opts.Provider
	if provider == nil {
		provider = session.NewAnonymousProvider(cfg.Session.AnonymousID)
	}
	sessions := session.NewManager(provider, logger.With("component", "session"))

	completer := opts.Completer
	if completer == nil {
		completer = chat.NewClient(chat.Config{
			Endpoint: cfg.Chat.Endpoint,
			Model:    cfg.Chat.Model,
			APIKey:   cfg.Chat.APIKey,
			Timeout:  cfg.Chat.Timeout,
		}, logger.With("component", "chat"))
	}

	hub := events.NewHub(events.DefaultHeartbeat)
	market := simulator.New(opts.MarketSource)

	a := &App{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		Layout:   layout,
		Engine:   engine,
		Sessions: sessions,
		Dispatcher: action.NewDispatcher(action.DispatcherConfig{
			Store:        store,
			Mirror:       engine,
			Layout:       layout,
			StreakPolicy: action.StreakPolicy(cfg.Sync.StreakPolicy),
			Logger:       logger.With("component", "action"),
		}),
		Hub:     hub,
		Tutor:   chat.NewTutor(completer, cfg.Chat.HistoryWindow),
		Market:  market,
		Ticker:  jobs.NewPriceTicker(market, hub, cfg.Sync.SimulatorInterval, logger.With("component", "jobs")),
		limiter: middleware.NewRateLimiter(middleware.RateLimitConfig{Rate: cfg.Chat.RateLimit, Burst: cfg.Chat.RateBurst}),
	}

	a.detach = append(a.detach,
		sessions.OnChange(func(id *model.Identity) {
			engine.HandleIdentity(context.Background(), id)
		}),
		sessions.OnChange(events.SessionRelay(hub)),
		engine.OnChange(a.Dispatcher.Observe),
		engine.OnChange(events.MirrorRelay(hub)),
	)
	return a
}

// Start signs in, which provisions the mirror, and starts the market ticker.
// A failed sign-in leaves the app running without a session.
func (a *App) Start(ctx context.Context) error {
	a.Ticker.Start()
	if _, err := a.Sessions.Establish(ctx); err != nil {
		return err
	}
	return nil
}

// Handler returns the routed and wrapped HTTP handler
func (a *App) Handler() http.Handler {
	stateHandler := handler.NewStateHandler(a.Engine)
	eventsHandler := handler.NewEventsHandler(a.Hub)
	actionHandler := handler.NewActionHandler(a.Dispatcher, a.Engine, a.logger)
	chatHandler := handler.NewChatHandler(a.Tutor, a.Engine)
	simulatorHandler := handler.NewSimulatorHandler(a.Market, a.Hub)

	chatLimit := middleware.RateLimit(a.limiter)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handler.Health)

	// Mirror
	mux.HandleFunc("GET /v1/state", stateHandler.Get)
	mux.HandleFunc("GET /v1/events", eventsHandler.Stream)

	// Actions
	mux.HandleFunc("POST /v1/modules/{moduleId}/complete", actionHandler.CompleteModule)
	mux.HandleFunc("POST /v1/resources/toggle", actionHandler.ToggleResource)
	mux.HandleFunc("POST /v1/posts", actionHandler.CreatePost)
	mux.HandleFunc("PATCH /v1/profile", actionHandler.UpdateProfile)
	mux.HandleFunc("POST /v1/profile/reset", actionHandler.ResetProgress)
	mux.HandleFunc("POST /v1/settings/dark-mode", actionHandler.ToggleDarkMode)
	mux.HandleFunc("POST /v1/nav", actionHandler.Navigate)

	// Tutor
	mux.HandleFunc("GET /v1/chat", chatHandler.Transcript)
	mux.Handle("POST /v1/chat", chatLimit(http.HandlerFunc(chatHandler.Ask)))

	// Practice market
	mux.HandleFunc("GET /v1/simulator", simulatorHandler.Get)
	mux.HandleFunc("POST /v1/simulator/trade", simulatorHandler.Trade)

	return middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.Recovery,
		middleware.Session(a.Sessions.Current),
		middleware.Logger(a.logger),
		middleware.CORS(a.cfg.Server.AllowedOrigins),
	)
}

// Close stops background work, tears down the mirror and closes the store
func (a *App) Close() error {
	a.Ticker.Stop()
	for _, fn := range a.detach {
		fn()
	}
	a.Engine.Stop()

	waited := make(chan struct{})
	go func() {
		a.Dispatcher.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(10 * time.Second):
		a.logger.Warn("background actions still running at shutdown")
	}

	a.Hub.Close()
	a.limiter.Stop()

	if err := a.store.Close(); err != nil && !errors.Is(err, remote.ErrClosed) {
		return err
	}
	return nil
}
