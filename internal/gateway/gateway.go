// ABOUTME: Gateway wires the store, model sessions and conversation service behind the HTTP server
// ABOUTME: Owns the server lifecycle and the health and metrics endpoints

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/Beykus-Y/beykusaysite/internal/auth"
	"github.com/Beykus-Y/beykusaysite/internal/config"
	"github.com/Beykus-Y/beykusaysite/internal/conversation"
	"github.com/Beykus-Y/beykusaysite/internal/dedupe"
	"github.com/Beykus-Y/beykusaysite/internal/metrics"
	"github.com/Beykus-Y/beykusaysite/internal/provider"
	"github.com/Beykus-Y/beykusaysite/internal/render"
	"github.com/Beykus-Y/beykusaysite/internal/session"
	"github.com/Beykus-Y/beykusaysite/internal/store"
)

// Idempotency-Key values are remembered per user and chat for this long.
const (
	submissionWindow  = 10 * time.Minute
	submissionMaxKeys = 10000
)

// tokenIssuer verifies bearer tokens and issues new ones at login.
type tokenIssuer interface {
	auth.TokenVerifier
	Generate(userID int64, expiresIn time.Duration) (string, error)
}

// Gateway orchestrates the beykus-gateway server components.
type Gateway struct {
	config       *config.Config
	store        store.Store
	sessions     *session.Registry
	conversation *conversation.Service
	tokens       tokenIssuer
	renderer     *render.Renderer
	metrics      *metrics.Metrics
	validate     *requestValidator
	submissions  *dedupe.Window
	httpServer   *http.Server
	logger       *slog.Logger
}

// initStore creates and returns a store based on config and environment.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("BEYKUS_DB_PATH"); envPath != "" {
		dbPath = envPath
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// newProviderFactory builds the upstream model provider selected by config.
func newProviderFactory(cfg *config.Config, logger *slog.Logger) (provider.Factory, error) {
	switch cfg.Provider.Kind {
	case config.ProviderLoopback:
		logger.Warn("using loopback provider, replies are echoes")
		return &provider.LoopbackFactory{ChunkSize: cfg.Provider.LoopbackChunkSize}, nil
	case config.ProviderOpenAI:
		prompts, err := provider.LoadPrompts(cfg.Provider.PromptsPath)
		if err != nil {
			return nil, err
		}
		return provider.NewOpenAIFactory(provider.OpenAIConfig{
			APIKey:         cfg.Provider.APIKey,
			BaseURL:        cfg.Provider.BaseURL,
			RequestTimeout: cfg.Provider.RequestTimeout,
			Temperature:    cfg.Provider.Temperature,
			TopP:           cfg.Provider.TopP,
			Prompts:        prompts,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Provider.Kind)
	}
}

// New creates a Gateway from cfg, opening the store and the model provider.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tokens, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}

	factory, err := newProviderFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating provider: %w", err)
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	sessions := session.NewRegistry(factory, logger)
	m := metrics.New(func() float64 { return float64(sessions.Len()) })
	conv := conversation.New(s, sessions, conversation.Config{
		DefaultModel:    cfg.Sessions.DefaultModel,
		IdleTimeout:     cfg.Sessions.IdleTimeout,
		FragmentTimeout: cfg.Provider.FragmentTimeout,
		Observer:        m,
	}, logger)

	g := &Gateway{
		config:       cfg,
		store:        s,
		sessions:     sessions,
		conversation: conv,
		tokens:       tokens,
		renderer:     render.New(),
		metrics:      m,
		validate:     newValidator(),
		submissions:  dedupe.NewWindow(submissionWindow, submissionMaxKeys),
		logger:       logger.With("component", "gateway"),
	}

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           g.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.logger.Info("gateway initialized",
		"provider", cfg.Provider.Kind,
		"default_model", cfg.Sessions.DefaultModel,
		"idle_timeout", cfg.Sessions.IdleTimeout)
	return g, nil
}

// routes builds the HTTP router.
func (g *Gateway) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(g.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", g.handleHealth)
	r.Get("/health/ready", g.handleReady)
	if g.config.Metrics.Enabled {
		r.Method(http.MethodGet, g.config.Metrics.Path, g.metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/models", g.handleListModels)
		api.Post("/auth/register", g.handleRegister)
		api.Post("/auth/login", g.handleLogin)

		api.Group(func(private chi.Router) {
			private.Use(auth.HTTPAuthMiddleware(g.store, g.tokens))
			private.Get("/auth/me", g.handleMe)
			private.Get("/chats", g.handleListChats)
			private.Post("/chats", g.handleCreateChat)
			private.Route("/chats/{chatID}", func(chat chi.Router) {
				chat.Get("/messages", g.handleListMessages)
				chat.Post("/messages", g.handleSendMessage)
				chat.Post("/reset", g.handleReset)
				chat.Post("/model", g.handleChangeModel)
			})
		})
	})
	return r
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Sessions exposes the session registry.
func (g *Gateway) Sessions() *session.Registry {
	return g.sessions
}

// requestLogger logs each request once it has been served.
func (g *Gateway) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		g.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// server fails, then shuts the gateway down.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.config.Server.HTTPAddr, err)
	}
	g.logger.Info("HTTP server listening", "addr", ln.Addr().String())

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		g.logger.Info("context canceled, initiating shutdown")
		return g.gracefulShutdown()
	})
	return eg.Wait()
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server and closes the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway", "sessions", g.sessions.Len())

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}
	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the store answers.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := g.store.Ping(ctx); err != nil {
		g.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d sessions)", g.sessions.Len())
}
