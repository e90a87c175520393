// Package main is the entry point for the drapes demo server. It wires the
// snippet application onto the request pipeline and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/afroisalreadyinu/drapes/internal/config"
	"github.com/afroisalreadyinu/drapes/internal/observability"
	"github.com/afroisalreadyinu/drapes/internal/snippets"
	"github.com/afroisalreadyinu/drapes/model"
	"github.com/afroisalreadyinu/drapes/web"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "drapesd", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	repo, repoCloser, err := buildRepository(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("store initialization failed", zap.Error(err))
		return 1
	}

	app, err := buildApp(repo, metrics, cfg.Templates, logger)
	if err != nil {
		logger.Error("application setup failed", zap.Error(err))
		return 1
	}

	router := chi.NewRouter()
	router.Use(web.Recovery(logger))
	router.Use(web.RequestID)
	router.Use(web.SecurityHeaders)
	router.Use(observability.TracingMiddleware)
	router.Use(metrics.MetricsMiddleware)
	router.Use(web.RequestLogging(logger))
	router.Use(web.HandlerTimeout(cfg.Server.HandlerTimeout))

	if cfg.Auth.Enabled {
		jwks := web.NewJWKSClient(cfg.Auth.JWKSURL, cfg.Auth.JWKSCacheTTL)
		router.Use(web.Authenticate(web.AuthConfig{
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			Algorithms: cfg.Auth.Algorithms,
			JWKSURL:    cfg.Auth.JWKSURL,
			JWKSTTL:    cfg.Auth.JWKSCacheTTL,
		}, jwks, snippets.NewSubjects(repo), logger))
	}

	if err := app.Routes(router); err != nil {
		logger.Error("route setup failed", zap.Error(err))
		return 1
	}

	router.Get("/healthz", observability.HandleHealth())
	router.Get("/readyz", observability.HandleReady(observability.ReadinessChecks{
		Store:           repo,
		TemplatesLoaded: func() bool { return app.Templates != nil },
	}))
	if cfg.Observability.Metrics.Enabled {
		router.Handle(cfg.Observability.Metrics.Path, observability.Handler())
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("store", cfg.Store.Driver),
		zap.Bool("auth", cfg.Auth.Enabled),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if repoCloser != nil {
		repoCloser()
	}

	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// buildRepository creates the entity store based on config.
func buildRepository(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (snippets.Repository, func(), error) {
	switch cfg.Driver {
	case "memory", "":
		logger.Info("using in-memory store with demo data")
		return seededMemoryRepository(ctx), nil, nil
	case "postgres":
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" {
			return nil, nil, fmt.Errorf("store: %s environment variable not set", cfg.DSNEnv)
		}

		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("store: parse DSN: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.MaxConns)
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("store: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("store: ping: %w", err)
		}

		repo, err := snippets.NewPGRepository(pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repo, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver: %q", cfg.Driver)
	}
}

// buildApp assembles the snippet application, wrapping the store so lookups
// feed the entity lookup metrics.
func buildApp(repo snippets.Repository, metrics *observability.Metrics, cfg config.TemplatesConfig, logger *zap.Logger) (*snippets.App, error) {
	observed := observedRepository{Repository: repo, finder: metrics.ObserveFinder(repo)}

	if cfg.Glob != "" {
		return snippets.NewAppFromGlob(observed, cfg.Glob, logger)
	}
	return snippets.NewApp(observed, logger)
}

// observedRepository routes unique lookups through the metrics decorator
// while keeping the rest of the repository surface intact.
type observedRepository struct {
	snippets.Repository
	finder model.Finder
}

func (r observedRepository) FindUnique(ctx context.Context, kind string, filters []model.Filter) (any, error) {
	return r.finder.FindUnique(ctx, kind, filters)
}

// seededMemoryRepository ships a couple of accounts and snippets so the demo
// server answers something out of the box.
func seededMemoryRepository(ctx context.Context) *snippets.MemoryRepository {
	repo := snippets.NewMemoryRepository()
	repo.AddUser(snippets.User{ID: 1, Username: "alice", Active: true})
	repo.AddUser(snippets.User{ID: 2, Username: "bob", Active: true})
	repo.AddUser(snippets.User{ID: 3, Username: "root", Active: true, Admin: true})

	repo.CreateSnippet(ctx, snippets.Snippet{
		Slug: "welcome", OwnerID: 1, Title: "Welcome",
		Body: "This instance runs on demo data. Sign in to post your own snippets.", Published: true,
	})
	repo.CreateSnippet(ctx, snippets.Snippet{
		Slug: "scratch", OwnerID: 2, Title: "Scratch pad", Body: "not published yet",
	})
	return repo
}
