// Package server provides the core application server and dependency wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-analyzer/internal/analyzer"
	"github.com/JakeFAU/page-analyzer/internal/api"
	"github.com/JakeFAU/page-analyzer/internal/config"
	collyfetcher "github.com/JakeFAU/page-analyzer/internal/fetcher/colly"
	"github.com/JakeFAU/page-analyzer/internal/logging"
	memorystore "github.com/JakeFAU/page-analyzer/internal/storage/memory"
	pgstore "github.com/JakeFAU/page-analyzer/internal/storage/postgres"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// repository is the storage surface the App owns.
type repository interface {
	analyzer.Repository
	Ping(ctx context.Context) error
	Close()
}

// App contains the application's dependencies.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	repo      repository
	service   *analyzer.Service
	apiServer *api.Server
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	return BuildWithLogger(ctx, cfg, logger)
}

// BuildWithLogger is Build with a caller-supplied logger.
func BuildWithLogger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
	)
	app := &App{cfg: cfg, logger: logger}

	repo, err := setupRepository(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.repo = repo

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.HTTP.UserAgent,
		Timeout:      cfg.FetchTimeout(),
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	})
	app.service = analyzer.NewService(
		repo,
		fetcher,
		nil,
		analyzer.Config{PageSize: cfg.App.PageSize},
		logger.Named("analyzer"),
	)

	app.apiServer, err = api.NewServer(app.service, repo, logger.Named("api"))
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("api init failed: %w", err)
	}
	return app, nil
}

func setupRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory storage backend; data is lost on restart")
		return memorystore.NewURLRepository(), nil
	case config.BackendPostgres:
		repo, err := pgstore.NewURLRepository(ctx, pgstore.URLRepositoryConfig{
			DSN:             cfg.DB.DSN,
			MaxConns:        cfg.DB.MaxConns,
			MinConns:        cfg.DB.MinConns,
			MaxConnLifetime: cfg.ConnLifetime(),
		}, logger.Named("postgres"))
		if err != nil {
			return nil, fmt.Errorf("postgres init failed: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// Handler exposes the HTTP handler (useful for tests).
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Service exposes the analyzer service.
func (a *App) Service() *analyzer.Service {
	return a.service
}

// Run starts the HTTP server and blocks until ctx is canceled or a signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	closeErr := a.Close(shutdownCtx)

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return closeErr
	}
}

// Close releases the repository and flushes the logger.
func (a *App) Close(_ context.Context) error {
	if a.repo != nil {
		a.repo.Close()
	}
	a.logger.Info("shutdown complete")
	// Sync on stderr-backed loggers returns EINVAL/ENOTTY on some platforms.
	_ = a.logger.Sync()
	return nil
}
