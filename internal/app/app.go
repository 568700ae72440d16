package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LeeRoiii/Image-Vault/internal/config"
	"github.com/LeeRoiii/Image-Vault/internal/db"
	"github.com/LeeRoiii/Image-Vault/internal/handlers"
	"github.com/LeeRoiii/Image-Vault/internal/httpserver"
	"github.com/LeeRoiii/Image-Vault/internal/logging"
	"github.com/LeeRoiii/Image-Vault/internal/middleware"
)

// Run executes one of the Image Vault commands: serve, migrate or seed.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, or seed")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, args[1:])
	case "seed":
		return runSeed(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.SlogLevel())
	slog.SetDefault(logger)

	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	deps, err := buildDependencies(ctx, pool, cfg, logger)
	if err != nil {
		return err
	}

	srv := httpserver.New(cfg.AppPort, newRouter(deps, pool, logger))

	logger.Info("starting http server",
		"port", cfg.AppPort,
		"storage", cfg.Storage.Driver,
		"upload_quota", cfg.Upload.Quota,
	)

	return httpserver.Run(ctx, srv, logger, deps.close)
}

// newRouter mounts the JSON API under /api/v1 and the views at the root.
func newRouter(deps *dependencies, database handlers.Pinger, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(logger))

	r.Get("/healthz", handlers.HealthHandler{Database: database}.Handle)
	r.Mount("/api/v1", handlers.Routes(deps.API))
	r.Mount("/", deps.Views.Routes())

	return r
}

func connect(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	return db.Connect(ctx, cfg.DatabaseURL, db.Options{
		MaxConns:       cfg.DBMaxConns,
		ConnectTimeout: cfg.DBConnectTimeout,
	})
}
