package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/LeeRoiii/Image-Vault/internal/auth"
	"github.com/LeeRoiii/Image-Vault/internal/config"
	"github.com/LeeRoiii/Image-Vault/internal/db"
	"github.com/LeeRoiii/Image-Vault/internal/gallery"
	"github.com/LeeRoiii/Image-Vault/internal/handlers"
	"github.com/LeeRoiii/Image-Vault/internal/identity"
	"github.com/LeeRoiii/Image-Vault/internal/middleware"
	"github.com/LeeRoiii/Image-Vault/internal/repositories"
	"github.com/LeeRoiii/Image-Vault/internal/storage"
	"github.com/LeeRoiii/Image-Vault/internal/upload"
	"github.com/LeeRoiii/Image-Vault/internal/web"
)

// dependencies holds the wired services behind both HTTP surfaces.
type dependencies struct {
	API     handlers.Dependencies
	Views   *web.Server
	Janitor *upload.Janitor
}

// close detaches the views from identity events and drains pending cleanups.
func (d *dependencies) close(ctx context.Context) error {
	if d.Views != nil {
		d.Views.Close()
	}
	if d.Janitor != nil {
		return d.Janitor.Shutdown(ctx)
	}
	return nil
}

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (*dependencies, error) {
	objects, err := openObjectStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	signer, err := auth.NewTokenSigner(cfg.Auth.TokenSecret)
	if err != nil {
		return nil, fmt.Errorf("token signer: %w", err)
	}
	sessions := auth.NewManager(cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL, signer, repositories.NewPostgresSessionStore(pool))

	ident, err := identity.NewService(identity.ServiceConfig{
		Users:    repositories.NewPostgresUserRepository(pool),
		Sessions: sessions,
		Resets:   repositories.NewPostgresPasswordResetStore(pool),
		Mailer:   identity.LogMailer{},
		ResetTTL: cfg.Auth.ResetTTL,
	})
	if err != nil {
		return nil, err
	}

	images := repositories.NewPostgresImageRepository(pool)
	pages := gallery.NewLoader(images, gallery.NewCachingSigner(objects), cfg.Gallery.PageSize, cfg.Gallery.SignedURLTTL)
	categories := gallery.NewCategories(images, repositories.NewPostgresCategoryRepository(pool))

	janitor := upload.NewJanitor(objects, upload.JanitorConfig{
		QueueSize: cfg.Upload.CleanupQueue,
		Workers:   cfg.Upload.CleanupWorkers,
	}, logger)
	uploads := upload.NewService(images, objects, janitor, upload.Config{
		Quota:    cfg.Upload.Quota,
		MaxBytes: cfg.Upload.MaxBytes,
	})

	apiLimiter := authLimiter(cfg, "api-auth")
	views, err := web.NewServer(web.Options{
		Identity:       ident,
		Pages:          pages,
		Categories:     categories,
		Uploads:        uploads,
		SessionSecret:  []byte(cfg.Auth.SessionSecret),
		CookieSecure:   cfg.Auth.CookieSecure,
		PublicBaseURL:  cfg.PublicBaseURL,
		FeedTTL:        cfg.Gallery.FeedTTL,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		AuthLimiter:    authLimiter(cfg, "web-auth"),
	})
	if err != nil {
		_ = janitor.Shutdown(ctx)
		return nil, fmt.Errorf("views: %w", err)
	}

	return &dependencies{
		API: handlers.Dependencies{
			Identity:         ident,
			Pages:            pages,
			Categories:       categories,
			Uploads:          uploads,
			ResetRedirectURL: strings.TrimSuffix(cfg.PublicBaseURL, "/") + "/reset-password",
			MaxUploadBytes:   cfg.Upload.MaxBytes,
			AuthLimiter:      apiLimiter,
		},
		Views:   views,
		Janitor: janitor,
	}, nil
}

// openObjectStore selects the object store driver named in the configuration.
func openObjectStore(ctx context.Context, cfg config.Config) (storage.ObjectStore, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMinio:
		store, err := storage.NewMinioStore(cfg.Storage)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageDriverS3, "":
		store, err := storage.NewS3Store(ctx, cfg.Storage, cfg.Upload.MaxBytes)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// authLimiter throttles credential submissions per client address. A zero
// request budget disables it.
func authLimiter(cfg config.Config, scope string) func(http.Handler) http.Handler {
	if cfg.Limits.AuthRequests <= 0 {
		return nil
	}
	limiter := middleware.NewKeyedLimiter(cfg.Limits.AuthRequests, cfg.Limits.AuthWindow, cfg.Limits.AuthBurst, 10*cfg.Limits.AuthWindow)
	return middleware.RateLimit(limiter, scope, cfg.Limits.AuthWindow)
}
