package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeeRoiii/Image-Vault/internal/config"
	"github.com/LeeRoiii/Image-Vault/internal/middleware"
	"github.com/LeeRoiii/Image-Vault/internal/storage"
)

type fakePool struct{}

func (fakePool) Acquire(context.Context) (*pgxpool.Conn, error) {
	return nil, errors.New("not implemented")
}

func (fakePool) Close() {}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func testConfig() config.Config {
	return config.Config{
		PublicBaseURL: "https://vault.example/",
		Auth: config.AuthConfig{
			TokenSecret:   "token-secret-for-tests",
			SessionSecret: "session-secret-for-tests",
			AccessTTL:     time.Minute,
			RefreshTTL:    time.Hour,
			ResetTTL:      time.Hour,
		},
		Gallery: config.GalleryConfig{PageSize: 12, SignedURLTTL: time.Hour, FeedTTL: time.Minute},
		Upload:  config.UploadConfig{Quota: 2, MaxBytes: 5 << 20, CleanupWorkers: 1, CleanupQueue: 4},
		Limits:  config.RateLimitConfig{AuthRequests: 1, AuthWindow: time.Minute, AuthBurst: 1},
		Storage: config.ObjectStoreConfig{
			Driver:    config.StorageDriverS3,
			Bucket:    "images",
			Endpoint:  "http://localhost:9000",
			Region:    "us-east-1",
			AccessKey: "test",
			SecretKey: "test",
		},
	}
}

func buildTestDependencies(t *testing.T, cfg config.Config) *dependencies {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	deps, err := buildDependencies(context.Background(), fakePool{}, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = deps.close(ctx)
	})
	return deps
}

func TestBuildDependencies(t *testing.T) {
	deps := buildTestDependencies(t, testConfig())

	assert.NotNil(t, deps.API.Identity)
	assert.NotNil(t, deps.API.Pages)
	assert.NotNil(t, deps.API.Categories)
	assert.NotNil(t, deps.API.Uploads)
	assert.NotNil(t, deps.API.AuthLimiter)
	assert.NotNil(t, deps.Views)
	assert.NotNil(t, deps.Janitor)
	assert.Equal(t, "https://vault.example/reset-password", deps.API.ResetRedirectURL)
	assert.Equal(t, int64(5<<20), deps.API.MaxUploadBytes)
}

func TestBuildDependenciesRejectsShortSecrets(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := testConfig()
	cfg.Auth.TokenSecret = "short"
	_, err := buildDependencies(context.Background(), fakePool{}, cfg, logger)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Auth.SessionSecret = "short"
	_, err = buildDependencies(context.Background(), fakePool{}, cfg, logger)
	assert.Error(t, err)
}

func TestOpenObjectStore(t *testing.T) {
	cfg := testConfig()
	store, err := openObjectStore(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &storage.S3Store{}, store)

	cfg.Storage.Driver = config.StorageDriverMinio
	cfg.Storage.Endpoint = "localhost:9000"
	store, err = openObjectStore(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &storage.MinioStore{}, store)

	cfg.Storage.Driver = "ftp"
	_, err = openObjectStore(context.Background(), cfg)
	assert.Error(t, err)
}

func TestAuthLimiterDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.AuthRequests = 0
	assert.Nil(t, authLimiter(cfg, "api-auth"))
}

func TestRouterMountsBothSurfaces(t *testing.T) {
	deps := buildTestDependencies(t, testConfig())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := newRouter(deps, pingFunc(func(context.Context) error { return nil }), logger)

	serve := func(method, target, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req.RemoteAddr = "203.0.113.7:4321"
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := serve(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	rec = serve(http.MethodGet, "/api/v1/images", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = serve(http.MethodGet, "/api/v1/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = serve(http.MethodGet, "/login", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<form")

	rec = serve(http.MethodPost, "/api/v1/auth/login", `{"email":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = serve(http.MethodPost, "/api/v1/auth/login", `{"email":""}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRouterReportsUnreachableDatabase(t *testing.T) {
	deps := buildTestDependencies(t, testConfig())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := newRouter(deps, pingFunc(func(context.Context) error { return errors.New("connection refused") }), logger)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
