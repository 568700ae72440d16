// Package handlers implements the JSON API under /api/v1.
package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/LeeRoiii/Image-Vault/internal/gallery"
	"github.com/LeeRoiii/Image-Vault/internal/identity"
	"github.com/LeeRoiii/Image-Vault/internal/models"
	"github.com/LeeRoiii/Image-Vault/internal/upload"
)

// CategoryService lists and adds a user's categories.
type CategoryService interface {
	List(ctx context.Context, userID string) ([]string, error)
	Add(ctx context.Context, userID, name string) (models.Category, error)
}

// Uploader runs the upload flow.
type Uploader interface {
	Upload(ctx context.Context, req upload.Request) (upload.Result, error)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Identity   identity.Provider
	Pages      gallery.PageLoader
	Categories CategoryService
	Uploads    Uploader

	// ResetRedirectURL is the page recovery emails link to.
	ResetRedirectURL string
	MaxUploadBytes   int64

	// AuthLimiter, when set, wraps the unauthenticated auth endpoints.
	AuthLimiter func(http.Handler) http.Handler
}

// Routes returns the API router, meant to be mounted at /api/v1.
func Routes(deps Dependencies) chi.Router {
	authH := AuthHandler{Identity: deps.Identity, ResetRedirectURL: deps.ResetRedirectURL}
	images := ImageHandler{Pages: deps.Pages, Uploads: deps.Uploads, MaxUploadBytes: deps.MaxUploadBytes}
	categories := CategoryHandler{Categories: deps.Categories}

	r := chi.NewRouter()

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if deps.AuthLimiter != nil {
				r.Use(deps.AuthLimiter)
			}
			r.Post("/login", authH.Login)
			r.Post("/signup", authH.SignUp)
			r.Post("/refresh", authH.Refresh)
			r.Post("/password-reset", authH.RequestPasswordReset)
			r.Post("/recover", authH.Recover)
		})
		r.Post("/logout", authH.Logout)
		r.With(RequireBearer(deps.Identity)).Put("/user", authH.UpdateUser)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireBearer(deps.Identity))
		r.Get("/images", images.List)
		r.Post("/images", images.Create)
		r.Get("/categories", categories.List)
		r.Post("/categories", categories.Create)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(r.Context(), w, http.StatusNotFound, errorResponse{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(r.Context(), w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})

	return r
}
