// Package web serves the browser-facing pages of Image Vault.
package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/gob"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/LeeRoiii/Image-Vault/internal/gallery"
	"github.com/LeeRoiii/Image-Vault/internal/identity"
	"github.com/LeeRoiii/Image-Vault/internal/logging"
	"github.com/LeeRoiii/Image-Vault/internal/models"
	"github.com/LeeRoiii/Image-Vault/internal/ui"
	"github.com/LeeRoiii/Image-Vault/internal/upload"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

func init() {
	gob.Register(ui.Snackbar{})
}

// CategoryService lists and adds a user's categories.
type CategoryService interface {
	List(ctx context.Context, userID string) ([]string, error)
	Add(ctx context.Context, userID, name string) (models.Category, error)
}

// Uploader runs the upload flow.
type Uploader interface {
	Upload(ctx context.Context, req upload.Request) (upload.Result, error)
	QuotaReached(ctx context.Context, userID string) (bool, error)
}

// Options configures a Server.
type Options struct {
	Identity   identity.Provider
	Pages      gallery.PageLoader
	Categories CategoryService
	Uploads    Uploader

	SessionSecret  []byte
	CookieSecure   bool
	DisableCSRF    bool
	PublicBaseURL  string
	FeedTTL        time.Duration
	MaxUploadBytes int64

	// AuthLimiter, when set, wraps the credential form submissions.
	AuthLimiter func(http.Handler) http.Handler
}

// Server renders the views and holds per-viewer gallery state.
type Server struct {
	identity   identity.Provider
	categories CategoryService
	uploads    Uploader
	viewers    *ViewerRegistry

	store       sessions.Store
	tmpl        *template.Template
	static      fs.FS
	disableCSRF bool
	baseURL     string
	maxUpload   int64
	authLimiter func(http.Handler) http.Handler

	unsubscribe func()
}

// NewServer parses the templates and wires the identity event subscription
// that drops a user's feeds on sign-out.
func NewServer(opts Options) (*Server, error) {
	if opts.Identity == nil || opts.Pages == nil || opts.Categories == nil || opts.Uploads == nil {
		return nil, errors.New("web: identity, pages, categories and uploads are required")
	}
	if len(opts.SessionSecret) < 16 {
		return nil, errors.New("web: session secret must be at least 16 bytes")
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = upload.DefaultMaxBytes
	}

	store := sessions.NewCookieStore(opts.SessionSecret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}

	tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static assets: %w", err)
	}

	s := &Server{
		identity:    opts.Identity,
		categories:  opts.Categories,
		uploads:     opts.Uploads,
		viewers:     NewViewerRegistry(opts.Pages, opts.FeedTTL),
		store:       store,
		tmpl:        tmpl,
		static:      static,
		disableCSRF: opts.DisableCSRF,
		baseURL:     opts.PublicBaseURL,
		maxUpload:   opts.MaxUploadBytes,
		authLimiter: opts.AuthLimiter,
	}

	s.unsubscribe = opts.Identity.Subscribe(func(e identity.Event) {
		switch e.Kind {
		case identity.EventSignedOut, identity.EventUserUpdated:
			s.viewers.DropUser(e.UserID)
		}
	})

	return s, nil
}

// Close detaches the server from identity events.
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Viewers exposes the per-viewer registry.
func (s *Server) Viewers() *ViewerRegistry {
	return s.viewers
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("Jan 02, 2006")
		},
		"isoDate": func(t time.Time) string {
			return t.UTC().Format(time.RFC3339)
		},
		"seq": func(n int) []int {
			out := make([]int, n)
			for i := range out {
				out[i] = i
			}
			return out
		},
	}
}

// pageData is the view model shared by every page template.
type pageData struct {
	Title     string
	BodyClass string
	CSRFToken string
	Snackbar  *ui.Snackbar

	Email              string
	ServiceUnavailable bool

	User         models.User
	Feed         gallery.Snapshot
	Categories   []string
	Category     string
	Modal        string
	ModalState   string
	Selected     *models.Image
	QuotaReached bool
}

// cardsData feeds the "cards" fragment.
type cardsData struct {
	Images  []models.Image
	HasMore bool
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		logging.FromContext(r.Context()).Error("render template", "template", name, "error", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warn("write response", "template", name, "error", err)
	}
}

func withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
