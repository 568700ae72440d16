package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the browser-facing router. Unknown paths redirect to the
// gallery, which in turn sends guests to /login.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(withSecurityHeaders)

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(s.static))))

	limited := func(h http.HandlerFunc) http.Handler {
		if s.authLimiter == nil {
			return h
		}
		return s.authLimiter(h)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.GuestOnly)
		r.Get("/login", s.Login)
		r.Method(http.MethodPost, "/login", limited(s.Login))
		r.Get("/signup", s.Signup)
		r.Method(http.MethodPost, "/signup", limited(s.Signup))
	})

	r.Get("/forgot-password", s.ForgotPassword)
	r.Method(http.MethodPost, "/forgot-password", limited(s.ForgotPassword))
	r.Get("/reset-password", s.ResetPassword)
	r.Method(http.MethodPost, "/reset-password", limited(s.ResetPassword))
	r.Get("/under-development", s.UnderDevelopment)
	r.Post("/logout", s.Logout)

	r.Group(func(r chi.Router) {
		r.Use(s.RequireSession)
		r.Get("/", s.Home)
		r.Get("/gallery/more", s.MoreImages)
		r.Post("/images", s.UploadImage)
		r.Post("/categories", s.AddCategory)
		r.Post("/modals/{name}/close", s.CloseModal)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusFound)
	})

	return r
}
