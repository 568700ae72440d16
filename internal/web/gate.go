package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/LeeRoiii/Image-Vault/internal/identity"
	"github.com/LeeRoiii/Image-Vault/internal/logging"
)

type ctxKey string

const sessionKey ctxKey = "identity_session"

func withSession(ctx context.Context, session identity.Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

func currentSession(ctx context.Context) (identity.Session, bool) {
	session, ok := ctx.Value(sessionKey).(identity.Session)
	return session, ok
}

// resolve looks up the signed-in user for r. Rotated tokens are written back
// to the cookie; tokens that no longer resolve are cleared. Any failure
// counts as signed out.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (identity.Session, bool) {
	sess := s.session(r)
	tokens := tokensFrom(sess)
	if tokens.AccessToken == "" && tokens.RefreshToken == "" {
		return identity.Session{}, false
	}

	session, err := s.identity.GetSession(r.Context(), tokens)
	if err != nil {
		logger := logging.FromContext(r.Context())
		if errors.Is(err, identity.ErrNoSession) {
			clearTokens(sess)
			s.save(w, r, sess)
		} else {
			logger.Warn("session lookup failed", "error", err)
		}
		return identity.Session{}, false
	}

	if session.Refreshed {
		storeTokens(sess, session.Tokens)
		s.save(w, r, sess)
	}
	return session, true
}

// RequireSession lets signed-in users through and sends everyone else to /login.
func (s *Server) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := s.resolve(w, r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		ctx := logging.WithUserID(r.Context(), session.User.ID)
		next.ServeHTTP(w, r.WithContext(withSession(ctx, session)))
	})
}

// GuestOnly sends signed-in users to the gallery.
func (s *Server) GuestOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.resolve(w, r); ok {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
