package web

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/LeeRoiii/Image-Vault/internal/logging"
	"github.com/LeeRoiii/Image-Vault/internal/models"
	"github.com/LeeRoiii/Image-Vault/internal/ui"
)

const (
	sessionName = "imagevault_session"

	keyAccessToken   = "access_token"
	keyAccessExpiry  = "access_expires"
	keyRefreshToken  = "refresh_token"
	keyRefreshExpiry = "refresh_expires"
	keyViewerID      = "viewer_id"
	keyCSRF          = "csrf_token"
)

// session returns the cookie session. A cookie that fails to decode yields a
// fresh session.
func (s *Server) session(r *http.Request) *sessions.Session {
	sess, err := s.store.Get(r, sessionName)
	if err != nil {
		logging.FromContext(r.Context()).Debug("discarding unreadable session cookie", "error", err)
	}
	return sess
}

func (s *Server) save(w http.ResponseWriter, r *http.Request, sess *sessions.Session) {
	if err := sess.Save(r, w); err != nil {
		logging.FromContext(r.Context()).Error("save session", "error", err)
	}
}

func storeTokens(sess *sessions.Session, tokens models.SessionTokens) {
	sess.Values[keyAccessToken] = tokens.AccessToken
	sess.Values[keyAccessExpiry] = tokens.AccessExpiresAt.Unix()
	sess.Values[keyRefreshToken] = tokens.RefreshToken
	sess.Values[keyRefreshExpiry] = tokens.RefreshExpiresAt.Unix()
}

func tokensFrom(sess *sessions.Session) models.SessionTokens {
	var tokens models.SessionTokens
	tokens.AccessToken, _ = sess.Values[keyAccessToken].(string)
	tokens.RefreshToken, _ = sess.Values[keyRefreshToken].(string)
	if v, ok := sess.Values[keyAccessExpiry].(int64); ok {
		tokens.AccessExpiresAt = time.Unix(v, 0).UTC()
	}
	if v, ok := sess.Values[keyRefreshExpiry].(int64); ok {
		tokens.RefreshExpiresAt = time.Unix(v, 0).UTC()
	}
	return tokens
}

func clearTokens(sess *sessions.Session) {
	delete(sess.Values, keyAccessToken)
	delete(sess.Values, keyAccessExpiry)
	delete(sess.Values, keyRefreshToken)
	delete(sess.Values, keyRefreshExpiry)
}

// viewerID returns the viewer identifier stored in the session, minting one
// if needed. The caller saves the session.
func viewerID(sess *sessions.Session) string {
	if id, ok := sess.Values[keyViewerID].(string); ok && id != "" {
		return id
	}
	id := uuid.NewString()
	sess.Values[keyViewerID] = id
	return id
}

func (s *Server) ensureCSRF(sess *sessions.Session) string {
	if token, ok := sess.Values[keyCSRF].(string); ok && token != "" {
		return token
	}
	token := uuid.NewString()
	sess.Values[keyCSRF] = token
	return token
}

func (s *Server) validateCSRF(sess *sessions.Session, token string) bool {
	if s.disableCSRF {
		return true
	}
	stored, _ := sess.Values[keyCSRF].(string)
	if stored == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1
}

func flash(sess *sessions.Session, snackbar ui.Snackbar) {
	sess.AddFlash(snackbar)
}

// popSnackbar removes and returns the most recent flash, if any.
func popSnackbar(sess *sessions.Session) *ui.Snackbar {
	var latest *ui.Snackbar
	for _, f := range sess.Flashes() {
		if sb, ok := f.(ui.Snackbar); ok {
			latest = &sb
		}
	}
	return latest
}
