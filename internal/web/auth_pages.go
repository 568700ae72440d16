package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/LeeRoiii/Image-Vault/internal/apperror"
	"github.com/LeeRoiii/Image-Vault/internal/identity"
	"github.com/LeeRoiii/Image-Vault/internal/logging"
	"github.com/LeeRoiii/Image-Vault/internal/ui"
)

const (
	msgNetwork        = "Network error. Please try again."
	msgLoginOK        = "Login successful!"
	msgSignupOK       = "Signup successful! Check your email."
	msgResetSent      = "If the account exists, a reset link has been sent."
	msgResetFailed    = "Something went wrong. Please try again later."
	msgPasswordFailed = "Failed to reset password. Please try again."
	msgPasswordOK     = "Password updated! Please log in with your new password."
	msgRecoveryLink   = "This reset link is invalid or has expired."
	msgBadForm        = "Your session expired. Please try again."
)

// authPage prepares the common fields of the sign-in pages and consumes any
// pending flash.
func (s *Server) authPage(w http.ResponseWriter, r *http.Request, title string) pageData {
	sess := s.session(r)
	data := pageData{
		Title:     title,
		BodyClass: "auth-page",
		CSRFToken: s.ensureCSRF(sess),
		Snackbar:  popSnackbar(sess),
	}
	s.save(w, r, sess)
	return data
}

// Login renders the sign-in form and signs the user in on submit.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.render(w, r, http.StatusOK, "login.html", s.authPage(w, r, "Login"))
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	sess := s.session(r)

	email := strings.TrimSpace(r.FormValue("email"))
	data := pageData{Title: "Login", BodyClass: "auth-page", CSRFToken: s.ensureCSRF(sess), Email: email}

	if !s.validateCSRF(sess, r.FormValue("csrf_token")) {
		data.Snackbar = snackbarPtr(ui.Error(msgBadForm, ui.AuthAutoHide))
		s.save(w, r, sess)
		s.render(w, r, http.StatusBadRequest, "login.html", data)
		return
	}

	session, err := s.identity.SignInWithPassword(ctx, email, r.FormValue("password"))
	if err != nil {
		status := http.StatusUnauthorized
		switch {
		case errors.Is(err, identity.ErrServiceUnavailable):
			logger.Error("login backend unreachable", "error", err)
			status = http.StatusServiceUnavailable
			data.ServiceUnavailable = true
			data.Snackbar = snackbarPtr(ui.Error(msgNetwork, ui.AuthAutoHide))
		case errors.Is(err, identity.ErrInvalidCredentials):
			data.Snackbar = snackbarPtr(ui.Error("Invalid login credentials", ui.AuthAutoHide))
		default:
			logger.Error("login failed", "error", err)
			status = http.StatusInternalServerError
			data.Snackbar = snackbarPtr(ui.Error(msgResetFailed, ui.AuthAutoHide))
		}
		s.save(w, r, sess)
		s.render(w, r, status, "login.html", data)
		return
	}

	storeTokens(sess, session.Tokens)
	viewerID(sess)
	flash(sess, ui.Success(msgLoginOK, ui.AuthAutoHide))
	s.save(w, r, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Signup renders the registration form and creates the account on submit.
func (s *Server) Signup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.render(w, r, http.StatusOK, "signup.html", s.authPage(w, r, "Sign up"))
		return
	}

	ctx := r.Context()
	sess := s.session(r)

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	data := pageData{Title: "Sign up", BodyClass: "auth-page", CSRFToken: s.ensureCSRF(sess), Email: email}

	fail := func(status int, message string) {
		data.Snackbar = snackbarPtr(ui.Error(message, ui.AuthAutoHide))
		s.save(w, r, sess)
		s.render(w, r, status, "signup.html", data)
	}

	if !s.validateCSRF(sess, r.FormValue("csrf_token")) {
		fail(http.StatusBadRequest, msgBadForm)
		return
	}
	if err := identity.ValidateSignUp(email, password, r.FormValue("confirm_password")); err != nil {
		fail(http.StatusBadRequest, apperror.MessageOf(err, "Invalid sign-up details."))
		return
	}

	if _, err := s.identity.SignUp(ctx, email, password); err != nil {
		switch {
		case errors.Is(err, identity.ErrEmailTaken):
			// Same answer as a new account so addresses cannot be probed.
		case errors.Is(err, identity.ErrServiceUnavailable):
			logging.FromContext(ctx).Error("signup backend unreachable", "error", err)
			fail(http.StatusServiceUnavailable, msgNetwork)
			return
		case errors.Is(err, apperror.ErrValidation):
			fail(http.StatusBadRequest, apperror.MessageOf(err, "Invalid sign-up details."))
			return
		default:
			logging.FromContext(ctx).Error("signup failed", "error", err)
			fail(http.StatusInternalServerError, msgResetFailed)
			return
		}
	}

	flash(sess, ui.Success(msgSignupOK, ui.AuthAutoHide))
	s.save(w, r, sess)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// ForgotPassword sends a recovery link. The answer never reveals whether the
// address has an account.
func (s *Server) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.render(w, r, http.StatusOK, "forgot_password.html", s.authPage(w, r, "Forgot password"))
		return
	}

	ctx := r.Context()
	sess := s.session(r)
	email := strings.TrimSpace(r.FormValue("email"))
	data := pageData{Title: "Forgot password", BodyClass: "auth-page", CSRFToken: s.ensureCSRF(sess), Email: email}
	s.save(w, r, sess)

	if !s.validateCSRF(sess, r.FormValue("csrf_token")) {
		data.Snackbar = snackbarPtr(ui.Error(msgBadForm, ui.AuthAutoHide))
		s.render(w, r, http.StatusBadRequest, "forgot_password.html", data)
		return
	}

	if err := s.identity.ResetPasswordForEmail(ctx, email, s.resetURL(r)); err != nil {
		logging.FromContext(ctx).Error("password reset request failed", "error", err)
		data.Snackbar = snackbarPtr(ui.Error(msgResetFailed, ui.AuthAutoHide))
		s.render(w, r, http.StatusOK, "forgot_password.html", data)
		return
	}

	data.Snackbar = snackbarPtr(ui.Info(msgResetSent, ui.AuthAutoHide))
	s.render(w, r, http.StatusOK, "forgot_password.html", data)
}

// ResetPassword signs the user in from a recovery link and sets a new password.
func (s *Server) ResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if r.Method != http.MethodPost {
		if token := r.URL.Query().Get("token"); token != "" {
			sess := s.session(r)
			session, err := s.identity.ExchangeRecoveryToken(ctx, token)
			if err != nil {
				logger.Warn("recovery link rejected", "error", err)
				flash(sess, ui.Error(msgRecoveryLink, ui.AuthAutoHide))
				s.save(w, r, sess)
				http.Redirect(w, r, "/forgot-password", http.StatusSeeOther)
				return
			}
			storeTokens(sess, session.Tokens)
			s.save(w, r, sess)
			http.Redirect(w, r, "/reset-password", http.StatusSeeOther)
			return
		}
		s.render(w, r, http.StatusOK, "reset_password.html", s.authPage(w, r, "Reset password"))
		return
	}

	sess := s.session(r)
	data := pageData{Title: "Reset password", BodyClass: "auth-page", CSRFToken: s.ensureCSRF(sess)}
	fail := func(status int, message string) {
		data.Snackbar = snackbarPtr(ui.Error(message, ui.AuthAutoHide))
		s.save(w, r, sess)
		s.render(w, r, status, "reset_password.html", data)
	}

	if !s.validateCSRF(sess, r.FormValue("csrf_token")) {
		fail(http.StatusBadRequest, msgBadForm)
		return
	}

	current, ok := s.resolve(w, r)
	if !ok {
		fail(http.StatusUnauthorized, msgPasswordFailed)
		return
	}

	if _, err := s.identity.UpdateUser(ctx, current.User.ID, identity.UserUpdate{Password: r.FormValue("password")}); err != nil {
		logger.Warn("password update failed", "userId", current.User.ID, "error", err)
		if errors.Is(err, apperror.ErrValidation) {
			fail(http.StatusBadRequest, apperror.MessageOf(err, msgPasswordFailed))
			return
		}
		fail(http.StatusInternalServerError, msgPasswordFailed)
		return
	}

	clearTokens(sess)
	flash(sess, ui.Success(msgPasswordOK, ui.AuthAutoHide))
	s.save(w, r, sess)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Logout revokes the session and returns to the sign-in page.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := s.session(r)

	if !s.validateCSRF(sess, r.FormValue("csrf_token")) {
		http.Error(w, "Invalid CSRF token", http.StatusBadRequest)
		return
	}

	current, ok := s.resolve(w, r)
	tokens := tokensFrom(sess)
	if ok {
		if err := s.identity.SignOut(ctx, current.User.ID, tokens.RefreshToken); err != nil {
			logging.FromContext(ctx).Warn("sign out failed", "error", err)
		}
	}
	if id, ok := sess.Values[keyViewerID].(string); ok {
		s.viewers.Drop(id)
		delete(sess.Values, keyViewerID)
	}

	clearTokens(sess)
	s.save(w, r, sess)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// UnderDevelopment renders the placeholder page.
func (s *Server) UnderDevelopment(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "under_development.html", s.authPage(w, r, "Under development"))
}

func (s *Server) resetURL(r *http.Request) string {
	base := strings.TrimSuffix(s.baseURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/reset-password"
}

func snackbarPtr(s ui.Snackbar) *ui.Snackbar {
	return &s
}
