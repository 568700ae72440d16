// Package identity signs users in and out and resolves their sessions.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/LeeRoiii/Image-Vault/internal/models"
)

var (
	// ErrInvalidCredentials indicates the email/password pair did not match an account.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrNoSession indicates the presented tokens do not resolve to a live session.
	ErrNoSession = errors.New("no active session")
	// ErrEmailTaken indicates a sign-up for an address that already has an account.
	ErrEmailTaken = errors.New("account already exists")
	// ErrInvalidRecoveryToken indicates a missing, used or expired recovery link.
	ErrInvalidRecoveryToken = errors.New("recovery link is invalid or has expired")
	// ErrServiceUnavailable indicates the identity backend could not be reached.
	ErrServiceUnavailable = errors.New("identity service unavailable")
)

// Session is an authenticated user together with the tokens that prove it.
type Session struct {
	User   models.User
	Tokens models.SessionTokens
	// Refreshed is set when GetSession had to rotate the token pair.
	Refreshed bool
}

// UserUpdate lists the account attributes a signed-in user may change.
type UserUpdate struct {
	Password string
}

// EventKind names an authentication state change.
type EventKind string

const (
	EventSignedIn         EventKind = "SIGNED_IN"
	EventSignedOut        EventKind = "SIGNED_OUT"
	EventTokenRefreshed   EventKind = "TOKEN_REFRESHED"
	EventPasswordRecovery EventKind = "PASSWORD_RECOVERY"
	EventUserUpdated      EventKind = "USER_UPDATED"
)

// Event is delivered to subscribers after a state change.
type Event struct {
	Kind   EventKind
	UserID string
	At     time.Time
}

// Provider is the identity capability the web and API layers depend on.
type Provider interface {
	GetSession(ctx context.Context, tokens models.SessionTokens) (Session, error)
	GetUser(ctx context.Context, accessToken string) (models.User, error)
	SignInWithPassword(ctx context.Context, email, password string) (Session, error)
	SignUp(ctx context.Context, email, password string) (models.User, error)
	SignOut(ctx context.Context, userID, refreshToken string) error
	ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error
	ExchangeRecoveryToken(ctx context.Context, token string) (Session, error)
	UpdateUser(ctx context.Context, userID string, update UserUpdate) (models.User, error)
	Subscribe(fn func(Event)) (unsubscribe func())
}
