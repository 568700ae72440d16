package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/LeeRoiii/Image-Vault/internal/auth"
	"github.com/LeeRoiii/Image-Vault/internal/logging"
	"github.com/LeeRoiii/Image-Vault/internal/models"
	"github.com/LeeRoiii/Image-Vault/internal/repositories"
)

// Service implements Provider over the user repository, the session manager
// and the password reset store.
type Service struct {
	users    repositories.UserRepository
	sessions *auth.Manager
	resets   repositories.PasswordResetRepository
	mailer   Mailer
	resetTTL time.Duration
	now      func() time.Time

	mu        sync.RWMutex
	listeners map[uint64]func(Event)
	nextID    uint64
}

// ServiceConfig bundles the collaborators of a Service.
type ServiceConfig struct {
	Users    repositories.UserRepository
	Sessions *auth.Manager
	Resets   repositories.PasswordResetRepository
	Mailer   Mailer
	ResetTTL time.Duration
}

// NewService validates cfg and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Users == nil {
		return nil, errors.New("identity: user repository is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("identity: session manager is required")
	}
	if cfg.Resets == nil {
		return nil, errors.New("identity: password reset store is required")
	}
	if cfg.Mailer == nil {
		cfg.Mailer = LogMailer{}
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}

	return &Service{
		users:     cfg.Users,
		sessions:  cfg.Sessions,
		resets:    cfg.Resets,
		mailer:    cfg.Mailer,
		resetTTL:  cfg.ResetTTL,
		now:       func() time.Time { return time.Now().UTC() },
		listeners: make(map[uint64]func(Event)),
	}, nil
}

// WithNowFunc allows tests to override the time source.
func (s *Service) WithNowFunc(now func() time.Time) {
	s.now = now
}

// GetSession resolves tokens to a session. A valid access token is accepted as
// is; otherwise the refresh token is rotated. Anything else is ErrNoSession.
func (s *Service) GetSession(ctx context.Context, tokens models.SessionTokens) (Session, error) {
	if tokens.AccessToken == "" && tokens.RefreshToken == "" {
		return Session{}, ErrNoSession
	}

	if tokens.AccessToken != "" {
		user, err := s.GetUser(ctx, tokens.AccessToken)
		if err == nil {
			return Session{User: user, Tokens: tokens}, nil
		}
		if errors.Is(err, ErrServiceUnavailable) {
			return Session{}, err
		}
	}

	if tokens.RefreshToken == "" {
		return Session{}, ErrNoSession
	}

	refreshed, userID, err := s.sessions.Refresh(ctx, tokens.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrSessionNotFound) || errors.Is(err, auth.ErrRefreshTokenExpired) {
			return Session{}, ErrNoSession
		}
		return Session{}, classify(fmt.Errorf("refresh session: %w", err))
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return Session{}, err
	}

	s.emit(EventTokenRefreshed, user.ID)
	return Session{User: user, Tokens: refreshed, Refreshed: true}, nil
}

// GetUser returns the account an access token was issued to.
func (s *Service) GetUser(ctx context.Context, accessToken string) (models.User, error) {
	userID, err := s.sessions.Authenticate(ctx, accessToken)
	if err != nil {
		return models.User{}, ErrNoSession
	}
	return s.findUser(ctx, userID)
}

// SignInWithPassword verifies credentials and issues a new session.
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, classify(fmt.Errorf("find user: %w", err))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		logging.FromContext(ctx).Warn("login password mismatch", "userId", user.ID)
		return Session{}, ErrInvalidCredentials
	}

	tokens, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		return Session{}, classify(fmt.Errorf("issue session: %w", err))
	}

	s.emit(EventSignedIn, user.ID)
	return Session{User: user, Tokens: tokens}, nil
}

// SignUp creates an account. It does not sign the user in.
func (s *Service) SignUp(ctx context.Context, email, password string) (models.User, error) {
	email = NormalizeEmail(email)
	if err := ValidateSignUp(email, password, password); err != nil {
		return models.User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := models.User{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  string(hashed),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, classify(fmt.Errorf("create user: %w", err))
	}

	if err := s.mailer.Send(ctx, Message{
		To:      user.Email,
		Subject: "Welcome to Image Vault",
		Body:    "Your account is ready. Sign in to start uploading photos.",
	}); err != nil {
		logging.FromContext(ctx).Warn("welcome email failed", "userId", user.ID, "error", err)
	}

	return user, nil
}

// SignOut revokes the refresh token and notifies subscribers.
func (s *Service) SignOut(ctx context.Context, userID, refreshToken string) error {
	s.sessions.Revoke(ctx, refreshToken)
	if userID != "" {
		s.emit(EventSignedOut, userID)
	}
	return nil
}

// ResetPasswordForEmail mails a single-use recovery link to the account, if
// one exists. Unknown addresses succeed silently.
func (s *Service) ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error {
	email = NormalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return nil
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		return classify(fmt.Errorf("find user: %w", err))
	}

	token, err := recoveryToken()
	if err != nil {
		return fmt.Errorf("generate recovery token: %w", err)
	}

	now := s.now()
	if err := s.resets.Save(ctx, models.PasswordReset{
		TokenHash: hashToken(token),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.resetTTL),
		CreatedAt: now,
	}); err != nil {
		return classify(fmt.Errorf("save recovery token: %w", err))
	}

	link, err := recoveryLink(redirectURL, token)
	if err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, Message{
		To:      user.Email,
		Subject: "Reset your Image Vault password",
		Body:    "Follow this link to choose a new password: " + link,
	}); err != nil {
		return fmt.Errorf("send recovery email: %w", err)
	}
	return nil
}

// ExchangeRecoveryToken consumes a recovery token and signs its owner in.
func (s *Service) ExchangeRecoveryToken(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrInvalidRecoveryToken
	}

	reset, err := s.resets.Consume(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return Session{}, ErrInvalidRecoveryToken
		}
		return Session{}, classify(fmt.Errorf("consume recovery token: %w", err))
	}
	if s.now().After(reset.ExpiresAt) {
		return Session{}, ErrInvalidRecoveryToken
	}

	user, err := s.findUser(ctx, reset.UserID)
	if err != nil {
		return Session{}, err
	}

	tokens, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		return Session{}, classify(fmt.Errorf("issue session: %w", err))
	}

	s.emit(EventPasswordRecovery, user.ID)
	return Session{User: user, Tokens: tokens}, nil
}

// UpdateUser applies update to the account. Changing the password revokes
// every refresh token the user holds.
func (s *Service) UpdateUser(ctx context.Context, userID string, update UserUpdate) (models.User, error) {
	if userID == "" {
		return models.User{}, ErrNoSession
	}
	if err := ValidatePassword(update.Password); err != nil {
		return models.User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(update.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, string(hashed)); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, ErrNoSession
		}
		return models.User{}, classify(fmt.Errorf("update password: %w", err))
	}

	if err := s.sessions.RevokeAll(ctx, userID); err != nil {
		logging.FromContext(ctx).Warn("revoke sessions after password change failed", "userId", userID, "error", err)
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return models.User{}, err
	}

	s.emit(EventUserUpdated, userID)
	return user, nil
}

// Subscribe registers fn for every subsequent event. Listeners run on the
// goroutine that caused the event and must not block.
func (s *Service) Subscribe(fn func(Event)) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Service) emit(kind EventKind, userID string) {
	event := Event{Kind: kind, UserID: userID, At: s.now()}

	s.mu.RLock()
	listeners := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(event)
	}
}

func (s *Service) findUser(ctx context.Context, userID string) (models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, ErrNoSession
		}
		return models.User{}, classify(fmt.Errorf("find user: %w", err))
	}
	return user, nil
}

func recoveryToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func recoveryLink(redirectURL, token string) (string, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return "", fmt.Errorf("parse recovery redirect: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

var _ Provider = (*Service)(nil)
