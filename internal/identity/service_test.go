package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeeRoiii/Image-Vault/internal/apperror"
	"github.com/LeeRoiii/Image-Vault/internal/auth"
	"github.com/LeeRoiii/Image-Vault/internal/models"
	"github.com/LeeRoiii/Image-Vault/internal/repositories"
)

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]models.User
	err   error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: make(map[string]models.User)}
}

func (m *memoryUsers) Create(_ context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.User{}, m.err
	}
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (m *memoryUsers) FindByID(_ context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.User{}, m.err
	}
	user, ok := m.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (m *memoryUsers) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	user.Password = hash
	m.users[id] = user
	return nil
}

type memoryResets struct {
	mu     sync.Mutex
	resets map[string]models.PasswordReset
}

func (m *memoryResets) Save(_ context.Context, reset models.PasswordReset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resets == nil {
		m.resets = make(map[string]models.PasswordReset)
	}
	m.resets[reset.TokenHash] = reset
	return nil
}

func (m *memoryResets) Consume(_ context.Context, hash string) (models.PasswordReset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reset, ok := m.resets[hash]
	if !ok {
		return models.PasswordReset{}, repositories.ErrNotFound
	}
	delete(m.resets, hash)
	return reset, nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) last(t *testing.T) Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

type fixture struct {
	svc     *Service
	users   *memoryUsers
	store   *auth.InMemorySessionStore
	manager *auth.Manager
	mailer  *recordingMailer
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	signer, err := auth.NewTokenSigner("identity-test-secret-0123")
	require.NoError(t, err)
	store := auth.NewInMemorySessionStore()
	manager := auth.NewManager(time.Minute, time.Hour, signer, store)
	users := newMemoryUsers()
	mailer := &recordingMailer{}

	svc, err := NewService(ServiceConfig{
		Users:    users,
		Sessions: manager,
		Resets:   &memoryResets{},
		Mailer:   mailer,
		ResetTTL: time.Hour,
	})
	require.NoError(t, err)
	return fixture{svc: svc, users: users, store: store, manager: manager, mailer: mailer}
}

func TestSignUpThenSignIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var events []Event
	unsubscribe := f.svc.Subscribe(func(e Event) { events = append(events, e) })
	defer unsubscribe()

	user, err := f.svc.SignUp(ctx, "  Ana@Example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.NotEqual(t, "secret1", user.Password)

	_, err = f.svc.SignUp(ctx, "ana@example.com", "secret1")
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = f.svc.SignInWithPassword(ctx, "ana@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	session, err := f.svc.SignInWithPassword(ctx, "ANA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.User.ID)
	assert.NotEmpty(t, session.Tokens.AccessToken)

	require.Len(t, events, 1)
	assert.Equal(t, EventSignedIn, events[0].Kind)
	assert.Equal(t, user.ID, events[0].UserID)
}

func TestSignUpValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SignUp(context.Background(), "not-an-email", "secret1")
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, "Invalid email format.", apperror.MessageOf(err, ""))

	_, err = f.svc.SignUp(context.Background(), "a@b.co", "12345")
	assert.Equal(t, "Password must be at least 6 characters.", apperror.MessageOf(err, ""))
}

func TestValidateSignUpConfirmation(t *testing.T) {
	err := ValidateSignUp("a@b.co", "secret1", "secret2")
	assert.Equal(t, "Passwords do not match.", apperror.MessageOf(err, ""))
	assert.NoError(t, ValidateSignUp("a@b.co", "secret1", "secret1"))
}

func TestGetSessionRotatesExpiredAccessToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SignUp(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)

	f.manager.WithNowFunc(func() time.Time { return time.Now().UTC().Add(-10 * time.Minute) })
	session, err := f.svc.SignInWithPassword(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	f.manager.WithNowFunc(func() time.Time { return time.Now().UTC() })

	resolved, err := f.svc.GetSession(ctx, session.Tokens)
	require.NoError(t, err)
	assert.True(t, resolved.Refreshed)
	assert.Equal(t, session.User.ID, resolved.User.ID)
	assert.NotEqual(t, session.Tokens.RefreshToken, resolved.Tokens.RefreshToken)

	again, err := f.svc.GetSession(ctx, resolved.Tokens)
	require.NoError(t, err)
	assert.False(t, again.Refreshed)
}

func TestGetSessionWithoutTokens(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetSession(context.Background(), models.SessionTokens{})
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = f.svc.GetSession(context.Background(), models.SessionTokens{AccessToken: "garbage", RefreshToken: "unknown"})
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSignOutRevokesAndNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, err := f.svc.SignUp(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	session, err := f.svc.SignInWithPassword(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)

	var signedOut string
	f.svc.Subscribe(func(e Event) {
		if e.Kind == EventSignedOut {
			signedOut = e.UserID
		}
	})

	require.NoError(t, f.svc.SignOut(ctx, user.ID, session.Tokens.RefreshToken))
	assert.False(t, f.store.Has(session.Tokens.RefreshToken))
	assert.Equal(t, user.ID, signedOut)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	f := newFixture(t)
	calls := 0
	unsubscribe := f.svc.Subscribe(func(Event) { calls++ })
	unsubscribe()
	unsubscribe()

	require.NoError(t, f.svc.SignOut(context.Background(), "user-1", ""))
	assert.Zero(t, calls)
}

func TestPasswordRecoveryFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, err := f.svc.SignUp(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	old, err := f.svc.SignInWithPassword(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, f.svc.ResetPasswordForEmail(ctx, "nobody@example.com", "http://localhost/reset-password"))
	require.NoError(t, f.svc.ResetPasswordForEmail(ctx, "ana@example.com", "http://localhost/reset-password"))

	msg := f.mailer.last(t)
	assert.Equal(t, "ana@example.com", msg.To)
	idx := strings.Index(msg.Body, "http://")
	require.GreaterOrEqual(t, idx, 0)
	link, err := url.Parse(msg.Body[idx:])
	require.NoError(t, err)
	assert.Equal(t, "/reset-password", link.Path)
	token := link.Query().Get("token")
	require.NotEmpty(t, token)

	session, err := f.svc.ExchangeRecoveryToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.User.ID)

	_, err = f.svc.ExchangeRecoveryToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidRecoveryToken)

	_, err = f.svc.UpdateUser(ctx, user.ID, UserUpdate{Password: "short"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.svc.UpdateUser(ctx, user.ID, UserUpdate{Password: "new-secret"})
	require.NoError(t, err)
	assert.False(t, f.store.Has(old.Tokens.RefreshToken))

	_, err = f.svc.SignInWithPassword(ctx, "ana@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.SignInWithPassword(ctx, "ana@example.com", "new-secret")
	assert.NoError(t, err)
}

func TestRecoveryTokenExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SignUp(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, f.svc.ResetPasswordForEmail(ctx, "ana@example.com", "http://localhost/reset-password"))

	body := f.mailer.last(t).Body
	link, err := url.Parse(body[strings.Index(body, "http://"):])
	require.NoError(t, err)

	f.svc.WithNowFunc(func() time.Time { return time.Now().UTC().Add(2 * time.Hour) })
	_, err = f.svc.ExchangeRecoveryToken(ctx, link.Query().Get("token"))
	assert.ErrorIs(t, err, ErrInvalidRecoveryToken)
}

func TestNetworkFailuresAreServiceUnavailable(t *testing.T) {
	f := newFixture(t)
	f.users.err = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

	_, err := f.svc.SignInWithPassword(context.Background(), "ana@example.com", "secret1")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)

	f.users.err = fmt.Errorf("query: %w", context.DeadlineExceeded)
	err = f.svc.ResetPasswordForEmail(context.Background(), "ana@example.com", "http://localhost/reset-password")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}
