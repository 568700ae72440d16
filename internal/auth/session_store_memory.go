package auth

import (
	"context"
	"sync"
)

// InMemorySessionStore implements SessionStore for tests and single-process
// development servers. Sessions are indexed by refresh token and by user so
// that signing a user out everywhere does not scan every session.
type InMemorySessionStore struct {
	mu     sync.RWMutex
	byKey  map[string]Session
	byUser map[string]map[string]struct{}
}

// NewInMemorySessionStore returns an empty store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		byKey:  make(map[string]Session),
		byUser: make(map[string]map[string]struct{}),
	}
}

func (s *InMemorySessionStore) Save(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.byKey[session.RefreshToken]; ok {
		s.unindexLocked(prev)
	}
	s.byKey[session.RefreshToken] = session

	tokens := s.byUser[session.UserID]
	if tokens == nil {
		tokens = make(map[string]struct{})
		s.byUser[session.UserID] = tokens
	}
	tokens[session.RefreshToken] = struct{}{}
	return nil
}

func (s *InMemorySessionStore) Find(_ context.Context, refreshToken string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.byKey[refreshToken]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *InMemorySessionStore) Delete(_ context.Context, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byKey[refreshToken]
	if !ok {
		return ErrSessionNotFound
	}
	s.unindexLocked(session)
	delete(s.byKey, refreshToken)
	return nil
}

func (s *InMemorySessionStore) DeleteByUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tokens := s.byUser[userID]
	for token := range tokens {
		delete(s.byKey, token)
	}
	delete(s.byUser, userID)
	return int64(len(tokens)), nil
}

// Has reports whether a refresh token exists.
func (s *InMemorySessionStore) Has(refreshToken string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byKey[refreshToken]
	return ok
}

// CountByUser reports how many refresh tokens userID holds.
func (s *InMemorySessionStore) CountByUser(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUser[userID])
}

func (s *InMemorySessionStore) unindexLocked(session Session) {
	tokens := s.byUser[session.UserID]
	delete(tokens, session.RefreshToken)
	if len(tokens) == 0 {
		delete(s.byUser, session.UserID)
	}
}

var _ SessionStore = (*InMemorySessionStore)(nil)
