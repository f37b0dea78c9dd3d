package state

import (
	"sync"
	"time"

	"webcoder/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

// expirySkew treats a token as expired slightly before its exp claim.
const expirySkew = 5 * time.Second

// Store holds the current token pair and persists it to path.
// Readers never block each other; only login, refresh and logout write.
type Store struct {
	path string
	now  func() time.Time

	mu sync.RWMutex
	st TokenState
}

// Open loads the token state at path. A missing file yields an empty store.
func Open(path string) (*Store, error) {
	st, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, now: time.Now, st: st}, nil
}

// NewStore builds a store that is not backed by a file when path is empty.
func NewStore(path string, st TokenState) *Store {
	return &Store{path: path, now: time.Now, st: st}
}

func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.mu.Lock()
		s.now = now
		s.mu.Unlock()
	}
}

func (s *Store) State() TokenState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

// BearerToken returns the access token, or an auth error when there is none
// or it has expired.
func (s *Store) BearerToken() (string, error) {
	s.mu.RLock()
	token, exp, now := s.st.AccessToken, s.st.AccessExpiresAt, s.now()
	s.mu.RUnlock()

	if token == "" {
		return "", errors.New(errors.TokenMissing)
	}
	if !exp.IsZero() && !now.Before(exp.Add(-expirySkew)) {
		return "", errors.New(errors.TokenExpired).WithDetail("expired_at", exp.Format(time.RFC3339))
	}
	return token, nil
}

// Token returns the access token without checking expiry.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.AccessToken
}

func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.RefreshToken
}

// SetTokens replaces the token pair. An empty refresh keeps the current one.
// Expiry times come from the tokens' exp claims when present.
func (s *Store) SetTokens(access, refresh string) error {
	s.mu.Lock()
	s.st.AccessToken = access
	s.st.AccessExpiresAt = ExpiryOf(access)
	if refresh != "" {
		s.st.RefreshToken = refresh
		s.st.RefreshExpiresAt = ExpiryOf(refresh)
	}
	st := s.st
	s.mu.Unlock()
	return s.persist(st)
}

func (s *Store) SetUsername(name string) error {
	s.mu.Lock()
	s.st.Username = name
	st := s.st
	s.mu.Unlock()
	return s.persist(st)
}

// Clear drops every token and removes the state file.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.st = TokenState{}
	s.mu.Unlock()
	if s.path == "" {
		return nil
	}
	return Clear(s.path)
}

func (s *Store) persist(st TokenState) error {
	if s.path == "" {
		return nil
	}
	return Save(s.path, st)
}

// ExpiryOf reads the exp claim without verifying the signature. The server
// is the authority on validity; the client only uses this to fail fast.
func ExpiryOf(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
