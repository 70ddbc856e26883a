package token

import (
	"context"
	"sync"
)

// Pair is the access/refresh credential pair of one session.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Empty reports whether neither credential is set.
func (p Pair) Empty() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// Store holds the session credentials. Reads return an empty string and a nil
// error when a credential is absent. Implementations must be safe for
// concurrent use.
type Store interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	// Save replaces both credentials. An empty RefreshToken keeps the current
	// one, matching servers that do not rotate refresh tokens.
	Save(ctx context.Context, pair Pair) error
	// ClearAccess drops only the access token.
	ClearAccess(ctx context.Context) error
	// ClearAccessIf drops the access token only while it still equals
	// expected, and reports whether it did. A token saved concurrently
	// survives.
	ClearAccessIf(ctx context.Context, expected string) (bool, error)
	// Clear drops both credentials.
	Clear(ctx context.Context) error
}

// MemoryStore keeps credentials in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	pair Pair
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) AccessToken(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.AccessToken, nil
}

func (s *MemoryStore) RefreshToken(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.RefreshToken, nil
}

func (s *MemoryStore) Save(_ context.Context, pair Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair.AccessToken = pair.AccessToken
	if pair.RefreshToken != "" {
		s.pair.RefreshToken = pair.RefreshToken
	}
	return nil
}

func (s *MemoryStore) ClearAccess(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair.AccessToken = ""
	return nil
}

func (s *MemoryStore) ClearAccessIf(_ context.Context, expected string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pair.AccessToken != expected {
		return false, nil
	}
	s.pair.AccessToken = ""
	return true, nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = Pair{}
	return nil
}
