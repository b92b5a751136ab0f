// Package credential owns the client's bearer credential: the in-memory
// copy attached to outbound requests and the durable copy that survives
// process restarts. At most one credential is active per Manager.
package credential

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// ErrNoCredential is returned when no credential is set or stored.
var ErrNoCredential = errors.New("no credential")

// Store persists the credential between process runs.
type Store interface {
	// Load returns the stored token, or ErrNoCredential.
	Load(ctx context.Context) (string, error)
	// Save replaces the stored token.
	Save(ctx context.Context, token string) error
	// Delete removes the stored token. Deleting an absent token is not an error.
	Delete(ctx context.Context) error
}

// Manager holds the active credential. It implements oauth2.TokenSource.
type Manager struct {
	mu    sync.RWMutex
	token string
	store Store
}

// NewManager creates a Manager and loads any durable credential from store
// so it is attached before the first request. A nil store keeps the
// credential in memory only.
func NewManager(ctx context.Context, store Store) (*Manager, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	m := &Manager{store: store}

	token, err := store.Load(ctx)
	switch {
	case errors.Is(err, ErrNoCredential):
	case err != nil:
		return nil, fmt.Errorf("load credential: %w", err)
	default:
		m.token = token
	}
	return m, nil
}

// Set activates token and persists it. An empty token clears the credential.
// The in-memory credential is updated even when persisting fails.
func (m *Manager) Set(ctx context.Context, token string) error {
	if token == "" {
		return m.Clear(ctx)
	}
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	if err := m.store.Save(ctx, token); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Clear drops the in-memory and durable credential.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()

	if err := m.store.Delete(ctx); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// Current returns the active token, if any.
func (m *Manager) Current() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token != ""
}

// Token implements oauth2.TokenSource.
func (m *Manager) Token() (*oauth2.Token, error) {
	token, ok := m.Current()
	if !ok {
		return nil, ErrNoCredential
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}

// SetAuthHeader sets "Authorization: Bearer <token>" on r when a credential
// is active and removes any Authorization header otherwise.
func (m *Manager) SetAuthHeader(r *http.Request) {
	tok, err := m.Token()
	if err != nil {
		r.Header.Del("Authorization")
		return
	}
	tok.SetAuthHeader(r)
}

// MemoryStore keeps the credential in process memory only.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", ErrNoCredential
	}
	return s.token, nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}
