package auth

import (
	"sync"
)

// MockProfileStore implements ProfileLoader for tests and counts loads
type MockProfileStore struct {
	Profiles map[string]Credentials
	LoadErr  error

	mu    sync.Mutex
	loads int
}

// NewMockProfileStore creates a mock holding the given profiles
func NewMockProfileStore(profiles map[string]Credentials) *MockProfileStore {
	if profiles == nil {
		profiles = make(map[string]Credentials)
	}
	return &MockProfileStore{Profiles: profiles}
}

// Load returns the stored profile or LoadErr
func (m *MockProfileStore) Load(profile string) (Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loads++
	if m.LoadErr != nil {
		return Credentials{}, m.LoadErr
	}
	return m.Profiles[profile], nil
}

// Loads returns how many times Load was called
func (m *MockProfileStore) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

// MockSecretStore implements SecretStore in memory
type MockSecretStore struct {
	secrets map[string]string
	mu      sync.RWMutex

	// Error injection for testing
	SetError error
}

// NewMockSecretStore creates an empty in-memory secret store
func NewMockSecretStore() *MockSecretStore {
	return &MockSecretStore{secrets: make(map[string]string)}
}

func (m *MockSecretStore) Get(account string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if account == "" {
		return "", ErrInvalidAccount
	}
	secret, ok := m.secrets[account]
	if !ok {
		return "", ErrSecretNotFound
	}
	return secret, nil
}

func (m *MockSecretStore) Set(account, secret string) error {
	if m.SetError != nil {
		return m.SetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if account == "" {
		return ErrInvalidAccount
	}
	m.secrets[account] = secret
	return nil
}

func (m *MockSecretStore) Delete(account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.secrets[account]; !ok {
		return ErrSecretNotFound
	}
	delete(m.secrets, account)
	return nil
}
