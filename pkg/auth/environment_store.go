package auth

import "os"

const (
	EnvAccount  = "GAB_ACCOUNT"
	EnvPassword = "GAB_PASSWORD"
)

// EnvironmentStore reads credentials from GAB_ACCOUNT and GAB_PASSWORD
type EnvironmentStore struct {
	getenv func(string) string
}

// NewEnvironmentStore creates a new environment-based credential source
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{getenv: os.Getenv}
}

// NewEnvironmentStoreFrom reads variables through lookup instead of the process environment
func NewEnvironmentStoreFrom(lookup func(string) string) *EnvironmentStore {
	return &EnvironmentStore{getenv: lookup}
}

// Retrieve returns whatever fields the environment provides
func (e *EnvironmentStore) Retrieve() Credentials {
	return Credentials{
		Account:  e.getenv(EnvAccount),
		Password: e.getenv(EnvPassword),
	}
}

// Exists checks if both variables are set
func (e *EnvironmentStore) Exists() bool {
	return e.Retrieve().Complete()
}
