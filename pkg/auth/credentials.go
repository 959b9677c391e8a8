package auth

import (
	"errors"
	"os"
	"path/filepath"

	errs "garc/pkg/errors"
)

const (
	// DefaultProfile is the INI section read when no profile is named
	DefaultProfile = "main"
	// DefaultProfileFile is the credential file name in the home directory
	DefaultProfileFile = ".garc"
)

// Credentials hold the account used to log in to Gab
type Credentials struct {
	Account  string
	Password string
}

// Complete reports whether both fields are present
func (c Credentials) Complete() bool {
	return c.Account != "" && c.Password != ""
}

// fill copies fields from other into c where c is empty
func (c Credentials) fill(other Credentials) Credentials {
	if c.Account == "" {
		c.Account = other.Account
	}
	if c.Password == "" {
		c.Password = other.Password
	}
	return c
}

// ProfileLoader reads credentials stored under a named profile
type ProfileLoader interface {
	Load(profile string) (Credentials, error)
}

// Resolver merges credentials from explicit values, the environment and a
// profile store, in that order of precedence
type Resolver struct {
	// Store is consulted only for fields still empty after explicit and env
	Store   ProfileLoader
	Profile string
	Env     *EnvironmentStore
}

// NewResolver creates a resolver reading the given profile from store
func NewResolver(store ProfileLoader, profile string) *Resolver {
	if profile == "" {
		profile = DefaultProfile
	}
	return &Resolver{
		Store:   store,
		Profile: profile,
		Env:     NewEnvironmentStore(),
	}
}

// Resolve returns the merged credentials. Incomplete credentials are not an
// error here; the session reports them on the first login attempt.
func (r *Resolver) Resolve(explicit Credentials) (Credentials, error) {
	creds := explicit
	if r.Env != nil {
		creds = creds.fill(r.Env.Retrieve())
	}
	if creds.Complete() || r.Store == nil {
		return creds, nil
	}

	profile := r.Profile
	if profile == "" {
		profile = DefaultProfile
	}
	stored, err := r.Store.Load(profile)
	if err != nil {
		return creds, err
	}
	return creds.fill(stored), nil
}

// DefaultProfilePath returns ~/.garc
func DefaultProfilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeConfigProfile, err, "locating home directory")
	}
	return filepath.Join(home, DefaultProfileFile), nil
}

// Mask masks all but the first 2 and last 2 characters of a string
func Mask(s string) string {
	if len(s) <= 6 {
		return "******"
	}
	return s[:2] + "..." + s[len(s)-2:]
}

// Errors
var (
	ErrSecretNotFound   = errors.New("secret not found")
	ErrInvalidAccount   = errors.New("account name is required")
	ErrStoreUnavailable = errors.New("secret store unavailable")
)
