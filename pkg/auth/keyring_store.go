package auth

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "garc"

// SecretStore keeps account passwords outside the profile file
type SecretStore interface {
	Get(account string) (string, error)
	Set(account, secret string) error
	Delete(account string) error
}

// KeyringStore implements SecretStore using the system keychain
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a keychain-backed secret store under service "garc"
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{service: keyringService}
}

// Get reads the password for account
func (k *KeyringStore) Get(account string) (string, error) {
	if account == "" {
		return "", ErrInvalidAccount
	}
	secret, err := keyring.Get(k.service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("failed to read from keyring: %w", err)
	}
	return secret, nil
}

// Set stores the password for account
func (k *KeyringStore) Set(account, secret string) error {
	if account == "" {
		return ErrInvalidAccount
	}
	if err := keyring.Set(k.service, account, secret); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

// Delete removes the password for account
func (k *KeyringStore) Delete(account string) error {
	if account == "" {
		return ErrInvalidAccount
	}
	if err := keyring.Delete(k.service, account); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrSecretNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}
