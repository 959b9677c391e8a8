package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	errs "garc/pkg/errors"

	"gopkg.in/ini.v1"
)

const (
	keyAccount       = "user_account"
	keyPassword      = "user_password"
	keyPasswordStore = "password_store"

	passwordStoreKeyring = "keyring"
)

// ProfileStore reads and writes credential profiles in an INI file:
//
//	[main]
//	user_account = someone
//	user_password = secret
type ProfileStore struct {
	Path string
	// Secrets resolves profiles marked password_store = keyring
	Secrets SecretStore
}

// NewProfileStore creates a store for the INI file at path
func NewProfileStore(path string, secrets SecretStore) *ProfileStore {
	return &ProfileStore{Path: path, Secrets: secrets}
}

// Load reads the named profile. A missing file yields empty credentials; a
// missing section or key is a config_profile error.
func (p *ProfileStore) Load(profile string) (Credentials, error) {
	if _, err := os.Stat(p.Path); errors.Is(err, fs.ErrNotExist) {
		return Credentials{}, nil
	}

	file, err := ini.Load(p.Path)
	if err != nil {
		return Credentials{}, errs.Wrap(errs.ErrorTypeConfigProfile, err, fmt.Sprintf("reading %s", p.Path))
	}

	section, err := file.GetSection(profile)
	if err != nil {
		return Credentials{}, errs.New(errs.ErrorTypeConfigProfile, 0,
			"no profile %q in %s", profile, p.Path)
	}

	if !section.HasKey(keyAccount) {
		return Credentials{}, p.missingKey(profile, keyAccount)
	}
	creds := Credentials{Account: section.Key(keyAccount).String()}

	if section.Key(keyPasswordStore).String() == passwordStoreKeyring {
		if p.Secrets == nil {
			return Credentials{}, errs.New(errs.ErrorTypeConfigProfile, 0,
				"profile %q in %s uses the keyring but no keyring is available", profile, p.Path)
		}
		secret, err := p.Secrets.Get(creds.Account)
		if err != nil {
			return Credentials{}, errs.Wrap(errs.ErrorTypeConfigProfile, err,
				fmt.Sprintf("reading password for profile %q", profile))
		}
		creds.Password = secret
		return creds, nil
	}

	if !section.HasKey(keyPassword) {
		return Credentials{}, p.missingKey(profile, keyPassword)
	}
	creds.Password = section.Key(keyPassword).String()
	return creds, nil
}

func (p *ProfileStore) missingKey(profile, key string) error {
	return errs.New(errs.ErrorTypeConfigProfile, 0,
		"profile %q in %s is missing %s", profile, p.Path, key)
}

// Save writes creds under profile, replacing that section and leaving the
// others intact. With useKeyring the password goes to Secrets instead of the
// file; saving a keyring profile without it removes the stored secret.
func (p *ProfileStore) Save(profile string, creds Credentials, useKeyring bool) error {
	file, err := ini.LooseLoad(p.Path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", p.Path, err)
	}

	var previous string
	if old, err := file.GetSection(profile); err == nil && old.Key(keyPasswordStore).String() == passwordStoreKeyring {
		previous = old.Key(keyAccount).String()
	}

	file.DeleteSection(profile)
	section, err := file.NewSection(profile)
	if err != nil {
		return fmt.Errorf("failed to create profile %q: %w", profile, err)
	}
	if _, err := section.NewKey(keyAccount, creds.Account); err != nil {
		return err
	}

	if useKeyring {
		if p.Secrets == nil {
			return ErrStoreUnavailable
		}
		if err := p.Secrets.Set(creds.Account, creds.Password); err != nil {
			return err
		}
		if _, err := section.NewKey(keyPasswordStore, passwordStoreKeyring); err != nil {
			return err
		}
	} else {
		if _, err := section.NewKey(keyPassword, creds.Password); err != nil {
			return err
		}
		// the password moved back into the file; drop the keychain copy
		if previous != "" && p.Secrets != nil {
			if err := p.Secrets.Delete(previous); err != nil && !errors.Is(err, ErrSecretNotFound) {
				return fmt.Errorf("failed to remove keyring password: %w", err)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(p.Path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.OpenFile(p.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", p.Path, err)
	}
	defer f.Close()

	if _, err := file.WriteTo(f); err != nil {
		return fmt.Errorf("failed to write %s: %w", p.Path, err)
	}
	return nil
}

// Profiles lists the section names in the file
func (p *ProfileStore) Profiles() ([]string, error) {
	file, err := ini.LooseLoad(p.Path)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, name := range file.SectionStrings() {
		if name == ini.DefaultSection {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}
