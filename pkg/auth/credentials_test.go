package auth

import (
	"os"
	"path/filepath"
	"testing"

	errs "garc/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func envFrom(vars map[string]string) *EnvironmentStore {
	return NewEnvironmentStoreFrom(func(key string) string { return vars[key] })
}

func TestResolveExplicitAndEnvSkipProfile(t *testing.T) {
	store := NewMockProfileStore(map[string]Credentials{
		"main": {Account: "file-user", Password: "file-pass"},
	})
	resolver := NewResolver(store, "")
	resolver.Env = envFrom(map[string]string{EnvPassword: "env-pass"})

	creds, err := resolver.Resolve(Credentials{Account: "cli-user"})

	require.NoError(t, err)
	assert.Equal(t, Credentials{Account: "cli-user", Password: "env-pass"}, creds)
	assert.Equal(t, 0, store.Loads(), "profile store must not be read when both fields are known")
}

func TestResolvePrecedence(t *testing.T) {
	store := NewMockProfileStore(map[string]Credentials{
		"main":  {Account: "file-user", Password: "file-pass"},
		"other": {Account: "other-user", Password: "other-pass"},
	})

	tests := []struct {
		name     string
		explicit Credentials
		env      map[string]string
		profile  string
		want     Credentials
	}{
		{
			name: "profile fills everything",
			want: Credentials{Account: "file-user", Password: "file-pass"},
		},
		{
			name:     "explicit account wins over profile",
			explicit: Credentials{Account: "cli-user"},
			want:     Credentials{Account: "cli-user", Password: "file-pass"},
		},
		{
			name: "env wins over profile",
			env:  map[string]string{EnvAccount: "env-user"},
			want: Credentials{Account: "env-user", Password: "file-pass"},
		},
		{
			name:     "explicit wins over env",
			explicit: Credentials{Password: "cli-pass"},
			env:      map[string]string{EnvPassword: "env-pass", EnvAccount: "env-user"},
			want:     Credentials{Account: "env-user", Password: "cli-pass"},
		},
		{
			name:    "named profile",
			profile: "other",
			want:    Credentials{Account: "other-user", Password: "other-pass"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := NewResolver(store, tt.profile)
			resolver.Env = envFrom(tt.env)

			creds, err := resolver.Resolve(tt.explicit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, creds)
		})
	}
}

func TestResolveWithoutStoreIsIncomplete(t *testing.T) {
	resolver := NewResolver(nil, "")
	resolver.Env = envFrom(nil)

	creds, err := resolver.Resolve(Credentials{Account: "only-user"})
	require.NoError(t, err)
	assert.False(t, creds.Complete())
}

func TestResolvePropagatesProfileError(t *testing.T) {
	store := NewMockProfileStore(nil)
	store.LoadErr = errs.New(errs.ErrorTypeConfigProfile, 0, "no profile")
	resolver := NewResolver(store, "main")
	resolver.Env = envFrom(nil)

	_, err := resolver.Resolve(Credentials{})
	assert.True(t, errs.IsType(err, errs.ErrorTypeConfigProfile))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "******", Mask("short"))
	assert.Equal(t, "hu...er", Mask("hunter-hunter"))
}

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".garc")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestProfileStoreLoad(t *testing.T) {
	path := writeProfile(t, "[main]\nuser_account = alice\nuser_password = s3cret\n")

	creds, err := NewProfileStore(path, nil).Load("main")
	require.NoError(t, err)
	assert.Equal(t, Credentials{Account: "alice", Password: "s3cret"}, creds)
}

func TestProfileStoreMissingFile(t *testing.T) {
	store := NewProfileStore(filepath.Join(t.TempDir(), "absent"), nil)

	creds, err := store.Load("main")
	require.NoError(t, err)
	assert.Equal(t, Credentials{}, creds)
}

func TestProfileStoreMissingSectionOrKey(t *testing.T) {
	path := writeProfile(t, "[main]\nuser_account = alice\n")
	store := NewProfileStore(path, nil)

	_, err := store.Load("work")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeConfigProfile))
	assert.Contains(t, err.Error(), "work")
	assert.Contains(t, err.Error(), path)

	_, err = store.Load("main")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeConfigProfile))
	assert.Contains(t, err.Error(), "user_password")
}

func TestProfileStoreSavePreservesOtherSections(t *testing.T) {
	path := writeProfile(t, "[work]\nuser_account = bob\nuser_password = pw\n")
	store := NewProfileStore(path, nil)

	require.NoError(t, store.Save("main", Credentials{Account: "alice", Password: "one"}, false))
	require.NoError(t, store.Save("main", Credentials{Account: "alice", Password: "two"}, false))

	creds, err := store.Load("main")
	require.NoError(t, err)
	assert.Equal(t, "two", creds.Password)

	work, err := store.Load("work")
	require.NoError(t, err)
	assert.Equal(t, "bob", work.Account)

	profiles, err := store.Profiles()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main", "work"}, profiles)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestProfileStoreKeyringPassword(t *testing.T) {
	secrets := NewMockSecretStore()
	path := filepath.Join(t.TempDir(), ".garc")
	store := NewProfileStore(path, secrets)

	require.NoError(t, store.Save("main", Credentials{Account: "alice", Password: "kept-elsewhere"}, true))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "kept-elsewhere")
	assert.Contains(t, string(raw), "password_store")

	creds, err := store.Load("main")
	require.NoError(t, err)
	assert.Equal(t, "kept-elsewhere", creds.Password)
}

func TestProfileStoreLeavingKeyringDeletesSecret(t *testing.T) {
	secrets := NewMockSecretStore()
	path := filepath.Join(t.TempDir(), ".garc")
	store := NewProfileStore(path, secrets)

	require.NoError(t, store.Save("main", Credentials{Account: "alice", Password: "in-keychain"}, true))
	require.NoError(t, store.Save("main", Credentials{Account: "alice", Password: "in-file"}, false))

	_, err := secrets.Get("alice")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	creds, err := store.Load("main")
	require.NoError(t, err)
	assert.Equal(t, "in-file", creds.Password)

	// a plain profile saved again has nothing to remove
	require.NoError(t, store.Save("main", Credentials{Account: "alice", Password: "again"}, false))
}

func TestProfileStoreKeyringUnavailable(t *testing.T) {
	path := writeProfile(t, "[main]\nuser_account = alice\npassword_store = keyring\n")

	_, err := NewProfileStore(path, nil).Load("main")
	assert.True(t, errs.IsType(err, errs.ErrorTypeConfigProfile))
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	store := NewKeyringStore()

	_, err := store.Get("alice")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	require.NoError(t, store.Set("alice", "pw"))
	secret, err := store.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, "pw", secret)

	require.NoError(t, store.Delete("alice"))
	assert.ErrorIs(t, store.Delete("alice"), ErrSecretNotFound)
	assert.ErrorIs(t, store.Set("", "pw"), ErrInvalidAccount)
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv(EnvAccount, "env-user")
	t.Setenv(EnvPassword, "env-pass")

	store := NewEnvironmentStore()
	assert.True(t, store.Exists())
	assert.Equal(t, Credentials{Account: "env-user", Password: "env-pass"}, store.Retrieve())
}
