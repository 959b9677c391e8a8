package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garc/pkg/auth"
	"garc/pkg/gab"
	"garc/pkg/ui"
)

// isolate keeps the test away from the real home directory and environment
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("GAB_ACCOUNT", "")
	t.Setenv("GAB_PASSWORD", "")
	return dir
}

func writeSettings(t *testing.T, dir, baseURL string) string {
	t.Helper()
	path := filepath.Join(dir, "settings.yaml")
	content := fmt.Sprintf("gab:\n  base_url: %s\n  api_version: v1\n", baseURL)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func newSearchServer(t *testing.T) (*httptest.Server, func() int) {
	t.Helper()
	var mu sync.Mutex
	searches := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == gab.LoginPath && r.Method == http.MethodPost:
			fmt.Fprint(w, `{"id_token": "tok" }`)
		case r.URL.Path == gab.LoginPath:
			fmt.Fprint(w, `<form><input type="hidden" name="_token" value="t"></form>`)
		case r.URL.Path == "/api/search":
			mu.Lock()
			searches++
			call := searches
			mu.Unlock()
			if call == 1 {
				fmt.Fprint(w, `[{"id":"2","created_at":"2024-01-02T00:00:00Z","content":"&lt;p&gt;cats &amp; dogs&lt;/p&gt;"},{"id":"1","created_at":"2024-01-01T00:00:00Z","content":"cats"}]`)
				return
			}
			fmt.Fprint(w, `[]`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server, func() int {
		mu.Lock()
		defer mu.Unlock()
		return searches
	}
}

func TestHelpAndUnknownCommandsExitOne(t *testing.T) {
	isolate(t)
	for _, args := range [][]string{{}, {"--help"}, {"help"}, {"search", "--help"}, {"nope"}} {
		var stdout, stderr bytes.Buffer
		assert.Equal(t, 1, execute(context.Background(), args, &stdout, &stderr), "args %v", args)
	}
}

func TestVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{"version"}, &stdout, &stderr)

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "garc "+version)
}

func TestSearchWritesNormalizedRecords(t *testing.T) {
	dir := isolate(t)
	server, searches := newSearchServer(t)
	settings := writeSettings(t, dir, server.URL)

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{
		"search", "cats",
		"--settings", settings,
		"--user-account", "alice",
		"--user-password", "secret",
		"--log", filepath.Join(dir, "garc.log"),
	}, &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "2", first["id"])
	assert.Equal(t, "cats & dogs", first["text"])
	assert.Equal(t, 2, searches())
	assert.Contains(t, stderr.String(), "Archived")
}

func TestSearchWithoutCredentialsFails(t *testing.T) {
	dir := isolate(t)
	server, searches := newSearchServer(t)
	settings := writeSettings(t, dir, server.URL)

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{
		"search", "cats",
		"--settings", settings,
		"--log", filepath.Join(dir, "garc.log"),
	}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "missing_credentials")
	assert.Equal(t, 0, searches())
}

func TestInterruptedRunExitsCleanly(t *testing.T) {
	dir := isolate(t)
	server, searches := newSearchServer(t)
	settings := writeSettings(t, dir, server.URL)
	out := filepath.Join(dir, "out.jsonl")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	code := execute(ctx, []string{
		"search", "cats",
		"--settings", settings,
		"--user-account", "alice",
		"--user-password", "secret",
		"--output", out,
		"--log", filepath.Join(dir, "garc.log"),
	}, &stdout, &stderr)

	assert.Equal(t, 0, code)
	assert.Equal(t, 0, searches())
	assert.FileExists(t, out)
}

func TestUserPostsRejectsBadSince(t *testing.T) {
	dir := isolate(t)

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{
		"userposts", "alice", "--since", "yesterday",
		"--log", filepath.Join(dir, "garc.log"),
	}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "invalid date")
}

func TestConfigureWritesProfile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, ".garc")

	var stderr bytes.Buffer
	prev := ui.SetOutput(&stderr)
	defer ui.SetOutput(prev)

	a := newApp()
	root := newRootCmd(a)
	root.SetIn(strings.NewReader("alice\nsecret\n"))
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&stderr)
	root.SetArgs([]string{"configure", "--config", path, "--profile", "research"})
	require.NoError(t, root.Execute())

	creds, err := auth.NewProfileStore(path, nil).Load("research")
	require.NoError(t, err)
	assert.Equal(t, auth.Credentials{Account: "alice", Password: "secret"}, creds)
	assert.NotContains(t, stderr.String(), "secret")
}

func TestConfigShowAppliesFlags(t *testing.T) {
	dir := isolate(t)

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{
		"config", "show",
		"--http-errors", "3",
		"--user-account", "alice",
		"--log", filepath.Join(dir, "garc.log"),
	}, &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "http_errors: 3")
	assert.Contains(t, stdout.String(), "connection_errors: 5")
	assert.Contains(t, stderr.String(), "alice")
}

func TestConfigInitRefusesToOverwrite(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "garc.yaml")

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, execute(context.Background(), []string{"config", "init", "--settings", path}, &stdout, &stderr))
	assert.FileExists(t, path)

	assert.Equal(t, 1, execute(context.Background(), []string{"config", "init", "--settings", path}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "already exists")
}

func TestParseDate(t *testing.T) {
	zero, err := parseDate("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	day, err := parseDate("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), day)

	ts, err := parseDate("2024-03-01T12:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 12, ts.Hour())

	_, err = parseDate("03/01/2024")
	assert.Error(t, err)
}

func TestSearchIntoSQLiteArchive(t *testing.T) {
	dir := isolate(t)
	server, _ := newSearchServer(t)
	settings := writeSettings(t, dir, server.URL)
	db := filepath.Join(dir, "archive.db")

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), []string{
		"search", "cats",
		"--settings", settings,
		"--user-account", "alice",
		"--user-password", "secret",
		"--format", "sqlite",
		"--output", db,
		"--log", filepath.Join(dir, "garc.log"),
	}, &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	assert.Empty(t, stdout.String())
	assert.FileExists(t, db)
	assert.Contains(t, stderr.String(), "Archive rows")
}
