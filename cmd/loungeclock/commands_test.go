package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/loungeclock/internal/auth"
	"github.com/loykin/loungeclock/internal/panel"
	"github.com/loykin/loungeclock/internal/server"
	"github.com/loykin/loungeclock/internal/store/sqlite"
)

const testPassword = "lounge"

func startRemote(t *testing.T) string {
	t.Helper()
	return startRemoteWith(t, nil)
}

// startRemoteWith serves the store, letting wrap intercept requests first.
func startRemoteWith(t *testing.T, wrap func(next http.Handler) http.Handler) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st, err := sqlite.New(filepath.Join(t.TempDir(), "clients.db"))
	require.NoError(t, err)
	require.NoError(t, st.EnsureSchema(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	v, err := auth.NewVerifier(auth.Config{Password: testPassword})
	require.NoError(t, err)
	h := server.NewRouter(st, v, server.Options{}).Handler()
	if wrap != nil {
		h = wrap(h)
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv.URL
}

// run executes the CLI against url and returns stdout.
func run(t *testing.T, url, stdin string, args ...string) (string, error) {
	t.Helper()
	root := buildRoot()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--api-url", url}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestAddListToggleDelete(t *testing.T) {
	url := startRemote(t)

	out, err := run(t, url, "", "add", "--id", "c1", "--name", "Alice", "--phone", "555-0101", "--hours", "1.5", "--password", testPassword)
	require.NoError(t, err)
	assert.Contains(t, out, "Added Alice (c1)")

	out, err = run(t, url, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "01:30:00")
	assert.Contains(t, out, "stopped")

	out, err = run(t, url, "", "toggle", "c1", "--password", testPassword)
	require.NoError(t, err)
	assert.Contains(t, out, "c1 is now running")

	out, err = run(t, url, "", "list", "--filter", "active")
	require.NoError(t, err)
	assert.Contains(t, out, "Alice")

	out, err = run(t, url, "", "list", "--filter", "inactive")
	require.NoError(t, err)
	assert.NotContains(t, out, "Alice")

	out, err = run(t, url, "", "add-time", "c1", "--minutes", "30", "--password", testPassword)
	require.NoError(t, err)
	assert.Contains(t, out, "Added 00:30:00 to Alice")

	out, err = run(t, url, "n\n", "delete", "c1", "--password", testPassword)
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled")

	out, err = run(t, url, "", "delete", "c1", "--yes", "--password", testPassword)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted c1")

	out, err = run(t, url, "", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "Alice")
}

func TestPasswordPromptedWhenFlagMissing(t *testing.T) {
	url := startRemote(t)
	out, err := run(t, url, testPassword+"\n", "add", "--id", "p1", "--name", "Bob", "--phone", "555", "--hours", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Password to add a client: ")
	assert.Contains(t, out, "Added Bob (p1)")
}

func TestWrongPasswordRejected(t *testing.T) {
	url := startRemote(t)
	_, err := run(t, url, "", "add", "--name", "Eve", "--phone", "1", "--hours", "1", "--password", "wrong")
	require.ErrorIs(t, err, panel.ErrUnauthorized)

	out, err := run(t, url, "", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "Eve")
}

func TestInvalidInputRejected(t *testing.T) {
	url := startRemote(t)
	_, err := run(t, url, "", "add", "--name", "Eve", "--phone", "1", "--hours", "-1", "--password", testPassword)
	require.ErrorIs(t, err, panel.ErrInvalidInput)

	_, err = run(t, url, "", "toggle", "missing", "--password", testPassword)
	require.ErrorIs(t, err, panel.ErrNotFound)

	_, err = run(t, url, "", "list", "--filter", "sleeping")
	require.ErrorIs(t, err, panel.ErrInvalidInput)
}

func TestListSortedJSON(t *testing.T) {
	url := startRemote(t)
	for _, n := range []string{"bravo", "Alpha", "charlie"} {
		_, err := run(t, url, "", "add", "--id", n, "--name", n, "--phone", "1", "--hours", "1", "--password", testPassword)
		require.NoError(t, err)
	}
	out, err := run(t, url, "", "list", "--sort", "name", "--desc", "--json")
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "charlie", rows[0]["name"])
	assert.Equal(t, "bravo", rows[1]["name"])
	assert.Equal(t, "Alpha", rows[2]["name"])
	assert.Equal(t, "stopped", rows[0]["State"])
}

func TestCheck(t *testing.T) {
	url := startRemote(t)
	out, err := run(t, url, "", "check", "--password", testPassword)
	require.NoError(t, err)
	assert.Contains(t, out, "reachable")
	assert.Contains(t, out, "Password accepted")

	_, err = run(t, url, "", "check", "--password", "nope")
	require.ErrorIs(t, err, panel.ErrUnauthorized)

	_, err = run(t, "http://127.0.0.1:1", "", "check")
	require.Error(t, err)
}

func TestHashPassword(t *testing.T) {
	root := buildRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader("secret\n"))
	root.SetArgs([]string{"hash-password", "--cost", "4"})
	require.NoError(t, root.Execute())

	hash := strings.TrimSpace(out.String())
	v, err := auth.NewVerifier(auth.Config{PasswordHash: hash})
	require.NoError(t, err)
	assert.True(t, v.Check("secret"))
}

func TestPanelSession(t *testing.T) {
	url := startRemote(t)
	script := strings.Join([]string{
		"add Carol 555-0103 2 VIP",
		"sort name",
		"toggle nope",
		"filter active",
		"filter all",
		"list",
		"bogus",
		"quit",
	}, "\n") + "\n"

	c := &command{flags: &GlobalFlags{APIUrl: url, Password: testPassword}}
	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, c.runPanel(ctx, strings.NewReader(script), &out, &bytes.Buffer{}))

	s := out.String()
	assert.Contains(t, s, "Added Carol")
	assert.Contains(t, s, "Sorted by name, ascending")
	assert.Contains(t, s, "error: nope: client not found")
	assert.Contains(t, s, "VIP")
	assert.Contains(t, s, `unknown command "bogus"`)

	out.Reset()
	_, err := run(t, url, "", "list")
	require.NoError(t, err)
}

func TestPanelSessionKeepsChangeWhenSaveFails(t *testing.T) {
	failSaves := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost && r.URL.Path == "/clients" {
				http.Error(w, `{"error":"store unavailable"}`, http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	url := startRemoteWith(t, failSaves)
	script := strings.Join([]string{
		"add Dan 555-0104 1",
		"list",
		"quit",
	}, "\n") + "\n"

	c := &command{flags: &GlobalFlags{APIUrl: url, Password: testPassword}}
	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, c.runPanel(ctx, strings.NewReader(script), &out, &bytes.Buffer{}))

	s := out.String()
	assert.Contains(t, s, "Added Dan")
	assert.Contains(t, s, pendingSyncNotice)
	assert.NotContains(t, s, "error:")
	assert.Contains(t, s, "Dan", "the change stays applied locally")
	assert.Contains(t, s, "01:00:00")

	// One-shot commands lose local state on exit, so they still fail.
	_, err := run(t, url, "", "--password", testPassword, "add", "--name", "Eve", "--phone", "555", "--hours", "1")
	assert.ErrorIs(t, err, errNotSaved)
}
