package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/capitalized/internal/app/client"
	"github.com/magabrotheeeer/capitalized/internal/config"
	"github.com/magabrotheeeer/capitalized/internal/onboarding"
)

func newTestApp(t *testing.T, baseURL string) *client.App {
	t.Helper()
	cfg := &config.Config{
		Env:     "test",
		API:     config.API{BaseURL: baseURL},
		Storage: config.Storage{Driver: config.DriverMemory},
	}
	app, err := client.New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	app.Start(context.Background())
	return app
}

func runCommand(t *testing.T, app *client.App, name string, args ...string) (int, output, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := dispatch(context.Background(), app, name, args, &stdout, &stderr)
	var out output
	if stdout.Len() > 0 {
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	}
	return code, out, stderr.String()
}

func TestDispatch_UnknownCommand(t *testing.T) {
	app := newTestApp(t, "http://localhost")
	code, _, stderr := runCommand(t, app, "fly")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `unknown command "fly"`)
}

func TestDispatch_MissingRequiredFlag(t *testing.T) {
	app := newTestApp(t, "http://localhost")
	code, _, stderr := runCommand(t, app, "subscribe")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "flag -plan is required")
}

func TestDispatch_BadAmount(t *testing.T) {
	app := newTestApp(t, "http://localhost")
	code, _, stderr := runCommand(t, app, "projection", "-slug", "bond", "-amount", "-5")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "must be a positive number")
}

func TestDispatch_StatusOnFreshInstall(t *testing.T) {
	app := newTestApp(t, "http://localhost")
	code, out, _ := runCommand(t, app, "status")
	assert.Equal(t, 0, code)
	assert.Equal(t, "logged_out", out.Session)
	assert.Equal(t, onboarding.Auth, out.Destination)
}

func TestDispatch_ValidationErrorHasFields(t *testing.T) {
	app := newTestApp(t, "http://localhost")
	code, out, _ := runCommand(t, app, "register", "-name", "Jane", "-email", "bad", "-phone", "0712345678", "-password", "longenough")
	assert.Equal(t, 1, code)
	assert.Equal(t, "Email is invalid", out.Error)
	assert.Equal(t, map[string]string{"email": "Email is invalid"}, out.Fields)
}

func TestDispatch_LoginThenLogout(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"access_token": "access",
			"refresh_token": "refresh",
			"token_type": "bearer",
			"user": {"id": "u-1", "phone": "+254712345678", "phone_verified": true, "profile_completed": false}
		}`))
	}))
	defer backend.Close()
	app := newTestApp(t, backend.URL)

	code, out, _ := runCommand(t, app, "login", "-id", "jane@example.com", "-password", "secret")
	require.Equal(t, 0, code)
	assert.Equal(t, "authenticated", out.Session)
	assert.Equal(t, onboarding.ProfileCompletion, out.Destination)

	code, out, _ = runCommand(t, app, "logout")
	require.Equal(t, 0, code)
	assert.Equal(t, "logged_out", out.Session)
	assert.Equal(t, onboarding.Auth, out.Destination)
	assert.Nil(t, app.Profiles.User())
}

func TestDispatch_ActionRequiresSession(t *testing.T) {
	app := newTestApp(t, "http://localhost")
	code, out, _ := runCommand(t, app, "trial")
	assert.Equal(t, 1, code)
	assert.Equal(t, "Your session has expired. Please log in again.", out.Error)
	assert.Nil(t, out.Result)
}
