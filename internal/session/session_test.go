package session_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/capitalized/internal/lib/jwt/jwttest"
	"github.com/magabrotheeeer/capitalized/internal/session"
	"github.com/magabrotheeeer/capitalized/internal/storage"
	"github.com/magabrotheeeer/capitalized/internal/storage/memory"
	"github.com/magabrotheeeer/capitalized/internal/storage/tokens"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) GetAccessToken(ctx context.Context) string {
	return m.Called(ctx).String(0)
}

func (m *MockTokenStore) GetRefreshToken(ctx context.Context) string {
	return m.Called(ctx).String(0)
}

func (m *MockTokenStore) SetTokens(ctx context.Context, access, refresh string) error {
	return m.Called(ctx, access, refresh).Error(0)
}

func (m *MockTokenStore) ClearAll(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func newController(t *testing.T) (*session.Controller, *memory.Store) {
	t.Helper()
	kv := memory.New()
	return session.New(tokens.New(kv, newNoopLogger()), newNoopLogger()), kv
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name     string
		stored   map[string]string
		wantAuth bool
		wantTok  string
		wantKept bool
	}{
		{
			name:     "fresh install",
			stored:   nil,
			wantAuth: false,
		},
		{
			name: "both tokens present",
			stored: map[string]string{
				storage.KeyAccessToken:  "A1",
				storage.KeyRefreshToken: "R1",
			},
			wantAuth: true,
			wantTok:  "A1",
			wantKept: true,
		},
		{
			name: "only access token",
			stored: map[string]string{
				storage.KeyAccessToken: "A1",
			},
			wantAuth: false,
		},
		{
			name: "only refresh token",
			stored: map[string]string{
				storage.KeyRefreshToken: "R1",
			},
			wantAuth: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, kv := newController(t)
			ctx := context.Background()
			if tt.stored != nil {
				require.NoError(t, kv.SetMany(ctx, tt.stored))
			}

			assert.True(t, c.Snapshot().IsLoading)
			c.Initialize(ctx)

			snap := c.Snapshot()
			assert.False(t, snap.IsLoading)
			assert.Equal(t, tt.wantAuth, snap.IsAuthenticated)
			assert.Equal(t, tt.wantTok, snap.AccessToken)
			if !tt.wantAuth {
				assert.Equal(t, session.LoggedOut, snap.State)
			}
			for key := range tt.stored {
				_, ok, err := kv.Get(ctx, key)
				require.NoError(t, err)
				assert.Equal(t, tt.wantKept, ok, key)
			}
		})
	}
}

func TestInitialize_IncompletePairClearFails(t *testing.T) {
	store := new(MockTokenStore)
	store.On("GetAccessToken", mock.Anything).Return("A1").Once()
	store.On("GetRefreshToken", mock.Anything).Return("").Once()
	store.On("ClearAll", mock.Anything).Return(errors.New("disk is on fire")).Once()

	c := session.New(store, newNoopLogger())
	c.Initialize(context.Background())

	snap := c.Snapshot()
	assert.Equal(t, session.LoggedOut, snap.State)
	assert.Empty(t, snap.AccessToken)
	store.AssertExpectations(t)
}

func TestSetTokens_AuthenticatesAndPersists(t *testing.T) {
	c, kv := newController(t)
	ctx := context.Background()

	require.NoError(t, c.SetTokens(ctx, "A1", "R1"))

	snap := c.Snapshot()
	assert.Equal(t, session.Authenticated, snap.State)
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, "A1", snap.AccessToken)
	assert.Equal(t, "R1", snap.RefreshToken)

	v, ok, err := kv.Get(ctx, storage.KeyAccessToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "A1", v)
}

func TestSetTokens_RejectsEmpty(t *testing.T) {
	c, _ := newController(t)

	err := c.SetTokens(context.Background(), "", "R1")
	require.ErrorIs(t, err, session.ErrEmptyToken)
	assert.Equal(t, session.LoggedOut, c.Snapshot().State)
}

func TestSetTokensOnly_PendingVerification(t *testing.T) {
	c, kv := newController(t)
	ctx := context.Background()

	require.NoError(t, c.SetTokensOnly(ctx, "A1", "R1"))

	snap := c.Snapshot()
	assert.Equal(t, session.TokensPendingVerification, snap.State)
	assert.False(t, snap.IsAuthenticated)
	assert.True(t, snap.HasTokens)

	v, _, err := kv.Get(ctx, storage.KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "R1", v)
}

func TestSetTokensOnly_KeepsAuthenticated(t *testing.T) {
	c, _ := newController(t)
	ctx := context.Background()

	require.NoError(t, c.SetTokens(ctx, "A1", "R1"))
	require.NoError(t, c.SetTokensOnly(ctx, "A2", "R2"))

	snap := c.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, "A2", snap.AccessToken)
}

func TestSetTokens_StorageFailure(t *testing.T) {
	store := new(MockTokenStore)
	store.On("SetTokens", mock.Anything, "A1", "R1").Return(errors.New("disk full"))
	c := session.New(store, newNoopLogger())

	err := c.SetTokens(context.Background(), "A1", "R1")
	require.Error(t, err)

	snap := c.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.Empty(t, snap.AccessToken)
	assert.NotEmpty(t, snap.Error)
	store.AssertExpectations(t)
}

func TestSetAuthenticated(t *testing.T) {
	ctx := context.Background()

	t.Run("without tokens", func(t *testing.T) {
		c, _ := newController(t)
		err := c.SetAuthenticated(true)
		require.ErrorIs(t, err, session.ErrNoTokens)
		assert.Equal(t, session.LoggedOut, c.Snapshot().State)
	})

	t.Run("pending to authenticated", func(t *testing.T) {
		c, _ := newController(t)
		require.NoError(t, c.SetTokensOnly(ctx, "A1", "R1"))
		require.NoError(t, c.SetAuthenticated(true))
		assert.Equal(t, session.Authenticated, c.Snapshot().State)
	})

	t.Run("authenticated to pending keeps tokens", func(t *testing.T) {
		c, _ := newController(t)
		require.NoError(t, c.SetTokens(ctx, "A1", "R1"))
		require.NoError(t, c.SetAuthenticated(false))
		snap := c.Snapshot()
		assert.Equal(t, session.TokensPendingVerification, snap.State)
		assert.Equal(t, "A1", snap.AccessToken)
	})

	t.Run("false without tokens stays logged out", func(t *testing.T) {
		c, _ := newController(t)
		require.NoError(t, c.SetAuthenticated(false))
		assert.Equal(t, session.LoggedOut, c.Snapshot().State)
	})
}

func TestClearAuth(t *testing.T) {
	c, kv := newController(t)
	ctx := context.Background()

	require.NoError(t, kv.SetMany(ctx, map[string]string{storage.KeyUserData: `{"id":"u1"}`}))
	require.NoError(t, c.SetTokens(ctx, "A1", "R1"))

	var hookCalls int
	c.OnClear(func(context.Context) { hookCalls++ })

	require.NoError(t, c.ClearAuth(ctx))

	snap := c.Snapshot()
	assert.Equal(t, session.LoggedOut, snap.State)
	assert.Empty(t, snap.AccessToken)
	assert.Empty(t, snap.RefreshToken)
	assert.Equal(t, 1, hookCalls)

	for _, key := range storage.SessionKeys {
		_, ok, err := kv.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}

	// повторный вызов безопасен
	require.NoError(t, c.ClearAuth(ctx))
	assert.Equal(t, 2, hookCalls)
}

func TestClearAuth_StorageFailureStillLogsOut(t *testing.T) {
	store := new(MockTokenStore)
	store.On("SetTokens", mock.Anything, "A1", "R1").Return(nil)
	store.On("ClearAll", mock.Anything).Return(errors.New("locked"))
	c := session.New(store, newNoopLogger())
	ctx := context.Background()

	require.NoError(t, c.SetTokens(ctx, "A1", "R1"))
	err := c.ClearAuth(ctx)
	require.Error(t, err)

	snap := c.Snapshot()
	assert.Equal(t, session.LoggedOut, snap.State)
	assert.Empty(t, snap.AccessToken)
	store.AssertExpectations(t)
}

func TestSubscribe(t *testing.T) {
	c, _ := newController(t)
	ctx := context.Background()

	var (
		mu     sync.Mutex
		states []session.State
	)
	unsubscribe := c.Subscribe(func(s session.Snapshot) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})

	require.NoError(t, c.SetTokensOnly(ctx, "A1", "R1"))
	require.NoError(t, c.SetAuthenticated(true))
	unsubscribe()
	require.NoError(t, c.ClearAuth(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []session.State{session.TokensPendingVerification, session.Authenticated}, states)
}

func TestSubscribe_ObserverMayReadSnapshot(t *testing.T) {
	c, _ := newController(t)
	var seen session.State
	c.Subscribe(func(session.Snapshot) {
		seen = c.Snapshot().State
	})

	require.NoError(t, c.SetTokens(context.Background(), "A1", "R1"))
	assert.Equal(t, session.Authenticated, seen)
}

func TestAccessExpiresAt(t *testing.T) {
	issued := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	exp := issued.Add(time.Hour)
	token, err := jwttest.NewMaker("test-secret", time.Hour).Generate("u1", "access", issued)
	require.NoError(t, err)

	c, _ := newController(t)
	require.NoError(t, c.SetTokens(context.Background(), token, "R1"))

	snap := c.Snapshot()
	require.NotNil(t, snap.AccessExpiresAt)
	assert.True(t, exp.Equal(*snap.AccessExpiresAt))

	require.NoError(t, c.SetTokens(context.Background(), "opaque", "R1"))
	assert.Nil(t, c.Snapshot().AccessExpiresAt)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "logged_out", session.LoggedOut.String())
	assert.Equal(t, "tokens_pending_verification", session.TokensPendingVerification.String())
	assert.Equal(t, "authenticated", session.Authenticated.String())
}
