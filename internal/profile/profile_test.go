package profile_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/capitalized/internal/models"
	"github.com/magabrotheeeer/capitalized/internal/profile"
	"github.com/magabrotheeeer/capitalized/internal/storage"
	"github.com/magabrotheeeer/capitalized/internal/storage/memory"
	"github.com/magabrotheeeer/capitalized/internal/storage/sqlite"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var errBroken = errors.New("disk is on fire")

// failingKV всегда возвращает ошибку.
type failingKV struct{}

func (failingKV) Get(context.Context, string) (string, bool, error) { return "", false, errBroken }
func (failingKV) SetMany(context.Context, map[string]string) error  { return errBroken }
func (failingKV) Delete(context.Context, ...string) error           { return errBroken }
func (failingKV) Close() error                                      { return nil }

func sampleUser() *models.UserProfile {
	return &models.UserProfile{
		ID:               "u1",
		FullName:         "Jane Wanjiku",
		Email:            "jane@example.com",
		Phone:            "+254712345678",
		PhoneVerified:    true,
		ProfileCompleted: true,
		City:             models.Ptr("Nairobi"),
		Country:          models.Ptr("Kenya"),
		KYCStatus:        models.KYCPending,
		CanInvest:        false,
	}
}

func TestSetUser_PersistsAndCopies(t *testing.T) {
	kv := memory.New()
	c := profile.New(kv, newNoopLogger())
	ctx := context.Background()

	u := sampleUser()
	require.NoError(t, c.SetUser(ctx, u))

	u.FullName = "mutated"
	got := c.User()
	require.NotNil(t, got)
	assert.Equal(t, "Jane Wanjiku", got.FullName)

	raw, ok, err := kv.Get(ctx, storage.KeyUserData)
	require.NoError(t, err)
	require.True(t, ok)
	var stored models.UserProfile
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, "u1", stored.ID)
}

func TestSetUser_WriteFailure(t *testing.T) {
	c := profile.New(failingKV{}, newNoopLogger())

	err := c.SetUser(context.Background(), sampleUser())
	require.ErrorIs(t, err, errBroken)
	assert.Nil(t, c.User())
	assert.Equal(t, profile.MsgSaveFailed, c.Err())
}

func TestUpdateUser_OnlyTouchesPatchedFields(t *testing.T) {
	kv := memory.New()
	c := profile.New(kv, newNoopLogger())
	ctx := context.Background()

	before := sampleUser()
	require.NoError(t, c.SetUser(ctx, before))

	approved := models.KYCApproved
	require.NoError(t, c.UpdateUser(ctx, models.UserPatch{KYCStatus: &approved}))

	after := c.User()
	require.NotNil(t, after)
	assert.Equal(t, models.KYCApproved, after.KYCStatus)

	expected := *before
	expected.KYCStatus = models.KYCApproved
	assert.Equal(t, &expected, after)
}

func TestUpdateUser_NoCurrentUser(t *testing.T) {
	kv := memory.New()
	c := profile.New(kv, newNoopLogger())
	ctx := context.Background()

	require.NoError(t, c.UpdateUser(ctx, models.UserPatch{City: models.Ptr("Mombasa")}))
	assert.Nil(t, c.User())

	_, ok, err := kv.Get(ctx, storage.KeyUserData)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateUser_EmptyPatch(t *testing.T) {
	c := profile.New(failingKV{}, newNoopLogger())
	require.NoError(t, c.UpdateUser(context.Background(), models.UserPatch{}))
}

func TestLoadUser(t *testing.T) {
	ctx := context.Background()

	t.Run("survives restart", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "device.db")
		kv, err := sqlite.New(path)
		require.NoError(t, err)
		require.NoError(t, profile.New(kv, newNoopLogger()).SetUser(ctx, sampleUser()))
		require.NoError(t, kv.Close())

		kv, err = sqlite.New(path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = kv.Close() })

		c := profile.New(kv, newNoopLogger())
		c.LoadUser(ctx)
		assert.False(t, c.IsLoading())
		assert.Equal(t, sampleUser(), c.User())
	})

	t.Run("nothing stored", func(t *testing.T) {
		c := profile.New(memory.New(), newNoopLogger())
		c.LoadUser(ctx)
		assert.Nil(t, c.User())
		assert.Empty(t, c.Err())
	})

	t.Run("corrupted json", func(t *testing.T) {
		kv := memory.New()
		require.NoError(t, kv.SetMany(ctx, map[string]string{storage.KeyUserData: "{not json"}))
		c := profile.New(kv, newNoopLogger())
		c.LoadUser(ctx)
		assert.Nil(t, c.User())
		assert.Equal(t, profile.MsgLoadFailed, c.Err())
	})

	t.Run("read failure fails open", func(t *testing.T) {
		c := profile.New(failingKV{}, newNoopLogger())
		c.LoadUser(ctx)
		assert.Nil(t, c.User())
		assert.False(t, c.IsLoading())
	})
}

func TestClearUser(t *testing.T) {
	kv := memory.New()
	c := profile.New(kv, newNoopLogger())
	ctx := context.Background()

	require.NoError(t, c.SetUser(ctx, sampleUser()))
	require.NoError(t, c.ClearUser(ctx))
	require.NoError(t, c.ClearUser(ctx))

	assert.Nil(t, c.User())
	_, ok, err := kv.Get(ctx, storage.KeyUserData)
	require.NoError(t, err)
	assert.False(t, ok)
}

// deleteFailingKV пишет и читает нормально, но не умеет удалять.
type deleteFailingKV struct {
	*memory.Store
}

func (deleteFailingKV) Delete(context.Context, ...string) error { return errBroken }

func TestClearUser_StorageFailureStillClearsMemory(t *testing.T) {
	c := profile.New(deleteFailingKV{memory.New()}, newNoopLogger())
	ctx := context.Background()
	require.NoError(t, c.SetUser(ctx, sampleUser()))

	err := c.ClearUser(ctx)
	require.ErrorIs(t, err, errBroken)
	assert.Nil(t, c.User())
}

func TestSubscribe(t *testing.T) {
	c := profile.New(memory.New(), newNoopLogger())
	ctx := context.Background()

	var seen []string
	unsubscribe := c.Subscribe(func(u *models.UserProfile) {
		if u == nil {
			seen = append(seen, "<nil>")
			return
		}
		seen = append(seen, string(u.KYCStatus))
	})

	require.NoError(t, c.SetUser(ctx, sampleUser()))
	require.NoError(t, c.UpdateUser(ctx, models.UserPatch{KYCStatus: models.Ptr(models.KYCApproved)}))
	require.NoError(t, c.ClearUser(ctx))
	unsubscribe()
	require.NoError(t, c.SetUser(ctx, sampleUser()))

	assert.Equal(t, []string{"pending", "approved", "<nil>"}, seen)
}

func TestPinnedWrites_DroppedAfterClear(t *testing.T) {
	tests := []struct {
		name  string
		write func(ctx context.Context, c *profile.Cache) error
	}{
		{
			name: "set user",
			write: func(ctx context.Context, c *profile.Cache) error {
				return c.SetUser(ctx, sampleUser())
			},
		},
		{
			name: "update user",
			write: func(ctx context.Context, c *profile.Cache) error {
				return c.UpdateUser(ctx, models.UserPatch{KYCStatus: models.Ptr(models.KYCApproved)})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := memory.New()
			c := profile.New(kv, newNoopLogger())
			ctx := context.Background()
			require.NoError(t, c.SetUser(ctx, sampleUser()))

			pinned := c.Pin(ctx)
			require.NoError(t, c.ClearUser(ctx))

			err := tt.write(pinned, c)
			require.ErrorIs(t, err, profile.ErrCleared)
			assert.Nil(t, c.User())
			_, ok, err := kv.Get(ctx, storage.KeyUserData)
			require.NoError(t, err)
			assert.False(t, ok)

			// Незакреплённая запись после очистки проходит как обычно.
			require.NoError(t, c.SetUser(ctx, sampleUser()))
			assert.NotNil(t, c.User())
		})
	}
}

func TestPinnedWrite_SameGenerationApplies(t *testing.T) {
	c := profile.New(memory.New(), newNoopLogger())
	ctx := c.Pin(context.Background())

	require.NoError(t, c.SetUser(ctx, sampleUser()))
	require.NoError(t, c.UpdateUser(ctx, models.UserPatch{CanInvest: models.Ptr(true)}))
	require.NotNil(t, c.User())
	assert.True(t, c.User().CanInvest)
}

// blockingKV задерживает запись до закрытия release.
type blockingKV struct {
	*memory.Store
	entered chan struct{}
	release chan struct{}
}

func (b blockingKV) SetMany(ctx context.Context, kv map[string]string) error {
	close(b.entered)
	<-b.release
	return b.Store.SetMany(ctx, kv)
}

func TestClearUser_DuringInFlightWrite(t *testing.T) {
	kv := blockingKV{Store: memory.New(), entered: make(chan struct{}), release: make(chan struct{})}
	c := profile.New(kv, newNoopLogger())
	ctx := context.Background()

	writeDone := make(chan error, 1)
	go func() { writeDone <- c.SetUser(c.Pin(ctx), sampleUser()) }()
	<-kv.entered

	clearDone := make(chan error, 1)
	go func() { clearDone <- c.ClearUser(ctx) }()
	close(kv.release)

	require.NoError(t, <-writeDone)
	require.NoError(t, <-clearDone)

	assert.Nil(t, c.User())
	_, ok, err := kv.Get(ctx, storage.KeyUserData)
	require.NoError(t, err)
	assert.False(t, ok)
}
