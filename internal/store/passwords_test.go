package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaerksted/ffsync/internal/logger"
	"github.com/vaerksted/ffsync/models"
)

func newPasswordStore(t *testing.T) PasswordStore {
	t.Helper()
	return NewPasswordStore(newTestDB(t), logger.Nop())
}

func TestPasswordStore_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := newPasswordStore(t)

	item := models.PasswordItem{
		GUID:                "pwd-1",
		Hostname:            "https://example.org",
		FormSubmitURL:       "https://example.org/login",
		Username:            "user",
		Password:            "hunter2",
		UsernameField:       "login",
		PasswordField:       "passwd",
		TimeCreated:         1700000000000,
		TimePasswordChanged: 1700000001000,
		Modified:            100.5,
	}
	require.NoError(t, s.Upsert(ctx, item))

	got, err := s.GetByGUID(ctx, "pwd-1")
	require.NoError(t, err)
	assert.Equal(t, item, got)

	item.Password = "correct horse"
	item.Modified = 200
	require.NoError(t, s.Upsert(ctx, item))

	got, err = s.GetByGUID(ctx, "pwd-1")
	require.NoError(t, err)
	assert.Equal(t, "correct horse", got.Password)

	_, err = s.GetByGUID(ctx, "missing")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestPasswordStore_GetModifiedSince(t *testing.T) {
	ctx := context.Background()
	s := newPasswordStore(t)

	for _, item := range []models.PasswordItem{
		{GUID: "p1", Modified: 100},
		{GUID: "p2", Modified: 200},
		{GUID: "p3", Modified: 300, Deleted: true},
	} {
		require.NoError(t, s.Upsert(ctx, item))
	}

	got, err := s.GetModifiedSince(ctx, 150)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p2", got[0].GUID)
	assert.Equal(t, "p3", got[1].GUID)
	assert.True(t, got[1].Deleted)
}

func TestPasswordStore_MarkDeletedAndRemove(t *testing.T) {
	ctx := context.Background()
	s := newPasswordStore(t)

	require.NoError(t, s.Upsert(ctx, models.PasswordItem{GUID: "p1", Modified: 100}))
	require.NoError(t, s.MarkDeleted(ctx, "p1", 150))

	got, err := s.GetByGUID(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, got.Deleted)
	assert.Equal(t, 150.0, got.Modified)

	require.NoError(t, s.Remove(ctx, "p1"))
	_, err = s.GetByGUID(ctx, "p1")
	assert.ErrorIs(t, err, ErrItemNotFound)
	require.NoError(t, s.Remove(ctx, "p1"))
}
