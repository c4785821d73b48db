package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
)

func TestUserStore(t *testing.T) {
	store := NewUserStore(newTestDB(t))
	ctx := context.Background()
	now := time.Now()

	user := &domain.User{ID: "u1", Email: "Alice@Example.com", Name: "Alice", Active: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.Save(ctx, user))

	got, err := store.GetByEmail(ctx, "alice@example.COM")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	dup := &domain.User{ID: "u2", Email: "alice@example.com", Name: "Other"}
	assert.True(t, errors.Is(store.Save(ctx, dup), domain.ErrAlreadyExists))

	user.Name = "Alice B"
	require.NoError(t, store.Save(ctx, user), "saving the same user again updates it")

	require.NoError(t, store.UpdateLastLogin(ctx, "u1"))
	got, err = store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alice B", got.Name)
	assert.NotNil(t, got.LastLoginAt)

	_, err = store.Get(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.True(t, errors.Is(store.UpdateLastLogin(ctx, "missing"), domain.ErrNotFound))
}

func TestSessionStore(t *testing.T) {
	store := NewSessionStore(newTestDB(t))
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	require.NoError(t, store.Save(ctx, &domain.Session{ID: "s1", UserID: "u1", Token: "t1", RefreshToken: "r1", ExpiresAt: exp}))
	require.NoError(t, store.Save(ctx, &domain.Session{ID: "s2", UserID: "u1", Token: "t2", ExpiresAt: exp}))
	require.NoError(t, store.Save(ctx, &domain.Session{ID: "s3", UserID: "u2", Token: "t3", ExpiresAt: exp}))

	byToken, err := store.GetByToken(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, "s2", byToken.ID)

	byRefresh, err := store.GetByRefreshToken(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "s1", byRefresh.ID)

	_, err = store.GetByRefreshToken(ctx, "")
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))

	require.NoError(t, store.Delete(ctx, "s1"))
	require.NoError(t, store.Delete(ctx, "s1"), "deleting twice is fine")
	_, err = store.Get(ctx, "s1")
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))

	require.NoError(t, store.DeleteByUser(ctx, "u1"))
	_, err = store.Get(ctx, "s2")
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
	_, err = store.Get(ctx, "s3")
	assert.NoError(t, err)
}

func TestTemplateStore(t *testing.T) {
	store := NewTemplateStore(newTestDB(t))
	ctx := context.Background()
	now := time.Now()

	older := &domain.Template{ID: "t1", OwnerID: "u1", Name: "NDA", CreatedAt: now,
		Fields: []*domain.TemplateField{{Type: domain.FieldTypeSignature, Slot: "signer"}}}
	newer := &domain.Template{ID: "t2", OwnerID: "u1", Name: "Lease", CreatedAt: now.Add(time.Second)}
	foreign := &domain.Template{ID: "t3", OwnerID: "u2", Name: "Other", CreatedAt: now}
	for _, tmpl := range []*domain.Template{older, newer, foreign} {
		require.NoError(t, store.Save(ctx, tmpl))
	}

	list, err := store.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "t2", list[0].ID)

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	got.Fields[0].Slot = "mutated"
	again, _ := store.Get(ctx, "t1")
	assert.Equal(t, "signer", again.Fields[0].Slot)

	require.NoError(t, store.Delete(ctx, "t1"))
	_, err = store.Get(ctx, "t1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.True(t, errors.Is(store.Delete(ctx, "t1"), domain.ErrNotFound))
}

func TestLock(t *testing.T) {
	lock := NewLock(newTestDB(t))
	ctx := context.Background()

	token, ok, err := lock.Acquire(ctx, "document:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, err = lock.Acquire(ctx, "document:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "a held lock cannot be taken twice")

	_, ok, _ = lock.Acquire(ctx, "document:2", time.Minute)
	assert.True(t, ok, "locks are independent per name")

	assert.Error(t, lock.Extend(ctx, "document:1", "other", time.Minute))
	require.NoError(t, lock.Release(ctx, "document:1", "other"))
	_, ok, _ = lock.Acquire(ctx, "document:1", time.Minute)
	assert.False(t, ok, "a wrong token must not release the lock")

	require.NoError(t, lock.Extend(ctx, "document:1", token, time.Minute))
	require.NoError(t, lock.Release(ctx, "document:1", token))
	require.NoError(t, lock.Release(ctx, "document:1", token))
	assert.Error(t, lock.Extend(ctx, "document:1", token, time.Minute))

	_, ok, _ = lock.Acquire(ctx, "document:1", time.Minute)
	assert.True(t, ok)
}

func TestLock_Expires(t *testing.T) {
	lock := NewLock(newTestDB(t))
	ctx := context.Background()

	_, ok, _ := lock.Acquire(ctx, "document:1", 20*time.Millisecond)
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)
	_, ok, err := lock.Acquire(ctx, "document:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "an expired lock can be taken over")
}

func TestLock_StaleReleaseKeepsNewerHold(t *testing.T) {
	lock := NewLock(newTestDB(t))
	ctx := context.Background()

	stale, ok, _ := lock.Acquire(ctx, "document:1", 10*time.Millisecond)
	require.True(t, ok)
	time.Sleep(20 * time.Millisecond)
	current, ok, _ := lock.Acquire(ctx, "document:1", time.Minute)
	require.True(t, ok)
	assert.NotEqual(t, stale, current)

	require.NoError(t, lock.Release(ctx, "document:1", stale))
	assert.Error(t, lock.Extend(ctx, "document:1", stale, time.Minute))
	_, ok, _ = lock.Acquire(ctx, "document:1", time.Minute)
	assert.False(t, ok, "the expired holder released the newer hold")

	require.NoError(t, lock.Release(ctx, "document:1", current))
	_, ok, _ = lock.Acquire(ctx, "document:1", time.Minute)
	assert.True(t, ok)
}
