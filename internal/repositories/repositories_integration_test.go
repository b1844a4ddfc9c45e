//go:build integration

package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunvolt/loginguard/internal/models"
	"github.com/sunvolt/loginguard/internal/repositories"
)

func TestUserRepository_GetByEmail(t *testing.T) {
	truncate(t, "users")
	ctx := context.Background()
	seeded := seedUser(t, "ops@sunvolt.example")

	repo := repositories.NewUserRepository(testDB)

	got, err := repo.GetByEmail(ctx, "  OPS@sunvolt.example ")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, got.ID)
	assert.True(t, got.IsActive())

	_, err = repo.GetByEmail(ctx, "nobody@sunvolt.example")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = repo.Create(ctx, &models.User{Email: "ops@sunvolt.example", PasswordHash: "x", Role: "admin", Status: "active"})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func newSession(userID string, created time.Time, ttl time.Duration) *models.Session {
	return &models.Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		IPAddress:      "203.0.113.7",
		UserAgent:      "Mozilla/5.0",
		CreatedAt:      created,
		LastAccessedAt: created,
		ExpiresAt:      created.Add(ttl),
	}
}

func TestSessionRepository_ListAndDelete(t *testing.T) {
	truncate(t, "users")
	ctx := context.Background()
	alice := seedUser(t, "alice@sunvolt.example")
	bob := seedUser(t, "bob@sunvolt.example")

	repo := repositories.NewSessionRepository(testDB)
	now := time.Now()

	older := newSession(alice.ID, now.Add(-2*time.Hour), 4*time.Hour)
	current := newSession(alice.ID, now.Add(-time.Minute), time.Hour)
	expired := newSession(alice.ID, now.Add(-3*time.Hour), time.Hour)
	foreign := newSession(bob.ID, now, time.Hour)
	for _, s := range []*models.Session{older, current, expired, foreign} {
		require.NoError(t, repo.Create(ctx, s))
	}

	records, err := repo.ListForUser(ctx, alice.ID, current.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, current.ID, records[0].ID)
	assert.True(t, records[0].IsCurrent)
	assert.Equal(t, older.ID, records[1].ID)
	assert.False(t, records[1].IsCurrent)
	assert.Equal(t, "203.0.113.7", records[1].OriginAddress)

	// another user's session cannot be deleted through alice
	assert.ErrorIs(t, repo.DeleteForUser(ctx, alice.ID, foreign.ID), models.ErrNotFound)

	require.NoError(t, repo.DeleteForUser(ctx, alice.ID, older.ID))
	assert.ErrorIs(t, repo.DeleteForUser(ctx, alice.ID, older.ID), models.ErrNotFound)

	removed, err := repo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	active, err := repo.IsActive(ctx, current.ID)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestSessionRepository_Touch(t *testing.T) {
	truncate(t, "users")
	ctx := context.Background()
	alice := seedUser(t, "alice@sunvolt.example")

	repo := repositories.NewSessionRepository(testDB)
	s := newSession(alice.ID, time.Now().Add(-50*time.Minute), time.Hour)
	require.NoError(t, repo.Create(ctx, s))

	require.NoError(t, repo.Touch(ctx, s.ID, 2*time.Hour))

	records, err := repo.ListForUser(ctx, alice.ID, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.WithinDuration(t, time.Now(), records[0].LastAccessedAt, 5*time.Second)
}

func TestSecurityPolicyRepository_LoadSave(t *testing.T) {
	truncate(t, "security_settings")
	ctx := context.Background()
	repo := repositories.NewSecurityPolicyRepository(testDB)

	p, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, p, "absent policy is not an error")

	want := models.SecurityPolicy{MaxLoginAttempts: 3, LockoutDurationMinutes: 0.5, CaptchaEnabled: true, SessionTimeoutMinutes: 30}
	require.NoError(t, repo.Save(ctx, want))

	want.MaxLoginAttempts = 4
	require.NoError(t, repo.Save(ctx, want))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
}

func TestClientKVRepository(t *testing.T) {
	truncate(t, "client_kv")
	ctx := context.Background()
	repo := repositories.NewClientKVRepository(testDB)

	_, ok, err := repo.Get(ctx, "c1", "loginAttempts")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Put(ctx, "c1", "loginAttempts", `{"attempts":1}`))
	require.NoError(t, repo.Put(ctx, "c1", "loginAttempts", `{"attempts":2}`))

	v, ok, err := repo.Get(ctx, "c1", "loginAttempts")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"attempts":2}`, v)

	n, err := repo.DeleteOlderThan(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, repo.Delete(ctx, "c1", "loginAttempts"))
}
