package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rryowa/coachauth/internal/models"
	"github.com/rryowa/coachauth/internal/storage"
)

func newSession(userID uuid.UUID, hash string, now time.Time, ttl time.Duration) models.RefreshSession {
	return models.RefreshSession{
		UserID:         userID,
		TokenHash:      hash,
		ExpiresAt:      now.Add(ttl),
		LastActivityAt: now,
		CreatedAt:      now,
	}
}

func TestSessionRepository_CreateAndFind(t *testing.T) {
	repo := NewSessionRepository(zap.NewNop().Sugar())
	ctx := context.Background()
	now := time.Now()
	userID := uuid.New()

	id, err := repo.CreateSession(ctx, newSession(userID, "h1", now, time.Hour))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	s, err := repo.FindLiveSessionByHash(ctx, "h1", now)
	require.NoError(t, err)
	assert.Equal(t, id, s.ID)
	assert.Equal(t, userID, s.UserID)

	_, err = repo.FindLiveSessionByHash(ctx, "h1", now.Add(time.Hour))
	require.ErrorIs(t, err, storage.ErrSessionNotFound)

	_, err = repo.FindLiveSessionByHash(ctx, "other", now)
	require.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestSessionRepository_DuplicateHash(t *testing.T) {
	repo := NewSessionRepository(zap.NewNop().Sugar())
	ctx := context.Background()
	now := time.Now()

	_, err := repo.CreateSession(ctx, newSession(uuid.New(), "h1", now, time.Hour))
	require.NoError(t, err)
	_, err = repo.CreateSession(ctx, newSession(uuid.New(), "h1", now, time.Hour))
	require.ErrorIs(t, err, storage.ErrDuplicateSession)
}

func TestSessionRepository_Touch(t *testing.T) {
	repo := NewSessionRepository(zap.NewNop().Sugar())
	ctx := context.Background()
	now := time.Now()

	id, err := repo.CreateSession(ctx, newSession(uuid.New(), "h1", now, time.Hour))
	require.NoError(t, err)

	later := now.Add(10 * time.Minute)
	require.NoError(t, repo.TouchSession(ctx, id, later))

	s, err := repo.FindLiveSessionByHash(ctx, "h1", later)
	require.NoError(t, err)
	assert.True(t, s.LastActivityAt.Equal(later))

	require.NoError(t, repo.TouchSession(ctx, uuid.New(), later))
}

func TestSessionRepository_DeleteByHashIsConditional(t *testing.T) {
	repo := NewSessionRepository(zap.NewNop().Sugar())
	ctx := context.Background()
	now := time.Now()

	_, err := repo.CreateSession(ctx, newSession(uuid.New(), "h1", now, time.Hour))
	require.NoError(t, err)

	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := repo.DeleteSessionByHash(ctx, "h1")
			assert.NoError(t, err)
			wins.Add(n)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
}

func TestSessionRepository_DeleteAllAndExpired(t *testing.T) {
	repo := NewSessionRepository(zap.NewNop().Sugar())
	ctx := context.Background()
	now := time.Now()
	alice, bob := uuid.New(), uuid.New()

	for _, s := range []models.RefreshSession{
		newSession(alice, "a1", now, time.Hour),
		newSession(alice, "a2", now, time.Hour),
		newSession(bob, "b1", now, time.Minute),
		newSession(bob, "b2", now, time.Hour),
	} {
		_, err := repo.CreateSession(ctx, s)
		require.NoError(t, err)
	}

	n, err := repo.DeleteAllUserSessions(ctx, alice)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = repo.DeleteExpiredSessions(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = repo.FindLiveSessionByHash(ctx, "b2", now)
	require.NoError(t, err)
	_, err = repo.FindLiveSessionByHash(ctx, "b1", now)
	require.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestSessionRepository_ListOrdersByActivity(t *testing.T) {
	repo := NewSessionRepository(zap.NewNop().Sugar())
	ctx := context.Background()
	now := time.Now()
	userID := uuid.New()

	oldest, err := repo.CreateSession(ctx, newSession(userID, "h1", now.Add(-2*time.Hour), 24*time.Hour))
	require.NoError(t, err)
	newest, err := repo.CreateSession(ctx, newSession(userID, "h2", now, 24*time.Hour))
	require.NoError(t, err)
	_, err = repo.CreateSession(ctx, newSession(userID, "h3", now.Add(-time.Hour), time.Minute))
	require.NoError(t, err)
	_, err = repo.CreateSession(ctx, newSession(uuid.New(), "h4", now, time.Hour))
	require.NoError(t, err)

	sessions, err := repo.ListLiveUserSessions(ctx, userID, now)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, newest, sessions[0].ID)
	assert.Equal(t, oldest, sessions[1].ID)
}

func TestSessionRepository_CanceledContext(t *testing.T) {
	repo := NewSessionRepository(zap.NewNop().Sugar())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.CreateSession(ctx, newSession(uuid.New(), "h1", time.Now(), time.Hour))
	require.ErrorIs(t, err, context.Canceled)

	_, err = repo.FindLiveSessionByHash(ctx, "h1", time.Now())
	require.ErrorIs(t, err, context.Canceled)
}
