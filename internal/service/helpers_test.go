package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/rryowa/coachauth/internal/models"
	"github.com/rryowa/coachauth/internal/storage/memory"
	"github.com/rryowa/coachauth/internal/util"
)

func testTokenConfig() *util.TokenConfig {
	return &util.TokenConfig{
		AccessSecret:  "test-access-secret",
		RefreshSecret: "test-refresh-secret",
		AccessTTL:     "15m",
		RefreshTTL:    "7d",
	}
}

// newMockClock starts at a realistic wall time instead of the unix epoch.
func newMockClock() *clock.Mock {
	clk := clock.NewMock()
	clk.Add(time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC).Sub(clk.Now()))
	return clk
}

type fixture struct {
	svc      *TokenService
	clk      *clock.Mock
	sessions *memory.InMemorySessionManager
	users    *memory.InMemoryUserManager
	cache    *memory.InMemoryCache
	notifier *recordingNotifier
	user     models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, testTokenConfig())
}

func newFixtureWithConfig(t *testing.T, cfg *util.TokenConfig) *fixture {
	t.Helper()
	log := zap.NewNop().Sugar()
	clk := newMockClock()
	user := models.User{
		ID:        uuid.New(),
		Email:     "coach@example.com",
		Role:      models.RoleTrainer,
		IsActive:  true,
		CreatedAt: clk.Now(),
	}

	f := &fixture{
		clk:      clk,
		sessions: memory.NewSessionRepository(log),
		users:    memory.NewUserRepository(user),
		cache:    memory.NewCache(clk),
		notifier: &recordingNotifier{},
		user:     user,
	}
	f.svc = NewTokenService(cfg, f.sessions, f.users, f.cache, f.notifier, clk, log)
	return f
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.IPChangeEvent
}

func (n *recordingNotifier) NotifyIPChange(event models.IPChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) Events() []models.IPChangeEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.IPChangeEvent(nil), n.events...)
}

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) CreateSession(ctx context.Context, s models.RefreshSession) (uuid.UUID, error) {
	args := m.Called(ctx, s)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *mockSessionRepo) FindLiveSessionByHash(ctx context.Context, hash string, now time.Time) (*models.RefreshSession, error) {
	args := m.Called(ctx, hash, now)
	s, _ := args.Get(0).(*models.RefreshSession)
	return s, args.Error(1)
}

func (m *mockSessionRepo) TouchSession(ctx context.Context, id uuid.UUID, now time.Time) error {
	return m.Called(ctx, id, now).Error(0)
}

func (m *mockSessionRepo) DeleteSessionByHash(ctx context.Context, hash string) (int64, error) {
	args := m.Called(ctx, hash)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSessionRepo) DeleteAllUserSessions(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSessionRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSessionRepo) ListLiveUserSessions(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.RefreshSession, error) {
	args := m.Called(ctx, userID, now)
	s, _ := args.Get(0).([]models.RefreshSession)
	return s, args.Error(1)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *mockCache) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func sessionMetaFor(ip string) models.SessionMetadata {
	return models.SessionMetadata{IPAddress: ip}
}
