package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rryowa/coachauth/internal/models"
	"github.com/rryowa/coachauth/internal/storage"
)

// InMemorySessionManager keeps refresh sessions keyed by id with a secondary index on
// the token hash. It honours the same single-statement semantics as the postgres adapter.
type InMemorySessionManager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]models.RefreshSession
	byHash   map[string]uuid.UUID
	log      *zap.SugaredLogger
}

func NewSessionRepository(log *zap.SugaredLogger) *InMemorySessionManager {
	return &InMemorySessionManager{
		sessions: make(map[uuid.UUID]models.RefreshSession),
		byHash:   make(map[string]uuid.UUID),
		log:      log,
	}
}

var _ storage.SessionRepository = (*InMemorySessionManager)(nil)

func (m *InMemorySessionManager) CreateSession(ctx context.Context, session models.RefreshSession) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byHash[session.TokenHash]; ok {
		return uuid.Nil, storage.ErrDuplicateSession
	}
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}

	m.sessions[session.ID] = session
	m.byHash[session.TokenHash] = session.ID
	m.log.Debugw("Session created", "sessionID", session.ID, "userID", session.UserID, "expiresAt", session.ExpiresAt)

	return session.ID, nil
}

func (m *InMemorySessionManager) FindLiveSessionByHash(
	ctx context.Context,
	tokenHash string,
	now time.Time,
) (*models.RefreshSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byHash[tokenHash]
	if !ok {
		return nil, storage.ErrSessionNotFound
	}
	session := m.sessions[id]
	if !session.ExpiresAt.After(now) {
		return nil, storage.ErrSessionNotFound
	}
	return &session, nil
}

func (m *InMemorySessionManager) TouchSession(ctx context.Context, id uuid.UUID, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[id]; ok {
		session.LastActivityAt = now
		m.sessions[id] = session
	}
	return nil
}

func (m *InMemorySessionManager) DeleteSessionByHash(ctx context.Context, tokenHash string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byHash[tokenHash]
	if !ok {
		return 0, nil
	}
	m.remove(id)
	return 1, nil
}

func (m *InMemorySessionManager) DeleteAllUserSessions(ctx context.Context, userID uuid.UUID) (int64, error) {
	return m.deleteWhere(ctx, func(s models.RefreshSession) bool { return s.UserID == userID })
}

func (m *InMemorySessionManager) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return m.deleteWhere(ctx, func(s models.RefreshSession) bool { return s.ExpiresAt.Before(now) })
}

func (m *InMemorySessionManager) ListLiveUserSessions(
	ctx context.Context,
	userID uuid.UUID,
	now time.Time,
) ([]models.RefreshSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]models.RefreshSession, 0)
	for _, s := range m.sessions {
		if s.UserID == userID && s.ExpiresAt.After(now) {
			sessions = append(sessions, s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastActivityAt.After(sessions[j].LastActivityAt)
	})
	return sessions, nil
}

func (m *InMemorySessionManager) deleteWhere(ctx context.Context, match func(models.RefreshSession) bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, s := range m.sessions {
		if match(s) {
			m.remove(id)
			n++
		}
	}
	return n, nil
}

// remove must be called with mu held.
func (m *InMemorySessionManager) remove(id uuid.UUID) {
	if s, ok := m.sessions[id]; ok {
		delete(m.byHash, s.TokenHash)
		delete(m.sessions, id)
	}
}
