package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/rryowa/coachauth/internal/models"
	"github.com/rryowa/coachauth/internal/storage"
)

type InMemoryUserManager struct {
	mu    sync.RWMutex
	users map[uuid.UUID]models.User
}

func NewUserRepository(users ...models.User) *InMemoryUserManager {
	m := &InMemoryUserManager{users: make(map[uuid.UUID]models.User, len(users))}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

var _ storage.UserRepository = (*InMemoryUserManager)(nil)

func (m *InMemoryUserManager) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return &u, nil
}

// Put inserts or replaces a user.
func (m *InMemoryUserManager) Put(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *InMemoryUserManager) SetActive(id uuid.UUID, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.IsActive = active
		m.users[id] = u
	}
}
