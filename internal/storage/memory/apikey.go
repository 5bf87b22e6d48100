package memory

import (
	"context"
	"crypto/subtle"
	"sync"

	"github.com/rryowa/coachauth/internal/models"
	"github.com/rryowa/coachauth/internal/storage"
)

// InMemoryAPIKeyManager validates service keys against a fixed set, for tests and local runs.
type InMemoryAPIKeyManager struct {
	mu      sync.RWMutex
	apiKeys map[string]models.APIKey
}

func NewAPIKeyRepository(keys ...models.APIKey) *InMemoryAPIKeyManager {
	apiKeys := make(map[string]models.APIKey, len(keys))
	for _, k := range keys {
		apiKeys[k.Key] = k
	}
	return &InMemoryAPIKeyManager{apiKeys: apiKeys}
}

var _ storage.APIKeyRepository = (*InMemoryAPIKeyManager)(nil)

func (m *InMemoryAPIKeyManager) IsValidAPIKey(_ context.Context, apiKey string) (bool, error) {
	if apiKey == "" {
		return false, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for k := range m.apiKeys {
		if len(k) == len(apiKey) && subtle.ConstantTimeCompare([]byte(k), []byte(apiKey)) == 1 {
			return true, nil
		}
	}
	return false, nil
}
