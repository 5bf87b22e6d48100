package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/facebookgo/clock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rryowa/coachauth/internal/storage"
)

const (
	CurrentAPIKeyRedisKey      = "apikey:current"
	OldAPIKeyRedisKey          = "apikey:old"
	APIKeyRotationTimeRedisKey = "apikey:rotation_time"

	apiKeyGracePeriod = 24 * time.Hour
)

var ErrEmptyAPIKey = errors.New("api key is empty")

// APIKeyService keeps the service-to-service key in redis, hashed. After a rotation the
// previous key stays valid for apiKeyGracePeriod.
type APIKeyService struct {
	rdb   *redis.Client
	clock clock.Clock
	log   *zap.SugaredLogger
}

func NewAPIKeyService(rdb *redis.Client, clk clock.Clock, log *zap.SugaredLogger) *APIKeyService {
	if clk == nil {
		clk = clock.New()
	}
	return &APIKeyService{rdb: rdb, clock: clk, log: log}
}

var _ storage.APIKeyRepository = (*APIKeyService)(nil)

// SyncAPIKey makes key the current one, demoting the previous key to the grace slot.
func (s *APIKeyService) SyncAPIKey(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("sync: %w", ErrEmptyAPIKey)
	}

	hashedNewKey := hashAPIKey(key)

	currentHashedKey, err := s.rdb.Get(ctx, CurrentAPIKeyRedisKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.log.Warn("Current API key not found during sync; initializing.")
			return s.setInitialAPIKey(ctx, hashedNewKey)
		}
		return fmt.Errorf("failed to get current API key from Redis: %w", err)
	}

	if equalHashes(hashedNewKey, currentHashedKey) {
		s.log.Info("Skipping key sync: new key is the same as the current one.")
		return nil
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, OldAPIKeyRedisKey, currentHashedKey, apiKeyGracePeriod)
	pipe.Set(ctx, CurrentAPIKeyRedisKey, hashedNewKey, 0)
	pipe.Set(ctx, APIKeyRotationTimeRedisKey, s.clock.Now().UTC().Format(time.RFC3339), 0)
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to sync API key in Redis: %w", err)
	}

	s.log.Info("API key rotated.")
	return nil
}

func (s *APIKeyService) IsValidAPIKey(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}

	hashedKey := hashAPIKey(key)

	currentHashedKey, err := s.rdb.Get(ctx, CurrentAPIKeyRedisKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("failed to get current API key from Redis: %w", err)
	}
	if equalHashes(hashedKey, currentHashedKey) {
		return true, nil
	}

	oldHashedKey, err := s.rdb.Get(ctx, OldAPIKeyRedisKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("failed to get old API key from Redis: %w", err)
	}
	if oldHashedKey == "" || !equalHashes(hashedKey, oldHashedKey) {
		return false, nil
	}

	rotationTimeStr, err := s.rdb.Get(ctx, APIKeyRotationTimeRedisKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to get key rotation time from Redis: %w", err)
	}
	rotationTime, err := time.Parse(time.RFC3339, rotationTimeStr)
	if err != nil {
		return false, fmt.Errorf("failed to parse key rotation time: %w", err)
	}

	return s.clock.Now().Sub(rotationTime) <= apiKeyGracePeriod, nil
}

func (s *APIKeyService) setInitialAPIKey(ctx context.Context, hashedKey string) error {
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, CurrentAPIKeyRedisKey, hashedKey, 0)
	pipe.Set(ctx, APIKeyRotationTimeRedisKey, s.clock.Now().UTC().Format(time.RFC3339), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("init API key: %w", err)
	}
	s.log.Info("API key initialized in Redis.")
	return nil
}

func hashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

func equalHashes(a, b string) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
