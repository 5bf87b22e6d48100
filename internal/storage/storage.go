package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rryowa/coachauth/internal/models"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrDuplicateSession = errors.New("session token hash already exists")
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SessionRepository persists refresh sessions. Every mutation is a single statement,
// so callers never need read-modify-write sequences.
type SessionRepository interface {
	CreateSession(ctx context.Context, session models.RefreshSession) (uuid.UUID, error)
	// FindLiveSessionByHash returns ErrSessionNotFound when no row with expires_at > now matches.
	FindLiveSessionByHash(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshSession, error)
	TouchSession(ctx context.Context, id uuid.UUID, now time.Time) error
	DeleteSessionByHash(ctx context.Context, tokenHash string) (int64, error)
	DeleteAllUserSessions(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
	// ListLiveUserSessions is ordered by last activity, most recent first.
	ListLiveUserSessions(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.RefreshSession, error)
}

type UserRepository interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// RevocationCache is a TTL key/value store. A missing key is reported as found=false, not an error.
type RevocationCache interface {
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (value string, found bool, err error)
}

type APIKeyRepository interface {
	IsValidAPIKey(ctx context.Context, key string) (bool, error)
}
