package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/rryowa/coachauth/internal/models"
	"github.com/rryowa/coachauth/internal/storage"
)

var sessionColumns = []string{
	"id", "user_id", "token_hash", "device_info", "ip_address",
	"expires_at", "last_activity_at", "created_at",
}

type SessionRepository struct {
	db storage.DBTX
}

func NewSessionRepository(db storage.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) CreateSession(ctx context.Context, session models.RefreshSession) (uuid.UUID, error) {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}

	var deviceInfo interface{}
	if len(session.DeviceInfo) > 0 {
		deviceInfo = []byte(session.DeviceInfo)
	}
	var ip interface{}
	if session.IPAddress != "" {
		ip = session.IPAddress
	}

	query, args, err := qb().Insert(sessionsTable).
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.UserID,
			session.TokenHash,
			deviceInfo,
			ip,
			session.ExpiresAt,
			session.LastActivityAt,
			session.CreatedAt,
		).
		ToSql()
	if err != nil {
		return uuid.Nil, fmt.Errorf("build insert session: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, storage.ErrDuplicateSession
		}
		return uuid.Nil, fmt.Errorf("failed to insert session: %w", err)
	}
	return session.ID, nil
}

func (r *SessionRepository) FindLiveSessionByHash(
	ctx context.Context,
	tokenHash string,
	now time.Time,
) (*models.RefreshSession, error) {
	query, args, err := qb().Select(sessionColumns...).
		From(sessionsTable).
		Where(sq.Eq{"token_hash": tokenHash}).
		Where(sq.Gt{"expires_at": now}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session: %w", err)
	}

	session, err := scanSession(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

func (r *SessionRepository) TouchSession(ctx context.Context, id uuid.UUID, now time.Time) error {
	query, args, err := qb().Update(sessionsTable).
		Set("last_activity_at", now).
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch session: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// DeleteSessionByHash is the conditional delete rotation relies on: of two concurrent
// callers only one observes an affected row.
func (r *SessionRepository) DeleteSessionByHash(ctx context.Context, tokenHash string) (int64, error) {
	return r.delete(ctx, "delete session", sq.Eq{"token_hash": tokenHash})
}

func (r *SessionRepository) DeleteAllUserSessions(ctx context.Context, userID uuid.UUID) (int64, error) {
	return r.delete(ctx, "delete user sessions", sq.Eq{"user_id": userID.String()})
}

func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return r.delete(ctx, "delete expired sessions", sq.Lt{"expires_at": now})
}

func (r *SessionRepository) ListLiveUserSessions(
	ctx context.Context,
	userID uuid.UUID,
	now time.Time,
) ([]models.RefreshSession, error) {
	query, args, err := qb().Select(sessionColumns...).
		From(sessionsTable).
		Where(sq.Eq{"user_id": userID.String()}).
		Where(sq.Gt{"expires_at": now}).
		OrderBy("last_activity_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]models.RefreshSession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

func (r *SessionRepository) delete(ctx context.Context, op string, pred sq.Sqlizer) (int64, error) {
	query, args, err := qb().Delete(sessionsTable).Where(pred).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s: %w", op, err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*models.RefreshSession, error) {
	var (
		s          models.RefreshSession
		deviceInfo []byte
		ip         sql.NullString
	)
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.TokenHash,
		&deviceInfo,
		&ip,
		&s.ExpiresAt,
		&s.LastActivityAt,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(deviceInfo) > 0 {
		s.DeviceInfo = deviceInfo
	}
	s.IPAddress = ip.String
	return &s, nil
}
