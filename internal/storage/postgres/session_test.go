package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rryowa/coachauth/internal/models"
	"github.com/rryowa/coachauth/internal/storage"
)

var sessionRowColumns = []string{
	"id", "user_id", "token_hash", "device_info", "ip_address",
	"expires_at", "last_activity_at", "created_at",
}

func newSessionRepoWithMock(t *testing.T) (*SessionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSessionRepository(db), mock
}

func TestCreateSession_Success(t *testing.T) {
	repo, mock := newSessionRepoWithMock(t)
	now := time.Now().UTC()
	userID := uuid.New()

	mock.ExpectExec(`(?s)^INSERT INTO user_sessions \(id,user_id,token_hash,device_info,ip_address,expires_at,last_activity_at,created_at\) VALUES \(\$1,\$2,\$3,\$4,\$5,\$6,\$7,\$8\)$`).
		WithArgs(sqlmock.AnyArg(), userID.String(), "hash-1", []byte(`{"user_agent":"curl"}`), "10.0.0.1",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := repo.CreateSession(context.Background(), models.RefreshSession{
		UserID:         userID,
		TokenHash:      "hash-1",
		DeviceInfo:     []byte(`{"user_agent":"curl"}`),
		IPAddress:      "10.0.0.1",
		ExpiresAt:      now.Add(time.Hour),
		LastActivityAt: now,
		CreatedAt:      now,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSession_NullableColumns(t *testing.T) {
	repo, mock := newSessionRepoWithMock(t)
	sessionID := uuid.New()

	mock.ExpectExec(`(?s)^INSERT INTO user_sessions`).
		WithArgs(sessionID.String(), sqlmock.AnyArg(), "hash-2", nil, nil,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := repo.CreateSession(context.Background(), models.RefreshSession{ID: sessionID, UserID: uuid.New(), TokenHash: "hash-2"})
	require.NoError(t, err)
	assert.Equal(t, sessionID, id)
}

func TestCreateSession_UniqueViolation(t *testing.T) {
	repo, mock := newSessionRepoWithMock(t)

	mock.ExpectExec(`(?s)^INSERT INTO user_sessions`).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.CreateSession(context.Background(), models.RefreshSession{UserID: uuid.New(), TokenHash: "dup"})
	require.ErrorIs(t, err, storage.ErrDuplicateSession)
}

func TestCreateSession_DBError(t *testing.T) {
	repo, mock := newSessionRepoWithMock(t)

	mock.ExpectExec(`(?s)^INSERT INTO user_sessions`).
		WillReturnError(errors.New("db down"))

	_, err := repo.CreateSession(context.Background(), models.RefreshSession{UserID: uuid.New(), TokenHash: "h"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.NotErrorIs(t, err, storage.ErrDuplicateSession)
}

func TestFindLiveSessionByHash_Found(t *testing.T) {
	repo, mock := newSessionRepoWithMock(t)
	now := time.Now().UTC()
	id, userID := uuid.New(), uuid.New()

	rows := sqlmock.NewRows(sessionRowColumns).
		AddRow(id.String(), userID.String(), "hash-1", []byte(`{"user_agent":"curl"}`), "10.0.0.1",
			now.Add(time.Hour), now, now)

	mock.ExpectQuery(`(?s)^SELECT id, user_id, token_hash, .* FROM user_sessions WHERE token_hash = \$1 AND expires_at > \$2$`).
		WithArgs("hash-1", now).
		WillReturnRows(rows)

	s, err := repo.FindLiveSessionByHash(context.Background(), "hash-1", now)
	require.NoError(t, err)
	assert.Equal(t, id, s.ID)
	assert.Equal(t, userID, s.UserID)
	assert.Equal(t, "10.0.0.1", s.IPAddress)
	assert.JSONEq(t, `{"user_agent":"curl"}`, string(s.DeviceInfo))
}

func TestFindLiveSessionByHash_NullColumns(t *testing.T) {
	repo, mock := newSessionRepoWithMock(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(sessionRowColumns).
		AddRow(uuid.NewString(), uuid.NewString(), "hash-1", nil, nil, now.Add(time.Hour), now, now)
	mock.ExpectQuery(`FROM user_sessions`).WillReturnRows(rows)

	s, err := repo.FindLiveSessionByHash(context.Background(), "hash-1", now)
	require.NoError(t, err)
	assert.Empty(t, s.IPAddress)
	assert.Nil(t, s.DeviceInfo)
}

func TestFindLiveSessionByHash_NotFound(t *testing.T) {
	repo, mock := newSessionRepoWithMock(t)

	mock.ExpectQuery(`FROM user_sessions`).WillReturnError(sql.ErrNoRows)

	_, err := repo.FindLiveSessionByHash(context.Background(), "missing", time.Now())
	require.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestFindLiveSessionByHash_DBError(t *testing.T) {
	repo, mock := newSessionRepoWithMock(t)

	mock.ExpectQuery(`FROM user_sessions`).WillReturnError(errors.New("conn reset"))

	_, err := repo.FindLiveSessionByHash(context.Background(), "h", time.Now())
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestTouchSession(t *testing.T) {
	repo, mock := newSessionRepoWithMock(t)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectExec(`^UPDATE user_sessions SET last_activity_at = \$1 WHERE id = \$2$`).
		WithArgs(now, id.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.TouchSession(context.Background(), id, now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSessionByHash_ReportsAffectedRows(t *testing.T) {
	repo, mock := newSessionRepoWithMock(t)

	mock.ExpectExec(`^DELETE FROM user_sessions WHERE token_hash = \$1$`).
		WithArgs("hash-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^DELETE FROM user_sessions WHERE token_hash = \$1$`).
		WithArgs("hash-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.DeleteSessionByHash(context.Background(), "hash-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = repo.DeleteSessionByHash(context.Background(), "hash-1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestDeleteAllUserSessions(t *testing.T) {
	repo, mock := newSessionRepoWithMock(t)
	userID := uuid.New()

	mock.ExpectExec(`^DELETE FROM user_sessions WHERE user_id = \$1$`).
		WithArgs(userID.String()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteAllUserSessions(context.Background(), userID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestDeleteExpiredSessions(t *testing.T) {
	repo, mock := newSessionRepoWithMock(t)
	now := time.Now().UTC()

	mock.ExpectExec(`^DELETE FROM user_sessions WHERE expires_at < \$1$`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.DeleteExpiredSessions(context.Background(), now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestDeleteExpiredSessions_DBError(t *testing.T) {
	repo, mock := newSessionRepoWithMock(t)

	mock.ExpectExec(`^DELETE FROM user_sessions`).WillReturnError(errors.New("db err"))

	_, err := repo.DeleteExpiredSessions(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete expired sessions")
}

func TestListLiveUserSessions(t *testing.T) {
	repo, mock := newSessionRepoWithMock(t)
	now := time.Now().UTC()
	userID := uuid.New()
	newer, older := uuid.New(), uuid.New()

	rows := sqlmock.NewRows(sessionRowColumns).
		AddRow(newer.String(), userID.String(), "h1", nil, "10.0.0.1", now.Add(time.Hour), now, now.Add(-time.Hour)).
		AddRow(older.String(), userID.String(), "h2", nil, nil, now.Add(time.Hour), now.Add(-time.Minute), now.Add(-2*time.Hour))

	mock.ExpectQuery(`(?s)FROM user_sessions WHERE user_id = \$1 AND expires_at > \$2 ORDER BY last_activity_at DESC$`).
		WithArgs(userID.String(), now).
		WillReturnRows(rows)

	sessions, err := repo.ListLiveUserSessions(context.Background(), userID, now)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, newer, sessions[0].ID)
	assert.Equal(t, older, sessions[1].ID)
}

func TestListLiveUserSessions_Empty(t *testing.T) {
	repo, mock := newSessionRepoWithMock(t)

	mock.ExpectQuery(`FROM user_sessions`).WillReturnRows(sqlmock.NewRows(sessionRowColumns))

	sessions, err := repo.ListLiveUserSessions(context.Background(), uuid.New(), time.Now())
	require.NoError(t, err)
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)
}
