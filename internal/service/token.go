package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rryowa/coachauth/internal/models"
	"github.com/rryowa/coachauth/internal/storage"
	"github.com/rryowa/coachauth/internal/util"
)

const (
	blacklistKeyPrefix = "blacklisted_token:"
	blacklistValue     = "true"
)

// TokenService owns the refresh session lifecycle and the access token blacklist.
// It keeps no per-request state; every durable transition is a single store call.
type TokenService struct {
	codec    *AccessTokenCodec
	sessions storage.SessionRepository
	users    storage.UserRepository
	cache    storage.RevocationCache
	notifier SecurityNotifier
	clock    clock.Clock
	log      *zap.SugaredLogger

	refreshSecret  string
	refreshTTLSpec string
	production     bool

	once       sync.Once
	readyErr   error
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenService(
	cfg *util.TokenConfig,
	sessions storage.SessionRepository,
	users storage.UserRepository,
	cache storage.RevocationCache,
	notifier SecurityNotifier,
	clk clock.Clock,
	log *zap.SugaredLogger,
) *TokenService {
	if clk == nil {
		clk = clock.New()
	}
	return &TokenService{
		codec:          NewAccessTokenCodec(cfg, clk),
		sessions:       sessions,
		users:          users,
		cache:          cache,
		notifier:       notifier,
		clock:          clk,
		log:            log,
		refreshSecret:  cfg.RefreshSecret,
		refreshTTLSpec: cfg.RefreshTTL,
		production:     cfg.Production,
	}
}

// ensureReady validates configuration on first use and caches the outcome.
func (s *TokenService) ensureReady() error {
	s.once.Do(func() {
		s.readyErr = s.loadConfig()
		if s.readyErr != nil {
			s.log.Errorw("token service misconfigured", "error", s.readyErr)
		}
	})
	return s.readyErr
}

func (s *TokenService) loadConfig() error {
	if err := s.codec.ready(); err != nil {
		return err
	}
	if s.production {
		if err := checkSecret("JWT_REFRESH_SECRET", s.refreshSecret, true); err != nil {
			return err
		}
	}
	refreshTTL, err := util.ParseTTLDuration(s.refreshTTLSpec)
	if err != nil {
		return fmt.Errorf("JWT_REFRESH_EXPIRE: %w", err)
	}

	s.accessTTL = s.codec.ttl
	s.refreshTTL = refreshTTL
	if s.accessTTL > s.refreshTTL {
		s.log.Warnw("access token lifetime exceeds refresh token lifetime",
			"accessTTL", s.accessTTL, "refreshTTL", s.refreshTTL)
	}
	return nil
}

// RefreshTTL is the lifetime given to every new refresh session.
func (s *TokenService) RefreshTTL() (time.Duration, error) {
	if err := s.ensureReady(); err != nil {
		return 0, err
	}
	return s.refreshTTL, nil
}

func (s *TokenService) IssueAccessToken(user models.User) (token string, claims models.AccessTokenClaims, err error) {
	defer func() { observe("issue_access", err) }()
	if err = s.ensureReady(); err != nil {
		return "", models.AccessTokenClaims{}, err
	}
	return s.codec.Issue(user)
}

// VerifyAccessToken checks signature and expiry. Blacklist membership is checked separately
// with IsBlacklisted.
func (s *TokenService) VerifyAccessToken(token string) (models.AccessTokenClaims, error) {
	if err := s.ensureReady(); err != nil {
		return models.AccessTokenClaims{}, err
	}
	claims, err := s.codec.Verify(token)
	observe("verify_access", err)
	return claims, err
}

// IssueRefreshToken creates a new session and returns its raw secret. The secret is
// not recoverable afterwards.
func (s *TokenService) IssueRefreshToken(ctx context.Context, userID uuid.UUID, meta models.SessionMetadata) (string, error) {
	if err := s.ensureReady(); err != nil {
		return "", err
	}
	raw, err := s.issueRefreshToken(ctx, userID, meta)
	observe("issue_refresh", err)
	return raw, err
}

func (s *TokenService) issueRefreshToken(ctx context.Context, userID uuid.UUID, meta models.SessionMetadata) (string, error) {
	raw, err := generateRefreshSecret()
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}

	now := s.clock.Now()
	session := models.RefreshSession{
		ID:             uuid.New(),
		UserID:         userID,
		TokenHash:      HashRefreshToken(raw),
		DeviceInfo:     meta.DeviceInfo,
		IPAddress:      meta.IPAddress,
		ExpiresAt:      now.Add(s.refreshTTL),
		LastActivityAt: now,
		CreatedAt:      now,
	}

	id, err := s.sessions.CreateSession(ctx, session)
	if err != nil {
		return "", fmt.Errorf("%w: create session: %w", ErrPersistence, err)
	}
	s.log.Debugw("refresh session created", "sessionID", id, "userID", userID, "hash", shortHash(session.TokenHash))
	return raw, nil
}

// VerifyRefreshToken resolves a raw secret to its live session and marks the session active.
func (s *TokenService) VerifyRefreshToken(ctx context.Context, raw string) (ident models.SessionIdentity, err error) {
	defer func() { observe("verify_refresh", err) }()
	if err = s.ensureReady(); err != nil {
		return models.SessionIdentity{}, err
	}
	if raw == "" {
		return models.SessionIdentity{}, ErrInvalidOrExpiredToken
	}

	now := s.clock.Now()
	session, err := s.sessions.FindLiveSessionByHash(ctx, HashRefreshToken(raw), now)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return models.SessionIdentity{}, ErrInvalidOrExpiredToken
		}
		return models.SessionIdentity{}, fmt.Errorf("%w: find session: %w", ErrPersistence, err)
	}

	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.SessionIdentity{}, ErrInvalidOrExpiredToken
		}
		return models.SessionIdentity{}, fmt.Errorf("%w: get user: %w", ErrPersistence, err)
	}
	if !user.IsActive {
		return models.SessionIdentity{}, ErrAccountDeactivated
	}

	if err := s.sessions.TouchSession(ctx, session.ID, now); err != nil {
		return models.SessionIdentity{}, fmt.Errorf("%w: touch session: %w", ErrPersistence, err)
	}

	return models.SessionIdentity{UserID: session.UserID, SessionID: session.ID}, nil
}

// RotateRefreshToken consumes oldRaw and issues a replacement for the same user.
// Of several concurrent rotations of one secret only the one whose delete removes
// the row succeeds; the others get ErrInvalidToken.
func (s *TokenService) RotateRefreshToken(ctx context.Context, oldRaw string, meta models.SessionMetadata) (newRaw string, err error) {
	defer func() { observe("rotate_refresh", err) }()
	if err = s.ensureReady(); err != nil {
		return "", err
	}
	if oldRaw == "" {
		return "", ErrInvalidToken
	}

	hash := HashRefreshToken(oldRaw)
	old, err := s.sessions.FindLiveSessionByHash(ctx, hash, s.clock.Now())
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("%w: find session: %w", ErrPersistence, err)
	}

	deleted, err := s.sessions.DeleteSessionByHash(ctx, hash)
	if err != nil {
		return "", fmt.Errorf("%w: delete session: %w", ErrPersistence, err)
	}
	if deleted == 0 {
		s.log.Warnw("refresh token already consumed", "sessionID", old.ID, "userID", old.UserID)
		return "", ErrInvalidToken
	}

	newRaw, err = s.issueRefreshToken(ctx, old.UserID, meta)
	if err != nil {
		return "", err
	}

	if old.IPAddress != "" && meta.IPAddress != "" && old.IPAddress != meta.IPAddress && s.notifier != nil {
		s.log.Infow("refresh from new address", "userID", old.UserID, "oldIP", old.IPAddress, "newIP", meta.IPAddress)
		s.notifier.NotifyIPChange(models.IPChangeEvent{
			UserID:    old.UserID.String(),
			SessionID: old.ID.String(),
			OldIP:     old.IPAddress,
			NewIP:     meta.IPAddress,
			At:        s.clock.Now().UTC(),
		})
	}
	return newRaw, nil
}

// RevokeRefreshToken deletes the session behind raw. Revoking an unknown or already
// revoked secret is not an error.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, raw string) (err error) {
	defer func() { observe("revoke_refresh", err) }()
	if err = s.ensureReady(); err != nil {
		return err
	}
	if raw == "" {
		return nil
	}

	hash := HashRefreshToken(raw)
	n, err := s.sessions.DeleteSessionByHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("%w: delete session: %w", ErrPersistence, err)
	}
	s.log.Debugw("refresh session revoked", "hash", shortHash(hash), "deleted", n)
	return nil
}

func (s *TokenService) RevokeAllSessions(ctx context.Context, userID uuid.UUID) (n int64, err error) {
	defer func() { observe("revoke_all", err) }()
	if err = s.ensureReady(); err != nil {
		return 0, err
	}

	n, err = s.sessions.DeleteAllUserSessions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: delete user sessions: %w", ErrPersistence, err)
	}
	s.log.Infow("all sessions revoked", "userID", userID, "count", n)
	return n, nil
}

func (s *TokenService) ListActiveSessions(ctx context.Context, userID uuid.UUID) ([]models.SessionView, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}

	sessions, err := s.sessions.ListLiveUserSessions(ctx, userID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions: %w", ErrPersistence, err)
	}

	views := make([]models.SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, session.View())
	}
	return views, nil
}

// BlacklistAccessToken shadows tokenID until expiresAt. A zero expiresAt shadows it for a
// full access token lifetime; a token that has already expired needs no entry.
func (s *TokenService) BlacklistAccessToken(ctx context.Context, tokenID string, expiresAt time.Time) (err error) {
	defer func() { observe("blacklist", err) }()
	if err = s.ensureReady(); err != nil {
		return err
	}
	if tokenID == "" {
		return ErrTokenMalformed
	}

	ttl := s.accessTTL
	if !expiresAt.IsZero() {
		ttl = expiresAt.Sub(s.clock.Now())
	}
	if ttl <= 0 {
		return nil
	}

	if err := s.cache.SetWithTTL(ctx, blacklistKey(tokenID), blacklistValue, ttl); err != nil {
		return fmt.Errorf("%w: blacklist token: %w", ErrCache, err)
	}
	return nil
}

func (s *TokenService) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	if err := s.ensureReady(); err != nil {
		return false, err
	}

	value, found, err := s.cache.Get(ctx, blacklistKey(tokenID))
	if err != nil {
		return false, fmt.Errorf("%w: check blacklist: %w", ErrCache, err)
	}
	return found && value == blacklistValue, nil
}

// SweepExpiredSessions deletes sessions whose expiry is already in the past.
func (s *TokenService) SweepExpiredSessions(ctx context.Context) (n int64, err error) {
	defer func() { observe("sweep", err) }()
	if err = s.ensureReady(); err != nil {
		return 0, err
	}

	n, err = s.sessions.DeleteExpiredSessions(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("%w: delete expired sessions: %w", ErrPersistence, err)
	}
	SessionsSweptTotal.Add(float64(n))
	return n, nil
}

func blacklistKey(tokenID string) string {
	return blacklistKeyPrefix + tokenID
}
