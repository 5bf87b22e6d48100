package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rryowa/coachauth/internal/models"
	"github.com/rryowa/coachauth/internal/storage"
)

// AuthService composes token operations into the flows exposed over HTTP.
type AuthService struct {
	tokens *TokenService
	users  storage.UserRepository
	log    *zap.SugaredLogger
}

func NewAuthService(tokens *TokenService, users storage.UserRepository, log *zap.SugaredLogger) *AuthService {
	return &AuthService{tokens: tokens, users: users, log: log}
}

// IssueTokens starts a new session for an existing, active user.
func (s *AuthService) IssueTokens(ctx context.Context, userID uuid.UUID, meta models.SessionMetadata) (*models.TokenPair, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("%w: get user: %w", ErrPersistence, err)
	}
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}

	return s.pair(*user, func() (string, error) {
		return s.tokens.IssueRefreshToken(ctx, user.ID, meta)
	})
}

// Refresh exchanges a refresh token for a new pair. The presented token is consumed.
func (s *AuthService) Refresh(ctx context.Context, raw string, meta models.SessionMetadata) (*models.TokenPair, error) {
	ident, err := s.tokens.VerifyRefreshToken(ctx, raw)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, ident.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("%w: get user: %w", ErrPersistence, err)
	}

	return s.pair(*user, func() (string, error) {
		return s.tokens.RotateRefreshToken(ctx, raw, meta)
	})
}

// Logout revokes the given refresh token, or every session of the caller when everywhere
// is set, and blacklists the access token presented with the request. Failures are logged
// and do not stop the remaining steps.
func (s *AuthService) Logout(ctx context.Context, claims models.AccessTokenClaims, raw string, everywhere bool) int64 {
	var revoked int64

	switch {
	case everywhere:
		n, err := s.tokens.RevokeAllSessions(ctx, claims.Subject)
		if err != nil {
			s.log.Errorw("logout: revoke all sessions", "userID", claims.Subject, "error", err)
		}
		revoked = n
	case raw != "":
		if err := s.tokens.RevokeRefreshToken(ctx, raw); err != nil {
			s.log.Errorw("logout: revoke refresh token", "userID", claims.Subject, "error", err)
		} else {
			revoked = 1
		}
	}

	if err := s.tokens.BlacklistAccessToken(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		s.log.Errorw("logout: blacklist access token", "userID", claims.Subject, "error", err)
	}
	return revoked
}

func (s *AuthService) Sessions(ctx context.Context, userID uuid.UUID) ([]models.SessionView, error) {
	return s.tokens.ListActiveSessions(ctx, userID)
}

// pair mints the access token first so a user that cannot be given one never gets a new session.
func (s *AuthService) pair(user models.User, issueRefresh func() (string, error)) (*models.TokenPair, error) {
	access, claims, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := issueRefresh()
	if err != nil {
		return nil, err
	}
	refreshTTL, err := s.tokens.RefreshTTL()
	if err != nil {
		return nil, err
	}
	return &models.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  claims.ExpiresAt,
		RefreshExpiresIn: int64(refreshTTL.Seconds()),
	}, nil
}
