package controller

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rryowa/coachauth/internal/models"
	"github.com/rryowa/coachauth/internal/service"
	"github.com/rryowa/coachauth/internal/util"
)

type Controller struct {
	zapLogger   *zap.SugaredLogger
	authService *service.AuthService
}

func NewController(authService *service.AuthService, logger *zap.SugaredLogger) *Controller {
	return &Controller{
		zapLogger:   logger,
		authService: authService,
	}
}

var _ ServerInterface = (*Controller)(nil)

// (GET /api/ping).
func (c *Controller) CheckServer(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, "ok")
}

// (POST /api/auth/tokens).
func (c *Controller) IssueTokens(ctx echo.Context, params IssueTokensParams) error {
	userID, err := uuid.Parse(params.UserID)
	if err != nil {
		return util.NewResponseError(http.StatusBadRequest, "invalid_user_id", "user_id must be a UUID")
	}

	pair, err := c.authService.IssueTokens(ctx.Request().Context(), userID, sessionMetadata(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, pair)
}

// (POST /api/auth/refresh).
func (c *Controller) RefreshTokens(ctx echo.Context) error {
	var req models.TokenRefreshRequest
	if err := ctx.Bind(&req); err != nil || req.RefreshToken == "" {
		return util.NewResponseError(http.StatusBadRequest, "invalid_body", "refresh_token is required")
	}

	pair, err := c.authService.Refresh(ctx.Request().Context(), req.RefreshToken, sessionMetadata(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, pair)
}

// (POST /api/auth/logout).
func (c *Controller) Logout(ctx echo.Context) error {
	claims, ok := ctx.Get(models.MwClaimsKey).(models.AccessTokenClaims)
	if !ok {
		return util.NewResponseError(http.StatusUnauthorized, "unauthorized", "missing credentials")
	}

	var req models.LogoutRequest
	if ctx.Request().ContentLength != 0 {
		if err := ctx.Bind(&req); err != nil {
			return util.NewResponseError(http.StatusBadRequest, "invalid_body", "malformed logout request")
		}
	}

	revoked := c.authService.Logout(ctx.Request().Context(), claims, req.RefreshToken, req.All)
	return ctx.JSON(http.StatusOK, models.LogoutResponse{Revoked: revoked})
}

// (GET /api/auth/sessions).
func (c *Controller) ListSessions(ctx echo.Context) error {
	claims, ok := ctx.Get(models.MwClaimsKey).(models.AccessTokenClaims)
	if !ok {
		return util.NewResponseError(http.StatusUnauthorized, "unauthorized", "missing credentials")
	}

	sessions, err := c.authService.Sessions(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, models.SessionsResponse{Sessions: sessions})
}

func sessionMetadata(ctx echo.Context) models.SessionMetadata {
	meta := models.SessionMetadata{IPAddress: ctx.RealIP()}
	if ua := ctx.Request().UserAgent(); ua != "" {
		if raw, err := json.Marshal(map[string]string{"user_agent": ua}); err == nil {
			meta.DeviceInfo = raw
		}
	}
	return meta
}
