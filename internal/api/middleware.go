package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/rryowa/coachauth/internal/models"
	"github.com/rryowa/coachauth/internal/storage"
	"github.com/rryowa/coachauth/internal/util"
)

const bearerPrefix = "Bearer "

// AccessTokenChecker is the part of the token service the bearer guard needs.
type AccessTokenChecker interface {
	VerifyAccessToken(token string) (models.AccessTokenClaims, error)
	IsBlacklisted(ctx context.Context, tokenID string) (bool, error)
}

// APIKeyAuthMiddleware checks the X-API-Key header against the key ring.
func APIKeyAuthMiddleware(apiKeyRepo storage.APIKeyRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			apiKey := c.Request().Header.Get(models.MwAPIKeyHeader)
			if apiKey == "" {
				return util.NewResponseError(http.StatusUnauthorized, "missing_api_key", "API key is missing")
			}

			ok, err := apiKeyRepo.IsValidAPIKey(c.Request().Context(), apiKey)
			if err != nil {
				return util.NewResponseError(http.StatusServiceUnavailable, "api_key_unavailable", "Error validating API key")
			}
			if !ok {
				return util.NewResponseError(http.StatusUnauthorized, "invalid_api_key", "Invalid API key")
			}

			return next(c)
		}
	}
}

// BearerAuthMiddleware verifies the access token and rejects blacklisted ones.
// When the blacklist cannot be consulted the request is refused.
func BearerAuthMiddleware(tokens AccessTokenChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, bearerPrefix) {
				return util.NewResponseError(http.StatusUnauthorized, "missing_token", "bearer token is missing")
			}

			claims, err := tokens.VerifyAccessToken(strings.TrimSpace(header[len(bearerPrefix):]))
			if err != nil {
				return err
			}

			blacklisted, err := tokens.IsBlacklisted(c.Request().Context(), claims.TokenID)
			if err != nil {
				return err
			}
			if blacklisted {
				return util.NewResponseError(http.StatusUnauthorized, "token_revoked", "token revoked")
			}

			c.Set(models.MwClaimsKey, claims)
			return next(c)
		}
	}
}

func GetLoggerMiddlewareConfig(log *zap.SugaredLogger) echomiddleware.RequestLoggerConfig {
	return echomiddleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogError:  true,

		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
			}
			if v.Error != nil {
				fields = append(fields, "error", v.Error)
				log.Errorw("Request", fields...)
			} else {
				log.Infow("Request", fields...)
			}
			return nil
		},
	}
}
