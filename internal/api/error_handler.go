package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rryowa/coachauth/internal/controller"
	"github.com/rryowa/coachauth/internal/service"
	"github.com/rryowa/coachauth/internal/util"
)

type errorMapping struct {
	target error
	status int
	code   string
}

//nolint:gochecknoglobals // lookup table
var serviceErrors = []errorMapping{
	{service.ErrTokenExpired, http.StatusUnauthorized, "token_expired"},
	{service.ErrTokenInvalidSignature, http.StatusUnauthorized, "token_invalid"},
	{service.ErrTokenMalformed, http.StatusUnauthorized, "token_malformed"},
	{service.ErrInvalidOrExpiredToken, http.StatusUnauthorized, "refresh_token_invalid"},
	{service.ErrInvalidToken, http.StatusUnauthorized, "refresh_token_invalid"},
	{service.ErrAccountDeactivated, http.StatusForbidden, "account_deactivated"},
	{service.ErrUnknownUser, http.StatusNotFound, "unknown_user"},
	{service.ErrCache, http.StatusServiceUnavailable, "cache_unavailable"},
	{service.ErrPersistence, http.StatusServiceUnavailable, "store_unavailable"},
	{service.ErrInvalidConfig, http.StatusInternalServerError, "misconfigured"},
}

func ErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := resolve(err)
		if status >= http.StatusInternalServerError {
			log.Errorw("HTTP error", "error", err, "uri", c.Request().RequestURI)
		}
		if err := c.JSON(status, body); err != nil {
			log.Errorw("failed to write json response", "error", err)
		}
	}
}

func resolve(err error) (int, controller.ErrorResponse) {
	var respErr util.ResponseError
	if errors.As(err, &respErr) {
		return respErr.Status, controller.ErrorResponse{Reason: respErr.Msg, Code: respErr.Code}
	}

	for _, m := range serviceErrors {
		if errors.Is(err, m.target) {
			reason := m.target.Error()
			if m.status >= http.StatusInternalServerError {
				reason = http.StatusText(m.status)
			}
			return m.status, controller.ErrorResponse{Reason: reason, Code: m.code}
		}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, controller.ErrorResponse{Reason: fmt.Sprint(he.Message)}
	}

	return http.StatusInternalServerError, controller.ErrorResponse{Reason: "internal server error"}
}
