package controller

import (
	_ "embed"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"
)

//go:embed openapi/openapi.yaml
var openapiDocument []byte

type ErrorResponse struct {
	Reason string `json:"reason"`
	Code   string `json:"code,omitempty"`
}

type IssueTokensParams struct {
	UserID string `form:"user_id" json:"user_id"`
}

// ServerInterface is implemented by Controller; one method per operation in openapi.yaml.
type ServerInterface interface {
	// (GET /api/ping)
	CheckServer(ctx echo.Context) error
	// (POST /api/auth/tokens)
	IssueTokens(ctx echo.Context, params IssueTokensParams) error
	// (POST /api/auth/refresh)
	RefreshTokens(ctx echo.Context) error
	// (POST /api/auth/logout)
	Logout(ctx echo.Context) error
	// (GET /api/auth/sessions)
	ListSessions(ctx echo.Context) error
}

// ServerInterfaceWrapper converts echo contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func (w *ServerInterfaceWrapper) CheckServer(ctx echo.Context) error {
	return w.Handler.CheckServer(ctx)
}

func (w *ServerInterfaceWrapper) IssueTokens(ctx echo.Context) error {
	var params IssueTokensParams

	err := runtime.BindQueryParameter("form", true, true, "user_id", ctx.QueryParams(), &params.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter user_id: %s", err))
	}

	return w.Handler.IssueTokens(ctx, params)
}

func (w *ServerInterfaceWrapper) RefreshTokens(ctx echo.Context) error {
	return w.Handler.RefreshTokens(ctx)
}

func (w *ServerInterfaceWrapper) Logout(ctx echo.Context) error {
	return w.Handler.Logout(ctx)
}

func (w *ServerInterfaceWrapper) ListSessions(ctx echo.Context) error {
	return w.Handler.ListSessions(ctx)
}

// EchoRouter is satisfied by both *echo.Echo and *echo.Group.
type EchoRouter interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// RouteGuards are attached per route: APIKey to service-to-service calls, Bearer to
// calls made on behalf of a signed-in user.
type RouteGuards struct {
	APIKey echo.MiddlewareFunc
	Bearer echo.MiddlewareFunc
}

// RegisterHandlers mounts the operations on router, whose prefix must be /api.
func RegisterHandlers(router EchoRouter, si ServerInterface, guards RouteGuards) {
	wrapper := ServerInterfaceWrapper{Handler: si}

	router.GET("/ping", wrapper.CheckServer)
	router.POST("/auth/tokens", wrapper.IssueTokens, guards.APIKey)
	router.POST("/auth/refresh", wrapper.RefreshTokens)
	router.POST("/auth/logout", wrapper.Logout, guards.Bearer)
	router.GET("/auth/sessions", wrapper.ListSessions, guards.Bearer)
}

// GetSwagger parses the embedded OpenAPI document.
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	swagger, err := loader.LoadFromData(openapiDocument)
	if err != nil {
		return nil, fmt.Errorf("error loading openapi document: %w", err)
	}
	if err := swagger.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	return swagger, nil
}
