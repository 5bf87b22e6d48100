package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	middleware "github.com/oapi-codegen/echo-middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rryowa/coachauth/internal/controller"
	"github.com/rryowa/coachauth/internal/storage"
	"github.com/rryowa/coachauth/internal/util"
)

const (
	shutdownTimeout = 5 * time.Second
)

type API struct {
	server           *echo.Echo
	controller       *controller.Controller
	tokens           AccessTokenChecker
	apiKeyRepository storage.APIKeyRepository
	log              *zap.SugaredLogger
	gracefulTimeout  time.Duration
}

func NewAPI(
	c *controller.Controller,
	tokens AccessTokenChecker,
	apiKeyRepository storage.APIKeyRepository,
	sc *util.ServerConfig,
	l *zap.SugaredLogger,
) *API {
	e := echo.New()
	e.HideBanner = true

	e.Server.Addr = sc.ServerAddr
	e.Server.WriteTimeout = sc.WriteTimeout
	e.Server.ReadTimeout = sc.ReadTimeout
	e.Server.IdleTimeout = sc.IdleTimeout
	e.HTTPErrorHandler = ErrorHandler(l)
	// session IPs come from the peer address; forwarding headers are client controlled
	e.IPExtractor = echo.ExtractIPDirect()

	return &API{
		server:           e,
		controller:       c,
		tokens:           tokens,
		apiKeyRepository: apiKeyRepository,
		log:              l,
		gracefulTimeout:  sc.GracefulTimeout,
	}
}

// Setup registers middleware and routes. Requests under /api are validated against
// the embedded OpenAPI document before they reach a handler.
func (a *API) Setup() error {
	swagger, err := controller.GetSwagger()
	if err != nil {
		return fmt.Errorf("load OpenAPI specification: %w", err)
	}
	swagger.Servers = nil

	a.server.Use(echomiddleware.Recover())
	a.server.Use(echomiddleware.RequestLoggerWithConfig(GetLoggerMiddlewareConfig(a.log)))

	a.server.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	g := a.server.Group("/api")
	g.Use(middleware.OapiRequestValidator(swagger))
	controller.RegisterHandlers(g, a.controller, controller.RouteGuards{
		APIKey: APIKeyAuthMiddleware(a.apiKeyRepository),
		Bearer: BearerAuthMiddleware(a.tokens),
	})
	return nil
}

// Handler exposes the router for in-process use.
func (a *API) Handler() http.Handler {
	return a.server
}

func (a *API) Run(ctxBackground context.Context) error {
	ctx, stop := signal.NotifyContext(ctxBackground, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Setup(); err != nil {
		return err
	}
	return a.ListenGracefulShutdown(ctx)
}

func (a *API) ListenGracefulShutdown(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		err := a.server.Start(a.server.Server.Addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	a.log.Infof("Listening on: %s", a.server.Server.Addr)

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("HTTP server ListenAndServe: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	a.log.Info("Shutting down server...")

	timeout := a.gracefulTimeout
	if timeout <= 0 {
		timeout = shutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.Errorf("shutdown: %v", err)
		return err
	}
	a.log.Info("server shutdown completed")
	return nil
}
