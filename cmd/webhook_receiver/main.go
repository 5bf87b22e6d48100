// Command webhook_receiver prints security events posted by the auth service.
// It is a local development aid.
package main

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rryowa/coachauth/internal/models"
	"github.com/rryowa/coachauth/internal/util"
)

const listenAddr = ":9090"

func main() {
	logger := util.NewZapLogger(util.GetLogLevel())

	e := echo.New()
	e.HideBanner = true
	e.POST("/", func(c echo.Context) error {
		var event models.IPChangeEvent
		if err := c.Bind(&event); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Error parsing JSON")
		}

		logger.Infow("Received webhook",
			"userID", event.UserID,
			"sessionID", event.SessionID,
			"oldIP", event.OldIP,
			"newIP", event.NewIP,
			"at", event.At,
		)
		return c.String(http.StatusOK, "Webhook received!")
	})

	logger.Infof("Webhook receiver listening on %s", listenAddr)
	if err := e.Start(listenAddr); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
