package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/coachauth/internal/models"
)

const (
	defaultHTTPStatusThreshold = 300
	webhookTimeout             = 5 * time.Second
)

// SecurityNotifier receives best-effort security events. Implementations must not block.
type SecurityNotifier interface {
	NotifyIPChange(event models.IPChangeEvent)
}

type WebhookService struct {
	client     *http.Client
	log        *zap.SugaredLogger
	webhookURL string
}

func NewWebhookService(log *zap.SugaredLogger, webhookURL string) *WebhookService {
	return &WebhookService{
		client:     &http.Client{Timeout: webhookTimeout},
		log:        log,
		webhookURL: webhookURL,
	}
}

// NotifyIPChange posts the event in the background. The request outlives the
// caller's request context on purpose, so it runs under its own timeout.
func (s *WebhookService) NotifyIPChange(event models.IPChangeEvent) {
	if s.webhookURL == "" {
		return
	}
	go s.send(event)
}

func (s *WebhookService) send(event models.IPChangeEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Errorw("failed to marshal webhook payload", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		s.log.Errorw("failed to create webhook request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Errorw("failed to send webhook", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= defaultHTTPStatusThreshold {
		s.log.Warnw("webhook returned non-2xx status", "status", resp.StatusCode)
	}
}
