package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rryowa/coachauth/internal/models"
)

func TestWebhookService_PostsEvent(t *testing.T) {
	received := make(chan models.IPChangeEvent, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var event models.IPChangeEvent
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&event)) {
			received <- event
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewWebhookService(zap.NewNop().Sugar(), srv.URL)
	notifier.NotifyIPChange(models.IPChangeEvent{UserID: "u1", SessionID: "s1", OldIP: "10.0.0.1", NewIP: "10.0.0.2"})

	select {
	case event := <-received:
		assert.Equal(t, "u1", event.UserID)
		assert.Equal(t, "10.0.0.1", event.OldIP)
		assert.Equal(t, "10.0.0.2", event.NewIP)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "webhook was not delivered")
	}
}

func TestWebhookService_DisabledWithoutURL(t *testing.T) {
	notifier := NewWebhookService(zap.NewNop().Sugar(), "")
	assert.NotPanics(t, func() {
		notifier.NotifyIPChange(models.IPChangeEvent{UserID: "u1"})
	})
}
