package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RefreshSession is the persisted row backing one live refresh token.
// TokenHash is the digest of the raw secret; the secret itself is never stored.
type RefreshSession struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	TokenHash      string
	DeviceInfo     json.RawMessage
	IPAddress      string
	ExpiresAt      time.Time
	LastActivityAt time.Time
	CreatedAt      time.Time
}

// SessionMetadata describes the device a refresh token is issued to.
type SessionMetadata struct {
	DeviceInfo json.RawMessage
	IPAddress  string
}

// SessionIdentity is what a verified refresh token resolves to.
type SessionIdentity struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
}

type SessionView struct {
	ID             uuid.UUID       `json:"id"`
	DeviceInfo     json.RawMessage `json:"device_info,omitempty"`
	IPAddress      string          `json:"ip_address,omitempty"`
	LastActivityAt time.Time       `json:"last_activity_at"`
	CreatedAt      time.Time       `json:"created_at"`
	ExpiresAt      time.Time       `json:"expires_at"`
}

func (s RefreshSession) View() SessionView {
	return SessionView{
		ID:             s.ID,
		DeviceInfo:     s.DeviceInfo,
		IPAddress:      s.IPAddress,
		LastActivityAt: s.LastActivityAt,
		CreatedAt:      s.CreatedAt,
		ExpiresAt:      s.ExpiresAt,
	}
}
