package models

import "time"

//nolint:gosec //file not handles sensitive data
const (
	MwAPIKeyHeader = "X-API-Key"
	MwClaimsKey    = "claims"
)

type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresIn int64     `json:"refresh_expires_in"`
}

type TokenRefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
	All          bool   `json:"all,omitempty"`
}

type LogoutResponse struct {
	Revoked int64 `json:"revoked"`
}

type SessionsResponse struct {
	Sessions []SessionView `json:"sessions"`
}

// IPChangeEvent is sent to the security webhook when a session is refreshed from a new address.
type IPChangeEvent struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	OldIP     string    `json:"old_ip"`
	NewIP     string    `json:"new_ip"`
	At        time.Time `json:"at"`
}
