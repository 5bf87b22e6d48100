package models

type APIKey struct {
	Key      string
	ClientID string
}
