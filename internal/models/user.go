package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleTrainer Role = "trainer"
	RoleClient  Role = "client"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleTrainer, RoleClient, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID        uuid.UUID
	Email     string
	Role      Role
	IsActive  bool
	CreatedAt time.Time
}

// AccessTokenClaims is the decoded content of an access token. It is never persisted.
type AccessTokenClaims struct {
	Subject   uuid.UUID
	Email     string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
	TokenID   string
}
