package service

import (
	"errors"

	"github.com/rryowa/coachauth/internal/util"
)

var (
	ErrInvalidConfig = util.ErrInvalidConfig

	ErrTokenMalformed        = errors.New("token is malformed")
	ErrTokenInvalidSignature = errors.New("token signature is invalid")
	ErrTokenExpired          = errors.New("token expired")

	ErrInvalidOrExpiredToken = errors.New("invalid or expired refresh token")
	ErrInvalidToken          = errors.New("invalid refresh token")
	ErrAccountDeactivated    = errors.New("account deactivated")
	ErrUnknownUser           = errors.New("unknown user")

	ErrPersistence = errors.New("persistence failure")
	ErrCache       = errors.New("cache failure")
)
