package service

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rryowa/coachauth/internal/models"
	"github.com/rryowa/coachauth/internal/util"
)

const placeholderSecretMarker = "dev-"

type jwtClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// AccessTokenCodec signs and verifies HS512 access tokens. The secret and TTL are taken
// as configured and checked the first time the codec is used.
type AccessTokenCodec struct {
	secret     string
	ttlSpec    string
	production bool
	clock      clock.Clock

	once sync.Once
	key  []byte
	ttl  time.Duration
	err  error
}

func NewAccessTokenCodec(cfg *util.TokenConfig, clk clock.Clock) *AccessTokenCodec {
	if clk == nil {
		clk = clock.New()
	}
	return &AccessTokenCodec{
		secret:     cfg.AccessSecret,
		ttlSpec:    cfg.AccessTTL,
		production: cfg.Production,
		clock:      clk,
	}
}

func (c *AccessTokenCodec) ready() error {
	c.once.Do(func() {
		if err := checkSecret("JWT_ACCESS_SECRET", c.secret, c.production); err != nil {
			c.err = err
			return
		}
		ttl, err := util.ParseTTLDuration(c.ttlSpec)
		if err != nil {
			c.err = fmt.Errorf("JWT_ACCESS_EXPIRE: %w", err)
			return
		}
		c.key = []byte(c.secret)
		c.ttl = ttl
	})
	return c.err
}

// TTL is the configured access token lifetime.
func (c *AccessTokenCodec) TTL() (time.Duration, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	return c.ttl, nil
}

func (c *AccessTokenCodec) Issue(user models.User) (string, models.AccessTokenClaims, error) {
	if err := c.ready(); err != nil {
		return "", models.AccessTokenClaims{}, err
	}
	if !user.Role.Valid() {
		return "", models.AccessTokenClaims{}, fmt.Errorf("unknown role %q", user.Role)
	}

	now := c.clock.Now()
	registered := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   user.ID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, &jwtClaims{
		Email:            user.Email,
		Role:             string(user.Role),
		RegisteredClaims: registered,
	})

	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", models.AccessTokenClaims{}, fmt.Errorf("signed string: %w", err)
	}

	return signed, models.AccessTokenClaims{
		Subject:   user.ID,
		Email:     user.Email,
		Role:      user.Role,
		IssuedAt:  registered.IssuedAt.Time,
		ExpiresAt: registered.ExpiresAt.Time,
		TokenID:   registered.ID,
	}, nil
}

// Verify checks signature and expiry only. A valid signature on an expired token always
// yields ErrTokenExpired; any structural problem yields ErrTokenMalformed.
func (c *AccessTokenCodec) Verify(signed string) (models.AccessTokenClaims, error) {
	if err := c.ready(); err != nil {
		return models.AccessTokenClaims{}, err
	}

	parsed, err := jwt.ParseWithClaims(
		signed,
		&jwtClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS512.Alg() {
				return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
			}
			return c.key, nil
		},
		jwt.WithTimeFunc(c.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return models.AccessTokenClaims{}, ErrTokenInvalidSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return models.AccessTokenClaims{}, ErrTokenExpired
		default:
			return models.AccessTokenClaims{}, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
		}
	}

	raw, ok := parsed.Claims.(*jwtClaims)
	if !ok || !parsed.Valid {
		return models.AccessTokenClaims{}, ErrTokenMalformed
	}
	return c.toClaims(raw)
}

func (c *AccessTokenCodec) toClaims(raw *jwtClaims) (models.AccessTokenClaims, error) {
	subject, err := uuid.Parse(raw.Subject)
	if err != nil {
		return models.AccessTokenClaims{}, fmt.Errorf("%w: sub: %w", ErrTokenMalformed, err)
	}
	if raw.ID == "" {
		return models.AccessTokenClaims{}, fmt.Errorf("%w: missing jti", ErrTokenMalformed)
	}
	role := models.Role(raw.Role)
	if !role.Valid() {
		return models.AccessTokenClaims{}, fmt.Errorf("%w: role %q", ErrTokenMalformed, raw.Role)
	}
	if raw.ExpiresAt == nil {
		return models.AccessTokenClaims{}, fmt.Errorf("%w: missing exp", ErrTokenMalformed)
	}
	if !c.clock.Now().Before(raw.ExpiresAt.Time) {
		return models.AccessTokenClaims{}, ErrTokenExpired
	}

	claims := models.AccessTokenClaims{
		Subject:   subject,
		Email:     raw.Email,
		Role:      role,
		ExpiresAt: raw.ExpiresAt.Time,
		TokenID:   raw.ID,
	}
	if raw.IssuedAt != nil {
		claims.IssuedAt = raw.IssuedAt.Time
	}
	return claims, nil
}

// checkSecret rejects an empty secret always and a placeholder secret in production.
func checkSecret(name, secret string, production bool) error {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidConfig, name)
	}
	if production && strings.Contains(trimmed, placeholderSecretMarker) {
		return fmt.Errorf("%w: %s uses a development placeholder", ErrInvalidConfig, name)
	}
	return nil
}
