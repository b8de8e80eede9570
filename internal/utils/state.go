package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidState is returned for a tampered, expired or malformed OAuth state.
var ErrInvalidState = errors.New("invalid oauth state")

// stateClaims is what travels through the provider redirect.
type stateClaims struct {
	Mode string `json:"mode"`
	jwt.RegisteredClaims
}

// StateSigner issues and checks the HS256-signed `state` parameter of the
// Google redirect.  It only protects the redirect round trip; no session
// is derived from it.
type StateSigner struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func NewStateSigner(secret string, ttl time.Duration) *StateSigner {
	return &StateSigner{Secret: []byte(secret), TTL: ttl, Now: time.Now}
}

// Sign returns a state token carrying mode.
func (s *StateSigner) Sign(mode string) (string, error) {
	now := s.Now().UTC()
	claims := stateClaims{
		Mode: mode,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.TTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry and returns the carried mode.
func (s *StateSigner) Verify(raw string) (string, error) {
	var claims stateClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.Now))
	if err != nil || !tok.Valid {
		return "", ErrInvalidState
	}
	return claims.Mode, nil
}
