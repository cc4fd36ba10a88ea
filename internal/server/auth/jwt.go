// Package auth signs and parses RS256 access tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the access-token claims: iss, sub (username), aud, jti, iat,
// exp and the user id under "uid".
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

type SignerConfig struct {
	Issuer   string
	Audience string
	TTL      time.Duration
}

type Signer struct {
	keys KeyProvider
	cfg  SignerConfig
	now  func() time.Time
}

type SignerOption func(*Signer)

// WithSignerClock overrides the time source used for iat/exp and validation.
func WithSignerClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSigner(keys KeyProvider, cfg SignerConfig, opts ...SignerOption) *Signer {
	s := &Signer{keys: keys, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sign mints an access token for the user and returns it with its expiry.
func (s *Signer) Sign(username, userID string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.TTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   username,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: userID,
	}

	kid, key := s.keys.SigningKey()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}

	return signed, expiresAt, nil
}

// Parse validates signature, issuer, audience and expiry. Failures are
// authentication errors; an expired token carries ReasonExpired.
func (s *Signer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		return s.keys.VerificationKey(kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.NewAuthError(common.ReasonExpired)
		}
		return nil, common.NewAuthError(common.ReasonInvalidToken)
	}

	if !token.Valid {
		return nil, common.NewAuthError(common.ReasonInvalidToken)
	}

	return claims, nil
}
