// Package models defines server-side data models persisted in the database.
package models

import "time"

// RefreshToken is a persisted refresh-token row. The plaintext token is never
// stored; TokenHash is its SHA-256.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
	// DeviceFingerprintHash is empty when the token is not device-bound.
	DeviceFingerprintHash string
}

// ExpiredAt reports whether the token is past its expiry at now.
func (t *RefreshToken) ExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// DeviceBound reports whether a fingerprint hash was recorded at issuance.
func (t *RefreshToken) DeviceBound() bool {
	return t.DeviceFingerprintHash != ""
}
