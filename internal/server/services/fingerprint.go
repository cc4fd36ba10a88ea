package services

import (
	"github.com/dmitrijs2005/sessionkeeper/internal/cryptox"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
)

// DeviceFingerprintValidator binds refresh tokens to a client device by
// comparing fingerprint hashes.
type DeviceFingerprintValidator struct{}

func NewDeviceFingerprintValidator() *DeviceFingerprintValidator {
	return &DeviceFingerprintValidator{}
}

// Hash reduces fp to the stored form. An empty fingerprint hashes to "".
func (DeviceFingerprintValidator) Hash(fp models.DeviceFingerprint) (string, error) {
	return cryptox.HashFingerprint(fp)
}

// Matches reports whether presented hashes to storedHash. A token without a
// stored hash is not device bound and always matches.
func (d DeviceFingerprintValidator) Matches(presented models.DeviceFingerprint, storedHash string) bool {
	if storedHash == "" {
		return true
	}
	h, err := d.Hash(presented)
	if err != nil || h == "" {
		return false
	}
	return cryptox.EqualHashes(h, storedHash)
}
