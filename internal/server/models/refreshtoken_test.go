package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefreshToken_ExpiredAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tok := &RefreshToken{ExpiresAt: now}

	assert.False(t, tok.ExpiredAt(now), "expiry instant itself is still valid")
	assert.True(t, tok.ExpiredAt(now.Add(time.Nanosecond)))
	assert.False(t, tok.ExpiredAt(now.Add(-time.Minute)))
}

func TestRefreshToken_DeviceBound(t *testing.T) {
	assert.False(t, (&RefreshToken{}).DeviceBound())
	assert.True(t, (&RefreshToken{DeviceFingerprintHash: "abc"}).DeviceBound())
}

func TestDeviceFingerprint_Empty(t *testing.T) {
	assert.True(t, DeviceFingerprint(nil).Empty())
	assert.False(t, DeviceFingerprint{"userAgent": "x"}.Empty())
}
