package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/cryptox"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_Issue(t *testing.T) {
	f := newFixture()
	now := f.clock.Now()

	got, err := f.issuer.Issue(context.Background(), "alice", "u-1", nil)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got.RefreshToken, common.RefreshTokenPrefix))
	assert.NotEmpty(t, got.AccessToken)
	assert.Equal(t, now.Add(30*time.Minute), got.AccessExpiresAt)
	assert.Equal(t, now.Add(7*24*time.Hour), got.RefreshExpiresAt)

	hash := cryptox.HashToken(got.RefreshToken)
	stored, ok := f.store.token(hash)
	require.True(t, ok, "hash is persisted")
	assert.Equal(t, "u-1", stored.UserID)
	assert.Equal(t, now, stored.IssuedAt)
	assert.False(t, stored.Revoked)
	assert.Empty(t, stored.DeviceFingerprintHash)
	assert.NotEmpty(t, stored.ID)

	for _, tok := range f.store.snapshot() {
		assert.NotEqual(t, got.RefreshToken, tok.TokenHash, "plaintext never stored")
	}

	cached, ok := f.cache.Get(hash)
	require.True(t, ok)
	assert.Equal(t, stored.ID, cached.ID)
}

func TestTokenIssuer_UniqueTokens(t *testing.T) {
	f := newFixture()

	a, err := f.issuer.Issue(context.Background(), "alice", "u-1", nil)
	require.NoError(t, err)
	b, err := f.issuer.Issue(context.Background(), "alice", "u-1", nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.RefreshToken, b.RefreshToken)
	assert.NotEqual(t, a.AccessToken, b.AccessToken)
}

func TestTokenIssuer_BindsFingerprint(t *testing.T) {
	f := newFixture()
	fp := models.DeviceFingerprint{"userAgent": "Firefox"}

	got, err := f.issuer.Issue(context.Background(), "alice", "u-1", fp)
	require.NoError(t, err)

	want, err := cryptox.HashFingerprint(fp)
	require.NoError(t, err)
	assert.Equal(t, want, got.Record.DeviceFingerprintHash)
}

func TestTokenIssuer_StorageFailureReturnsNothing(t *testing.T) {
	f := newFixture()
	f.store.createErr = errors.New("disk full")

	got, err := f.issuer.Issue(context.Background(), "alice", "u-1", nil)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, common.ErrStorage)
	assert.Equal(t, 0, f.cache.Len())
}

func TestTokenIssuer_SignerFailure(t *testing.T) {
	f := newFixture()
	issuer := NewTokenIssuer(fakeSigner{err: errors.New("hsm offline")}, f.tx, f.repos, f.cache,
		time.Hour, logging.NewNopLogger(), WithClock(f.clock.Now))

	_, err := issuer.Issue(context.Background(), "alice", "u-1", nil)
	assert.ErrorIs(t, err, common.ErrInternal)
	assert.Empty(t, f.store.snapshot())
}
