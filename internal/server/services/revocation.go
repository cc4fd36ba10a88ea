package services

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/cryptox"
	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/tokencache"
)

// RevocationManager revokes tokens in the store and drops them from the
// cache. The cache is purged even when the store call fails, since a miss is
// always safe.
type RevocationManager struct {
	tx    dbx.Transactor
	repos repomanager.RepositoryManager
	cache *tokencache.Cache
	log   logging.Logger
}

func NewRevocationManager(tx dbx.Transactor, repos repomanager.RepositoryManager, cache *tokencache.Cache, log logging.Logger) *RevocationManager {
	return &RevocationManager{
		tx:    tx,
		repos: repos,
		cache: cache,
		log:   log.With("module", "revocation"),
	}
}

// RevokeOne revokes the token with the given hash. It reports whether an
// active token was found.
func (m *RevocationManager) RevokeOne(ctx context.Context, hash string) (bool, error) {
	defer m.cache.Invalidate(tokencache.InvalidateRevoke, tokencache.Target{Hash: hash})

	changed, err := m.repos.RefreshTokens(m.tx.Conn()).Revoke(ctx, hash)
	if err != nil {
		return false, common.NewStorageError(err)
	}
	return changed, nil
}

// RevokePresented hashes a plaintext refresh token and revokes it.
func (m *RevocationManager) RevokePresented(ctx context.Context, presented string) (bool, error) {
	if strings.TrimSpace(presented) == "" {
		return false, common.NewValidationError("refresh token is required")
	}
	return m.RevokeOne(ctx, cryptox.HashToken(presented))
}

// RevokeAllForUser revokes every active token of the user in one statement.
func (m *RevocationManager) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, common.NewValidationError("user id is required")
	}
	defer m.cache.Invalidate(tokencache.InvalidateRevoke, tokencache.Target{UserID: userID})

	n, err := m.repos.RefreshTokens(m.tx.Conn()).RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, common.NewStorageError(err)
	}
	m.log.Info(ctx, "all tokens revoked", "user_id", userID, "count", n)
	return n, nil
}
