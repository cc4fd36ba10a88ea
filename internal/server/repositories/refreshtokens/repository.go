// Package refreshtokens declares the server-side repository contract for
// refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
)

// Repository defines operations for issuing, looking up and revoking refresh
// tokens. Tokens are addressed by the hash of their plaintext value.
type Repository interface {
	// Create inserts a new token row and fills in token.ID.
	Create(ctx context.Context, token *models.RefreshToken) error

	// FindByHash returns the row for hash or common.ErrorNotFound.
	FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error)

	// FindByHashForUpdate is FindByHash with a row lock held until the
	// surrounding transaction ends. Only meaningful on a transactional handle.
	FindByHashForUpdate(ctx context.Context, hash string) (*models.RefreshToken, error)

	// Revoke marks an active token revoked. It reports whether a row changed;
	// revoking an unknown or already-revoked token is not an error.
	Revoke(ctx context.Context, hash string) (bool, error)

	// RevokeAllForUser revokes every active token of userID in one statement
	// and returns the number of rows changed.
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)

	// ListActive returns up to limit non-revoked tokens expiring after now,
	// newest first.
	ListActive(ctx context.Context, now time.Time, limit int) ([]*models.RefreshToken, error)
}
