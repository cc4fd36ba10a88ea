package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/cryptox"
	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/tokencache"
)

// RefreshRotator exchanges a refresh token for a new pair. A token moves from
// active to revoked exactly once; concurrent rotations of the same token are
// serialized by a row lock so only one of them wins.
type RefreshRotator struct {
	tx          dbx.Transactor
	repos       repomanager.RepositoryManager
	cache       *tokencache.Cache
	issuer      *TokenIssuer
	fingerprint *DeviceFingerprintValidator
	now         func() time.Time
	log         logging.Logger
}

func NewRefreshRotator(tx dbx.Transactor, repos repomanager.RepositoryManager, cache *tokencache.Cache,
	issuer *TokenIssuer, fingerprint *DeviceFingerprintValidator, log logging.Logger, opts ...Option) *RefreshRotator {
	s := applyOptions(opts)
	return &RefreshRotator{
		tx:          tx,
		repos:       repos,
		cache:       cache,
		issuer:      issuer,
		fingerprint: fingerprint,
		now:         s.now,
		log:         log.With("module", "refresh_rotator"),
	}
}

// Rotate validates presented and, on success, revokes it and issues its
// replacement in one transaction. The cache is only updated after commit.
// On a storage failure the presented token stays valid.
func (r *RefreshRotator) Rotate(ctx context.Context, presented string, fp models.DeviceFingerprint) (*IssuedTokens, error) {
	if strings.TrimSpace(presented) == "" {
		return nil, common.NewValidationError("refresh token is required")
	}
	hash := cryptox.HashToken(presented)

	current, err := r.lookup(ctx, hash)
	if err != nil {
		return nil, err
	}
	if err := r.check(current); err != nil {
		return nil, err
	}
	if !r.fingerprint.Matches(fp, current.DeviceFingerprintHash) {
		return nil, common.NewAuthError(common.ReasonFingerprintMismatch)
	}

	newFPHash := current.DeviceFingerprintHash
	if !current.DeviceBound() {
		if newFPHash, err = r.fingerprint.Hash(fp); err != nil {
			return nil, common.NewValidationError("device fingerprint is not encodable")
		}
	}

	var issued *IssuedTokens
	err = r.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		tokens := r.repos.RefreshTokens(tx)

		locked, err := tokens.FindByHashForUpdate(ctx, hash)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.NewAuthError(common.ReasonNotFound)
			}
			return common.NewStorageError(err)
		}
		if err := r.check(*locked); err != nil {
			return err
		}

		user, err := r.repos.Users(tx).FindActiveByID(ctx, locked.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.NewAuthError(common.ReasonUserInactive)
			}
			return common.NewStorageError(err)
		}

		if _, err := tokens.Revoke(ctx, hash); err != nil {
			return common.NewStorageError(err)
		}

		issued, err = r.issuer.issue(ctx, tx, user.UserName, user.ID, newFPHash)
		return err
	})
	if err != nil {
		if common.KindOf(err) == common.KindAuthentication {
			// Another rotation or a revocation elsewhere got there first.
			r.cache.Remove(hash)
		} else {
			r.log.Error(ctx, "rotation rolled back", "user_id", current.UserID, "error", err)
		}
		return nil, err
	}

	r.cache.Invalidate(tokencache.InvalidateRefresh, tokencache.Target{Hash: hash})
	r.cache.Set(issued.Record)

	return issued, nil
}

// Inspect runs the lookup and validity checks without rotating.
func (r *RefreshRotator) Inspect(ctx context.Context, presented string) (models.RefreshToken, error) {
	if strings.TrimSpace(presented) == "" {
		return models.RefreshToken{}, common.NewValidationError("refresh token is required")
	}
	t, err := r.lookup(ctx, cryptox.HashToken(presented))
	if err != nil {
		return models.RefreshToken{}, err
	}
	if err := r.check(t); err != nil {
		return models.RefreshToken{}, err
	}
	return t, nil
}

// lookup consults the cache, then the store. A store hit on a usable token
// repopulates the cache.
func (r *RefreshRotator) lookup(ctx context.Context, hash string) (models.RefreshToken, error) {
	if t, ok := r.cache.Get(hash); ok {
		return t, nil
	}

	t, err := r.repos.RefreshTokens(r.tx.Conn()).FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return models.RefreshToken{}, common.NewAuthError(common.ReasonNotFound)
		}
		return models.RefreshToken{}, common.NewStorageError(err)
	}

	if r.check(*t) == nil {
		r.cache.Set(*t)
	}
	return *t, nil
}

func (r *RefreshRotator) check(t models.RefreshToken) error {
	if t.Revoked {
		return common.NewAuthError(common.ReasonRevoked)
	}
	if t.ExpiredAt(r.now()) {
		return common.NewAuthError(common.ReasonExpired)
	}
	return nil
}
