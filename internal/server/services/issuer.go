package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/cryptox"
	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/tokencache"
	"github.com/google/uuid"
)

// AccessSigner mints signed access tokens. *auth.Signer implements it.
type AccessSigner interface {
	Sign(username, userID string) (string, time.Time, error)
}

// IssuedTokens is a freshly minted pair. RefreshToken is the only copy of the
// plaintext value; the store keeps Record, which holds its hash.
type IssuedTokens struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Record           models.RefreshToken
}

// TokenIssuer mints access/refresh pairs and persists the refresh hash.
type TokenIssuer struct {
	signer     AccessSigner
	tx         dbx.Transactor
	repos      repomanager.RepositoryManager
	cache      *tokencache.Cache
	refreshTTL time.Duration
	now        func() time.Time
	log        logging.Logger
}

func NewTokenIssuer(signer AccessSigner, tx dbx.Transactor, repos repomanager.RepositoryManager,
	cache *tokencache.Cache, refreshTTL time.Duration, log logging.Logger, opts ...Option) *TokenIssuer {
	s := applyOptions(opts)
	return &TokenIssuer{
		signer:     signer,
		tx:         tx,
		repos:      repos,
		cache:      cache,
		refreshTTL: refreshTTL,
		now:        s.now,
		log:        log.With("module", "token_issuer"),
	}
}

// Issue mints a pair for the user, optionally bound to fp. It is all or
// nothing: a persistence failure returns a StorageError and no tokens.
func (i *TokenIssuer) Issue(ctx context.Context, username, userID string, fp models.DeviceFingerprint) (*IssuedTokens, error) {
	fpHash, err := cryptox.HashFingerprint(fp)
	if err != nil {
		return nil, common.NewValidationError("device fingerprint is not encodable")
	}

	issued, err := i.issue(ctx, i.tx.Conn(), username, userID, fpHash)
	if err != nil {
		return nil, err
	}

	i.cache.Set(issued.Record)
	return issued, nil
}

// issue mints and persists through db without touching the cache, so it can
// run inside a caller's transaction.
func (i *TokenIssuer) issue(ctx context.Context, db dbx.DBTX, username, userID, fpHash string) (*IssuedTokens, error) {
	access, accessExp, err := i.signer.Sign(username, userID)
	if err != nil {
		return nil, common.NewInternalError(err)
	}

	refresh := common.RefreshTokenPrefix + uuid.NewString()
	now := i.now()

	record := models.RefreshToken{
		UserID:                userID,
		TokenHash:             cryptox.HashToken(refresh),
		IssuedAt:              now,
		ExpiresAt:             now.Add(i.refreshTTL),
		DeviceFingerprintHash: fpHash,
	}

	if err := i.repos.RefreshTokens(db).Create(ctx, &record); err != nil {
		i.log.Error(ctx, "refresh token not persisted", "user_id", userID, "error", err)
		return nil, common.NewStorageError(err)
	}

	return &IssuedTokens{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: record.ExpiresAt,
		Record:           record,
	}, nil
}
