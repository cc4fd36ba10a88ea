package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/cryptox"
	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/repomanager"
	"golang.org/x/sync/semaphore"
)

// PasswordVerifier checks a plaintext password against an encoded hash.
type PasswordVerifier func(password, encoded string) (bool, error)

// Credentials is the outcome of a credential check. Unknown user and wrong
// password both produce Valid == false.
type Credentials struct {
	Valid    bool
	UserID   string
	Username string
}

// CredentialValidator verifies username/password pairs. Password checks are
// CPU heavy and run under a weighted semaphore so they cannot starve the
// request goroutines.
type CredentialValidator struct {
	tx     dbx.Transactor
	repos  repomanager.RepositoryManager
	verify PasswordVerifier
	sem    *semaphore.Weighted
	log    logging.Logger

	// dummyHash is verified for unknown usernames.
	dummyHash string
}

func NewCredentialValidator(tx dbx.Transactor, repos repomanager.RepositoryManager, verify PasswordVerifier, concurrency int, log logging.Logger) *CredentialValidator {
	if verify == nil {
		verify = cryptox.VerifyPassword
	}
	if concurrency < 1 {
		concurrency = 1
	}
	v := &CredentialValidator{
		tx:     tx,
		repos:  repos,
		verify: verify,
		sem:    semaphore.NewWeighted(int64(concurrency)),
		log:    log.With("module", "credential_validator"),
	}

	h, err := cryptox.HashPassword("dummy-password", cryptox.DefaultArgon2Params)
	if err != nil {
		v.log.Error(context.Background(), "dummy password hash", "error", err)
	}
	v.dummyHash = h

	return v
}

func (v *CredentialValidator) Validate(ctx context.Context, username, password string) (Credentials, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Credentials{}, common.NewValidationError("username is required")
	}
	if strings.TrimSpace(password) == "" {
		return Credentials{}, common.NewValidationError("password is required")
	}

	user, err := v.repos.Users(v.tx.Conn()).FindActiveByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// Spend the same work as a real check so absence is not observable
			// through latency.
			_, _ = v.verifyBounded(ctx, password, v.dummyHash)
			return Credentials{}, nil
		}
		return Credentials{}, common.NewStorageError(err)
	}

	ok, err := v.verifyBounded(ctx, password, user.PasswordHash)
	if err != nil {
		if ctx.Err() == nil {
			v.log.Error(ctx, "stored password hash unreadable", "user_id", user.ID, "error", err)
		}
		return Credentials{}, common.NewInternalError(err)
	}
	if !ok {
		return Credentials{}, nil
	}

	return Credentials{Valid: true, UserID: user.ID, Username: user.UserName}, nil
}

func (v *CredentialValidator) verifyBounded(ctx context.Context, password, encoded string) (bool, error) {
	if err := v.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer v.sem.Release(1)

	return v.verify(password, encoded)
}
