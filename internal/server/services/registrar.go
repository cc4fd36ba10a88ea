package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/cryptox"
	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/repomanager"
)

// PasswordHasher encodes a plaintext password for storage.
type PasswordHasher func(password string) (string, error)

// DefaultPasswordHasher hashes with argon2id at cryptox.DefaultArgon2Params.
func DefaultPasswordHasher(password string) (string, error) {
	return cryptox.HashPassword(password, cryptox.DefaultArgon2Params)
}

// UserRegistrar provisions accounts. Login never creates users; operators
// seed them through cmd/useradd.
type UserRegistrar struct {
	tx    dbx.Transactor
	repos repomanager.RepositoryManager
	hash  PasswordHasher
	log   logging.Logger
}

func NewUserRegistrar(tx dbx.Transactor, repos repomanager.RepositoryManager, hash PasswordHasher, log logging.Logger) *UserRegistrar {
	if hash == nil {
		hash = DefaultPasswordHasher
	}
	return &UserRegistrar{tx: tx, repos: repos, hash: hash, log: log.With("module", "user_registrar")}
}

// Register creates an active user. A taken username is a ValidationError.
func (r *UserRegistrar) Register(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, common.NewValidationError("username and password are required")
	}

	encoded, err := r.hash(password)
	if err != nil {
		return nil, common.NewInternalError(err)
	}

	var created *models.User
	err = r.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := r.repos.Users(tx)

		_, err := repo.FindActiveByUsername(ctx, username)
		switch {
		case err == nil:
			return common.NewValidationError("username already exists")
		case !errors.Is(err, common.ErrorNotFound):
			return common.NewStorageError(err)
		}

		created, err = repo.Create(ctx, &models.User{UserName: username, PasswordHash: encoded})
		if err != nil {
			return common.NewStorageError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info(ctx, "user registered", "user_id", created.ID, "username", created.UserName)
	return created, nil
}
