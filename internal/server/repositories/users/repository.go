// Package users declares the users store consumed by credential validation.
package users

import (
	"context"

	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// FindActiveByUsername returns common.ErrorNotFound for unknown or
	// deactivated users alike.
	FindActiveByUsername(ctx context.Context, username string) (*models.User, error)
	FindActiveByID(ctx context.Context, id string) (*models.User, error)
}
