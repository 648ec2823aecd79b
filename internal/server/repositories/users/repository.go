package users

import (
	"context"

	"github.com/dmitrijs2005/visionlock/internal/server/models"
)

type Repository interface {
	// List returns every user in registration order.
	List(ctx context.Context) ([]models.User, error)
	GetByIdentity(ctx context.Context, identity string) (*models.User, error)
	// InsertIfAbsent stores user unless its identity is taken. inserted is
	// false, with no error, when the identity already exists.
	InsertIfAbsent(ctx context.Context, user *models.User) (inserted bool, err error)
	UpdatePinHash(ctx context.Context, identity, pinHash string) error
}
