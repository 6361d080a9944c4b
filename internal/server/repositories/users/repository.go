package users

import (
	"context"

	"github.com/dmitrijs2005/voicedrop/internal/server/models"
)

// Repository persists users keyed by email.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}
