package repositories

import (
	"errors"

	"ecostore/internal/models"
)

// ErrUserNotFound is returned when no admin user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// UserRepository defines the interface for admin user data access.
type UserRepository interface {
	Create(user *models.User) error
	GetByUsername(username string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByID(id string) (*models.User, error)
}
