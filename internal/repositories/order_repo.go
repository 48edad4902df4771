package repositories

import (
	"errors"

	"ecostore/internal/models"
)

var (
	// ErrOrderNotFound is returned when no order has the requested ID.
	ErrOrderNotFound = errors.New("order not found")
	// ErrDuplicateOrder is returned when an order ID is submitted twice.
	ErrDuplicateOrder = errors.New("order already exists")
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	GetAll() ([]models.Order, error)
	GetByID(id string) (*models.Order, error)
	Create(order *models.Order) error
	Update(order *models.Order) error
	Delete(id string) error
}
