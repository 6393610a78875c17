package storefront

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
)

// OrderRepository persists orders
type OrderRepository interface {
	// Save inserts a new order with its items
	Save(ctx context.Context, order *Order) error
	// FindByID returns shared.ErrNotFound when the order does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// List returns orders newest first
	List(ctx context.Context, filter shared.Filter) ([]Order, int64, error)
	// Delete removes one order; shared.ErrNotFound when it does not exist
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteBefore removes orders created before t and returns how many
	DeleteBefore(ctx context.Context, t time.Time) (int64, error)
	// Ping checks connectivity
	Ping(ctx context.Context) error
}
