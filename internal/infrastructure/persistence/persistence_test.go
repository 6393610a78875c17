package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/storefront"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory SQLite database with the storefront tables
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.OrderModel{}, &models.OrderItemModel{}, &models.TagAuditModel{}))
	return db
}

func newTestOrder(t *testing.T, name string, createdAt time.Time, items ...storefront.ItemInput) *storefront.Order {
	t.Helper()
	if len(items) == 0 {
		items = []storefront.ItemInput{
			{ProductName: "Latte", Quantity: 2, UnitPrice: decimal.RequireFromString("4.50")},
			{ProductName: "Croissant", Quantity: 1, UnitPrice: decimal.RequireFromString("3.25")},
		}
	}
	o, err := storefront.NewOrder(storefront.Customer{
		Name:    name,
		Phone:   "+1 555 0100",
		Address: "1 Main St",
	}, "", items)
	require.NoError(t, err)
	o.CreatedAt = createdAt.UTC()
	o.UpdatedAt = createdAt.UTC()
	return o
}

func ctx() context.Context {
	return context.Background()
}
