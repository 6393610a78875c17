package persistence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/storefront"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormOrderRepository_SaveAndFind(t *testing.T) {
	repo := NewGormOrderRepository(setupTestDB(t))
	now := time.Now().UTC().Truncate(time.Second)
	order := newTestOrder(t, "Ana Souza", now)

	require.NoError(t, repo.Save(ctx(), order))

	found, err := repo.FindByID(ctx(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	assert.Equal(t, "Ana Souza", found.Customer.Name)
	assert.Equal(t, order.Customer.Phone, found.Customer.Phone)
	assert.True(t, decimal.RequireFromString("12.25").Equal(found.TotalAmount), found.TotalAmount.String())
	assert.Equal(t, 1, found.Version)
	assert.True(t, now.Equal(found.CreatedAt))
	assert.Empty(t, found.PendingEvents())

	require.Len(t, found.Items, 2)
	assert.Equal(t, "Latte", found.Items[0].ProductName)
	assert.Equal(t, 2, found.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("9").Equal(found.Items[0].Amount))
	assert.Equal(t, "Croissant", found.Items[1].ProductName)
	assert.Equal(t, order.ID, found.Items[1].OrderID)
}

func TestGormOrderRepository_SaveDuplicate(t *testing.T) {
	repo := NewGormOrderRepository(setupTestDB(t))
	order := newTestOrder(t, "Ana", time.Now())

	require.NoError(t, repo.Save(ctx(), order))
	err := repo.Save(ctx(), order)
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestGormOrderRepository_FindByID_NotFound(t *testing.T) {
	repo := NewGormOrderRepository(setupTestDB(t))

	_, err := repo.FindByID(ctx(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormOrderRepository_List(t *testing.T) {
	repo := NewGormOrderRepository(setupTestDB(t))
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	names := []string{"Ana", "Bruno", "Carla", "Anabela"}
	for i, name := range names {
		require.NoError(t, repo.Save(ctx(), newTestOrder(t, name, base.Add(time.Duration(i)*time.Hour))))
	}

	t.Run("newest first by default", func(t *testing.T) {
		orders, total, err := repo.List(ctx(), shared.DefaultFilter())
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
		require.Len(t, orders, 4)
		assert.Equal(t, "Anabela", orders[0].Customer.Name)
		assert.Equal(t, "Ana", orders[3].Customer.Name)
		assert.Len(t, orders[0].Items, 2, "items are preloaded")
	})

	t.Run("pagination", func(t *testing.T) {
		orders, total, err := repo.List(ctx(), shared.Filter{Page: 2, PageSize: 3, OrderDir: "asc"})
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
		require.Len(t, orders, 1)
		assert.Equal(t, "Anabela", orders[0].Customer.Name)
	})

	t.Run("search is case insensitive", func(t *testing.T) {
		orders, total, err := repo.List(ctx(), shared.Filter{Search: "ANA", OrderBy: "customer_name", OrderDir: "asc"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, orders, 2)
		assert.Equal(t, "Ana", orders[0].Customer.Name)
		assert.Equal(t, "Anabela", orders[1].Customer.Name)
	})

	t.Run("unknown sort field falls back", func(t *testing.T) {
		orders, _, err := repo.List(ctx(), shared.Filter{OrderBy: "customer_phone; --", PageSize: 1})
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, "Anabela", orders[0].Customer.Name)
	})
}

func TestGormOrderRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	order := newTestOrder(t, "Ana", time.Now())
	require.NoError(t, repo.Save(ctx(), order))

	require.NoError(t, repo.Delete(ctx(), order.ID))

	_, err := repo.FindByID(ctx(), order.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	var items int64
	require.NoError(t, db.Table("order_items").Where("order_id = ?", order.ID).Count(&items).Error)
	assert.Zero(t, items)

	assert.ErrorIs(t, repo.Delete(ctx(), order.ID), shared.ErrNotFound)
}

func TestGormOrderRepository_DeleteBefore(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	old1 := newTestOrder(t, "Old One", cutoff.Add(-48*time.Hour))
	old2 := newTestOrder(t, "Old Two", cutoff.Add(-2*time.Hour))
	fresh := newTestOrder(t, "Fresh", cutoff.Add(3*time.Hour))
	for _, o := range []*storefront.Order{old1, old2, fresh} {
		require.NoError(t, repo.Save(ctx(), o))
	}

	deleted, err := repo.DeleteBefore(ctx(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	orders, total, err := repo.List(ctx(), shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, fresh.ID, orders[0].ID)

	var items int64
	require.NoError(t, db.Table("order_items").Count(&items).Error)
	assert.Equal(t, int64(len(fresh.Items)), items)

	deleted, err = repo.DeleteBefore(ctx(), cutoff)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestGormOrderRepository_Ping(t *testing.T) {
	repo := NewGormOrderRepository(setupTestDB(t))
	assert.NoError(t, repo.Ping(ctx()))
}
