package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/storefront"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormOrderRepository implements storefront.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Save inserts the order and its items in one transaction
func (r *GormOrderRepository) Save(ctx context.Context, order *storefront.Order) error {
	var m models.OrderModel
	m.FromDomain(order)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items").Create(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.ErrAlreadyExists
			}
			return fmt.Errorf("insert order: %w", err)
		}
		if len(m.Items) == 0 {
			return nil
		}
		if err := tx.Create(&m.Items).Error; err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
		return nil
	})
}

// FindByID finds an order with its items
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*storefront.Order, error) {
	var m models.OrderModel
	if err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	return m.ToDomain(), nil
}

// List returns one page of orders and the total matching count
func (r *GormOrderRepository) List(ctx context.Context, filter shared.Filter) ([]storefront.Order, int64, error) {
	var total int64
	countQuery := r.applySearch(r.db.WithContext(ctx).Model(&models.OrderModel{}), filter)
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	if filter.PageSize <= 0 {
		filter.PageSize = shared.DefaultFilter().PageSize
	}

	var rows []models.OrderModel
	err := r.applySearch(r.db.WithContext(ctx).Model(&models.OrderModel{}), filter).
		Preload("Items").
		Order(orderClause(filter.OrderBy, filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	orders := make([]storefront.Order, len(rows))
	for i := range rows {
		orders[i] = *rows[i].ToDomain()
	}
	return orders, total, nil
}

// applySearch matches the customer name or phone against filter.Search
func (r *GormOrderRepository) applySearch(query *gorm.DB, filter shared.Filter) *gorm.DB {
	term := strings.TrimSpace(filter.Search)
	if term == "" {
		return query
	}
	like := "%" + strings.ToLower(term) + "%"
	return query.Where("LOWER(customer_name) LIKE ? OR customer_phone LIKE ?", like, like)
}

// Delete removes one order and its items
func (r *GormOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItemModel{}).Error; err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&models.OrderModel{})
		if res.Error != nil {
			return fmt.Errorf("delete order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// DeleteBefore removes every order created before t
func (r *GormOrderRepository) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		older := tx.Model(&models.OrderModel{}).Select("id").Where("created_at < ?", t)
		if err := tx.Where("order_id IN (?)", older).Delete(&models.OrderItemModel{}).Error; err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}
		res := tx.Where("created_at < ?", t).Delete(&models.OrderModel{})
		if res.Error != nil {
			return fmt.Errorf("delete orders: %w", res.Error)
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}

// Ping checks the database connection
func (r *GormOrderRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Ensure GormOrderRepository implements OrderRepository
var _ storefront.OrderRepository = (*GormOrderRepository)(nil)
