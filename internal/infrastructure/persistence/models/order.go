// Package models holds the gorm row types and their mapping to domain values.
package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/storefront"
)

// OrderModel is the orders row
type OrderModel struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey"`
	CreatedAt       time.Time        `gorm:"not null;index"`
	UpdatedAt       time.Time        `gorm:"not null"`
	Version         int              `gorm:"not null;default:1"`
	CustomerName    string           `gorm:"type:varchar(120);not null"`
	CustomerPhone   string           `gorm:"type:varchar(32);not null"`
	CustomerAddress string           `gorm:"type:text;not null"`
	Note            string           `gorm:"type:text;not null;default:''"`
	TotalAmount     decimal.Decimal  `gorm:"type:numeric(12,2);not null"`
	Items           []OrderItemModel `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel is the order_items row
type OrderItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNo      int             `gorm:"not null"`
	ProductName string          `gorm:"type:varchar(120);not null"`
	Quantity    int             `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// FromDomain populates the model and its items from an order
func (m *OrderModel) FromDomain(o *storefront.Order) {
	m.ID = o.ID
	m.CreatedAt = o.CreatedAt
	m.UpdatedAt = o.UpdatedAt
	m.Version = o.Version
	m.CustomerName = o.Customer.Name
	m.CustomerPhone = o.Customer.Phone
	m.CustomerAddress = o.Customer.Address
	m.Note = o.Note
	m.TotalAmount = o.TotalAmount
	m.Items = make([]OrderItemModel, len(o.Items))
	for i, it := range o.Items {
		m.Items[i] = OrderItemModel{
			ID:          it.ID,
			OrderID:     o.ID,
			LineNo:      i + 1,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      it.Amount,
		}
	}
}

// ToDomain converts the model to an order with items in line order. Domain
// events are not restored.
func (m *OrderModel) ToDomain() *storefront.Order {
	items := append([]OrderItemModel(nil), m.Items...)
	sort.Slice(items, func(i, j int) bool { return items[i].LineNo < items[j].LineNo })

	o := &storefront.Order{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt.UTC(),
				UpdatedAt: m.UpdatedAt.UTC(),
			},
			Version: m.Version,
		},
		Customer: storefront.Customer{
			Name:    m.CustomerName,
			Phone:   m.CustomerPhone,
			Address: m.CustomerAddress,
		},
		Note:        m.Note,
		TotalAmount: m.TotalAmount,
		Items:       make([]storefront.OrderItem, len(items)),
	}
	for i, it := range items {
		o.Items[i] = storefront.OrderItem{
			ID:          it.ID,
			OrderID:     it.OrderID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      it.Amount,
		}
	}
	return o
}
