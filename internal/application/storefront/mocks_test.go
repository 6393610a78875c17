package storefront

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/storefront"
	"github.com/stretchr/testify/mock"
)

// MockOrderRepository is a mock implementation of storefront.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Save(ctx context.Context, order *storefront.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*storefront.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storefront.Order), args.Error(1)
}

func (m *MockOrderRepository) List(ctx context.Context, filter shared.Filter) ([]storefront.Order, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]storefront.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOrderRepository) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockForwarder is a mock implementation of OrderForwarder
type MockForwarder struct {
	mock.Mock
}

func (m *MockForwarder) Enabled() bool {
	return m.Called().Bool(0)
}

func (m *MockForwarder) ForwardOrder(ctx context.Context, o *storefront.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

// MockMetrics records order and upload metrics
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordOrderPlaced(ctx context.Context, total decimal.Decimal) {
	m.Called(ctx, total)
}

func (m *MockMetrics) RecordUpload(ctx context.Context, contentType string, ok bool) {
	m.Called(ctx, contentType, ok)
}

func validInput() SubmitOrderInput {
	return SubmitOrderInput{
		CustomerName: "  Ana   Souza ",
		Phone:        "+55 (11) 99999-0000",
		Address:      "Rua das Flores 10",
		Note:         "ring twice",
		Items: []SubmitItemInput{
			{ProductName: "Latte", Quantity: 2, UnitPrice: decimal.RequireFromString("4.50")},
			{ProductName: "Croissant", Quantity: 1, UnitPrice: decimal.RequireFromString("3.25")},
		},
	}
}

func newStoredOrder() *storefront.Order {
	o, err := storefront.NewOrder(storefront.Customer{
		Name:    "Ana",
		Phone:   "5511999990000",
		Address: "Rua das Flores 10",
	}, "", []storefront.ItemInput{
		{ProductName: "Latte", Quantity: 2, UnitPrice: decimal.RequireFromString("4.50")},
	})
	if err != nil {
		panic(err)
	}
	o.ClearEvents()
	return o
}
