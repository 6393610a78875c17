package storefront

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/storefront"
)

// SubmitOrderInput is an order as submitted by a shopper
type SubmitOrderInput struct {
	CustomerName string            `json:"customer_name" validate:"required,max=120"`
	Phone        string            `json:"phone" validate:"required,min=6,max=32"`
	Address      string            `json:"address" validate:"required,max=500"`
	Note         string            `json:"note" validate:"max=1000"`
	Items        []SubmitItemInput `json:"items" validate:"required,min=1,max=50,dive"`
}

// SubmitItemInput is one submitted line
type SubmitItemInput struct {
	ProductName string          `json:"product_name" validate:"required,max=120"`
	Quantity    int             `json:"quantity" validate:"gt=0,lte=999"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// OrderItemResponse is one line of an order
type OrderItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// OrderResponse is an order as returned by the API
type OrderResponse struct {
	ID           uuid.UUID           `json:"id"`
	CustomerName string              `json:"customer_name"`
	Phone        string              `json:"phone"`
	Address      string              `json:"address"`
	Note         string              `json:"note,omitempty"`
	Items        []OrderItemResponse `json:"items"`
	ItemCount    int                 `json:"item_count"`
	TotalAmount  decimal.Decimal     `json:"total_amount"`
	CreatedAt    time.Time           `json:"created_at"`
}

// ToOrderResponse converts a domain order
func ToOrderResponse(o *storefront.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemResponse{
			ID:          it.ID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      it.Amount,
		}
	}
	return OrderResponse{
		ID:           o.ID,
		CustomerName: o.Customer.Name,
		Phone:        o.Customer.Phone,
		Address:      o.Customer.Address,
		Note:         o.Note,
		Items:        items,
		ItemCount:    o.ItemCount(),
		TotalAmount:  o.TotalAmount,
		CreatedAt:    o.CreatedAt,
	}
}

// UploadResult describes a stored image
type UploadResult struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	URL         string    `json:"url"`
	ExpiresAt   time.Time `json:"expires_at"`
}
