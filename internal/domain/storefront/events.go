package storefront

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
)

// EventTypeOrderPlaced is raised when an order is accepted
const EventTypeOrderPlaced = "OrderPlaced"

// OrderPlacedEvent carries the summary forwarded to the spreadsheet webhook
type OrderPlacedEvent struct {
	shared.EventMeta
	OrderID      uuid.UUID       `json:"order_id"`
	CustomerName string          `json:"customer_name"`
	ItemCount    int             `json:"item_count"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

// NewOrderPlacedEvent builds the event for o
func NewOrderPlacedEvent(o *Order) *OrderPlacedEvent {
	return &OrderPlacedEvent{
		EventMeta:    shared.NewEventMeta(EventTypeOrderPlaced, AggregateTypeOrder, o.ID),
		OrderID:      o.ID,
		CustomerName: o.Customer.Name,
		ItemCount:    o.ItemCount(),
		TotalAmount:  o.TotalAmount,
	}
}
