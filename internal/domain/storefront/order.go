package storefront

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxItems caps the number of lines in one order
	MaxItems = 50
	// MaxNameLength caps customer and product names, in runes
	MaxNameLength = 120
	// MaxNoteLength caps the free-text note, in runes
	MaxNoteLength = 1000
	// AggregateTypeOrder is the aggregate type name used by events
	AggregateTypeOrder = "Order"
)

// OrderItem is one product line
type OrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
}

// NewOrderItem creates a line and computes its amount
func NewOrderItem(orderID uuid.UUID, productName string, quantity int, unitPrice decimal.Decimal) (*OrderItem, error) {
	name := NormalizeText(productName)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_PRODUCT_NAME", "Product name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, shared.NewDomainError("INVALID_PRODUCT_NAME", "Product name is too long")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	}
	return &OrderItem{
		ID:          uuid.New(),
		OrderID:     orderID,
		ProductName: name,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Amount:      unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2),
	}, nil
}

// Customer holds the delivery contact of an order
type Customer struct {
	Name    string
	Phone   string
	Address string
}

// Order is a storefront order. Orders are immutable once placed; the admin
// surface can only delete them.
type Order struct {
	shared.BaseAggregateRoot
	Customer    Customer
	Note        string
	Items       []OrderItem
	TotalAmount decimal.Decimal
}

// ItemInput is the unvalidated description of a line
type ItemInput struct {
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// NewOrder validates the input, computes the total and raises OrderPlaced
func NewOrder(customer Customer, note string, items []ItemInput) (*Order, error) {
	customer.Name = NormalizeText(customer.Name)
	customer.Phone = normalizePhone(customer.Phone)
	customer.Address = NormalizeText(customer.Address)
	note = NormalizeText(note)

	if customer.Name == "" {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer name cannot be empty")
	}
	if utf8.RuneCountInString(customer.Name) > MaxNameLength {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer name is too long")
	}
	if len(customer.Phone) < 6 {
		return nil, shared.NewDomainError("INVALID_PHONE", "Phone number is too short")
	}
	if customer.Address == "" {
		return nil, shared.NewDomainError("INVALID_ADDRESS", "Address cannot be empty")
	}
	if utf8.RuneCountInString(note) > MaxNoteLength {
		return nil, shared.NewDomainError("INVALID_NOTE", "Note is too long")
	}
	if len(items) == 0 {
		return nil, shared.NewDomainError("EMPTY_ORDER", "Order must contain at least one item")
	}
	if len(items) > MaxItems {
		return nil, shared.NewDomainError("TOO_MANY_ITEMS", "Order contains too many items")
	}

	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Customer:          customer,
		Note:              note,
		TotalAmount:       decimal.Zero,
	}
	for _, in := range items {
		item, err := NewOrderItem(o.ID, in.ProductName, in.Quantity, in.UnitPrice)
		if err != nil {
			return nil, err
		}
		o.Items = append(o.Items, *item)
		o.TotalAmount = o.TotalAmount.Add(item.Amount)
	}

	o.Raise(NewOrderPlacedEvent(o))
	return o, nil
}

// ItemCount returns the total quantity across lines
func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// PlacedBefore reports whether the order was created before t
func (o *Order) PlacedBefore(t time.Time) bool {
	return o.CreatedAt.Before(t)
}

// NormalizeText applies NFC, collapses whitespace runs and trims
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

func normalizePhone(s string) string {
	var b strings.Builder
	for i, r := range norm.NFKC.String(s) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
