// Package webhook forwards placed orders to a spreadsheet webhook.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/storefront/backend/internal/domain/storefront"
	"go.uber.org/zap"
)

// DefaultTimeout bounds one webhook call
const DefaultTimeout = 10 * time.Second

var (
	// ErrNotConfigured is returned by Forward when no URL is set
	ErrNotConfigured = errors.New("webhook: url not configured")
	// ErrRejected wraps non-2xx webhook responses
	ErrRejected = errors.New("webhook: request rejected")
)

// Row is one spreadsheet row
type Row struct {
	OrderID   string `json:"order_id"`
	PlacedAt  string `json:"placed_at"`
	Customer  string `json:"customer"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Items     string `json:"items"`
	ItemCount int    `json:"item_count"`
	Total     string `json:"total"`
	Note      string `json:"note,omitempty"`
}

// RowFromOrder flattens an order into a row. Items render as
// "2 x Latte @ 4.50; 1 x Croissant @ 3.25".
func RowFromOrder(o *storefront.Order) Row {
	lines := make([]string, len(o.Items))
	for i, it := range o.Items {
		lines[i] = fmt.Sprintf("%d x %s @ %s", it.Quantity, it.ProductName, it.UnitPrice.StringFixed(2))
	}
	return Row{
		OrderID:   o.ID.String(),
		PlacedAt:  o.CreatedAt.UTC().Format(time.RFC3339),
		Customer:  o.Customer.Name,
		Phone:     o.Customer.Phone,
		Address:   o.Customer.Address,
		Items:     strings.Join(lines, "; "),
		ItemCount: o.ItemCount(),
		Total:     o.TotalAmount.StringFixed(2),
		Note:      o.Note,
	}
}

// SheetForwarder posts rows as JSON to a webhook URL
type SheetForwarder struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSheetForwarder creates a forwarder. An empty url makes Forward return
// ErrNotConfigured.
func NewSheetForwarder(url string, timeout time.Duration, logger *zap.Logger) *SheetForwarder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SheetForwarder{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Enabled reports whether a URL is configured
func (f *SheetForwarder) Enabled() bool {
	return f.url != ""
}

// ForwardOrder posts the row of o
func (f *SheetForwarder) ForwardOrder(ctx context.Context, o *storefront.Order) error {
	return f.Forward(ctx, RowFromOrder(o))
}

// Forward posts row to the webhook
func (f *SheetForwarder) Forward(ctx context.Context, row Row) error {
	if !f.Enabled() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("webhook: failed to encode row: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: HTTP %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	f.logger.Debug("Order forwarded to sheet",
		zap.String("order_id", row.OrderID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))
	return nil
}
