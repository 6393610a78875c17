package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/storefront"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testOrder(t *testing.T) *storefront.Order {
	t.Helper()
	o, err := storefront.NewOrder(storefront.Customer{
		Name:    "Ana",
		Phone:   "555 0100",
		Address: "1 Main St",
	}, "ring twice", []storefront.ItemInput{
		{ProductName: "Latte", Quantity: 2, UnitPrice: decimal.RequireFromString("4.5")},
		{ProductName: "Croissant", Quantity: 1, UnitPrice: decimal.RequireFromString("3.25")},
	})
	require.NoError(t, err)
	return o
}

func TestRowFromOrder(t *testing.T) {
	o := testOrder(t)
	row := RowFromOrder(o)

	assert.Equal(t, o.ID.String(), row.OrderID)
	assert.Equal(t, "2 x Latte @ 4.50; 1 x Croissant @ 3.25", row.Items)
	assert.Equal(t, 3, row.ItemCount)
	assert.Equal(t, "12.25", row.Total)
	assert.Equal(t, "ring twice", row.Note)
	_, err := time.Parse(time.RFC3339, row.PlacedAt)
	assert.NoError(t, err)
}

func TestSheetForwarder_Forward(t *testing.T) {
	t.Run("posts json", func(t *testing.T) {
		var got Row
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		f := NewSheetForwarder(srv.URL, time.Second, zaptest.NewLogger(t))
		row := RowFromOrder(testOrder(t))
		require.NoError(t, f.Forward(context.Background(), row))
		assert.Equal(t, row, got)
	})

	t.Run("non-2xx is rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		err := NewSheetForwarder(srv.URL, time.Second, nil).Forward(context.Background(), Row{})
		assert.ErrorIs(t, err, ErrRejected)
		assert.ErrorContains(t, err, "HTTP 429: quota exceeded")
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		err := NewSheetForwarder(srv.URL, 50*time.Millisecond, nil).Forward(context.Background(), Row{})
		assert.ErrorContains(t, err, "request failed")
	})

	t.Run("not configured", func(t *testing.T) {
		f := NewSheetForwarder("", 0, nil)
		assert.False(t, f.Enabled())
		assert.ErrorIs(t, f.Forward(context.Background(), Row{}), ErrNotConfigured)
	})
}
