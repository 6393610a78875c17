// Package storefront holds the shopper and admin use cases around orders,
// product image uploads and health reporting.
package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/storefront"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// MaxIdempotencyKeyLength bounds client-supplied idempotency keys
const MaxIdempotencyKeyLength = 128

// ErrRequestInFlight is returned while an order with the same idempotency
// key is still being processed
var ErrRequestInFlight = shared.NewDomainError("REQUEST_IN_FLIGHT", "An order with this idempotency key is being processed")

// OrderForwarder receives placed orders, e.g. the spreadsheet webhook
type OrderForwarder interface {
	Enabled() bool
	ForwardOrder(ctx context.Context, o *storefront.Order) error
}

// OrderMetrics records placed orders
type OrderMetrics interface {
	RecordOrderPlaced(ctx context.Context, total decimal.Decimal)
}

// OrderService places orders
type OrderService struct {
	orders      storefront.OrderRepository
	idempotency shared.IdempotencyStore
	forwarder   OrderForwarder
	metrics     OrderMetrics
	validate    *validator.Validate
	logger      *zap.Logger
	ttl         time.Duration
	wg          sync.WaitGroup
}

// NewOrderService creates an OrderService. idempotency, forwarder and
// metrics may be nil.
func NewOrderService(
	orders storefront.OrderRepository,
	idempotency shared.IdempotencyStore,
	forwarder OrderForwarder,
	metrics OrderMetrics,
	logger *zap.Logger,
) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		orders:      orders,
		idempotency: idempotency,
		forwarder:   forwarder,
		metrics:     metrics,
		validate:    newValidator(),
		logger:      logger,
		ttl:         shared.DefaultIdempotencyTTL,
	}
}

// Submit validates and stores an order, then forwards it in the background.
// With a non-empty idempotencyKey a repeated submission returns the first
// result and replayed is true.
func (s *OrderService) Submit(ctx context.Context, idempotencyKey string, in SubmitOrderInput) (resp *OrderResponse, replayed bool, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "storefront", "SubmitOrder",
		telemetry.SpanAttrItemCount.Int(len(in.Items)))
	defer func() { telemetry.EndSpan(span, err) }()

	if err := s.validate.Struct(in); err != nil {
		return nil, false, validationError(err)
	}

	key := strings.TrimSpace(idempotencyKey)
	if len(key) > MaxIdempotencyKeyLength {
		return nil, false, shared.NewDomainError("INVALID_INPUT", "Idempotency-Key is too long")
	}
	if key != "" && s.idempotency != nil {
		cached, err := s.idempotency.Reserve(ctx, key, s.ttl)
		switch {
		case errors.Is(err, shared.ErrIdempotencyInFlight):
			return nil, false, ErrRequestInFlight
		case err != nil:
			return nil, false, fmt.Errorf("reserve idempotency key: %w", err)
		case cached != nil:
			var prev OrderResponse
			if err := json.Unmarshal(cached, &prev); err != nil {
				return nil, false, fmt.Errorf("decode idempotent result: %w", err)
			}
			return &prev, true, nil
		}
		defer func() {
			if err != nil {
				if relErr := s.idempotency.Release(context.WithoutCancel(ctx), key); relErr != nil {
					s.logger.Warn("Failed to release idempotency key", zap.Error(relErr))
				}
			}
		}()
	}

	order, err := s.place(ctx, in)
	if err != nil {
		return nil, false, err
	}
	out := ToOrderResponse(order)

	if key != "" && s.idempotency != nil {
		raw, err := json.Marshal(out)
		if err == nil {
			err = s.idempotency.Complete(ctx, key, raw, s.ttl)
		}
		if err != nil {
			s.logger.Warn("Failed to store idempotent result",
				zap.String("order_id", order.ID.String()), zap.Error(err))
		}
	}

	span.SetAttributes(telemetry.SpanAttrOrderID.String(order.ID.String()))
	return &out, false, nil
}

func (s *OrderService) place(ctx context.Context, in SubmitOrderInput) (*storefront.Order, error) {
	items := make([]storefront.ItemInput, len(in.Items))
	for i, it := range in.Items {
		items[i] = storefront.ItemInput{
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		}
	}
	order, err := storefront.NewOrder(storefront.Customer{
		Name:    in.CustomerName,
		Phone:   in.Phone,
		Address: in.Address,
	}, in.Note, items)
	if err != nil {
		return nil, err
	}

	if err := s.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}

	for _, ev := range order.PendingEvents() {
		s.logger.Info("Order placed",
			zap.String("event", ev.EventType()),
			zap.String("order_id", order.ID.String()),
			zap.Int("item_count", order.ItemCount()),
			zap.String("total", order.TotalAmount.StringFixed(2)))
	}
	order.ClearEvents()

	if s.metrics != nil {
		s.metrics.RecordOrderPlaced(ctx, order.TotalAmount)
	}
	s.forward(ctx, order)
	return order, nil
}

// forward hands the order to the forwarder without blocking the caller.
// Failures are logged only.
func (s *OrderService) forward(ctx context.Context, order *storefront.Order) {
	if s.forwarder == nil || !s.forwarder.Enabled() {
		return
	}
	fctx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.forwarder.ForwardOrder(fctx, order); err != nil {
			s.logger.Warn("Failed to forward order",
				zap.String("order_id", order.ID.String()), zap.Error(err))
		}
	}()
}

// Wait blocks until background forwards finish
func (s *OrderService) Wait() {
	s.wg.Wait()
}
