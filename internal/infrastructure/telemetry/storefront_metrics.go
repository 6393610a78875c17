package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/tagging"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics constructor receives no meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// StorefrontMetrics holds the application instruments
type StorefrontMetrics struct {
	injectionAttempts *Counter
	ordersPlaced      *Counter
	orderAmountCents  *Counter
	uploads           *Counter
	auditDuration     *Histogram
}

// NewStorefrontMetrics creates every instrument on meter
func NewStorefrontMetrics(meter metric.Meter) (*StorefrontMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &StorefrontMetrics{}
	var err error

	if m.injectionAttempts, err = NewCounter(meter,
		"tagging.injection.attempts",
		"Terminal outcomes of tag injection strategies",
		"{attempts}",
	); err != nil {
		return nil, err
	}
	if m.ordersPlaced, err = NewCounter(meter,
		"storefront.orders.placed",
		"Orders accepted by the storefront",
		"{orders}",
	); err != nil {
		return nil, err
	}
	if m.orderAmountCents, err = NewCounter(meter,
		"storefront.orders.amount",
		"Order totals in minor currency units",
		"{cents}",
	); err != nil {
		return nil, err
	}
	if m.uploads, err = NewCounter(meter,
		"storefront.uploads",
		"Image uploads by outcome",
		"{uploads}",
	); err != nil {
		return nil, err
	}
	if m.auditDuration, err = NewHistogram(meter,
		"tagging.audit.duration",
		"Wall time of a tag audit against a live page",
		SmallDurationBuckets...,
	); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordAttempt counts one strategy outcome
func (m *StorefrontMetrics) RecordAttempt(ctx context.Context, strategy tagging.StrategyKind, status tagging.AttemptStatus) {
	m.injectionAttempts.Inc(ctx, AttrStrategy.String(string(strategy)), AttrStatus.String(string(status)))
}

// RecordOrderPlaced counts an order and adds its total
func (m *StorefrontMetrics) RecordOrderPlaced(ctx context.Context, total decimal.Decimal) {
	m.ordersPlaced.Inc(ctx)
	m.orderAmountCents.AddN(ctx, total.Shift(2).Round(0).IntPart())
}

// RecordUpload counts an upload attempt
func (m *StorefrontMetrics) RecordUpload(ctx context.Context, contentType string, ok bool) {
	outcome := "stored"
	if !ok {
		outcome = "rejected"
	}
	m.uploads.Inc(ctx, AttrContentType.String(contentType), AttrOutcome.String(outcome))
}

// RecordAudit records the duration of a tag audit
func (m *StorefrontMetrics) RecordAudit(ctx context.Context, d time.Duration, installed bool) {
	outcome := "installed"
	if !installed {
		outcome = "not_installed"
	}
	m.auditDuration.RecordDuration(ctx, d, AttrOutcome.String(outcome))
}
