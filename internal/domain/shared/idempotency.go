package shared

import (
	"context"
	"errors"
	"time"
)

// ErrIdempotencyInFlight is returned by Reserve while the first request with
// the same key is still being processed
var ErrIdempotencyInFlight = errors.New("request with this idempotency key is in progress")

// IdempotencyStore remembers the outcome of requests by client-supplied key
type IdempotencyStore interface {
	// Reserve claims key. It returns the stored result when key has already
	// completed, ErrIdempotencyInFlight while another request holds it, and
	// (nil, nil) when the caller now owns the key.
	Reserve(ctx context.Context, key string, ttl time.Duration) ([]byte, error)
	// Complete stores the result for a reserved key
	Complete(ctx context.Context, key string, result []byte, ttl time.Duration) error
	// Release drops a reservation after a failed request so it can be retried
	Release(ctx context.Context, key string) error
	// Close closes the store and releases resources
	Close() error
}

// DefaultIdempotencyTTL is how long completed results are remembered
const DefaultIdempotencyTTL = 24 * time.Hour
