// Package tagging holds the page-lifetime analytics handle and the
// descriptions of the strategies that race to install it.
package tagging

import (
	"sync"
	"time"
)

const (
	// DefaultQueueCapacity bounds the pre-installation call queue
	DefaultQueueCapacity = 256
	// DefaultClaimTTL is how long an unbound claim is honoured before it may be taken over
	DefaultClaimTTL = 10 * time.Second
)

// CallRecord is one call to the analytics global
type CallRecord struct {
	Event      string
	Args       []any
	EnqueuedAt time.Time
}

// TrackFunc delivers a call record to the installed analytics global
type TrackFunc func(rec CallRecord) error

// TagHandle is the single source of truth for "has the analytics handle been
// installed". One strategy at a time may hold the claim; the holder binds the
// track function, which flushes queued calls in FIFO order and marks the
// handle installed. Installed never resets.
//
// TagHandle is safe for concurrent use. Deliveries to the track function are
// serialized, so the track function must not call back into the handle.
type TagHandle struct {
	capacity int
	claimTTL time.Duration
	now      func() time.Time
	onError  func(rec CallRecord, err error)

	mu        sync.Mutex
	owner     StrategyKind
	claimedAt time.Time
	installed bool
	trackFn   TrackFunc
	queue     []CallRecord
	dropped   int

	deliverMu sync.Mutex
}

// TagHandleOption configures a TagHandle
type TagHandleOption func(*TagHandle)

// WithQueueCapacity bounds the pre-installation queue. Values below 1 are ignored.
func WithQueueCapacity(n int) TagHandleOption {
	return func(h *TagHandle) {
		if n > 0 {
			h.capacity = n
		}
	}
}

// WithClaimTTL sets how long an unbound claim is honoured. Zero disables expiry.
func WithClaimTTL(d time.Duration) TagHandleOption {
	return func(h *TagHandle) {
		h.claimTTL = d
	}
}

// WithNow sets the time source
func WithNow(now func() time.Time) TagHandleOption {
	return func(h *TagHandle) {
		if now != nil {
			h.now = now
		}
	}
}

// WithDeliveryErrorHandler receives errors returned by the track function
func WithDeliveryErrorHandler(fn func(rec CallRecord, err error)) TagHandleOption {
	return func(h *TagHandle) {
		h.onError = fn
	}
}

// NewTagHandle creates an empty, unclaimed handle
func NewTagHandle(opts ...TagHandleOption) *TagHandle {
	h := &TagHandle{
		capacity: DefaultQueueCapacity,
		claimTTL: DefaultClaimTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// TryClaim atomically takes the installer claim for owner. It returns true for
// exactly one caller among any number of concurrent callers, and false while
// the handle is installed or another live claim exists (including one held by
// owner itself). An unbound claim older than the claim TTL is treated as free.
func (h *TagHandle) TryClaim(owner StrategyKind) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.installed {
		return false
	}
	if h.owner != "" && !h.claimExpiredLocked() {
		return false
	}
	h.owner = owner
	h.claimedAt = h.now()
	return true
}

// Release gives up owner's claim so another strategy can install. It has no
// effect once installed or when owner does not hold the claim.
func (h *TagHandle) Release(owner StrategyKind) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.installed || h.owner != owner || owner == "" {
		return false
	}
	h.owner = ""
	h.claimedAt = time.Time{}
	return true
}

// EnqueueCall queues the call until installation, then forwards it immediately
func (h *TagHandle) EnqueueCall(rec CallRecord) {
	if rec.EnqueuedAt.IsZero() {
		rec.EnqueuedAt = h.now()
	}

	h.mu.Lock()
	if !h.installed {
		if len(h.queue) >= h.capacity {
			h.queue = h.queue[1:]
			h.dropped++
		}
		h.queue = append(h.queue, rec)
		h.mu.Unlock()
		return
	}
	fn := h.trackFn
	h.mu.Unlock()

	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()
	h.deliver(fn, rec)
}

// BindTrackFn installs fn on behalf of owner, then flushes the queued calls
// through it in enqueue order and clears the queue.
func (h *TagHandle) BindTrackFn(owner StrategyKind, fn TrackFunc) error {
	if fn == nil {
		return ErrNilTrackFunc
	}

	// Held across the flush so calls forwarded after installation wait for it.
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.mu.Lock()
	if h.installed {
		h.mu.Unlock()
		return ErrAlreadyInstalled
	}
	if h.owner != owner {
		h.mu.Unlock()
		return ErrNotClaimHolder
	}
	h.installed = true
	h.trackFn = fn
	queued := h.queue
	h.queue = nil
	h.mu.Unlock()

	for _, rec := range queued {
		h.deliver(fn, rec)
	}
	return nil
}

func (h *TagHandle) deliver(fn TrackFunc, rec CallRecord) {
	if err := fn(rec); err != nil && h.onError != nil {
		h.onError(rec, err)
	}
}

func (h *TagHandle) claimExpiredLocked() bool {
	if h.claimTTL <= 0 {
		return false
	}
	return h.now().Sub(h.claimedAt) >= h.claimTTL
}

// Installed reports whether a track function has been bound
func (h *TagHandle) Installed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.installed
}

// Owner returns the current claim holder, or empty when unclaimed or expired
func (h *TagHandle) Owner() StrategyKind {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.installed && h.owner != "" && h.claimExpiredLocked() {
		return ""
	}
	return h.owner
}

// Pending returns a copy of the queued calls
func (h *TagHandle) Pending() []CallRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]CallRecord, len(h.queue))
	copy(out, h.queue)
	return out
}

// Dropped returns how many queued calls were discarded because the queue was full
func (h *TagHandle) Dropped() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}
