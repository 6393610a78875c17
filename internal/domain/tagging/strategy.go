package tagging

import (
	"sort"

	"github.com/storefront/backend/internal/domain/page"
)

// StrategyKind identifies an injection strategy
type StrategyKind string

const (
	StrategyInline        StrategyKind = "inline"
	StrategyHeadPrepend   StrategyKind = "head_prepend"
	StrategyAsyncExternal StrategyKind = "async_external"
	StrategyBeacon        StrategyKind = "beacon"
)

// AllStrategyKinds returns every strategy kind in initiation order
func AllStrategyKinds() []StrategyKind {
	return []StrategyKind{
		StrategyInline,
		StrategyHeadPrepend,
		StrategyAsyncExternal,
		StrategyBeacon,
	}
}

// IsValid reports whether the kind is known
func (k StrategyKind) IsValid() bool {
	switch k {
	case StrategyInline, StrategyHeadPrepend, StrategyAsyncExternal, StrategyBeacon:
		return true
	}
	return false
}

// Guard is the idempotency guard protecting a strategy's side effects
type Guard string

const (
	// GuardClaim requires winning TagHandle.TryClaim before any side effect
	GuardClaim Guard = "claim"
	// GuardOncePerMount allows exactly one execution per mount, independent of the handle
	GuardOncePerMount Guard = "once_per_mount"
)

// Media types used by the strategies
const (
	MediaTypeJavaScript = "text/javascript"
	MediaTypeGIF        = "image/gif"
)

// StrategyDescriptor is a pure description of one injection strategy.
// The coordinator interprets descriptors; strategies carry no behaviour of their own.
type StrategyDescriptor struct {
	Kind      StrategyKind   `json:"kind"`
	Priority  int            `json:"priority"`
	MediaType string         `json:"media_type"`
	Guard     Guard          `json:"guard"`
	Placement page.Placement `json:"placement"`
	Async     bool           `json:"async"`
	Retryable bool           `json:"retryable"`
}

// ClaimsHandle reports whether the strategy installs the shared handle
func (d StrategyDescriptor) ClaimsHandle() bool {
	return d.Guard == GuardClaim
}

// DefaultStrategies returns the four strategies in priority order
func DefaultStrategies() []StrategyDescriptor {
	return []StrategyDescriptor{
		{
			Kind:      StrategyInline,
			Priority:  0,
			MediaType: MediaTypeJavaScript,
			Guard:     GuardClaim,
			Retryable: true,
		},
		{
			Kind:      StrategyHeadPrepend,
			Priority:  1,
			MediaType: MediaTypeJavaScript,
			Guard:     GuardClaim,
			Placement: page.PlacementHeadFirst,
			Async:     false,
			Retryable: true,
		},
		{
			Kind:      StrategyAsyncExternal,
			Priority:  2,
			MediaType: MediaTypeJavaScript,
			Guard:     GuardClaim,
			Placement: page.PlacementHeadAppend,
			Async:     true,
			Retryable: true,
		},
		{
			Kind:      StrategyBeacon,
			Priority:  3,
			MediaType: MediaTypeGIF,
			Guard:     GuardOncePerMount,
			Placement: page.PlacementBodyAppend,
			Retryable: false,
		},
	}
}

// SortByPriority returns a copy of the descriptors ordered by ascending priority.
// Descriptors with equal priority keep their relative order.
func SortByPriority(descs []StrategyDescriptor) []StrategyDescriptor {
	out := make([]StrategyDescriptor, len(descs))
	copy(out, descs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}
