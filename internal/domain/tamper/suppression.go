package tamper

import (
	"fmt"

	"github.com/storefront/backend/internal/domain/page"
)

// SuppressedKinds returns the event kinds suppressed for the whole mounted lifetime
func SuppressedKinds() []page.EventKind {
	return []page.EventKind{
		page.EventContextMenu,
		page.EventKeyDown,
		page.EventSelectStart,
		page.EventDragStart,
	}
}

// BlockedChords returns the key chords that open inspection tools or the page source.
// Ctrl chords are mirrored with Meta for macOS.
func BlockedChords() []page.KeyChord {
	chords := []page.KeyChord{{Key: "F12", Code: "F12"}}
	for _, key := range []string{"I", "J", "C"} {
		code := "Key" + key
		chords = append(chords,
			page.KeyChord{Key: key, Code: code, Ctrl: true, Shift: true},
			page.KeyChord{Key: key, Code: code, Meta: true, Alt: true},
		)
	}
	chords = append(chords,
		page.KeyChord{Key: "U", Code: "KeyU", Ctrl: true},
		page.KeyChord{Key: "U", Code: "KeyU", Meta: true, Alt: true},
	)
	return chords
}

// SuppressionRegistry maps each suppressed event kind to its active listener.
// It is not safe for concurrent use; the detector serializes access.
type SuppressionRegistry struct {
	entries map[page.EventKind]page.ListenerID
}

// NewSuppressionRegistry creates an empty registry
func NewSuppressionRegistry() *SuppressionRegistry {
	return &SuppressionRegistry{entries: make(map[page.EventKind]page.ListenerID)}
}

// Register records the listener for kind. A kind can only be registered once.
func (r *SuppressionRegistry) Register(kind page.EventKind, id page.ListenerID) error {
	if _, exists := r.entries[kind]; exists {
		return fmt.Errorf("suppression handler for %s already registered", kind)
	}
	r.entries[kind] = id
	return nil
}

// Lookup returns the listener registered for kind
func (r *SuppressionRegistry) Lookup(kind page.EventKind) (page.ListenerID, bool) {
	id, ok := r.entries[kind]
	return id, ok
}

// Drain empties the registry and returns the removed entries
func (r *SuppressionRegistry) Drain() map[page.EventKind]page.ListenerID {
	out := r.entries
	r.entries = make(map[page.EventKind]page.ListenerID)
	return out
}

// Len returns the number of active handlers
func (r *SuppressionRegistry) Len() int {
	return len(r.entries)
}

// IsEmpty reports whether no handler is registered
func (r *SuppressionRegistry) IsEmpty() bool {
	return len(r.entries) == 0
}
