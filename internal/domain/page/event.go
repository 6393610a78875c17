package page

import "strings"

// EventKind is a DOM event type
type EventKind string

const (
	EventContextMenu EventKind = "contextmenu"
	EventKeyDown     EventKind = "keydown"
	EventSelectStart EventKind = "selectstart"
	EventDragStart   EventKind = "dragstart"
)

// Event is a dispatched DOM event
type Event struct {
	Kind EventKind
	Key  string
	// Code is the physical key (KeyboardEvent.code), e.g. "KeyI"
	Code  string
	Ctrl  bool
	Shift bool
	Alt   bool
	Meta  bool

	defaultPrevented bool
}

// PreventDefault cancels the browser's default action for the event
func (e *Event) PreventDefault() {
	e.defaultPrevented = true
}

// DefaultPrevented reports whether PreventDefault was called
func (e *Event) DefaultPrevented() bool {
	return e.defaultPrevented
}

// KeyChord is a key plus the modifiers that must be held with it. Code, when
// set, names the physical key and also matches layouts where a modifier
// changes the produced character (Option on macOS).
type KeyChord struct {
	Key   string
	Code  string
	Ctrl  bool
	Shift bool
	Alt   bool
	Meta  bool
}

// Matches reports whether the event was produced by exactly this chord.
// Key comparison ignores case.
func (k KeyChord) Matches(e *Event) bool {
	keyMatch := strings.EqualFold(k.Key, e.Key) || (k.Code != "" && k.Code == e.Code)
	return keyMatch &&
		k.Ctrl == e.Ctrl &&
		k.Shift == e.Shift &&
		k.Alt == e.Alt &&
		k.Meta == e.Meta
}

// String renders the chord as e.g. "Ctrl+Shift+I"
func (k KeyChord) String() string {
	var parts []string
	if k.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if k.Meta {
		parts = append(parts, "Meta")
	}
	if k.Alt {
		parts = append(parts, "Alt")
	}
	if k.Shift {
		parts = append(parts, "Shift")
	}
	parts = append(parts, strings.ToUpper(k.Key))
	return strings.Join(parts, "+")
}

// Listener is a declarative event listener.
//
// When Chords is empty every event of Kind matches; otherwise only events
// produced by one of the chords do. Matching events have their default action
// prevented when PreventDefault is set, and are then passed to Handler.
type Listener struct {
	Kind           EventKind
	Chords         []KeyChord
	PreventDefault bool
	Handler        func(e *Event)
}

// Matches reports whether the listener applies to the event
func (l Listener) Matches(e *Event) bool {
	if e.Kind != l.Kind {
		return false
	}
	if len(l.Chords) == 0 {
		return true
	}
	for _, c := range l.Chords {
		if c.Matches(e) {
			return true
		}
	}
	return false
}

// Handle applies the listener to a dispatched event
func (l Listener) Handle(e *Event) {
	if !l.Matches(e) {
		return
	}
	if l.PreventDefault {
		e.PreventDefault()
	}
	if l.Handler != nil {
		l.Handler(e)
	}
}
