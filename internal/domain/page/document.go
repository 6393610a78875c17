// Package page describes the browser capability surface consumed by the tag
// coordinator and the tamper detector. Implementations live in infrastructure
// (an in-process goja page and a chromedp-driven Chrome tab).
package page

import (
	"context"
	"errors"
)

// Placement describes where a new element is inserted into the document
type Placement int

const (
	// PlacementHeadFirst inserts the element as the first child of <head>
	PlacementHeadFirst Placement = iota
	// PlacementHeadAppend appends the element to <head>
	PlacementHeadAppend
	// PlacementBodyAppend appends the element to <body>
	PlacementBodyAppend
)

// String returns the placement name
func (p Placement) String() string {
	switch p {
	case PlacementHeadFirst:
		return "head-first"
	case PlacementHeadAppend:
		return "head-append"
	case PlacementBodyAppend:
		return "body-append"
	default:
		return "unknown"
	}
}

// Script is an external script element to insert
type Script struct {
	Src   string
	Type  string
	Async bool
}

// Image is an image element to insert. Width and Height are in CSS pixels.
type Image struct {
	Src    string
	Width  int
	Height int
}

// LoadCallbacks receives the outcome of an external script load.
// Exactly one of OnLoad or OnError is invoked, at most once, and possibly never
// when the load stalls.
type LoadCallbacks struct {
	OnLoad  func()
	OnError func(err error)
}

// Viewport holds the window dimensions read from the document
type Viewport struct {
	OuterWidth  int
	OuterHeight int
	InnerWidth  int
	InnerHeight int
}

// Delta returns the outer minus inner dimensions
func (v Viewport) Delta() (width, height int) {
	return v.OuterWidth - v.InnerWidth, v.OuterHeight - v.InnerHeight
}

// TrackFunc invokes the analytics global installed in the page
type TrackFunc func(ctx context.Context, event string, args ...any) error

// ListenerID identifies a registered event listener
type ListenerID uint64

// Document is the DOM capability surface. It is owned by the environment, not by
// the coordinator: callers only create, insert, register and read.
type Document interface {
	// EvalInline evaluates self-contained script text synchronously
	EvalInline(ctx context.Context, source string) error
	// InsertScript inserts an external script and reports its load outcome through cb
	InsertScript(ctx context.Context, s Script, at Placement, cb LoadCallbacks) error
	// InsertImage inserts an image element, which issues a fire-and-forget request
	InsertImage(ctx context.Context, img Image, at Placement) error
	// LookupTrack resolves the named global function
	LookupTrack(ctx context.Context, name string) (TrackFunc, error)
	// AddEventListener registers a listener on the document
	AddEventListener(ctx context.Context, l Listener) (ListenerID, error)
	// RemoveEventListener removes a listener registered by AddEventListener
	RemoveEventListener(ctx context.Context, id ListenerID) error
	// Viewport reads the current window dimensions
	Viewport(ctx context.Context) (Viewport, error)
	// ConsoleWarn writes a warning to the page console
	ConsoleWarn(ctx context.Context, message string) error
}

var (
	// ErrTrackNotDefined is returned by LookupTrack when the global is missing or not callable
	ErrTrackNotDefined = errors.New("track global is not defined")
	// ErrListenerNotFound is returned when removing an unknown listener
	ErrListenerNotFound = errors.New("listener not found")
	// ErrDocumentClosed is returned by a document whose page has gone away
	ErrDocumentClosed = errors.New("document is closed")
)
