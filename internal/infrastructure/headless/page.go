// Package headless implements page.Document in-process: a goja VM driven by a
// goja_nodejs event loop executes script text, and a small in-memory DOM records
// inserted elements, listeners and the viewport.
//
// Every script evaluation runs on the single event-loop goroutine, so scripts
// see the same run-to-completion semantics as in a browser tab. Load callbacks
// are invoked off the loop so that a callback may evaluate script again.
package headless

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
	"github.com/storefront/backend/internal/domain/page"
	"go.uber.org/zap"
)

// ErrStalled is returned by a Blocker to keep a load pending forever
var ErrStalled = errors.New("load stalled")

// ErrNotFound is the load error for a URL with no registered resource
var ErrNotFound = errors.New("resource not found")

// Node is an element inserted into the document
type Node struct {
	Tag       string
	Src       string
	Type      string
	Async     bool
	Placement page.Placement
	Width     int
	Height    int
}

// Blocker inspects a script load and may fail it (content blocker) or stall it
// by returning ErrStalled
type Blocker func(n Node) error

// ConsoleEntry is a captured console message
type ConsoleEntry struct {
	Level   string
	Message string
}

type pendingLoad struct {
	node Node
	cb   page.LoadCallbacks
}

// Page is an in-process document
type Page struct {
	logger    *zap.Logger
	loop      *eventloop.EventLoop
	stopped   chan struct{}
	autoLoad  bool
	blocker   Blocker
	resources map[string]string

	mu        sync.Mutex
	head      []Node
	body      []Node
	requests  []string
	pending   []pendingLoad
	stalled   []pendingLoad
	listeners map[page.ListenerID]page.Listener
	order     []page.ListenerID
	nextID    page.ListenerID
	viewport  page.Viewport
	console   []ConsoleEntry
	closed    bool
	closeOnce sync.Once
}

// Option configures a Page
type Option func(*Page)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Page) {
		p.logger = logger
	}
}

// WithAutoLoad completes script loads asynchronously as soon as they are inserted.
// Without it, loads wait for ProcessLoads.
func WithAutoLoad() Option {
	return func(p *Page) {
		p.autoLoad = true
	}
}

// WithBlocker installs a content blocker consulted on every script load
func WithBlocker(b Blocker) Option {
	return func(p *Page) {
		p.blocker = b
	}
}

// WithResource registers the body served for a script URL
func WithResource(url, body string) Option {
	return func(p *Page) {
		p.resources[url] = body
	}
}

// WithViewport sets the initial viewport
func WithViewport(v page.Viewport) Option {
	return func(p *Page) {
		p.viewport = v
	}
}

// DefaultViewport is a desktop window without docked tools
var DefaultViewport = page.Viewport{OuterWidth: 1280, OuterHeight: 800, InnerWidth: 1280, InnerHeight: 720}

// New starts a page and its event loop. Close releases them.
func New(opts ...Option) *Page {
	p := &Page{
		logger:    zap.NewNop(),
		stopped:   make(chan struct{}),
		resources: make(map[string]string),
		listeners: make(map[page.ListenerID]page.Listener),
		viewport:  DefaultViewport,
	}
	for _, opt := range opts {
		opt(p)
	}

	registry := new(require.Registry)
	registry.RegisterNativeModule("console", console.RequireWithPrinter(&consolePrinter{p: p}))
	p.loop = eventloop.NewEventLoop(eventloop.WithRegistry(registry))
	p.loop.Start()
	return p
}

// run executes fn on the event loop and waits for it
func (p *Page) run(ctx context.Context, fn func(vm *goja.Runtime) error) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return page.ErrDocumentClosed
	}

	done := make(chan error, 1)
	p.loop.RunOnLoop(func(vm *goja.Runtime) {
		done <- fn(vm)
	})

	select {
	case err := <-done:
		return err
	case <-p.stopped:
		return page.ErrDocumentClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EvalInline evaluates script text on the event loop
func (p *Page) EvalInline(ctx context.Context, source string) error {
	return p.run(ctx, func(vm *goja.Runtime) error {
		_, err := vm.RunString(source)
		return err
	})
}

// Eval evaluates an expression and exports its value
func (p *Page) Eval(ctx context.Context, expr string) (any, error) {
	var out any
	err := p.run(ctx, func(vm *goja.Runtime) error {
		v, err := vm.RunString(expr)
		if err != nil {
			return err
		}
		out = v.Export()
		return nil
	})
	return out, err
}

// InsertScript records the element and schedules its load
func (p *Page) InsertScript(ctx context.Context, s page.Script, at page.Placement, cb page.LoadCallbacks) error {
	n := Node{Tag: "script", Src: s.Src, Type: s.Type, Async: s.Async, Placement: at}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return page.ErrDocumentClosed
	}
	p.insertLocked(n)
	p.requests = append(p.requests, s.Src)
	load := pendingLoad{node: n, cb: cb}
	if !p.autoLoad {
		p.pending = append(p.pending, load)
	}
	p.mu.Unlock()

	if p.autoLoad {
		go p.complete(context.Background(), load)
	}
	return nil
}

// InsertImage records the element and its request
func (p *Page) InsertImage(ctx context.Context, img page.Image, at page.Placement) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return page.ErrDocumentClosed
	}
	p.insertLocked(Node{Tag: "img", Src: img.Src, Placement: at, Width: img.Width, Height: img.Height})
	p.requests = append(p.requests, img.Src)
	return nil
}

func (p *Page) insertLocked(n Node) {
	switch n.Placement {
	case page.PlacementHeadFirst:
		p.head = append([]Node{n}, p.head...)
	case page.PlacementHeadAppend:
		p.head = append(p.head, n)
	default:
		p.body = append(p.body, n)
	}
}

// ProcessLoads completes every pending load in insertion order and returns how
// many completed. Stalled loads stay pending forever.
func (p *Page) ProcessLoads(ctx context.Context) int {
	p.mu.Lock()
	loads := p.pending
	p.pending = nil
	p.mu.Unlock()

	completed := 0
	for _, l := range loads {
		if p.complete(ctx, l) {
			completed++
		}
	}
	return completed
}

// complete fetches and evaluates one script, then fires its callback
func (p *Page) complete(ctx context.Context, l pendingLoad) bool {
	if p.blocker != nil {
		if err := p.blocker(l.node); err != nil {
			if errors.Is(err, ErrStalled) {
				p.mu.Lock()
				p.stalled = append(p.stalled, l)
				p.mu.Unlock()
				return false
			}
			p.fail(l, err)
			return true
		}
	}

	p.mu.Lock()
	body, ok := p.resources[l.node.Src]
	p.mu.Unlock()
	if !ok {
		p.fail(l, fmt.Errorf("%w: %s", ErrNotFound, l.node.Src))
		return true
	}

	if err := p.EvalInline(ctx, body); err != nil {
		p.fail(l, fmt.Errorf("evaluate %s: %w", l.node.Src, err))
		return true
	}
	if l.cb.OnLoad != nil {
		l.cb.OnLoad()
	}
	return true
}

func (p *Page) fail(l pendingLoad, err error) {
	p.logger.Debug("Script load failed", zap.String("src", l.node.Src), zap.Error(err))
	if l.cb.OnError != nil {
		l.cb.OnError(err)
	}
}

// LookupTrack resolves a global function and returns a caller bound to this page
func (p *Page) LookupTrack(ctx context.Context, name string) (page.TrackFunc, error) {
	var fn goja.Callable
	err := p.run(ctx, func(vm *goja.Runtime) error {
		v := vm.Get(name)
		if v == nil {
			return page.ErrTrackNotDefined
		}
		callable, ok := goja.AssertFunction(v)
		if !ok {
			return page.ErrTrackNotDefined
		}
		fn = callable
		return nil
	})
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, event string, args ...any) error {
		return p.run(ctx, func(vm *goja.Runtime) error {
			values := make([]goja.Value, 0, len(args)+1)
			values = append(values, vm.ToValue(event))
			for _, a := range args {
				values = append(values, vm.ToValue(a))
			}
			_, err := fn(goja.Undefined(), values...)
			return err
		})
	}, nil
}

// AddEventListener registers a listener
func (p *Page) AddEventListener(ctx context.Context, l page.Listener) (page.ListenerID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, page.ErrDocumentClosed
	}
	p.nextID++
	p.listeners[p.nextID] = l
	p.order = append(p.order, p.nextID)
	return p.nextID, nil
}

// RemoveEventListener removes a listener
func (p *Page) RemoveEventListener(ctx context.Context, id page.ListenerID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.listeners[id]; !ok {
		return page.ErrListenerNotFound
	}
	delete(p.listeners, id)
	for i, other := range p.order {
		if other == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return nil
}

// Dispatch delivers an event to the matching listeners in registration order
// and reports whether its default action was prevented
func (p *Page) Dispatch(e *page.Event) bool {
	p.mu.Lock()
	ls := make([]page.Listener, 0, len(p.order))
	for _, id := range p.order {
		ls = append(ls, p.listeners[id])
	}
	p.mu.Unlock()

	for _, l := range ls {
		l.Handle(e)
	}
	return e.DefaultPrevented()
}

// Viewport returns the current viewport
func (p *Page) Viewport(ctx context.Context) (page.Viewport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return page.Viewport{}, page.ErrDocumentClosed
	}
	return p.viewport, nil
}

// SetViewport changes the window dimensions, as docking developer tools would
func (p *Page) SetViewport(v page.Viewport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.viewport = v
}

// ConsoleWarn records a console warning
func (p *Page) ConsoleWarn(ctx context.Context, message string) error {
	p.appendConsole("warn", message)
	return nil
}

func (p *Page) appendConsole(level, message string) {
	p.mu.Lock()
	p.console = append(p.console, ConsoleEntry{Level: level, Message: message})
	p.mu.Unlock()
	p.logger.Debug("Page console", zap.String("level", level), zap.String("message", message))
}

// Head returns the <head> children in document order
func (p *Page) Head() []Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Node(nil), p.head...)
}

// Body returns the <body> children in document order
func (p *Page) Body() []Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Node(nil), p.body...)
}

// Requests returns every URL requested by inserted elements, in order
func (p *Page) Requests() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.requests...)
}

// ListenerCount returns the number of registered listeners
func (p *Page) ListenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

// PendingLoads returns the number of loads waiting for ProcessLoads
func (p *Page) PendingLoads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// StalledLoads returns the number of loads that will never complete
func (p *Page) StalledLoads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stalled)
}

// Console returns the captured console messages
func (p *Page) Console() []ConsoleEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ConsoleEntry(nil), p.console...)
}

// Close stops the event loop. Pending and stalled loads never complete.
func (p *Page) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.stopped)
		p.loop.Stop()
	})
	return nil
}

// consolePrinter routes script console output into the page
type consolePrinter struct {
	p *Page
}

func (c *consolePrinter) Log(msg string)   { c.p.appendConsole("log", msg) }
func (c *consolePrinter) Warn(msg string)  { c.p.appendConsole("warn", msg) }
func (c *consolePrinter) Error(msg string) { c.p.appendConsole("error", msg) }

// Ensure Page implements page.Document
var _ page.Document = (*Page)(nil)
