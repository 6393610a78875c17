package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/storefront/backend/internal/domain/page"
	"go.uber.org/zap"
)

// ConsoleEntry is a console message observed in the tab
type ConsoleEntry struct {
	Level   string
	Message string
}

// Page is a Chrome tab exposed as a page.Document
type Page struct {
	tabCtx  context.Context
	closeFn func()
	timeout time.Duration
	logger  *zap.Logger

	mu        sync.Mutex
	nextID    uint64
	loads     map[uint64]page.LoadCallbacks
	listeners map[uint64]page.Listener
	requests  []string
	console   []ConsoleEntry
	closed    bool
}

func newPage(tabCtx context.Context, closeFn func(), timeout time.Duration, logger *zap.Logger) *Page {
	return &Page{
		tabCtx:    tabCtx,
		closeFn:   closeFn,
		timeout:   timeout,
		logger:    logger,
		loads:     make(map[uint64]page.LoadCallbacks),
		listeners: make(map[uint64]page.Listener),
	}
}

// runContext derives a chromedp context for one round trip that is also
// cancelled with ctx.
func (p *Page) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(p.tabCtx, p.timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (p *Page) eval(ctx context.Context, expr string, res any) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return page.ErrDocumentClosed
	}

	runCtx, cancel := p.runContext(ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Evaluate(expr, res))
}

func (p *Page) evalBuilt(ctx context.Context, build func() (string, error), res any) error {
	expr, err := build()
	if err != nil {
		return err
	}
	return p.eval(ctx, expr, res)
}

func (p *Page) allocID() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	return p.nextID
}

// EvalInline evaluates source in the page's main world
func (p *Page) EvalInline(ctx context.Context, source string) error {
	return p.eval(ctx, source, nil)
}

// InsertScript inserts an external script. The outcome arrives through the
// page binding.
func (p *Page) InsertScript(ctx context.Context, s page.Script, at page.Placement, cb page.LoadCallbacks) error {
	id := p.allocID()
	p.mu.Lock()
	p.loads[id] = cb
	p.mu.Unlock()

	var ok bool
	err := p.evalBuilt(ctx, func() (string, error) { return insertScriptJS(id, s, at) }, &ok)
	if err != nil {
		p.mu.Lock()
		delete(p.loads, id)
		p.mu.Unlock()
		return fmt.Errorf("insert script %s: %w", s.Src, err)
	}
	return nil
}

// InsertImage inserts a hidden image element
func (p *Page) InsertImage(ctx context.Context, img page.Image, at page.Placement) error {
	var ok bool
	if err := p.evalBuilt(ctx, func() (string, error) { return insertImageJS(img, at) }, &ok); err != nil {
		return fmt.Errorf("insert image %s: %w", img.Src, err)
	}
	return nil
}

// LookupTrack resolves window[name]. The returned function evaluates a call
// in the tab.
func (p *Page) LookupTrack(ctx context.Context, name string) (page.TrackFunc, error) {
	var isFunc bool
	if err := p.evalBuilt(ctx, func() (string, error) { return lookupTrackJS(name) }, &isFunc); err != nil {
		return nil, err
	}
	if !isFunc {
		return nil, fmt.Errorf("%w: %s", page.ErrTrackNotDefined, name)
	}
	return func(ctx context.Context, event string, args ...any) error {
		var ok bool
		return p.evalBuilt(ctx, func() (string, error) { return invokeTrackJS(name, event, args) }, &ok)
	}, nil
}

// AddEventListener installs a capturing document listener
func (p *Page) AddEventListener(ctx context.Context, l page.Listener) (page.ListenerID, error) {
	id := p.allocID()
	p.mu.Lock()
	p.listeners[id] = l
	p.mu.Unlock()

	var ok bool
	if err := p.evalBuilt(ctx, func() (string, error) { return addListenerJS(id, l) }, &ok); err != nil {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
		return 0, fmt.Errorf("add %s listener: %w", l.Kind, err)
	}
	return page.ListenerID(id), nil
}

// RemoveEventListener removes a listener added by AddEventListener
func (p *Page) RemoveEventListener(ctx context.Context, id page.ListenerID) error {
	p.mu.Lock()
	_, ok := p.listeners[uint64(id)]
	delete(p.listeners, uint64(id))
	p.mu.Unlock()
	if !ok {
		return page.ErrListenerNotFound
	}

	var removed bool
	return p.evalBuilt(ctx, func() (string, error) { return removeListenerJS(uint64(id)) }, &removed)
}

// Viewport reads the window dimensions
func (p *Page) Viewport(ctx context.Context) (page.Viewport, error) {
	var v viewportResult
	if err := p.eval(ctx, viewportJS, &v); err != nil {
		return page.Viewport{}, err
	}
	return page.Viewport{
		OuterWidth:  v.OuterWidth,
		OuterHeight: v.OuterHeight,
		InnerWidth:  v.InnerWidth,
		InnerHeight: v.InnerHeight,
	}, nil
}

// ConsoleWarn writes a warning to the tab console
func (p *Page) ConsoleWarn(ctx context.Context, msg string) error {
	var ok bool
	return p.evalBuilt(ctx, func() (string, error) { return consoleWarnJS(msg) }, &ok)
}

// Requests returns the URLs the tab has requested so far
func (p *Page) Requests() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.requests...)
}

// Console returns the console messages observed so far
func (p *Page) Console() []ConsoleEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ConsoleEntry(nil), p.console...)
}

// Close closes the tab and frees its launcher slot. Pending load callbacks
// are dropped.
func (p *Page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.loads = map[uint64]page.LoadCallbacks{}
	p.listeners = map[uint64]page.Listener{}
	p.mu.Unlock()
	p.closeFn()
	return nil
}

// onTargetEvent runs on chromedp's event goroutine and must not issue
// DevTools commands, so callbacks are dispatched on their own goroutines.
func (p *Page) onTargetEvent(ev any) {
	switch ev := ev.(type) {
	case *runtime.EventBindingCalled:
		if ev.Name == bindingName {
			go p.handleBinding(ev.Payload)
		}
	case *network.EventRequestWillBeSent:
		if ev.Request != nil {
			p.mu.Lock()
			p.requests = append(p.requests, ev.Request.URL)
			p.mu.Unlock()
		}
	case *runtime.EventConsoleAPICalled:
		entry := ConsoleEntry{Level: string(ev.Type)}
		for i, arg := range ev.Args {
			if i > 0 {
				entry.Message += " "
			}
			if arg.Value != nil {
				entry.Message += string(arg.Value)
			} else {
				entry.Message += arg.Description
			}
		}
		p.mu.Lock()
		p.console = append(p.console, entry)
		p.mu.Unlock()
	}
}

func (p *Page) handleBinding(payload string) {
	msg, err := parseMessage(payload)
	if err != nil {
		p.logger.Warn("Ignoring binding payload", zap.Error(err))
		return
	}
	p.dispatch(msg)
}

func (p *Page) dispatch(msg message) {
	switch msg.Type {
	case messageLoad:
		p.mu.Lock()
		cb, ok := p.loads[msg.ID]
		delete(p.loads, msg.ID)
		p.mu.Unlock()
		if !ok {
			return
		}
		if msg.OK {
			if cb.OnLoad != nil {
				cb.OnLoad()
			}
			return
		}
		if cb.OnError != nil {
			cb.OnError(errors.New(msg.Error))
		}
	case messageEvent:
		p.mu.Lock()
		l, ok := p.listeners[msg.ID]
		p.mu.Unlock()
		if !ok {
			return
		}
		e := msg.event()
		l.Handle(&e)
	}
}

var _ page.Document = (*Page)(nil)
