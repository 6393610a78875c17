package browser

import (
	"encoding/json"
	"fmt"

	"github.com/storefront/backend/internal/domain/page"
)

// bindingName is the runtime binding through which page scripts report load
// outcomes and suppressed events back to Go.
const bindingName = "__storefrontNotify"

const (
	messageLoad  = "load"
	messageEvent = "event"
)

// message is the payload sent through the binding
type message struct {
	Type  string `json:"type"`
	ID    uint64 `json:"id"`
	OK    bool   `json:"ok,omitempty"`
	Error string `json:"error,omitempty"`
	Kind  string `json:"kind,omitempty"`
	Key   string `json:"key,omitempty"`
	Code  string `json:"code,omitempty"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Shift bool   `json:"shift,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
	Meta  bool   `json:"meta,omitempty"`
}

func parseMessage(payload string) (message, error) {
	var m message
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return message{}, fmt.Errorf("decode binding payload: %w", err)
	}
	if m.Type != messageLoad && m.Type != messageEvent {
		return message{}, fmt.Errorf("unknown binding message type %q", m.Type)
	}
	return m, nil
}

func (m message) event() page.Event {
	return page.Event{
		Kind:  page.EventKind(m.Kind),
		Key:   m.Key,
		Code:  m.Code,
		Ctrl:  m.Ctrl,
		Shift: m.Shift,
		Alt:   m.Alt,
		Meta:  m.Meta,
	}
}

// call renders fn applied to a JSON-encoded argument.
func call(fn string, arg any) (string, error) {
	data, err := json.Marshal(arg)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s)(%s)", fn, data), nil
}

func insertScriptJS(id uint64, s page.Script, at page.Placement) (string, error) {
	return call(`function (p) {
  var el = document.createElement("script");
  el.src = p.src;
  if (p.type) { el.type = p.type; }
  el.async = p.async;
  el.onload = function () { window[p.binding](JSON.stringify({type: "load", id: p.id, ok: true})); };
  el.onerror = function () { window[p.binding](JSON.stringify({type: "load", id: p.id, error: "failed to load " + p.src})); };
  var parent = p.head ? (document.head || document.documentElement) : (document.body || document.documentElement);
  if (p.first && parent.firstChild) { parent.insertBefore(el, parent.firstChild); } else { parent.appendChild(el); }
  return true;
}`, map[string]any{
		"id":      id,
		"src":     s.Src,
		"type":    s.Type,
		"async":   s.Async,
		"head":    at != page.PlacementBodyAppend,
		"first":   at == page.PlacementHeadFirst,
		"binding": bindingName,
	})
}

func insertImageJS(img page.Image, at page.Placement) (string, error) {
	return call(`function (p) {
  var el = document.createElement("img");
  el.width = p.width;
  el.height = p.height;
  el.alt = "";
  el.style.display = "none";
  el.src = p.src;
  var parent = p.head ? (document.head || document.documentElement) : (document.body || document.documentElement);
  parent.appendChild(el);
  return true;
}`, map[string]any{
		"src":    img.Src,
		"width":  img.Width,
		"height": img.Height,
		"head":   at != page.PlacementBodyAppend,
	})
}

type chordJSON struct {
	Key   string `json:"key"`
	Code  string `json:"code"`
	Ctrl  bool   `json:"ctrl"`
	Shift bool   `json:"shift"`
	Alt   bool   `json:"alt"`
	Meta  bool   `json:"meta"`
}

// addListenerJS installs a capturing listener. Chord matching and
// preventDefault happen in the page because the default action cannot be
// cancelled after the handler returns.
func addListenerJS(id uint64, l page.Listener) (string, error) {
	chords := make([]chordJSON, 0, len(l.Chords))
	for _, c := range l.Chords {
		chords = append(chords, chordJSON{Key: c.Key, Code: c.Code, Ctrl: c.Ctrl, Shift: c.Shift, Alt: c.Alt, Meta: c.Meta})
	}
	return call(`function (p) {
  var store = window.__storefrontListeners = window.__storefrontListeners || {};
  var matches = function (e) {
    if (p.chords.length === 0) { return true; }
    var key = String(e.key || "").toLowerCase();
    var code = String(e.code || "");
    for (var i = 0; i < p.chords.length; i++) {
      var c = p.chords[i];
      var hit = c.key.toLowerCase() === key || (c.code !== "" && c.code === code);
      if (hit && c.ctrl === !!e.ctrlKey && c.shift === !!e.shiftKey &&
          c.alt === !!e.altKey && c.meta === !!e.metaKey) { return true; }
    }
    return false;
  };
  var handler = function (e) {
    if (!matches(e)) { return; }
    if (p.prevent) { e.preventDefault(); }
    window[p.binding](JSON.stringify({type: "event", id: p.id, kind: e.type, key: e.key || "",
      code: e.code || "", ctrl: !!e.ctrlKey, shift: !!e.shiftKey, alt: !!e.altKey, meta: !!e.metaKey}));
  };
  document.addEventListener(p.kind, handler, true);
  store[p.id] = {kind: p.kind, handler: handler};
  return true;
}`, map[string]any{
		"id":      id,
		"kind":    string(l.Kind),
		"chords":  chords,
		"prevent": l.PreventDefault,
		"binding": bindingName,
	})
}

func removeListenerJS(id uint64) (string, error) {
	return call(`function (id) {
  var store = window.__storefrontListeners || {};
  var entry = store[id];
  if (!entry) { return false; }
  document.removeEventListener(entry.kind, entry.handler, true);
  delete store[id];
  return true;
}`, id)
}

func lookupTrackJS(name string) (string, error) {
	return call(`function (name) { return typeof window[name] === "function"; }`, name)
}

func invokeTrackJS(name, event string, args []any) (string, error) {
	return call(`function (p) {
  window[p.name].apply(window, [p.event].concat(p.args));
  return true;
}`, map[string]any{
		"name":  name,
		"event": event,
		"args":  nonNil(args),
	})
}

func consoleWarnJS(message string) (string, error) {
	return call(`function (msg) { console.warn(msg); return true; }`, message)
}

const viewportJS = `({outerWidth: window.outerWidth, outerHeight: window.outerHeight,
  innerWidth: window.innerWidth, innerHeight: window.innerHeight})`

type viewportResult struct {
	OuterWidth  int `json:"outerWidth"`
	OuterHeight int `json:"outerHeight"`
	InnerWidth  int `json:"innerWidth"`
	InnerHeight int `json:"innerHeight"`
}

func nonNil(args []any) []any {
	if args == nil {
		return []any{}
	}
	return args
}
