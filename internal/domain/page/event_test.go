package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyChord_Matches(t *testing.T) {
	chord := KeyChord{Key: "i", Ctrl: true, Shift: true}

	t.Run("matches ignoring key case", func(t *testing.T) {
		assert.True(t, chord.Matches(&Event{Kind: EventKeyDown, Key: "I", Ctrl: true, Shift: true}))
	})

	t.Run("requires exact modifiers", func(t *testing.T) {
		assert.False(t, chord.Matches(&Event{Kind: EventKeyDown, Key: "I", Ctrl: true}))
		assert.False(t, chord.Matches(&Event{Kind: EventKeyDown, Key: "I", Ctrl: true, Shift: true, Alt: true}))
	})

	t.Run("physical code matches when the modifier changes the key", func(t *testing.T) {
		mac := KeyChord{Key: "I", Code: "KeyI", Meta: true, Alt: true}
		assert.True(t, mac.Matches(&Event{Kind: EventKeyDown, Key: "ˆ", Code: "KeyI", Meta: true, Alt: true}))
		assert.True(t, mac.Matches(&Event{Kind: EventKeyDown, Key: "Dead", Code: "KeyI", Meta: true, Alt: true}))
		assert.False(t, mac.Matches(&Event{Kind: EventKeyDown, Key: "Dead", Code: "KeyJ", Meta: true, Alt: true}))
		assert.False(t, chord.Matches(&Event{Kind: EventKeyDown, Key: "x", Code: "KeyI", Ctrl: true, Shift: true}),
			"chords without a code only match on key")
	})

	t.Run("renders modifiers in order", func(t *testing.T) {
		assert.Equal(t, "Ctrl+Shift+I", chord.String())
		assert.Equal(t, "Meta+U", KeyChord{Key: "u", Meta: true}.String())
	})
}

func TestListener_Handle(t *testing.T) {
	t.Run("unconditional listener prevents every event of its kind", func(t *testing.T) {
		calls := 0
		l := Listener{Kind: EventContextMenu, PreventDefault: true, Handler: func(*Event) { calls++ }}

		e := &Event{Kind: EventContextMenu}
		l.Handle(e)
		assert.True(t, e.DefaultPrevented())
		assert.Equal(t, 1, calls)

		other := &Event{Kind: EventDragStart}
		l.Handle(other)
		assert.False(t, other.DefaultPrevented())
		assert.Equal(t, 1, calls)
	})

	t.Run("chord listener only prevents listed chords", func(t *testing.T) {
		l := Listener{
			Kind:           EventKeyDown,
			Chords:         []KeyChord{{Key: "F12"}},
			PreventDefault: true,
		}

		f12 := &Event{Kind: EventKeyDown, Key: "F12"}
		l.Handle(f12)
		assert.True(t, f12.DefaultPrevented())

		typing := &Event{Kind: EventKeyDown, Key: "a"}
		l.Handle(typing)
		assert.False(t, typing.DefaultPrevented())
	})
}

func TestViewport_Delta(t *testing.T) {
	v := Viewport{OuterWidth: 1280, OuterHeight: 800, InnerWidth: 1280, InnerHeight: 640}
	w, h := v.Delta()
	assert.Equal(t, 0, w)
	assert.Equal(t, 160, h)
}
