package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState(t *testing.T) {
	var s State

	s.Apply(Event{Kind: KeyPress, Key: KeyW})
	s.Apply(Event{Kind: KeyPress, Key: KeyS})
	s.Apply(Event{Kind: Resize, Width: 10, Height: 10, Key: KeyA})
	assert.True(t, s.Down(KeyW))
	assert.False(t, s.Down(KeyA))
	assert.Zero(t, s.Axis(KeyW, KeyS))

	s.Apply(Event{Kind: KeyRelease, Key: KeyS})
	assert.Equal(t, float32(1), s.Axis(KeyW, KeyS))
	assert.Equal(t, float32(-1), s.Axis(KeyS, KeyW))

	s.Apply(Event{Kind: KeyPress, Key: KeyUnknown})
	s.Apply(Event{Kind: KeyPress, Key: Key(999)})
	assert.False(t, s.Down(Key(999)))

	s.Release()
	assert.False(t, s.Down(KeyW))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "minimize", Minimize.String())
	assert.Equal(t, "key-press", KeyPress.String())
	assert.Equal(t, "key-release", KeyRelease.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}

func TestArrowKeys(t *testing.T) {
	var s State

	s.Apply(Event{Kind: KeyPress, Key: KeyArrowUp})
	s.Apply(Event{Kind: KeyPress, Key: KeyArrowLeft})
	assert.Equal(t, float32(1), s.Axis(KeyArrowUp, KeyArrowDown))
	assert.Equal(t, float32(-1), s.Axis(KeyArrowRight, KeyArrowLeft))

	s.Apply(Event{Kind: KeyRelease, Key: KeyArrowUp})
	assert.False(t, s.Down(KeyArrowUp))
	assert.True(t, s.Down(KeyArrowLeft))
}
