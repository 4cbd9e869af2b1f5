// Package input describes window events independently of the windowing system.
package input

import "fmt"

// Kind is the type of an Event.
type Kind int

// Event kinds.
const (
	// Quit asks the program to stop.
	Quit Kind = iota + 1
	// Resize reports a new framebuffer size.
	Resize
	// Minimize reports that the window was iconified.
	Minimize
	// Restore reports that an iconified window is shown again.
	Restore
	// KeyPress and KeyRelease report a key changing state.
	KeyPress
	KeyRelease
)

func (k Kind) String() string {
	switch k {
	case Quit:
		return "quit"
	case Resize:
		return "resize"
	case Minimize:
		return "minimize"
	case Restore:
		return "restore"
	case KeyPress:
		return "key-press"
	case KeyRelease:
		return "key-release"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is something that happened to the window.
type Event struct {
	Kind Kind

	// Width and Height are set for Resize events.
	Width, Height int

	// Key is set for key events.
	Key Key
}

// Key is a keyboard key the program reacts to.
type Key int

// Keys.
const (
	KeyUnknown Key = iota
	KeyW
	KeyA
	KeyS
	KeyD
	KeySpace
	KeyShift
	KeyArrowUp
	KeyArrowDown
	KeyArrowLeft
	KeyArrowRight
	KeyEscape
	KeyF1

	keyCount
)

// State tracks which keys are held down.
type State struct {
	down [keyCount]bool
}

// Apply updates the state with a key event and ignores other events.
func (s *State) Apply(e Event) {
	if e.Key <= KeyUnknown || e.Key >= keyCount {
		return
	}
	switch e.Kind {
	case KeyPress:
		s.down[e.Key] = true
	case KeyRelease:
		s.down[e.Key] = false
	}
}

// Down reports whether k is held down.
func (s *State) Down(k Key) bool {
	if k <= KeyUnknown || k >= keyCount {
		return false
	}
	return s.down[k]
}

// Axis returns 1 when only positive is down, -1 when only negative is down and 0
// otherwise.
func (s *State) Axis(positive, negative Key) float32 {
	var v float32
	if s.Down(positive) {
		v++
	}
	if s.Down(negative) {
		v--
	}
	return v
}

// Release marks every key as up, for when the window loses focus.
func (s *State) Release() {
	s.down = [keyCount]bool{}
}
