// Package window opens the GLFW window the renderer presents to and turns its
// callbacks into input events.
package window

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"

	"vulkan-renderer/gpu"
	"vulkan-renderer/input"
)

// Window is a resizable GLFW window without a client API. It must be used from
// the main thread only.
type Window struct {
	w      *glfw.Window
	events []input.Event
}

// New initializes GLFW and opens a window.
func New(title string, width, height int) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "glfw.Init")
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	w, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "creating window")
	}

	win := &Window{w: w}
	w.SetFramebufferSizeCallback(win.onFramebufferSize)
	w.SetIconifyCallback(win.onIconify)
	w.SetFocusCallback(win.onFocus)
	w.SetKeyCallback(win.onKey)
	w.SetCloseCallback(func(*glfw.Window) {
		win.push(input.Event{Kind: input.Quit})
	})
	return win, nil
}

// Native returns the GLFW window.
func (w *Window) Native() *glfw.Window { return w.w }

// FramebufferSize returns the drawable size in pixels. It is zero while the
// window is minimized.
func (w *Window) FramebufferSize() gpu.Extent2D {
	width, height := w.w.GetFramebufferSize()
	return gpu.Extent2D{Width: uint32(max(width, 0)), Height: uint32(max(height, 0))}
}

// SetTitle changes the window title.
func (w *Window) SetTitle(title string) { w.w.SetTitle(title) }

// Poll processes pending window system events and returns what happened since
// the last call.
func (w *Window) Poll() []input.Event {
	glfw.PollEvents()
	return w.drain()
}

// Destroy closes the window and terminates GLFW.
func (w *Window) Destroy() {
	w.w.Destroy()
	glfw.Terminate()
}

func (w *Window) drain() []input.Event {
	events := w.events
	w.events = nil
	return events
}

func (w *Window) push(e input.Event) {
	w.events = append(w.events, e)
}

func (w *Window) onFramebufferSize(_ *glfw.Window, width, height int) {
	w.push(input.Event{Kind: input.Resize, Width: width, Height: height})
}

func (w *Window) onIconify(_ *glfw.Window, iconified bool) {
	if iconified {
		w.push(input.Event{Kind: input.Minimize})
		return
	}
	w.push(input.Event{Kind: input.Restore})
}

func (w *Window) onFocus(_ *glfw.Window, focused bool) {
	if focused {
		return
	}
	for k := input.KeyW; k <= input.KeyF1; k++ {
		w.push(input.Event{Kind: input.KeyRelease, Key: k})
	}
}

func (w *Window) onKey(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	k := keys[key]
	if k == input.KeyUnknown {
		return
	}

	switch action {
	case glfw.Press:
		w.push(input.Event{Kind: input.KeyPress, Key: k})
	case glfw.Release:
		w.push(input.Event{Kind: input.KeyRelease, Key: k})
	}
}

var keys = map[glfw.Key]input.Key{
	glfw.KeyW:          input.KeyW,
	glfw.KeyA:          input.KeyA,
	glfw.KeyS:          input.KeyS,
	glfw.KeyD:          input.KeyD,
	glfw.KeySpace:      input.KeySpace,
	glfw.KeyLeftShift:  input.KeyShift,
	glfw.KeyRightShift: input.KeyShift,
	glfw.KeyUp:         input.KeyArrowUp,
	glfw.KeyDown:       input.KeyArrowDown,
	glfw.KeyLeft:       input.KeyArrowLeft,
	glfw.KeyRight:      input.KeyArrowRight,
	glfw.KeyEscape:     input.KeyEscape,
	glfw.KeyF1:         input.KeyF1,
}
