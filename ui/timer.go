package ui

import (
	"time"

	"github.com/chewxy/math32"
)

// FrameTimer measures the time between frames and smooths the frame rate.
type FrameTimer struct {
	last    time.Time
	frame   time.Duration
	fps     float32
	started bool
}

// fpsSmoothing is the weight of the newest sample in the frame rate average.
const fpsSmoothing = 0.1

// Tick records a frame at now.
func (t *FrameTimer) Tick(now time.Time) {
	if !t.started {
		t.last = now
		t.started = true
		return
	}

	t.frame = now.Sub(t.last)
	t.last = now
	if t.frame <= 0 {
		return
	}

	fps := float32(time.Second) / float32(t.frame)
	if t.fps == 0 {
		t.fps = fps
		return
	}
	t.fps += (fps - t.fps) * fpsSmoothing
	t.fps = math32.Max(t.fps, 0)
}

// Frame returns the duration of the last frame.
func (t *FrameTimer) Frame() time.Duration { return t.frame }

// FPS returns the smoothed frame rate.
func (t *FrameTimer) FPS() float32 { return t.fps }

// Reset forgets the last frame, so a pause is not counted as a long frame.
func (t *FrameTimer) Reset() {
	t.started = false
	t.frame = 0
}
