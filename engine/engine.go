// Package engine drives a gpu.Device through the frame lifecycle: the
// swapchain, the ring of frames in flight, synchronous uploads and the buffers
// and images everything else is built from.
package engine

import (
	"log/slog"

	"github.com/cockroachdb/errors"

	"vulkan-renderer/deletion"
	"vulkan-renderer/gpu"
	"vulkan-renderer/logging"
)

// Options configure an Engine.
type Options struct {
	Logger *slog.Logger

	// FramebufferSize returns the current drawable size of the window. It is
	// consulted on every swapchain creation.
	FramebufferSize func() gpu.Extent2D

	// VSync selects FIFO presentation.
	VSync bool
}

// Engine owns everything created on top of the device: the allocator, the
// swapchain, the frame slots and the immediate submission channel. The device
// itself is owned by the caller and has to outlive the engine.
type Engine struct {
	dev   gpu.Device
	alloc gpu.Allocator
	log   *slog.Logger

	// deletion holds teardown of everything which lives as long as the engine.
	// The allocator is registered first so it is released last.
	deletion deletion.Queue

	swapchain *Swapchain
	frames    *FramePool
	immediate *Immediate

	frameNumber uint64
	closed      bool
}

// New creates the engine. When it fails, everything it created is released
// before the error is returned.
func New(dev gpu.Device, opts Options) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.FramebufferSize == nil {
		return nil, errors.New("engine: FramebufferSize is required")
	}

	e := &Engine{
		dev: dev,
		log: opts.Logger,
	}

	if err := e.init(opts); err != nil {
		e.deletion.Flush()
		return nil, err
	}
	return e, nil
}

func (e *Engine) init(opts Options) error {
	alloc, err := e.dev.CreateAllocator()
	if err != nil {
		return errors.Wrap(err, "createAllocator")
	}
	e.alloc = alloc
	e.deletion.Add(func() {
		if n := alloc.LiveAllocations(); n != 0 {
			e.log.Error("allocations leaked", slog.Int("count", n))
		}
		alloc.Destroy()
	})

	e.swapchain = newSwapchain(e.dev, e.log, opts.FramebufferSize, opts.VSync)
	if err := e.swapchain.create(&e.deletion); err != nil {
		return err
	}

	e.frames, err = newFramePool(e.dev, &e.deletion)
	if err != nil {
		return errors.Wrap(err, "createFrames")
	}

	e.immediate, err = newImmediate(e.dev, &e.deletion)
	if err != nil {
		return errors.Wrap(err, "createImmediate")
	}

	e.log.Debug("engine initialized", slog.Int("framesInFlight", FramesInFlight))
	return nil
}

// Device returns the device the engine drives.
func (e *Engine) Device() gpu.Device { return e.dev }

// Allocator returns the allocator serving all buffers and images.
func (e *Engine) Allocator() gpu.Allocator { return e.alloc }

// Swapchain returns the swapchain manager.
func (e *Engine) Swapchain() *Swapchain { return e.swapchain }

// Frames returns the frame slot ring.
func (e *Engine) Frames() *FramePool { return e.frames }

// Immediate returns the immediate submission channel.
func (e *Engine) Immediate() *Immediate { return e.immediate }

// FrameNumber returns the number of frames submitted so far.
func (e *Engine) FrameNumber() uint64 { return e.frameNumber }

// Defer registers fn to run when the engine is closed, before everything
// registered earlier.
func (e *Engine) Defer(fn func()) { e.deletion.Add(fn) }

// Close blocks until the device finished all submitted work, then runs the
// deletion queues of every frame slot followed by the engine's own.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	err := e.dev.WaitIdle()
	e.frames.flush()
	e.deletion.Flush()

	e.log.Debug("engine closed", slog.Uint64("frames", e.frameNumber))
	if err != nil {
		return errors.Wrap(err, "waitIdle")
	}
	return nil
}
