package engine

import (
	"github.com/cockroachdb/errors"

	"vulkan-renderer/deletion"
	"vulkan-renderer/gpu"
)

// FramesInFlight is the number of frames the CPU may record ahead of the GPU.
const FramesInFlight = 2

// SlotState is the state of a frame slot as seen by the CPU.
type SlotState int

// Frame slot states.
const (
	// SlotIdle slots have no unfinished work the CPU knows of.
	SlotIdle SlotState = iota
	// SlotRecording is the slot of the frame between BeginFrame and EndFrame.
	SlotRecording
	// SlotSubmitted slots have work which was submitted and not yet waited on.
	SlotSubmitted
)

func (s SlotState) String() string {
	switch s {
	case SlotIdle:
		return "idle"
	case SlotRecording:
		return "recording"
	case SlotSubmitted:
		return "submitted"
	}
	return "unknown"
}

// Frame is one frame slot. The fence is signaled when the slot's last
// submission finished, and Deletion holds teardown for resources which must live
// until then.
type Frame struct {
	Pool    gpu.CommandPool
	Command gpu.CommandBuffer

	// Acquire is signaled when the swapchain image is ready to be rendered to.
	Acquire gpu.Semaphore
	// Render is signaled when rendering finished and the image can be shown.
	Render gpu.Semaphore
	Fence  gpu.Fence

	// Deletion is flushed the next time the slot is reused.
	Deletion deletion.Queue

	// ImageIndex, Image, View and Extent describe the swapchain image acquired
	// for the frame being recorded.
	ImageIndex uint32
	Image      gpu.Image
	View       gpu.ImageView
	Extent     gpu.Extent2D

	state SlotState
}

// State returns the slot state.
func (f *Frame) State() SlotState { return f.state }

// FramePool is the fixed ring of frame slots.
type FramePool struct {
	frames [FramesInFlight]Frame
	index  int
}

// newFramePool creates the slots. Teardown of everything created is registered
// on q, including when creation fails half way.
func newFramePool(dev gpu.Device, q *deletion.Queue) (*FramePool, error) {
	p := &FramePool{}

	for i := range p.frames {
		f := &p.frames[i]

		pool, err := dev.CreateCommandPool()
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d: createCommandPool", i)
		}
		q.Add(func() { dev.DestroyCommandPool(pool) })
		f.Pool = pool

		f.Command, err = dev.AllocateCommandBuffer(pool)
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d: allocateCommandBuffer", i)
		}

		// The fence starts signaled so the first wait on it returns at once.
		fence, err := dev.CreateFence(true)
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d: createFence", i)
		}
		q.Add(func() { dev.DestroyFence(fence) })
		f.Fence = fence

		acquire, err := dev.CreateSemaphore()
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d: createSemaphore", i)
		}
		q.Add(func() { dev.DestroySemaphore(acquire) })
		f.Acquire = acquire

		render, err := dev.CreateSemaphore()
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d: createSemaphore", i)
		}
		q.Add(func() { dev.DestroySemaphore(render) })
		f.Render = render
	}

	return p, nil
}

// Current returns the slot the next frame is recorded into.
func (p *FramePool) Current() *Frame { return &p.frames[p.index] }

// Index returns the index of the current slot.
func (p *FramePool) Index() int { return p.index }

// Frame returns the i-th slot.
func (p *FramePool) Frame(i int) *Frame { return &p.frames[i] }

func (p *FramePool) advance() {
	p.index = (p.index + 1) % FramesInFlight
}

// flush runs the deletion queues of every slot.
func (p *FramePool) flush() {
	for i := range p.frames {
		p.frames[i].Deletion.Flush()
	}
}
