package engine

import (
	"github.com/cockroachdb/errors"

	"vulkan-renderer/deletion"
	"vulkan-renderer/gpu"
)

// Immediate runs one-off GPU work synchronously. It owns a command buffer and a
// fence of its own and is never used from the per-frame path.
type Immediate struct {
	dev   gpu.Device
	pool  gpu.CommandPool
	cmd   gpu.CommandBuffer
	fence gpu.Fence
	busy  bool
}

func newImmediate(dev gpu.Device, q *deletion.Queue) (*Immediate, error) {
	im := &Immediate{dev: dev}

	pool, err := dev.CreateCommandPool()
	if err != nil {
		return nil, errors.Wrap(err, "createCommandPool")
	}
	q.Add(func() { dev.DestroyCommandPool(pool) })
	im.pool = pool

	im.cmd, err = dev.AllocateCommandBuffer(pool)
	if err != nil {
		return nil, errors.Wrap(err, "allocateCommandBuffer")
	}

	fence, err := dev.CreateFence(false)
	if err != nil {
		return nil, errors.Wrap(err, "createFence")
	}
	q.Add(func() { dev.DestroyFence(fence) })
	im.fence = fence

	return im, nil
}

// Submit records commands with record, submits them and blocks until the GPU
// finished executing them.
func (im *Immediate) Submit(record func(cmd gpu.CommandBuffer) error) error {
	if im.busy {
		return errors.New("immediate submission already in progress")
	}
	im.busy = true
	defer func() { im.busy = false }()

	if err := im.dev.ResetFence(im.fence); err != nil {
		return errors.Wrap(err, "resetFence")
	}
	if err := im.dev.ResetCommandBuffer(im.cmd); err != nil {
		return errors.Wrap(err, "resetCommandBuffer")
	}
	if err := im.dev.BeginCommandBuffer(im.cmd); err != nil {
		return errors.Wrap(err, "beginCommandBuffer")
	}

	if err := record(im.cmd); err != nil {
		return errors.Wrap(err, "record")
	}

	if err := im.dev.EndCommandBuffer(im.cmd); err != nil {
		return errors.Wrap(err, "endCommandBuffer")
	}
	if err := im.dev.Submit(gpu.SubmitInfo{Command: im.cmd, Fence: im.fence}); err != nil {
		return errors.Wrap(err, "submit")
	}
	if err := im.dev.WaitFence(im.fence, gpu.Forever); err != nil {
		return errors.Wrap(err, "waitForFence")
	}
	return nil
}
