package engine

import (
	"log/slog"

	"github.com/cockroachdb/errors"

	"vulkan-renderer/gpu"
)

// BeginFrame waits until the current slot's previous submission has finished,
// releases what its deletion queue holds, acquires a swapchain image and begins
// recording the slot's command buffer.
//
// It returns false without error when no frame can be rendered now: the
// swapchain was out of date and has been rebuilt, or the framebuffer has no
// area. The slot is left untouched in that case.
func (e *Engine) BeginFrame() (*Frame, bool, error) {
	if e.swapchain.Stale() {
		if err := e.swapchain.Recreate(&e.deletion); err != nil {
			return nil, false, errors.Wrap(err, "recreateSwapchain")
		}
		if e.swapchain.Stale() {
			return nil, false, nil
		}
	}

	f := e.frames.Current()
	if f.state == SlotRecording {
		return nil, false, errors.Newf("frame slot %d is already recording", e.frames.Index())
	}

	if err := e.dev.WaitFence(f.Fence, gpu.Forever); err != nil {
		return nil, false, errors.Wrap(err, "waitForFence")
	}
	f.state = SlotIdle
	f.Deletion.Flush()

	index, err := e.dev.AcquireNextImage(e.swapchain.Native(), f.Acquire)
	if gpu.IsOutOfDate(err) {
		e.log.Debug("swapchain out of date at acquire",
			slog.Uint64("generation", e.swapchain.Generation()))
		if err := e.swapchain.Recreate(&e.deletion); err != nil {
			return nil, false, errors.Wrap(err, "recreateSwapchain")
		}
		return nil, false, nil
	} else if err != nil {
		return nil, false, errors.Wrap(err, "acquireNextImage")
	}

	// Only reset the fence once work is certain to be submitted with it.
	if err := e.dev.ResetFence(f.Fence); err != nil {
		return nil, false, errors.Wrap(err, "resetFence")
	}
	if err := e.dev.ResetCommandBuffer(f.Command); err != nil {
		return nil, false, errors.Wrap(err, "resetCommandBuffer")
	}
	if err := e.dev.BeginCommandBuffer(f.Command); err != nil {
		return nil, false, errors.Wrap(err, "beginCommandBuffer")
	}

	f.ImageIndex = index
	f.Image = e.swapchain.Image(index)
	f.View = e.swapchain.View(index)
	f.Extent = e.swapchain.Extent()
	f.state = SlotRecording
	return f, true, nil
}

// EndFrame finishes recording f, submits it and presents its image. An out of
// date or suboptimal swapchain at presentation is rebuilt and not reported.
func (e *Engine) EndFrame(f *Frame) error {
	if f != e.frames.Current() || f.state != SlotRecording {
		return errors.New("EndFrame called without a matching BeginFrame")
	}

	if err := e.dev.EndCommandBuffer(f.Command); err != nil {
		return errors.Wrap(err, "endCommandBuffer")
	}

	err := e.dev.Submit(gpu.SubmitInfo{
		Command:     f.Command,
		Wait:        f.Acquire,
		WaitStage:   gpu.StageColorAttachmentOutput,
		Signal:      f.Render,
		SignalStage: gpu.StageAllGraphics,
		Fence:       f.Fence,
	})
	if err != nil {
		return errors.Wrap(err, "submit")
	}
	f.state = SlotSubmitted
	e.frameNumber++
	e.frames.advance()

	err = e.dev.Present(e.swapchain.Native(), f.ImageIndex, f.Render)
	if gpu.IsOutOfDate(err) {
		e.log.Debug("swapchain out of date at present",
			slog.Uint64("generation", e.swapchain.Generation()))
		if err := e.swapchain.Recreate(&e.deletion); err != nil {
			return errors.Wrap(err, "recreateSwapchain")
		}
		return nil
	} else if err != nil {
		return errors.Wrap(err, "present")
	}
	return nil
}

// DrawFrame renders one frame with record. It does nothing when BeginFrame
// cannot start a frame.
func (e *Engine) DrawFrame(record func(f *Frame) error) error {
	f, ok, err := e.BeginFrame()
	if err != nil || !ok {
		return err
	}

	if err := record(f); err != nil {
		return errors.Wrap(err, "recordFrame")
	}
	return e.EndFrame(f)
}

// Resize rebuilds the swapchain for the current framebuffer size.
func (e *Engine) Resize() error {
	if err := e.swapchain.Recreate(&e.deletion); err != nil {
		return errors.Wrap(err, "recreateSwapchain")
	}
	return nil
}

// TransitionImage records a layout transition of the whole image. The barrier
// orders all earlier commands and memory writes before all later ones. Images
// moving into or out of the depth attachment layout use the depth aspect.
func TransitionImage(cmd gpu.CommandBuffer, image gpu.Image, from, to gpu.ImageLayout) {
	aspect := gpu.AspectColor
	if from == gpu.LayoutDepthAttachment || to == gpu.LayoutDepthAttachment {
		aspect = gpu.AspectDepth
	}

	cmd.PipelineBarrier(gpu.ImageBarrier{
		Image:     image,
		OldLayout: from,
		NewLayout: to,
		Aspect:    aspect,
	})
}

// BlitImage records a scaled copy of src, in the transfer source layout, onto dst,
// in the transfer destination layout.
func BlitImage(cmd gpu.CommandBuffer, src gpu.Image, srcSize gpu.Extent2D, dst gpu.Image, dstSize gpu.Extent2D) {
	cmd.BlitImage(
		src, gpu.Extent3D{Width: srcSize.Width, Height: srcSize.Height, Depth: 1},
		dst, gpu.Extent3D{Width: dstSize.Width, Height: dstSize.Height, Depth: 1},
	)
}
