package gputest

import (
	"vulkan-renderer/gpu"
)

func (c *CommandBuffer) record(cmd Command) {
	if c.state != stateRecording {
		c.dev.violate("%s: %s recorded outside of Begin/End", c, cmd.Op)
	}
	c.Commands = append(c.Commands, cmd)
}

// Ops returns the names of the recorded commands in order.
func (c *CommandBuffer) Ops() []string {
	ops := make([]string, 0, len(c.Commands))
	for _, cmd := range c.Commands {
		ops = append(ops, cmd.Op)
	}
	return ops
}

func (c *CommandBuffer) PipelineBarrier(barriers ...gpu.ImageBarrier) {
	c.record(Command{Op: "PipelineBarrier", Barriers: append([]gpu.ImageBarrier(nil), barriers...)})
}

func (c *CommandBuffer) CopyBuffer(src, dst gpu.Buffer, regions ...gpu.BufferCopy) {
	c.record(Command{
		Op:      "CopyBuffer",
		Src:     src,
		Dst:     dst,
		Regions: append([]gpu.BufferCopy(nil), regions...),
	})
}

func (c *CommandBuffer) CopyBufferToImage(src gpu.Buffer, dst gpu.Image, extent gpu.Extent3D) {
	c.record(Command{Op: "CopyBufferToImage", Src: src, Dst: dst, Extent: extent})
}

func (c *CommandBuffer) BlitImage(
	src gpu.Image,
	srcExtent gpu.Extent3D,
	dst gpu.Image,
	dstExtent gpu.Extent3D,
) {
	c.record(Command{Op: "BlitImage", Src: src, Dst: dst, Extent: dstExtent})
}

func (c *CommandBuffer) ClearColorImage(image gpu.Image, layout gpu.ImageLayout, color [4]float32) {
	c.record(Command{Op: "ClearColorImage", Dst: image, Color: color})
}

func (c *CommandBuffer) BeginRendering(info gpu.RenderingInfo) {
	c.record(Command{Op: "BeginRendering", Rendering: &info})
}

func (c *CommandBuffer) EndRendering() {
	c.record(Command{Op: "EndRendering"})
}

func (c *CommandBuffer) ClearAttachments(color [4]float32, rects ...gpu.Rect2D) {
	c.record(Command{
		Op:    "ClearAttachments",
		Color: color,
		Rects: append([]gpu.Rect2D(nil), rects...),
	})
}

func (c *CommandBuffer) BindPipeline(p gpu.Pipeline) {
	c.record(Command{Op: "BindPipeline", Object: p})
}

func (c *CommandBuffer) BindDescriptorSet(layout gpu.PipelineLayout, set gpu.DescriptorSet) {
	c.record(Command{Op: "BindDescriptorSet", Src: layout, Object: set})
}

func (c *CommandBuffer) PushConstants(layout gpu.PipelineLayout, stages gpu.ShaderStage, data []byte) {
	c.record(Command{
		Op:     "PushConstants",
		Object: layout,
		Data:   append([]byte(nil), data...),
		Count:  uint32(stages),
	})
}

func (c *CommandBuffer) SetViewport(v gpu.Viewport) {
	c.record(Command{Op: "SetViewport", Viewport: v})
}

func (c *CommandBuffer) SetScissor(r gpu.Rect2D) {
	c.record(Command{Op: "SetScissor", Rects: []gpu.Rect2D{r}})
}

func (c *CommandBuffer) BindIndexBuffer(b gpu.Buffer) {
	c.record(Command{Op: "BindIndexBuffer", Object: b})
}

func (c *CommandBuffer) DrawIndexed(indexCount uint32) {
	c.record(Command{Op: "DrawIndexed", Count: indexCount})
}

// references returns every object a command uses.
func (cmd Command) references() []gpu.Object {
	refs := []gpu.Object{cmd.Src, cmd.Dst, cmd.Object}
	for _, b := range cmd.Barriers {
		refs = append(refs, b.Image)
	}
	if r := cmd.Rendering; r != nil {
		if r.Color != nil {
			refs = append(refs, r.Color.View)
		}
		if r.Depth != nil {
			refs = append(refs, r.Depth.View)
		}
	}
	return refs
}

// execute applies the effects of a command once the fake GPU runs it.
func (d *Device) execute(cmd Command) {
	switch cmd.Op {
	case "CopyBuffer":
		src, dst := cmd.Src.(*Buffer), cmd.Dst.(*Buffer)
		for _, r := range cmd.Regions {
			if r.SrcOffset+r.Size > uint64(len(src.Data)) ||
				r.DstOffset+r.Size > uint64(len(dst.Data)) {
				d.violate("CopyBuffer: region %+v out of bounds", r)
				continue
			}
			copy(dst.Data[r.DstOffset:r.DstOffset+r.Size], src.Data[r.SrcOffset:r.SrcOffset+r.Size])
		}
	case "CopyBufferToImage":
		src, dst := cmd.Src.(*Buffer), cmd.Dst.(*Image)
		n := copy(dst.Data, src.Data)
		if n < len(dst.Data) {
			d.violate("CopyBufferToImage: source of %d bytes is smaller than %s", n, dst)
		}
	}
}
