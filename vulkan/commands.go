package vulkan

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"vulkan-renderer/gpu"
)

type commandBuffer struct {
	handle
	h     vk.CommandBuffer
	procs *deviceProcs
}

var _ gpu.CommandBuffer = (*commandBuffer)(nil)

func (c *commandBuffer) PipelineBarrier(barriers ...gpu.ImageBarrier) {
	for _, b := range barriers {
		c.procs.transitionImage(c.h, imageOf(b.Image), b)
	}
}

func (c *commandBuffer) CopyBuffer(src, dst gpu.Buffer, regions ...gpu.BufferCopy) {
	copies := make([]vk.BufferCopy, len(regions))
	for i, r := range regions {
		copies[i] = vk.BufferCopy{
			SrcOffset: vk.DeviceSize(r.SrcOffset),
			DstOffset: vk.DeviceSize(r.DstOffset),
			Size:      vk.DeviceSize(r.Size),
		}
	}
	vk.CmdCopyBuffer(c.h, bufferOf(src), bufferOf(dst), uint32(len(copies)), copies)
}

func (c *commandBuffer) CopyBufferToImage(src gpu.Buffer, dst gpu.Image, extent gpu.Extent3D) {
	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource:  colorLayers(),
		ImageOffset:       vk.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: vk.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  max(extent.Depth, 1),
		},
	}

	vk.CmdCopyBufferToImage(
		c.h,
		bufferOf(src),
		imageOf(dst),
		vk.ImageLayoutTransferDstOptimal,
		1,
		[]vk.BufferImageCopy{region},
	)
}

func (c *commandBuffer) BlitImage(src gpu.Image, srcExtent gpu.Extent3D, dst gpu.Image, dstExtent gpu.Extent3D) {
	region := vk.ImageBlit{
		SrcSubresource: colorLayers(),
		SrcOffsets:     [2]vk.Offset3D{{}, farCorner(srcExtent)},
		DstSubresource: colorLayers(),
		DstOffsets:     [2]vk.Offset3D{{}, farCorner(dstExtent)},
	}

	vk.CmdBlitImage(
		c.h,
		imageOf(src), vk.ImageLayoutTransferSrcOptimal,
		imageOf(dst), vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageBlit{region},
		vk.FilterLinear,
	)
}

func (c *commandBuffer) ClearColorImage(img gpu.Image, layout gpu.ImageLayout, color [4]float32) {
	var value vk.ClearColorValue
	*(*[4]float32)(unsafe.Pointer(&value)) = color

	vk.CmdClearColorImage(c.h, imageOf(img), vk.ImageLayout(layout), &value, 1,
		[]vk.ImageSubresourceRange{{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		}},
	)
}

func (c *commandBuffer) BeginRendering(info gpu.RenderingInfo) {
	var color, depth vk.ImageView = vk.NullImageView, vk.NullImageView
	if info.Color != nil {
		color = imageViewOf(info.Color.View)
	}
	if info.Depth != nil {
		depth = imageViewOf(info.Depth.View)
	}
	c.procs.beginRendering(c.h, info, color, depth)
}

func (c *commandBuffer) EndRendering() {
	c.procs.endRendering(c.h)
}

func (c *commandBuffer) ClearAttachments(color [4]float32, rects ...gpu.Rect2D) {
	if len(rects) == 0 {
		return
	}

	clearRects := make([]vk.ClearRect, len(rects))
	for i, r := range rects {
		clearRects[i] = vk.ClearRect{
			Rect: vk.Rect2D{
				Offset: vk.Offset2D{X: r.X, Y: r.Y},
				Extent: vk.Extent2D{Width: r.Width, Height: r.Height},
			},
			BaseArrayLayer: 0,
			LayerCount:     1,
		}
	}

	attachments := []vk.ClearAttachment{{
		AspectMask:      vk.ImageAspectFlags(vk.ImageAspectColorBit),
		ColorAttachment: 0,
		ClearValue:      vk.NewClearValue(color[:]),
	}}
	vk.CmdClearAttachments(c.h, 1, attachments, uint32(len(clearRects)), clearRects)
}

func (c *commandBuffer) BindPipeline(p gpu.Pipeline) {
	vk.CmdBindPipeline(c.h, vk.PipelineBindPointGraphics, p.(*pipeline).h)
}

func (c *commandBuffer) BindDescriptorSet(layout gpu.PipelineLayout, set gpu.DescriptorSet) {
	vk.CmdBindDescriptorSets(
		c.h,
		vk.PipelineBindPointGraphics,
		pipelineLayoutOf(layout),
		0,
		1,
		[]vk.DescriptorSet{descriptorSetOf(set)},
		0,
		nil,
	)
}

func (c *commandBuffer) PushConstants(layout gpu.PipelineLayout, stages gpu.ShaderStage, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(c.h, pipelineLayoutOf(layout), vk.ShaderStageFlags(stages), 0,
		uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (c *commandBuffer) SetViewport(v gpu.Viewport) {
	viewport := vk.Viewport{
		X:        v.X,
		Y:        v.Y,
		Width:    v.Width,
		Height:   v.Height,
		MinDepth: v.MinDepth,
		MaxDepth: v.MaxDepth,
	}
	vk.CmdSetViewport(c.h, 0, 1, []vk.Viewport{viewport})
}

func (c *commandBuffer) SetScissor(r gpu.Rect2D) {
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: r.X, Y: r.Y},
		Extent: vk.Extent2D{Width: r.Width, Height: r.Height},
	}
	vk.CmdSetScissor(c.h, 0, 1, []vk.Rect2D{scissor})
}

func (c *commandBuffer) BindIndexBuffer(b gpu.Buffer) {
	vk.CmdBindIndexBuffer(c.h, bufferOf(b), 0, vk.IndexTypeUint32)
}

func (c *commandBuffer) DrawIndexed(indexCount uint32) {
	vk.CmdDrawIndexed(c.h, indexCount, 1, 0, 0, 0)
}

func colorLayers() vk.ImageSubresourceLayers {
	return vk.ImageSubresourceLayers{
		AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		MipLevel:       0,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}

func farCorner(e gpu.Extent3D) vk.Offset3D {
	return vk.Offset3D{X: int32(e.Width), Y: int32(e.Height), Z: int32(max(e.Depth, 1))}
}
