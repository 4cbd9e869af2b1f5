// Package gpu describes the rendering device the engine drives, independently of
// the native API behind it.
//
// The renderer targets a single backend, so enumeration values are the Vulkan
// ones and a backend converts them with a plain type conversion. The indirection
// exists so the frame lifecycle can run against an in-memory device in tests.
package gpu

import "math"

// Forever is the timeout used for fence waits. A GPU which never signals is
// treated as fatal rather than retried.
const Forever = uint64(math.MaxUint64)

// Format is a texel format.
type Format uint32

// Formats used by the renderer.
const (
	FormatUndefined          Format = 0
	FormatR8G8B8A8Unorm      Format = 37
	FormatR8G8B8A8Srgb       Format = 43
	FormatB8G8R8A8Unorm      Format = 44
	FormatB8G8R8A8Srgb       Format = 50
	FormatR16G16B16A16Sfloat Format = 97
	FormatD32Sfloat          Format = 126
)

// BytesPerTexel returns the size of one texel of the format, or zero for formats
// the renderer does not upload from the CPU.
func (f Format) BytesPerTexel() uint32 {
	switch f {
	case FormatR8G8B8A8Unorm, FormatR8G8B8A8Srgb, FormatB8G8R8A8Unorm, FormatB8G8R8A8Srgb,
		FormatD32Sfloat:
		return 4
	case FormatR16G16B16A16Sfloat:
		return 8
	}
	return 0
}

// ImageLayout is the memory layout an image is kept in.
type ImageLayout uint32

// Image layouts.
const (
	LayoutUndefined       ImageLayout = 0
	LayoutGeneral         ImageLayout = 1
	LayoutColorAttachment ImageLayout = 2
	LayoutTransferSrc     ImageLayout = 6
	LayoutTransferDst     ImageLayout = 7
	LayoutPresentSrc      ImageLayout = 1000001002
	LayoutDepthAttachment ImageLayout = 1000241000
	LayoutReadOnly        ImageLayout = 1000314000
)

// Aspect selects the color or depth part of an image.
type Aspect uint32

// Image aspects.
const (
	AspectColor Aspect = 0x1
	AspectDepth Aspect = 0x2
)

// BufferUsage is a set of buffer usage bits.
type BufferUsage uint32

// Buffer usage bits.
const (
	BufferTransferSrc   BufferUsage = 0x1
	BufferTransferDst   BufferUsage = 0x2
	BufferUniform       BufferUsage = 0x10
	BufferStorage       BufferUsage = 0x20
	BufferIndex         BufferUsage = 0x40
	BufferVertex        BufferUsage = 0x80
	BufferDeviceAddress BufferUsage = 0x20000
)

// ImageUsage is a set of image usage bits.
type ImageUsage uint32

// Image usage bits.
const (
	ImageTransferSrc     ImageUsage = 0x1
	ImageTransferDst     ImageUsage = 0x2
	ImageSampled         ImageUsage = 0x4
	ImageStorage         ImageUsage = 0x8
	ImageColorAttachment ImageUsage = 0x10
	ImageDepthAttachment ImageUsage = 0x20
)

// MemoryUsage is the class of memory an allocation is served from.
type MemoryUsage int

// Memory usage classes.
const (
	// MemoryGPUOnly is device-local memory the CPU cannot see.
	MemoryGPUOnly MemoryUsage = iota

	// MemoryCPUToGPU is host-visible, persistently mapped memory for uploads.
	MemoryCPUToGPU

	// MemoryGPUToCPU is host-visible, persistently mapped memory for readback.
	MemoryGPUToCPU
)

func (u MemoryUsage) String() string {
	switch u {
	case MemoryGPUOnly:
		return "gpu-only"
	case MemoryCPUToGPU:
		return "cpu-to-gpu"
	case MemoryGPUToCPU:
		return "gpu-to-cpu"
	}
	return "unknown"
}

// HostVisible reports whether allocations of this class are mapped for the CPU.
func (u MemoryUsage) HostVisible() bool {
	return u == MemoryCPUToGPU || u == MemoryGPUToCPU
}

// PipelineStage is a set of pipeline stage bits.
type PipelineStage uint64

// Pipeline stages used for synchronization.
const (
	StageColorAttachmentOutput PipelineStage = 0x400
	StageAllGraphics           PipelineStage = 0x8000
	StageAllCommands           PipelineStage = 0x10000
)

// ShaderStage is a set of shader stage bits.
type ShaderStage uint32

// Shader stages.
const (
	ShaderVertex   ShaderStage = 0x1
	ShaderFragment ShaderStage = 0x10
)

// LoadOp is what happens to an attachment at the start of rendering.
type LoadOp uint32

// Attachment load operations.
const (
	LoadOpLoad     LoadOp = 0
	LoadOpClear    LoadOp = 1
	LoadOpDontCare LoadOp = 2
)

// CompareOp is a depth comparison.
type CompareOp uint32

// Depth comparisons.
const (
	CompareNever  CompareOp = 0
	CompareLess   CompareOp = 1
	CompareLEqual CompareOp = 3
	CompareAlways CompareOp = 7
)

// Filter is a texel filter.
type Filter uint32

// Filters.
const (
	FilterNearest Filter = 0
	FilterLinear  Filter = 1
)

// AddressMode is how texture coordinates outside [0, 1] are resolved.
type AddressMode uint32

// Address modes.
const (
	AddressRepeat      AddressMode = 0
	AddressClampToEdge AddressMode = 2
)

// DescriptorType is the type of a descriptor binding.
type DescriptorType uint32

// Descriptor types.
const (
	DescriptorCombinedImageSampler DescriptorType = 1
)

// Extent2D is a size in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// Empty reports whether either side is zero.
func (e Extent2D) Empty() bool {
	return e.Width == 0 || e.Height == 0
}

// Extent3D is a size in texels.
type Extent3D struct {
	Width  uint32
	Height uint32
	Depth  uint32
}

// Extent2D drops the depth.
func (e Extent3D) Extent2D() Extent2D {
	return Extent2D{Width: e.Width, Height: e.Height}
}

// Rect2D is a rectangle in pixels.
type Rect2D struct {
	X, Y          int32
	Width, Height uint32
}

// Viewport maps normalized device coordinates to pixels. A negative height flips
// the Y axis.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}
