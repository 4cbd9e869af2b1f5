package gputest

import (
	"fmt"

	"vulkan-renderer/gpu"
)

// Kind names a type of native object.
type Kind string

// Object kinds tracked by the fake device.
const (
	KindFence               Kind = "fence"
	KindSemaphore           Kind = "semaphore"
	KindCommandPool         Kind = "command-pool"
	KindCommandBuffer       Kind = "command-buffer"
	KindSwapchain           Kind = "swapchain"
	KindImage               Kind = "image"
	KindImageView           Kind = "image-view"
	KindBuffer              Kind = "buffer"
	KindAllocation          Kind = "allocation"
	KindAllocator           Kind = "allocator"
	KindSampler             Kind = "sampler"
	KindShaderModule        Kind = "shader-module"
	KindDescriptorSetLayout Kind = "descriptor-set-layout"
	KindDescriptorPool      Kind = "descriptor-pool"
	KindDescriptorSet       Kind = "descriptor-set"
	KindPipelineLayout      Kind = "pipeline-layout"
	KindPipeline            Kind = "pipeline"
)

type object struct {
	kind      Kind
	id        uint64
	destroyed bool
}

func (o *object) Native() uint64 { return o.id }

func (o *object) String() string { return fmt.Sprintf("%s#%d", o.kind, o.id) }

func (o *object) base() *object { return o }

type tracked interface {
	gpu.Object
	base() *object
}

// Fence is a fake fence.
type Fence struct {
	object
	Signaled bool
}

// Semaphore is a fake binary semaphore. Signaled is true between a signal
// operation and the wait which consumes it.
type Semaphore struct {
	object
	Signaled bool
}

// CommandPool is a fake command pool.
type CommandPool struct {
	object
	buffers []*CommandBuffer
}

type commandState int

const (
	stateInitial commandState = iota
	stateRecording
	stateExecutable
	statePending
)

// CommandBuffer records commands into Commands. Recording into a buffer which the
// fake GPU has not finished executing is reported as a violation.
type CommandBuffer struct {
	object
	dev   *Device
	pool  *CommandPool
	state commandState

	// Commands holds the commands recorded since the last reset.
	Commands []Command
}

// Swapchain is a fake swapchain.
type Swapchain struct {
	object
	Images []*Image
	Extent gpu.Extent2D
}

// Image is a fake image. Images owned by a swapchain have no allocation.
type Image struct {
	object
	Info      gpu.ImageInfo
	Data      []byte
	swapchain *Swapchain
}

// ImageView is a fake image view.
type ImageView struct {
	object
	Image  *Image
	Aspect gpu.Aspect
}

// Buffer is a fake buffer backed by Go memory.
type Buffer struct {
	object
	Info gpu.BufferInfo
	Data []byte
}

// Allocation is a fake allocation. Host-visible allocations map the backing
// memory of their buffer.
type Allocation struct {
	object
	size   uint64
	mapped []byte
}

// Size returns the allocation size.
func (a *Allocation) Size() uint64 { return a.size }

// Mapped returns the host view of the allocation.
func (a *Allocation) Mapped() []byte { return a.mapped }

// Sampler is a fake sampler.
type Sampler struct {
	object
	Info gpu.SamplerInfo
}

// ShaderModule is a fake shader module.
type ShaderModule struct {
	object
	Code []byte
}

// DescriptorSetLayout is a fake descriptor set layout.
type DescriptorSetLayout struct {
	object
	Bindings []gpu.DescriptorBinding
}

// DescriptorPool is a fake descriptor pool.
type DescriptorPool struct {
	object
	Info gpu.DescriptorPoolInfo
	sets int
}

// DescriptorSet is a fake descriptor set.
type DescriptorSet struct {
	object
	Writes []gpu.ImageDescriptor
}

// PipelineLayout is a fake pipeline layout.
type PipelineLayout struct {
	object
	Info gpu.PipelineLayoutInfo
}

// Pipeline is a fake graphics pipeline.
type Pipeline struct {
	object
	Info gpu.GraphicsPipelineInfo
}

// Command is one recorded command.
type Command struct {
	Op string

	Barriers  []gpu.ImageBarrier
	Src, Dst  gpu.Object
	Regions   []gpu.BufferCopy
	Extent    gpu.Extent3D
	Rendering *gpu.RenderingInfo
	Rects     []gpu.Rect2D
	Viewport  gpu.Viewport
	Color     [4]float32
	Data      []byte
	Count     uint32
	Object    gpu.Object
}

// Submission is one Submit call.
type Submission struct {
	Seq       int
	Info      gpu.SubmitInfo
	Commands  []Command
	Completed bool
}
