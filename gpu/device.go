package gpu

// Object is implemented by every native object handed out by a Device.
type Object interface {
	// Native returns the backend handle value. It is only meant for logs.
	Native() uint64
}

// Native object kinds. They are distinct types only for documentation; any
// Object returned by a Device for that purpose can be passed back to it.
type (
	Fence               interface{ Object }
	Semaphore           interface{ Object }
	CommandPool         interface{ Object }
	Swapchain           interface{ Object }
	Image               interface{ Object }
	ImageView           interface{ Object }
	Buffer              interface{ Object }
	Sampler             interface{ Object }
	ShaderModule        interface{ Object }
	DescriptorSetLayout interface{ Object }
	DescriptorPool      interface{ Object }
	DescriptorSet       interface{ Object }
	PipelineLayout      interface{ Object }
	Pipeline            interface{ Object }
)

// Device is the logical rendering device together with its single work queue and
// presentation surface. All objects it returns are only valid until the device is
// destroyed.
//
// Destroy methods never fail; passing an object which was already destroyed is a
// programming error.
type Device interface {
	CreateFence(signaled bool) (Fence, error)
	DestroyFence(Fence)
	// WaitFence blocks until the fence is signaled or the timeout, in
	// nanoseconds, elapses.
	WaitFence(f Fence, timeout uint64) error
	ResetFence(Fence) error

	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(Semaphore)

	CreateCommandPool() (CommandPool, error)
	DestroyCommandPool(CommandPool)
	AllocateCommandBuffer(CommandPool) (CommandBuffer, error)
	ResetCommandBuffer(CommandBuffer) error
	// BeginCommandBuffer starts recording for a single submission.
	BeginCommandBuffer(CommandBuffer) error
	EndCommandBuffer(CommandBuffer) error

	// Submit queues one command buffer on the work queue.
	Submit(SubmitInfo) error
	// WaitIdle blocks until the device has finished all submitted work.
	WaitIdle() error

	// CreateSwapchain builds a presentable image chain for the surface the
	// device was created with.
	CreateSwapchain(SwapchainInfo) (*SwapchainImages, error)
	DestroySwapchain(Swapchain)
	// AcquireNextImage returns the index of the next presentable image and has
	// signal signaled once it is ready. ErrOutOfDate means the chain has to be
	// rebuilt before it can be used again.
	AcquireNextImage(sc Swapchain, signal Semaphore) (uint32, error)
	// Present queues the image for presentation once wait is signaled.
	// ErrOutOfDate means the chain no longer matches the surface.
	Present(sc Swapchain, imageIndex uint32, wait Semaphore) error

	CreateImageView(image Image, format Format, aspect Aspect) (ImageView, error)
	DestroyImageView(ImageView)

	// CreateAllocator creates the sub-allocator which serves buffer and image
	// memory.
	CreateAllocator() (Allocator, error)
	// BufferAddress returns the device address of a buffer created with
	// BufferDeviceAddress usage.
	BufferAddress(Buffer) uint64

	CreateSampler(SamplerInfo) (Sampler, error)
	DestroySampler(Sampler)

	CreateShaderModule(code []byte) (ShaderModule, error)
	DestroyShaderModule(ShaderModule)

	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(DescriptorSetLayout)
	CreateDescriptorPool(DescriptorPoolInfo) (DescriptorPool, error)
	DestroyDescriptorPool(DescriptorPool)
	AllocateDescriptorSet(DescriptorPool, DescriptorSetLayout) (DescriptorSet, error)
	FreeDescriptorSet(DescriptorPool, DescriptorSet)
	WriteImageDescriptor(set DescriptorSet, write ImageDescriptor)

	CreatePipelineLayout(PipelineLayoutInfo) (PipelineLayout, error)
	DestroyPipelineLayout(PipelineLayout)
	CreateGraphicsPipeline(GraphicsPipelineInfo) (Pipeline, error)
	DestroyPipeline(Pipeline)
}

// Allocator serves memory for buffers and images. It owns no resource by itself
// but must outlive every buffer and image it created.
type Allocator interface {
	CreateBuffer(BufferInfo) (Buffer, Allocation, error)
	DestroyBuffer(Buffer, Allocation)
	CreateImage(ImageInfo) (Image, Allocation, error)
	DestroyImage(Image, Allocation)

	// LiveAllocations returns the number of allocations not yet released.
	LiveAllocations() int

	// Destroy releases the memory blocks of the allocator.
	Destroy()
}

// Allocation is a range of device memory backing one buffer or image.
type Allocation interface {
	Object

	// Size is the size of the allocation in bytes.
	Size() uint64

	// Mapped returns the CPU view of host-visible allocations and nil for
	// device-local ones. The slice stays valid until the allocation is released.
	Mapped() []byte
}

// CommandBuffer records GPU commands. Methods only record; nothing is executed
// before the buffer is submitted.
type CommandBuffer interface {
	Object

	// PipelineBarrier records image layout transitions.
	PipelineBarrier(barriers ...ImageBarrier)
	CopyBuffer(src, dst Buffer, regions ...BufferCopy)
	// CopyBufferToImage copies tightly packed texels from the start of src into
	// the whole of dst, which must be in the transfer destination layout.
	CopyBufferToImage(src Buffer, dst Image, extent Extent3D)
	// BlitImage scales the whole src (transfer source layout) into the whole
	// dst (transfer destination layout) with linear filtering.
	BlitImage(src Image, srcExtent Extent3D, dst Image, dstExtent Extent3D)
	ClearColorImage(image Image, layout ImageLayout, color [4]float32)

	BeginRendering(RenderingInfo)
	EndRendering()
	// ClearAttachments fills rects of the current color attachment. It may only
	// be called between BeginRendering and EndRendering.
	ClearAttachments(color [4]float32, rects ...Rect2D)

	BindPipeline(Pipeline)
	BindDescriptorSet(layout PipelineLayout, set DescriptorSet)
	PushConstants(layout PipelineLayout, stages ShaderStage, data []byte)
	SetViewport(Viewport)
	SetScissor(Rect2D)
	// BindIndexBuffer binds a buffer of uint32 indices.
	BindIndexBuffer(Buffer)
	DrawIndexed(indexCount uint32)
}

// SubmitInfo describes one queue submission. Zero fields are omitted.
type SubmitInfo struct {
	Command CommandBuffer

	Wait      Semaphore
	WaitStage PipelineStage

	Signal      Semaphore
	SignalStage PipelineStage

	// Fence is signaled when the submission has completely finished.
	Fence Fence
}

// SwapchainInfo requests a swapchain.
type SwapchainInfo struct {
	// Width and Height are the framebuffer size of the window. The backend
	// clamps them to what the surface supports.
	Width, Height uint32

	// Usage is requested in addition to color attachment usage.
	Usage ImageUsage

	// VSync selects FIFO presentation, otherwise mailbox is preferred.
	VSync bool
}

// SwapchainImages is the result of creating a swapchain.
type SwapchainImages struct {
	Swapchain Swapchain
	Images    []Image
	Format    Format
	Extent    Extent2D
}

// BufferInfo describes a buffer allocation.
type BufferInfo struct {
	Size   uint64
	Usage  BufferUsage
	Memory MemoryUsage
}

// ImageInfo describes a 2D image allocation with one mip level and layer.
type ImageInfo struct {
	Format Format
	Extent Extent3D
	Usage  ImageUsage
	Memory MemoryUsage
}

// ImageBarrier is a layout transition of a whole image.
type ImageBarrier struct {
	Image     Image
	OldLayout ImageLayout
	NewLayout ImageLayout
	Aspect    Aspect
}

// BufferCopy is one region of a buffer to buffer copy.
type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

// Attachment is an image bound for rendering.
type Attachment struct {
	View   ImageView
	Layout ImageLayout
	Load   LoadOp

	// ClearColor is used with LoadOpClear on color attachments.
	ClearColor [4]float32
	// ClearDepth is used with LoadOpClear on depth attachments.
	ClearDepth float32
}

// RenderingInfo begins a dynamic rendering scope.
type RenderingInfo struct {
	Area  Extent2D
	Color *Attachment
	Depth *Attachment
}

// SamplerInfo describes a sampler.
type SamplerInfo struct {
	Filter  Filter
	Address AddressMode
}

// DescriptorBinding is one binding of a descriptor set layout.
type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Stages  ShaderStage
}

// DescriptorPoolInfo sizes a descriptor pool. Sets allocated from it can be
// freed individually.
type DescriptorPoolInfo struct {
	MaxSets               uint32
	CombinedImageSamplers uint32
}

// ImageDescriptor points a combined image sampler binding at an image view.
type ImageDescriptor struct {
	Binding uint32
	View    ImageView
	Sampler Sampler
	Layout  ImageLayout
}

// PushConstantRange is a range of push constant bytes visible to stages.
type PushConstantRange struct {
	Stages ShaderStage
	Offset uint32
	Size   uint32
}

// PipelineLayoutInfo describes a pipeline layout.
type PipelineLayoutInfo struct {
	SetLayouts    []DescriptorSetLayout
	PushConstants []PushConstantRange
}

// GraphicsPipelineInfo describes a graphics pipeline for dynamic rendering. The
// vertex stage fetches its own vertices, there is no vertex input state, and the
// viewport and scissor are dynamic.
type GraphicsPipelineInfo struct {
	Layout   PipelineLayout
	Vertex   ShaderModule
	Fragment ShaderModule

	ColorFormat Format
	DepthFormat Format

	DepthTest    bool
	DepthWrite   bool
	DepthCompare CompareOp

	// AlphaBlend enables source-alpha blending on the color attachment.
	AlphaBlend bool
}
