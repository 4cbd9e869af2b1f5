package vulkan

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"vulkan-renderer/gpu"
)

// handle is the value of a native handle as reported by Native.
type handle uint64

func (h handle) Native() uint64 { return uint64(h) }

func handleOf(p unsafe.Pointer) handle { return handle(uintptr(p)) }

type fence struct {
	handle
	h vk.Fence
}

type semaphore struct {
	handle
	h vk.Semaphore
}

type commandPool struct {
	handle
	h vk.CommandPool
}

type swapchain struct {
	handle
	h vk.Swapchain
}

type image struct {
	handle
	h vk.Image
}

type imageView struct {
	handle
	h vk.ImageView
}

type buffer struct {
	handle
	h vk.Buffer
}

type sampler struct {
	handle
	h vk.Sampler
}

type shaderModule struct {
	handle
	h vk.ShaderModule
}

type descriptorSetLayout struct {
	handle
	h vk.DescriptorSetLayout
}

type descriptorPool struct {
	handle
	h vk.DescriptorPool
}

type descriptorSet struct {
	handle
	h vk.DescriptorSet
}

type pipelineLayout struct {
	handle
	h vk.PipelineLayout
}

type pipeline struct {
	handle
	h vk.Pipeline
}

// The conversions below accept nil for optional arguments and panic when handed
// an object created by another backend.

func fenceOf(f gpu.Fence) vk.Fence {
	if f == nil {
		return vk.NullFence
	}
	return f.(*fence).h
}

func semaphoreOf(s gpu.Semaphore) vk.Semaphore {
	if s == nil {
		return vk.NullSemaphore
	}
	return s.(*semaphore).h
}

func imageOf(i gpu.Image) vk.Image {
	return i.(*image).h
}

func imageViewOf(v gpu.ImageView) vk.ImageView {
	if v == nil {
		return vk.NullImageView
	}
	return v.(*imageView).h
}

func bufferOf(b gpu.Buffer) vk.Buffer {
	return b.(*buffer).h
}

func samplerOf(s gpu.Sampler) vk.Sampler {
	return s.(*sampler).h
}

func shaderModuleOf(m gpu.ShaderModule) vk.ShaderModule {
	return m.(*shaderModule).h
}

func descriptorSetLayoutOf(l gpu.DescriptorSetLayout) vk.DescriptorSetLayout {
	return l.(*descriptorSetLayout).h
}

func descriptorSetOf(s gpu.DescriptorSet) vk.DescriptorSet {
	return s.(*descriptorSet).h
}

func pipelineLayoutOf(l gpu.PipelineLayout) vk.PipelineLayout {
	return l.(*pipelineLayout).h
}
