package vulkan

/*
#cgo CFLAGS: -DVK_NO_PROTOTYPES
#include <stdint.h>
#include <stdlib.h>
#include <vulkan/vulkan.h>

typedef struct {
	PFN_vkCmdBeginRendering cmdBeginRendering;
	PFN_vkCmdEndRendering cmdEndRendering;
	PFN_vkCmdPipelineBarrier2 cmdPipelineBarrier2;
	PFN_vkQueueSubmit2 queueSubmit2;
	PFN_vkGetBufferDeviceAddress getBufferDeviceAddress;
} deviceProcs;

typedef struct {
	VkBool32 dynamicRendering;
	VkBool32 synchronization2;
	VkBool32 bufferDeviceAddress;
	VkBool32 descriptorIndexing;
} featureSupport;

typedef struct {
	VkPhysicalDeviceVulkan12Features v12;
	VkPhysicalDeviceVulkan13Features v13;
} featureChain;

typedef struct {
	VkPipelineRenderingCreateInfo info;
	VkFormat color;
} renderingFormats;

static int loadDeviceProcs(void* getInstanceProcAddr, VkInstance instance, VkDevice device, deviceProcs* p) {
	PFN_vkGetInstanceProcAddr gipa = (PFN_vkGetInstanceProcAddr)getInstanceProcAddr;
	PFN_vkGetDeviceProcAddr gdpa = (PFN_vkGetDeviceProcAddr)gipa(instance, "vkGetDeviceProcAddr");
	if (gdpa == NULL) {
		return 0;
	}

	p->cmdBeginRendering = (PFN_vkCmdBeginRendering)gdpa(device, "vkCmdBeginRendering");
	p->cmdEndRendering = (PFN_vkCmdEndRendering)gdpa(device, "vkCmdEndRendering");
	p->cmdPipelineBarrier2 = (PFN_vkCmdPipelineBarrier2)gdpa(device, "vkCmdPipelineBarrier2");
	p->queueSubmit2 = (PFN_vkQueueSubmit2)gdpa(device, "vkQueueSubmit2");
	p->getBufferDeviceAddress = (PFN_vkGetBufferDeviceAddress)gdpa(device, "vkGetBufferDeviceAddress");

	return p->cmdBeginRendering != NULL && p->cmdEndRendering != NULL &&
		p->cmdPipelineBarrier2 != NULL && p->queueSubmit2 != NULL &&
		p->getBufferDeviceAddress != NULL;
}

static int queryFeatures(void* getInstanceProcAddr, VkInstance instance, VkPhysicalDevice pd, featureSupport* out) {
	PFN_vkGetInstanceProcAddr gipa = (PFN_vkGetInstanceProcAddr)getInstanceProcAddr;
	PFN_vkGetPhysicalDeviceFeatures2 features2 =
		(PFN_vkGetPhysicalDeviceFeatures2)gipa(instance, "vkGetPhysicalDeviceFeatures2");
	if (features2 == NULL) {
		return 0;
	}

	VkPhysicalDeviceVulkan13Features v13 = {0};
	v13.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_VULKAN_1_3_FEATURES;
	VkPhysicalDeviceVulkan12Features v12 = {0};
	v12.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_VULKAN_1_2_FEATURES;
	v12.pNext = &v13;
	VkPhysicalDeviceFeatures2 features = {0};
	features.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_FEATURES_2;
	features.pNext = &v12;

	features2(pd, &features);

	out->dynamicRendering = v13.dynamicRendering;
	out->synchronization2 = v13.synchronization2;
	out->bufferDeviceAddress = v12.bufferDeviceAddress;
	out->descriptorIndexing = v12.descriptorIndexing;
	return 1;
}

static featureChain* newFeatureChain(void) {
	featureChain* c = calloc(1, sizeof(featureChain));
	c->v13.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_VULKAN_1_3_FEATURES;
	c->v13.dynamicRendering = VK_TRUE;
	c->v13.synchronization2 = VK_TRUE;
	c->v12.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_VULKAN_1_2_FEATURES;
	c->v12.pNext = &c->v13;
	c->v12.bufferDeviceAddress = VK_TRUE;
	c->v12.descriptorIndexing = VK_TRUE;
	return c;
}

static renderingFormats* newRenderingFormats(VkFormat color, VkFormat depth) {
	renderingFormats* r = calloc(1, sizeof(renderingFormats));
	r->color = color;
	r->info.sType = VK_STRUCTURE_TYPE_PIPELINE_RENDERING_CREATE_INFO;
	if (color != VK_FORMAT_UNDEFINED) {
		r->info.colorAttachmentCount = 1;
		r->info.pColorAttachmentFormats = &r->color;
	}
	r->info.depthAttachmentFormat = depth;
	return r;
}

static VkMemoryAllocateFlagsInfo* newDeviceAddressFlags(void) {
	VkMemoryAllocateFlagsInfo* f = calloc(1, sizeof(VkMemoryAllocateFlagsInfo));
	f->sType = VK_STRUCTURE_TYPE_MEMORY_ALLOCATE_FLAGS_INFO;
	f->flags = VK_MEMORY_ALLOCATE_DEVICE_ADDRESS_BIT;
	return f;
}

static void cmdBeginRendering(deviceProcs* p, VkCommandBuffer cmd, uint32_t width, uint32_t height,
	VkImageView colorView, VkImageLayout colorLayout, VkAttachmentLoadOp colorLoad,
	float r, float g, float b, float a,
	VkImageView depthView, VkImageLayout depthLayout, VkAttachmentLoadOp depthLoad, float depth) {

	VkRenderingAttachmentInfo color = {0};
	color.sType = VK_STRUCTURE_TYPE_RENDERING_ATTACHMENT_INFO;
	color.imageView = colorView;
	color.imageLayout = colorLayout;
	color.loadOp = colorLoad;
	color.storeOp = VK_ATTACHMENT_STORE_OP_STORE;
	color.clearValue.color.float32[0] = r;
	color.clearValue.color.float32[1] = g;
	color.clearValue.color.float32[2] = b;
	color.clearValue.color.float32[3] = a;

	VkRenderingAttachmentInfo depthInfo = {0};
	depthInfo.sType = VK_STRUCTURE_TYPE_RENDERING_ATTACHMENT_INFO;
	depthInfo.imageView = depthView;
	depthInfo.imageLayout = depthLayout;
	depthInfo.loadOp = depthLoad;
	depthInfo.storeOp = VK_ATTACHMENT_STORE_OP_STORE;
	depthInfo.clearValue.depthStencil.depth = depth;

	VkRenderingInfo info = {0};
	info.sType = VK_STRUCTURE_TYPE_RENDERING_INFO;
	info.renderArea.extent.width = width;
	info.renderArea.extent.height = height;
	info.layerCount = 1;
	if (colorView != VK_NULL_HANDLE) {
		info.colorAttachmentCount = 1;
		info.pColorAttachments = &color;
	}
	if (depthView != VK_NULL_HANDLE) {
		info.pDepthAttachment = &depthInfo;
	}

	p->cmdBeginRendering(cmd, &info);
}

static void cmdEndRendering(deviceProcs* p, VkCommandBuffer cmd) {
	p->cmdEndRendering(cmd);
}

static void cmdTransitionImage(deviceProcs* p, VkCommandBuffer cmd, VkImage image,
	VkImageLayout oldLayout, VkImageLayout newLayout, VkImageAspectFlags aspect) {

	VkImageMemoryBarrier2 barrier = {0};
	barrier.sType = VK_STRUCTURE_TYPE_IMAGE_MEMORY_BARRIER_2;
	barrier.srcStageMask = VK_PIPELINE_STAGE_2_ALL_COMMANDS_BIT;
	barrier.srcAccessMask = VK_ACCESS_2_MEMORY_WRITE_BIT;
	barrier.dstStageMask = VK_PIPELINE_STAGE_2_ALL_COMMANDS_BIT;
	barrier.dstAccessMask = VK_ACCESS_2_MEMORY_WRITE_BIT | VK_ACCESS_2_MEMORY_READ_BIT;
	barrier.oldLayout = oldLayout;
	barrier.newLayout = newLayout;
	barrier.srcQueueFamilyIndex = VK_QUEUE_FAMILY_IGNORED;
	barrier.dstQueueFamilyIndex = VK_QUEUE_FAMILY_IGNORED;
	barrier.image = image;
	barrier.subresourceRange.aspectMask = aspect;
	barrier.subresourceRange.levelCount = VK_REMAINING_MIP_LEVELS;
	barrier.subresourceRange.layerCount = VK_REMAINING_ARRAY_LAYERS;

	VkDependencyInfo dep = {0};
	dep.sType = VK_STRUCTURE_TYPE_DEPENDENCY_INFO;
	dep.imageMemoryBarrierCount = 1;
	dep.pImageMemoryBarriers = &barrier;

	p->cmdPipelineBarrier2(cmd, &dep);
}

static VkResult queueSubmit(deviceProcs* p, VkQueue queue, VkCommandBuffer cmd,
	VkSemaphore wait, VkPipelineStageFlags2 waitStage,
	VkSemaphore signal, VkPipelineStageFlags2 signalStage, VkFence fence) {

	VkCommandBufferSubmitInfo cmdInfo = {0};
	cmdInfo.sType = VK_STRUCTURE_TYPE_COMMAND_BUFFER_SUBMIT_INFO;
	cmdInfo.commandBuffer = cmd;

	VkSemaphoreSubmitInfo waitInfo = {0};
	waitInfo.sType = VK_STRUCTURE_TYPE_SEMAPHORE_SUBMIT_INFO;
	waitInfo.semaphore = wait;
	waitInfo.stageMask = waitStage;
	waitInfo.value = 1;

	VkSemaphoreSubmitInfo signalInfo = {0};
	signalInfo.sType = VK_STRUCTURE_TYPE_SEMAPHORE_SUBMIT_INFO;
	signalInfo.semaphore = signal;
	signalInfo.stageMask = signalStage;
	signalInfo.value = 1;

	VkSubmitInfo2 submit = {0};
	submit.sType = VK_STRUCTURE_TYPE_SUBMIT_INFO_2;
	submit.commandBufferInfoCount = 1;
	submit.pCommandBufferInfos = &cmdInfo;
	if (wait != VK_NULL_HANDLE) {
		submit.waitSemaphoreInfoCount = 1;
		submit.pWaitSemaphoreInfos = &waitInfo;
	}
	if (signal != VK_NULL_HANDLE) {
		submit.signalSemaphoreInfoCount = 1;
		submit.pSignalSemaphoreInfos = &signalInfo;
	}

	return p->queueSubmit2(queue, 1, &submit, fence);
}

static uint64_t bufferDeviceAddress(deviceProcs* p, VkDevice device, VkBuffer buffer) {
	VkBufferDeviceAddressInfo info = {0};
	info.sType = VK_STRUCTURE_TYPE_BUFFER_DEVICE_ADDRESS_INFO;
	info.buffer = buffer;
	return (uint64_t)p->getBufferDeviceAddress(device, &info);
}
*/
import "C"

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	"vulkan-renderer/gpu"
)

// The binding covers Vulkan 1.0. Dynamic rendering, synchronization2 and buffer
// device addresses are reached through the entry points below, loaded from the
// same loader the binding uses. Handles are passed to C by value, which relies
// on non-dispatchable handles being pointers, i.e. a 64-bit platform.

// deviceProcs holds the device-level entry points the binding lacks.
type deviceProcs struct {
	c C.deviceProcs
}

func loadDeviceProcs(instance vk.Instance, device vk.Device) (*deviceProcs, error) {
	p := &deviceProcs{}
	ok := C.loadDeviceProcs(
		glfw.GetVulkanGetInstanceProcAddress(),
		C.VkInstance(unsafe.Pointer(instance)),
		C.VkDevice(unsafe.Pointer(device)),
		&p.c,
	)
	if ok == 0 {
		return nil, errors.New("device does not expose the Vulkan 1.3 entry points")
	}
	return p, nil
}

// Features are the optional device features the renderer depends on.
type Features struct {
	DynamicRendering    bool
	Synchronization2    bool
	BufferDeviceAddress bool
	DescriptorIndexing  bool
}

func queryFeatures(instance vk.Instance, pd vk.PhysicalDevice) (Features, bool) {
	var out C.featureSupport
	ok := C.queryFeatures(
		glfw.GetVulkanGetInstanceProcAddress(),
		C.VkInstance(unsafe.Pointer(instance)),
		C.VkPhysicalDevice(unsafe.Pointer(pd)),
		&out,
	)
	if ok == 0 {
		return Features{}, false
	}

	return Features{
		DynamicRendering:    out.dynamicRendering != 0,
		Synchronization2:    out.synchronization2 != 0,
		BufferDeviceAddress: out.bufferDeviceAddress != 0,
		DescriptorIndexing:  out.descriptorIndexing != 0,
	}, true
}

// newFeatureChain returns the chain of 1.2 and 1.3 feature structures enabling
// every feature in Features, to be set as DeviceCreateInfo.PNext. The caller
// frees it with freeC once the device is created.
func newFeatureChain() unsafe.Pointer {
	return unsafe.Pointer(C.newFeatureChain())
}

// newRenderingFormats returns the attachment formats of a pipeline for dynamic
// rendering, to be set as GraphicsPipelineCreateInfo.PNext.
func newRenderingFormats(color, depth gpu.Format) unsafe.Pointer {
	return unsafe.Pointer(C.newRenderingFormats(C.VkFormat(color), C.VkFormat(depth)))
}

// newDeviceAddressFlags returns allocation flags which allow buffers bound to the
// memory to have a device address, to be set as MemoryAllocateInfo.PNext.
func newDeviceAddressFlags() unsafe.Pointer {
	return unsafe.Pointer(C.newDeviceAddressFlags())
}

func freeC(p unsafe.Pointer) {
	C.free(p)
}

func (p *deviceProcs) beginRendering(cmd vk.CommandBuffer, info gpu.RenderingInfo, color, depth vk.ImageView) {
	var (
		colorLayout, depthLayout gpu.ImageLayout
		colorLoad, depthLoad     gpu.LoadOp
		clear                    [4]float32
		clearDepth               float32
	)
	if info.Color != nil {
		colorLayout, colorLoad, clear = info.Color.Layout, info.Color.Load, info.Color.ClearColor
	}
	if info.Depth != nil {
		depthLayout, depthLoad, clearDepth = info.Depth.Layout, info.Depth.Load, info.Depth.ClearDepth
	}

	C.cmdBeginRendering(&p.c, C.VkCommandBuffer(unsafe.Pointer(cmd)),
		C.uint32_t(info.Area.Width), C.uint32_t(info.Area.Height),
		C.VkImageView(unsafe.Pointer(color)), C.VkImageLayout(colorLayout), C.VkAttachmentLoadOp(colorLoad),
		C.float(clear[0]), C.float(clear[1]), C.float(clear[2]), C.float(clear[3]),
		C.VkImageView(unsafe.Pointer(depth)), C.VkImageLayout(depthLayout), C.VkAttachmentLoadOp(depthLoad),
		C.float(clearDepth),
	)
}

func (p *deviceProcs) endRendering(cmd vk.CommandBuffer) {
	C.cmdEndRendering(&p.c, C.VkCommandBuffer(unsafe.Pointer(cmd)))
}

func (p *deviceProcs) transitionImage(cmd vk.CommandBuffer, image vk.Image, b gpu.ImageBarrier) {
	C.cmdTransitionImage(&p.c, C.VkCommandBuffer(unsafe.Pointer(cmd)),
		C.VkImage(unsafe.Pointer(image)),
		C.VkImageLayout(b.OldLayout), C.VkImageLayout(b.NewLayout),
		C.VkImageAspectFlags(b.Aspect),
	)
}

func (p *deviceProcs) submit(
	queue vk.Queue,
	cmd vk.CommandBuffer,
	wait vk.Semaphore, waitStage gpu.PipelineStage,
	signal vk.Semaphore, signalStage gpu.PipelineStage,
	fence vk.Fence,
) vk.Result {
	res := C.queueSubmit(&p.c, C.VkQueue(unsafe.Pointer(queue)), C.VkCommandBuffer(unsafe.Pointer(cmd)),
		C.VkSemaphore(unsafe.Pointer(wait)), C.VkPipelineStageFlags2(waitStage),
		C.VkSemaphore(unsafe.Pointer(signal)), C.VkPipelineStageFlags2(signalStage),
		C.VkFence(unsafe.Pointer(fence)),
	)
	return vk.Result(res)
}

func (p *deviceProcs) bufferAddress(device vk.Device, buffer vk.Buffer) uint64 {
	return uint64(C.bufferDeviceAddress(&p.c, C.VkDevice(unsafe.Pointer(device)), C.VkBuffer(unsafe.Pointer(buffer))))
}
