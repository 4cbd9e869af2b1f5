package vulkan

import (
	"cmp"
	"math"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"vulkan-renderer/gpu"
)

type swapChainSupportDetails struct {
	capabilities vk.SurfaceCapabilities
	formats      []vk.SurfaceFormat
	presentModes []vk.PresentMode
}

func (d *Device) querySwapChainSupport(pd vk.PhysicalDevice) swapChainSupportDetails {
	details := swapChainSupportDetails{}

	var capabilities vk.SurfaceCapabilities
	res := vk.GetPhysicalDeviceSurfaceCapabilities(pd, d.surface, &capabilities)
	if err := check(res, "vkGetPhysicalDeviceSurfaceCapabilitiesKHR"); err != nil {
		d.log.Warn("querying surface capabilities", "err", err)
		return details
	}
	capabilities.Deref()
	capabilities.CurrentExtent.Deref()
	capabilities.MinImageExtent.Deref()
	capabilities.MaxImageExtent.Deref()
	details.capabilities = capabilities

	var formatCount uint32
	res = vk.GetPhysicalDeviceSurfaceFormats(pd, d.surface, &formatCount, nil)
	if err := check(res, "vkGetPhysicalDeviceSurfaceFormatsKHR"); err != nil {
		d.log.Warn("querying surface formats", "err", err)
		return details
	}
	if formatCount != 0 {
		formats := make([]vk.SurfaceFormat, formatCount)
		vk.GetPhysicalDeviceSurfaceFormats(pd, d.surface, &formatCount, formats)
		for _, format := range formats {
			format.Deref()
			details.formats = append(details.formats, format)
		}
	}

	var presentModeCount uint32
	res = vk.GetPhysicalDeviceSurfacePresentModes(pd, d.surface, &presentModeCount, nil)
	if err := check(res, "vkGetPhysicalDeviceSurfacePresentModesKHR"); err != nil {
		d.log.Warn("querying present modes", "err", err)
		return details
	}
	if presentModeCount != 0 {
		presentModes := make([]vk.PresentMode, presentModeCount)
		vk.GetPhysicalDeviceSurfacePresentModes(pd, d.surface, &presentModeCount, presentModes)
		details.presentModes = presentModes
	}

	return details
}

func (d *Device) CreateSwapchain(info gpu.SwapchainInfo) (*gpu.SwapchainImages, error) {
	support := d.querySwapChainSupport(d.physical)
	if len(support.formats) == 0 || len(support.presentModes) == 0 {
		return nil, errors.New("surface reports no formats or present modes")
	}

	surfaceFormat := chooseSwapSurfaceFormat(support.formats)
	presentMode := chooseSwapPresentMode(support.presentModes, info.VSync)
	extent := chooseSwapExtent(support.capabilities, info.Width, info.Height)
	if extent.Width == 0 || extent.Height == 0 {
		return nil, errors.New("surface has a zero extent")
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.surface,
		MinImageCount:    chooseImageCount(support.capabilities),
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit) | vk.ImageUsageFlags(info.Usage),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     support.capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}

	var sc vk.Swapchain
	if err := check(vk.CreateSwapchain(d.device, &createInfo, nil, &sc), "vkCreateSwapchainKHR"); err != nil {
		return nil, err
	}

	var imageCount uint32
	res := vk.GetSwapchainImages(d.device, sc, &imageCount, nil)
	if err := check(res, "vkGetSwapchainImagesKHR"); err != nil {
		vk.DestroySwapchain(d.device, sc, nil)
		return nil, err
	}
	native := make([]vk.Image, imageCount)
	res = vk.GetSwapchainImages(d.device, sc, &imageCount, native)
	if err := check(res, "vkGetSwapchainImagesKHR"); err != nil {
		vk.DestroySwapchain(d.device, sc, nil)
		return nil, err
	}

	images := make([]gpu.Image, len(native))
	for i, img := range native {
		images[i] = &image{handleOf(unsafe.Pointer(img)), img}
	}

	return &gpu.SwapchainImages{
		Swapchain: &swapchain{handleOf(unsafe.Pointer(sc)), sc},
		Images:    images,
		Format:    gpu.Format(surfaceFormat.Format),
		Extent:    gpu.Extent2D{Width: extent.Width, Height: extent.Height},
	}, nil
}

func (d *Device) DestroySwapchain(sc gpu.Swapchain) {
	vk.DestroySwapchain(d.device, sc.(*swapchain).h, nil)
}

// AcquireNextImage treats a suboptimal chain as usable; it is rebuilt after
// presenting.
func (d *Device) AcquireNextImage(sc gpu.Swapchain, signal gpu.Semaphore) (uint32, error) {
	var imageIndex uint32
	res := vk.AcquireNextImage(d.device, sc.(*swapchain).h, vk.MaxUint64,
		semaphoreOf(signal), vk.NullFence, &imageIndex)
	if res == vk.Suboptimal {
		return imageIndex, nil
	}
	return imageIndex, check(res, "vkAcquireNextImageKHR")
}

func (d *Device) Present(sc gpu.Swapchain, imageIndex uint32, wait gpu.Semaphore) error {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{semaphoreOf(wait)},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.(*swapchain).h},
		PImageIndices:      []uint32{imageIndex},
	}

	res := vk.QueuePresent(d.queue, &presentInfo)
	if res == vk.Suboptimal {
		res = vk.ErrorOutOfDate
	}
	return check(res, "vkQueuePresentKHR")
}

func chooseSwapSurfaceFormat(available []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range available {
		if format.Format == vk.FormatB8g8r8a8Srgb &&
			format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}

	return available[0]
}

// chooseSwapPresentMode picks FIFO with vsync and mailbox, if there is one,
// without. FIFO is always available.
func chooseSwapPresentMode(available []vk.PresentMode, vsync bool) vk.PresentMode {
	if vsync {
		return vk.PresentModeFifo
	}

	for _, mode := range available {
		if mode == vk.PresentModeMailbox {
			return mode
		}
	}

	return vk.PresentModeFifo
}

// chooseSwapExtent uses the surface's size when it dictates one and clamps the
// framebuffer size into the supported range otherwise.
func chooseSwapExtent(capabilities vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if capabilities.CurrentExtent.Width != math.MaxUint32 {
		return capabilities.CurrentExtent
	}

	return vk.Extent2D{
		Width: clamp(width,
			capabilities.MinImageExtent.Width,
			capabilities.MaxImageExtent.Width,
		),
		Height: clamp(height,
			capabilities.MinImageExtent.Height,
			capabilities.MaxImageExtent.Height,
		),
	}
}

// chooseImageCount asks for one image more than the minimum so acquiring never
// waits on the driver. Zero MaxImageCount means there is no upper limit.
func chooseImageCount(capabilities vk.SurfaceCapabilities) uint32 {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

func clamp[T cmp.Ordered](val, min, max T) T {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
