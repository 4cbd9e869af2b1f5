package vulkan

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"
)

func TestChooseSwapSurfaceFormat(t *testing.T) {
	srgb := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	unorm := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	assert.Equal(t, srgb, chooseSwapSurfaceFormat([]vk.SurfaceFormat{unorm, srgb}))
	assert.Equal(t, unorm, chooseSwapSurfaceFormat([]vk.SurfaceFormat{unorm}))
}

func TestChooseSwapPresentMode(t *testing.T) {
	modes := []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox}

	assert.Equal(t, vk.PresentModeFifo, chooseSwapPresentMode(modes, true))
	assert.Equal(t, vk.PresentModeMailbox, chooseSwapPresentMode(modes, false))
	assert.Equal(t, vk.PresentModeFifo, chooseSwapPresentMode(modes[:1], false))
}

func TestChooseSwapExtent(t *testing.T) {
	fixed := vk.SurfaceCapabilities{
		CurrentExtent: vk.Extent2D{Width: 800, Height: 600},
	}
	assert.Equal(t, vk.Extent2D{Width: 800, Height: 600}, chooseSwapExtent(fixed, 1920, 1080))

	free := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32},
		MinImageExtent: vk.Extent2D{Width: 16, Height: 16},
		MaxImageExtent: vk.Extent2D{Width: 4096, Height: 2048},
	}
	assert.Equal(t, vk.Extent2D{Width: 1280, Height: 720}, chooseSwapExtent(free, 1280, 720))
	assert.Equal(t, vk.Extent2D{Width: 4096, Height: 16}, chooseSwapExtent(free, 5000, 1))
}

func TestChooseImageCount(t *testing.T) {
	assert.Equal(t, uint32(3), chooseImageCount(vk.SurfaceCapabilities{MinImageCount: 2}))
	assert.Equal(t, uint32(2), chooseImageCount(vk.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 2}))
}
