package vulkan

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"

	"vulkan-renderer/gpu"
)

func TestCheck(t *testing.T) {
	assert.NoError(t, check(vk.Success, "vkQueuePresentKHR"))

	err := check(vk.ErrorOutOfDate, "vkAcquireNextImageKHR")
	assert.True(t, gpu.IsOutOfDate(err))
	assert.Contains(t, err.Error(), "vkAcquireNextImageKHR")

	assert.True(t, errors.Is(check(vk.ErrorDeviceLost, "vkQueueSubmit2"), gpu.ErrDeviceLost))
	assert.True(t, errors.Is(check(vk.Timeout, "vkWaitForFences"), gpu.ErrTimeout))

	err = check(vk.ErrorOutOfDeviceMemory, "vkAllocateMemory")
	var re *gpu.ResultError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "vkAllocateMemory", re.Op)
	assert.Equal(t, int32(vk.ErrorOutOfDeviceMemory), re.Code)
	assert.False(t, gpu.IsOutOfDate(err))
}
