package vulkan

import (
	vk "github.com/vulkan-go/vulkan"

	"vulkan-renderer/gpu"
)

// check turns a native result into an error naming the failed call. Results the
// renderer recovers from or treats specially are mapped onto the gpu sentinel
// errors so callers can test for them with errors.Is.
func check(res vk.Result, op string) error {
	switch res {
	case vk.Success:
		return nil
	case vk.ErrorOutOfDate:
		return &gpu.ResultError{Op: op, Code: int32(res), Err: gpu.ErrOutOfDate}
	case vk.ErrorDeviceLost:
		return &gpu.ResultError{Op: op, Code: int32(res), Err: gpu.ErrDeviceLost}
	case vk.Timeout:
		return &gpu.ResultError{Op: op, Code: int32(res), Err: gpu.ErrTimeout}
	}
	return &gpu.ResultError{Op: op, Code: int32(res), Err: vk.Error(res)}
}
