package gputest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vulkan-renderer/gpu"
)

func recordCopy(t *testing.T, d *Device, src, dst gpu.Buffer, size uint64) (gpu.CommandPool, gpu.CommandBuffer) {
	t.Helper()
	pool, err := d.CreateCommandPool()
	require.NoError(t, err)
	cmd, err := d.AllocateCommandBuffer(pool)
	require.NoError(t, err)
	require.NoError(t, d.BeginCommandBuffer(cmd))
	cmd.CopyBuffer(src, dst, gpu.BufferCopy{Size: size})
	require.NoError(t, d.EndCommandBuffer(cmd))
	return pool, cmd
}

func TestCopiesRunAtFenceCompletion(t *testing.T) {
	d := New()
	alloc, err := d.CreateAllocator()
	require.NoError(t, err)

	src, srcMem, err := alloc.CreateBuffer(gpu.BufferInfo{Size: 4, Usage: gpu.BufferTransferSrc, Memory: gpu.MemoryCPUToGPU})
	require.NoError(t, err)
	dst, dstMem, err := alloc.CreateBuffer(gpu.BufferInfo{Size: 4, Usage: gpu.BufferTransferDst, Memory: gpu.MemoryGPUToCPU})
	require.NoError(t, err)
	copy(srcMem.Mapped(), []byte{1, 2, 3, 4})

	pool, cmd := recordCopy(t, d, src, dst, 4)
	fence, err := d.CreateFence(false)
	require.NoError(t, err)
	require.NoError(t, d.Submit(gpu.SubmitInfo{Command: cmd, Fence: fence}))

	assert.Equal(t, 1, d.Pending())
	assert.Equal(t, []byte{0, 0, 0, 0}, dstMem.Mapped())

	require.NoError(t, d.WaitFence(fence, gpu.Forever))
	assert.Zero(t, d.Pending())
	assert.Equal(t, []byte{1, 2, 3, 4}, dstMem.Mapped())

	d.DestroyFence(fence)
	d.DestroyCommandPool(pool)
	alloc.DestroyBuffer(src, srcMem)
	alloc.DestroyBuffer(dst, dstMem)
	alloc.Destroy()

	assert.Empty(t, d.Violations)
	assert.Empty(t, d.Leaks())
}

func TestDestroyWhilePending(t *testing.T) {
	d := New()
	alloc, err := d.CreateAllocator()
	require.NoError(t, err)
	src, srcMem, err := alloc.CreateBuffer(gpu.BufferInfo{Size: 8, Memory: gpu.MemoryCPUToGPU})
	require.NoError(t, err)
	dst, dstMem, err := alloc.CreateBuffer(gpu.BufferInfo{Size: 8, Memory: gpu.MemoryGPUOnly})
	require.NoError(t, err)

	_, cmd := recordCopy(t, d, src, dst, 8)
	require.NoError(t, d.Submit(gpu.SubmitInfo{Command: cmd}))

	alloc.DestroyBuffer(src, srcMem)
	require.Len(t, d.Violations, 1)
	assert.Contains(t, d.Violations[0], "still uses it")

	require.NoError(t, d.WaitIdle())
	alloc.DestroyBuffer(dst, dstMem)
	assert.Len(t, d.Violations, 1)
}

func TestRecordingIntoPendingBuffer(t *testing.T) {
	d := New()
	pool, err := d.CreateCommandPool()
	require.NoError(t, err)
	cmd, err := d.AllocateCommandBuffer(pool)
	require.NoError(t, err)

	require.NoError(t, d.BeginCommandBuffer(cmd))
	require.NoError(t, d.EndCommandBuffer(cmd))
	require.NoError(t, d.Submit(gpu.SubmitInfo{Command: cmd}))

	require.NoError(t, d.ResetCommandBuffer(cmd))
	cmd.EndRendering()
	assert.Len(t, d.Violations, 2)
}

func TestWaitOnUnsignaledFence(t *testing.T) {
	d := New()
	f, err := d.CreateFence(false)
	require.NoError(t, err)

	err = d.WaitFence(f, gpu.Forever)
	assert.ErrorIs(t, err, gpu.ErrTimeout)
	assert.Len(t, d.Violations, 1)

	signaled, err := d.CreateFence(true)
	require.NoError(t, err)
	assert.NoError(t, d.WaitFence(signaled, gpu.Forever))
}

func TestDoubleDestroy(t *testing.T) {
	d := New()
	s, err := d.CreateSemaphore()
	require.NoError(t, err)
	d.DestroySemaphore(s)
	d.DestroySemaphore(s)
	require.Len(t, d.Violations, 1)
	assert.Contains(t, d.Violations[0], "destroyed twice")
}

func TestSwapchainImages(t *testing.T) {
	d := New()
	d.SurfaceExtent = gpu.Extent2D{}

	_, err := d.CreateSwapchain(gpu.SwapchainInfo{})
	assert.Error(t, err)

	sc, err := d.CreateSwapchain(gpu.SwapchainInfo{Width: 640, Height: 480})
	require.NoError(t, err)
	assert.Len(t, sc.Images, 3)
	assert.Equal(t, gpu.Extent2D{Width: 640, Height: 480}, sc.Extent)

	sem, err := d.CreateSemaphore()
	require.NoError(t, err)
	var got []uint32
	for i := 0; i < 4; i++ {
		idx, err := d.AcquireNextImage(sc.Swapchain, sem)
		require.NoError(t, err)
		got = append(got, idx)
		require.NoError(t, d.Present(sc.Swapchain, idx, sem))
	}
	assert.Equal(t, []uint32{0, 1, 2, 0}, got)

	d.QueueAcquireResult(gpu.ErrOutOfDate)
	_, err = d.AcquireNextImage(sc.Swapchain, sem)
	assert.True(t, gpu.IsOutOfDate(err))

	d.DestroySwapchain(sc.Swapchain)
	d.DestroySemaphore(sem)
	assert.Empty(t, d.Leaks())
	assert.Empty(t, d.Violations)
}

func TestFailNext(t *testing.T) {
	d := New()
	boom := assert.AnError
	d.FailNext("CreateFence", boom)

	_, err := d.CreateFence(true)
	assert.ErrorIs(t, err, boom)

	f, err := d.CreateFence(true)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Live(KindFence))
	d.DestroyFence(f)
	assert.Zero(t, d.Live(KindFence))
}

func TestAllocatorLeakReport(t *testing.T) {
	d := New()
	alloc, err := d.CreateAllocator()
	require.NoError(t, err)
	_, _, err = alloc.CreateImage(gpu.ImageInfo{
		Format: gpu.FormatR8G8B8A8Srgb,
		Extent: gpu.Extent3D{Width: 2, Height: 2, Depth: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, alloc.LiveAllocations())

	alloc.Destroy()
	require.Len(t, d.Violations, 1)
	assert.Contains(t, d.Violations[0], "1 live allocations")
	assert.Len(t, d.Leaks(), 2)
}
