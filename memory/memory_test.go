package memory

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vulkan-renderer/gpu"
)

func TestFindType(t *testing.T) {
	types := []Type{
		{Flags: DeviceLocal},
		{Flags: HostVisible | HostCoherent},
		{Flags: HostVisible | HostCoherent | HostCached},
		{Flags: DeviceLocal | HostVisible | HostCoherent},
		{Flags: HostVisible | HostCached},
	}

	tests := []struct {
		name     string
		bits     uint32
		usage    gpu.MemoryUsage
		expected uint32
	}{
		{"gpu only", 0xf, gpu.MemoryGPUOnly, 0},
		{"upload prefers device local", 0xf, gpu.MemoryCPUToGPU, 3},
		{"upload without bar", 0x7, gpu.MemoryCPUToGPU, 1},
		{"readback prefers cached", 0xf, gpu.MemoryGPUToCPU, 2},
		{"readback requires coherent", 0x12, gpu.MemoryGPUToCPU, 1},
		{"type bits filter", 0x8, gpu.MemoryGPUOnly, 3},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			index, err := FindType(types, test.bits, test.usage)
			require.NoError(t, err)
			assert.Equal(t, test.expected, index)
		})
	}
}

func TestFindTypeMissing(t *testing.T) {
	_, err := FindType([]Type{{Flags: HostVisible}}, 0x1, gpu.MemoryGPUOnly)
	assert.True(t, errors.Is(err, ErrNoMemoryType))

	_, err = FindType([]Type{{Flags: DeviceLocal}}, 0x0, gpu.MemoryGPUOnly)
	assert.Error(t, err)

	_, err = FindType([]Type{{Flags: HostVisible | HostCached}}, 0x1, gpu.MemoryGPUToCPU)
	assert.True(t, errors.Is(err, ErrNoMemoryType))
}

func TestBlockFirstFit(t *testing.T) {
	b := NewBlock(1024)

	a, ok := b.Alloc(100, 0)
	require.True(t, ok)
	assert.Equal(t, uint64(0), a)

	c, ok := b.Alloc(100, 256)
	require.True(t, ok)
	assert.Equal(t, uint64(256), c)
	assert.Equal(t, uint64(200), b.Used())

	// The padding before c is reused by small allocations.
	d, ok := b.Alloc(50, 4)
	require.True(t, ok)
	assert.Equal(t, uint64(100), d)

	_, ok = b.Alloc(2048, 1)
	assert.False(t, ok)

	b.Free(a, 100)
	b.Free(d, 50)
	b.Free(c, 100)
	assert.True(t, b.Empty())
	assert.Equal(t, 1, b.FreeRanges())

	whole, ok := b.Alloc(1024, 1)
	require.True(t, ok)
	assert.Equal(t, uint64(0), whole)
}

func TestBlockCoalesce(t *testing.T) {
	b := NewBlock(300)
	var offsets []uint64
	for i := 0; i < 3; i++ {
		o, ok := b.Alloc(100, 1)
		require.True(t, ok)
		offsets = append(offsets, o)
	}
	assert.Equal(t, 0, b.FreeRanges())

	b.Free(offsets[0], 100)
	b.Free(offsets[2], 100)
	assert.Equal(t, 2, b.FreeRanges())

	_, ok := b.Alloc(200, 1)
	assert.False(t, ok)

	b.Free(offsets[1], 100)
	assert.Equal(t, 1, b.FreeRanges())
	_, ok = b.Alloc(300, 1)
	assert.True(t, ok)
}
