// Package memory keeps the bookkeeping of device memory: which memory type
// serves a usage class and how buffers are packed into large blocks.
package memory

import (
	"github.com/cockroachdb/errors"

	"vulkan-renderer/gpu"
)

// PropertyFlags are memory property flags. The values match Vulkan's.
type PropertyFlags uint32

// Memory properties.
const (
	DeviceLocal  PropertyFlags = 0x1
	HostVisible  PropertyFlags = 0x2
	HostCoherent PropertyFlags = 0x4
	HostCached   PropertyFlags = 0x8
)

// Type is one memory type reported by the physical device.
type Type struct {
	Flags PropertyFlags
	Heap  uint32
}

// ErrNoMemoryType is returned when no memory type satisfies a request.
var ErrNoMemoryType = errors.New("failed to find suitable memory type")

// Requirements returns the properties a usage class cannot do without and the
// ones it prefers when they are available.
func Requirements(usage gpu.MemoryUsage) (required, preferred PropertyFlags) {
	switch usage {
	case gpu.MemoryCPUToGPU:
		return HostVisible | HostCoherent, DeviceLocal
	case gpu.MemoryGPUToCPU:
		// Mapped ranges are never invalidated, so readback needs coherent memory.
		return HostVisible | HostCoherent, HostCached
	default:
		return DeviceLocal, 0
	}
}

// FindType returns the index of the memory type for usage among types. Only the
// types whose bit is set in typeBits are considered. Among those with the
// required properties, the first one with the most preferred properties wins.
func FindType(types []Type, typeBits uint32, usage gpu.MemoryUsage) (uint32, error) {
	required, preferred := Requirements(usage)

	best, bestScore := -1, -1
	for i, t := range types {
		if i >= 32 || typeBits&(1<<uint(i)) == 0 {
			continue
		}

		if t.Flags&required != required {
			continue
		}

		score := popcount(t.Flags & preferred)
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	if best < 0 {
		return 0, errors.Wrapf(ErrNoMemoryType, "usage %s, type bits %#x", usage, typeBits)
	}
	return uint32(best), nil
}

func popcount(f PropertyFlags) int {
	n := 0
	for ; f != 0; f &= f - 1 {
		n++
	}
	return n
}
