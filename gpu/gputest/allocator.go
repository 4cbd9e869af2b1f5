package gputest

import (
	"github.com/cockroachdb/errors"

	"vulkan-renderer/gpu"
)

// Allocator is a fake gpu.Allocator. Every buffer is backed by a Go slice which
// host-visible allocations expose through Mapped.
type Allocator struct {
	object
	dev  *Device
	live int
}

var _ gpu.Allocator = (*Allocator)(nil)

func (a *Allocator) CreateBuffer(info gpu.BufferInfo) (gpu.Buffer, gpu.Allocation, error) {
	if a.destroyed {
		a.dev.violate("buffer created from destroyed %s", a)
	}
	if err := a.dev.fail("CreateBuffer"); err != nil {
		return nil, nil, err
	}
	if info.Size == 0 {
		return nil, nil, errors.New("CreateBuffer: zero size")
	}

	buf := &Buffer{Info: info, Data: make([]byte, info.Size)}
	a.dev.track(buf, KindBuffer)

	alloc := &Allocation{size: info.Size}
	if info.Memory.HostVisible() {
		alloc.mapped = buf.Data
	}
	a.dev.track(alloc, KindAllocation)
	a.live++
	return buf, alloc, nil
}

func (a *Allocator) DestroyBuffer(b gpu.Buffer, alloc gpu.Allocation) {
	a.dev.release(b, KindBuffer)
	if a.dev.release(alloc, KindAllocation) {
		a.live--
	}
}

func (a *Allocator) CreateImage(info gpu.ImageInfo) (gpu.Image, gpu.Allocation, error) {
	if a.destroyed {
		a.dev.violate("image created from destroyed %s", a)
	}
	if err := a.dev.fail("CreateImage"); err != nil {
		return nil, nil, err
	}
	if info.Extent.Width == 0 || info.Extent.Height == 0 {
		return nil, nil, errors.New("CreateImage: zero extent")
	}

	depth := info.Extent.Depth
	if depth == 0 {
		depth = 1
	}
	size := uint64(info.Extent.Width) * uint64(info.Extent.Height) * uint64(depth) *
		uint64(info.Format.BytesPerTexel())

	img := &Image{Info: info, Data: make([]byte, size)}
	a.dev.track(img, KindImage)

	alloc := &Allocation{size: size}
	a.dev.track(alloc, KindAllocation)
	a.live++
	return img, alloc, nil
}

func (a *Allocator) DestroyImage(img gpu.Image, alloc gpu.Allocation) {
	if i, ok := img.(*Image); ok && i.swapchain != nil {
		a.dev.violate("%s is owned by %s and has no allocation", i, i.swapchain)
		return
	}
	a.dev.release(img, KindImage)
	if a.dev.release(alloc, KindAllocation) {
		a.live--
	}
}

func (a *Allocator) LiveAllocations() int {
	return a.live
}

func (a *Allocator) Destroy() {
	if a.live != 0 {
		a.dev.violate("%s destroyed with %d live allocations", a, a.live)
	}
	a.dev.release(a, KindAllocator)
}
