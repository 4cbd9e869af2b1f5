package vulkan

import (
	"log/slog"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"vulkan-renderer/gpu"
	"vulkan-renderer/memory"
)

// allocator places buffers into large memory blocks, one list of blocks per
// memory type, and gives every image a dedicated allocation. Host-visible memory
// is mapped once when it is allocated and stays mapped.
type allocator struct {
	handle
	dev *Device

	types  []memory.Type
	blocks map[uint32][]*memoryBlock

	// addressFlags is chained into every allocation so buffers bound to it can
	// have a device address.
	addressFlags unsafe.Pointer

	live int
}

type memoryBlock struct {
	mem    vk.DeviceMemory
	mapped unsafe.Pointer
	spans  *memory.Block
}

type allocation struct {
	handle
	mem    vk.DeviceMemory
	block  *memoryBlock
	offset uint64
	size   uint64
	mapped []byte
}

func (a *allocation) Size() uint64    { return a.size }
func (a *allocation) Mapped() []byte  { return a.mapped }
func (a *allocation) dedicated() bool { return a.block == nil }

var nextAllocatorID handle

func (d *Device) CreateAllocator() (gpu.Allocator, error) {
	types := make([]memory.Type, d.memory.MemoryTypeCount)
	for i := range types {
		t := d.memory.MemoryTypes[i]
		types[i] = memory.Type{Flags: memory.PropertyFlags(t.PropertyFlags), Heap: t.HeapIndex}
	}

	nextAllocatorID++
	return &allocator{
		handle:       nextAllocatorID,
		dev:          d,
		types:        types,
		blocks:       make(map[uint32][]*memoryBlock),
		addressFlags: newDeviceAddressFlags(),
	}, nil
}

func (a *allocator) CreateBuffer(info gpu.BufferInfo) (gpu.Buffer, gpu.Allocation, error) {
	if info.Size == 0 {
		return nil, nil, errors.New("buffer size is zero")
	}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(info.Size),
		Usage:       vk.BufferUsageFlags(info.Usage),
		SharingMode: vk.SharingModeExclusive,
	}

	var buf vk.Buffer
	if err := check(vk.CreateBuffer(a.dev.device, &bufferInfo, nil, &buf), "vkCreateBuffer"); err != nil {
		return nil, nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(a.dev.device, buf, &reqs)
	reqs.Deref()

	alloc, err := a.allocate(reqs, info.Memory, false)
	if err != nil {
		vk.DestroyBuffer(a.dev.device, buf, nil)
		return nil, nil, err
	}

	res := vk.BindBufferMemory(a.dev.device, buf, alloc.mem, vk.DeviceSize(alloc.offset))
	if err := check(res, "vkBindBufferMemory"); err != nil {
		a.free(alloc)
		vk.DestroyBuffer(a.dev.device, buf, nil)
		return nil, nil, err
	}

	a.live++
	return &buffer{handleOf(unsafe.Pointer(buf)), buf}, alloc, nil
}

func (a *allocator) DestroyBuffer(b gpu.Buffer, alloc gpu.Allocation) {
	vk.DestroyBuffer(a.dev.device, bufferOf(b), nil)
	a.free(alloc.(*allocation))
	a.live--
}

func (a *allocator) CreateImage(info gpu.ImageInfo) (gpu.Image, gpu.Allocation, error) {
	if info.Extent.Width == 0 || info.Extent.Height == 0 {
		return nil, nil, errors.New("image extent is zero")
	}
	depth := info.Extent.Depth
	if depth == 0 {
		depth = 1
	}

	imageInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
			Depth:  depth,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        vk.Format(info.Format),
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         vk.ImageUsageFlags(info.Usage),
		SharingMode:   vk.SharingModeExclusive,
		Samples:       vk.SampleCount1Bit,
	}

	var img vk.Image
	if err := check(vk.CreateImage(a.dev.device, &imageInfo, nil, &img), "vkCreateImage"); err != nil {
		return nil, nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(a.dev.device, img, &reqs)
	reqs.Deref()

	alloc, err := a.allocate(reqs, info.Memory, true)
	if err != nil {
		vk.DestroyImage(a.dev.device, img, nil)
		return nil, nil, err
	}

	if err := check(vk.BindImageMemory(a.dev.device, img, alloc.mem, 0), "vkBindImageMemory"); err != nil {
		a.free(alloc)
		vk.DestroyImage(a.dev.device, img, nil)
		return nil, nil, err
	}

	a.live++
	return &image{handleOf(unsafe.Pointer(img)), img}, alloc, nil
}

func (a *allocator) DestroyImage(i gpu.Image, alloc gpu.Allocation) {
	vk.DestroyImage(a.dev.device, imageOf(i), nil)
	a.free(alloc.(*allocation))
	a.live--
}

func (a *allocator) LiveAllocations() int {
	return a.live
}

// Destroy frees every block. Allocations still alive lose their memory.
func (a *allocator) Destroy() {
	for _, blocks := range a.blocks {
		for _, b := range blocks {
			a.releaseMemory(b.mem, b.mapped != nil)
		}
	}
	a.blocks = nil

	if a.addressFlags != nil {
		freeC(a.addressFlags)
		a.addressFlags = nil
	}
}

// allocate finds memory for reqs. Requests larger than half a block get their
// own allocation so one resource never pins a whole block.
func (a *allocator) allocate(reqs vk.MemoryRequirements, usage gpu.MemoryUsage, dedicated bool) (*allocation, error) {
	typeIndex, err := memory.FindType(a.types, reqs.MemoryTypeBits, usage)
	if err != nil {
		return nil, err
	}

	size := uint64(reqs.Size)
	host := usage.HostVisible()

	if dedicated || size > memory.DefaultBlockSize/2 {
		mem, mapped, err := a.allocateMemory(size, typeIndex, host)
		if err != nil {
			return nil, err
		}
		return &allocation{
			handle: handleOf(unsafe.Pointer(mem)),
			mem:    mem,
			size:   size,
			mapped: mappedRange(mapped, 0, size),
		}, nil
	}

	for _, b := range a.blocks[typeIndex] {
		if offset, ok := b.spans.Alloc(size, uint64(reqs.Alignment)); ok {
			return a.suballocation(b, offset, size), nil
		}
	}

	mem, mapped, err := a.allocateMemory(memory.DefaultBlockSize, typeIndex, host)
	if err != nil {
		return nil, err
	}
	b := &memoryBlock{mem: mem, mapped: mapped, spans: memory.NewBlock(memory.DefaultBlockSize)}
	a.blocks[typeIndex] = append(a.blocks[typeIndex], b)
	a.dev.log.Debug("allocated memory block",
		slog.Uint64("type", uint64(typeIndex)),
		slog.Uint64("size", memory.DefaultBlockSize),
	)

	offset, _ := b.spans.Alloc(size, uint64(reqs.Alignment))
	return a.suballocation(b, offset, size), nil
}

func (a *allocator) suballocation(b *memoryBlock, offset, size uint64) *allocation {
	return &allocation{
		handle: handleOf(unsafe.Pointer(b.mem)) + handle(offset),
		mem:    b.mem,
		block:  b,
		offset: offset,
		size:   size,
		mapped: mappedRange(b.mapped, offset, size),
	}
}

// free returns the range of alloc to its block. Blocks are kept once allocated
// and only released by Destroy.
func (a *allocator) free(alloc *allocation) {
	if alloc.dedicated() {
		a.releaseMemory(alloc.mem, alloc.mapped != nil)
		return
	}
	alloc.block.spans.Free(alloc.offset, alloc.size)
}

func (a *allocator) allocateMemory(size uint64, typeIndex uint32, host bool) (vk.DeviceMemory, unsafe.Pointer, error) {
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		PNext:           a.addressFlags,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: typeIndex,
	}

	var mem vk.DeviceMemory
	if err := check(vk.AllocateMemory(a.dev.device, &allocInfo, nil, &mem), "vkAllocateMemory"); err != nil {
		return mem, nil, err
	}
	if !host {
		return mem, nil, nil
	}

	var mapped unsafe.Pointer
	res := vk.MapMemory(a.dev.device, mem, 0, vk.DeviceSize(size), 0, &mapped)
	if err := check(res, "vkMapMemory"); err != nil {
		vk.FreeMemory(a.dev.device, mem, nil)
		return mem, nil, err
	}
	return mem, mapped, nil
}

func (a *allocator) releaseMemory(mem vk.DeviceMemory, mapped bool) {
	if mapped {
		vk.UnmapMemory(a.dev.device, mem)
	}
	vk.FreeMemory(a.dev.device, mem, nil)
}

func mappedRange(base unsafe.Pointer, offset, size uint64) []byte {
	if base == nil {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Add(base, offset)), size)
}
