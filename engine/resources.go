package engine

import (
	"image"

	"github.com/cockroachdb/errors"

	"vulkan-renderer/gpu"
)

// Buffer is a device buffer with its memory.
type Buffer struct {
	Handle     gpu.Buffer
	Allocation gpu.Allocation
	Size       uint64
	Usage      gpu.BufferUsage
}

// Mapped returns the CPU view of host-visible buffers and nil otherwise.
func (b *Buffer) Mapped() []byte {
	return b.Allocation.Mapped()
}

// Image is a 2D device image with its memory and a view of the whole image.
type Image struct {
	Handle     gpu.Image
	View       gpu.ImageView
	Allocation gpu.Allocation
	Format     gpu.Format
	Extent     gpu.Extent3D
}

// CreateBuffer allocates a buffer of size bytes from memory of the usage class.
func (e *Engine) CreateBuffer(usage gpu.MemoryUsage, size uint64, flags gpu.BufferUsage) (*Buffer, error) {
	handle, alloc, err := e.alloc.CreateBuffer(gpu.BufferInfo{
		Size:   size,
		Usage:  flags,
		Memory: usage,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "createBuffer (%d bytes, %s)", size, usage)
	}

	return &Buffer{
		Handle:     handle,
		Allocation: alloc,
		Size:       size,
		Usage:      flags,
	}, nil
}

// DestroyBuffer releases b. It must be called once, after the GPU stopped
// using b.
func (e *Engine) DestroyBuffer(b *Buffer) {
	e.alloc.DestroyBuffer(b.Handle, b.Allocation)
}

// BufferAddress returns the device address of a buffer created with
// gpu.BufferDeviceAddress usage.
func (e *Engine) BufferAddress(b *Buffer) uint64 {
	return e.dev.BufferAddress(b.Handle)
}

// CreateImage allocates an image and a view of its aspect. When the view cannot
// be created the image is released again.
func (e *Engine) CreateImage(
	usage gpu.MemoryUsage,
	format gpu.Format,
	extent gpu.Extent3D,
	flags gpu.ImageUsage,
	aspect gpu.Aspect,
) (*Image, error) {
	if extent.Depth == 0 {
		extent.Depth = 1
	}

	handle, alloc, err := e.alloc.CreateImage(gpu.ImageInfo{
		Format: format,
		Extent: extent,
		Usage:  flags,
		Memory: usage,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "createImage (%dx%d)", extent.Width, extent.Height)
	}

	view, err := e.dev.CreateImageView(handle, format, aspect)
	if err != nil {
		e.alloc.DestroyImage(handle, alloc)
		return nil, errors.Wrap(err, "createImageView")
	}

	return &Image{
		Handle:     handle,
		View:       view,
		Allocation: alloc,
		Format:     format,
		Extent:     extent,
	}, nil
}

// DestroyImage releases the view and the image. It must be called once, after
// the GPU stopped using img.
func (e *Engine) DestroyImage(img *Image) {
	e.dev.DestroyImageView(img.View)
	e.alloc.DestroyImage(img.Handle, img.Allocation)
}

// stage copies data into a new host-visible transfer source buffer.
func (e *Engine) stage(data []byte) (*Buffer, error) {
	staging, err := e.CreateBuffer(gpu.MemoryCPUToGPU, uint64(len(data)), gpu.BufferTransferSrc)
	if err != nil {
		return nil, errors.Wrap(err, "staging")
	}

	mapped := staging.Mapped()
	if len(mapped) < len(data) {
		e.DestroyBuffer(staging)
		return nil, errors.Newf("staging buffer maps %d of %d bytes", len(mapped), len(data))
	}
	copy(mapped, data)
	return staging, nil
}

// UploadBuffer creates a device-local buffer holding data. Transfer destination
// usage is added to flags.
func (e *Engine) UploadBuffer(data []byte, flags gpu.BufferUsage) (*Buffer, error) {
	if len(data) == 0 {
		return nil, errors.New("uploadBuffer: no data")
	}

	staging, err := e.stage(data)
	if err != nil {
		return nil, errors.Wrap(err, "uploadBuffer")
	}
	defer e.DestroyBuffer(staging)

	dst, err := e.CreateBuffer(gpu.MemoryGPUOnly, uint64(len(data)), flags|gpu.BufferTransferDst)
	if err != nil {
		return nil, errors.Wrap(err, "uploadBuffer")
	}

	err = e.immediate.Submit(func(cmd gpu.CommandBuffer) error {
		cmd.CopyBuffer(staging.Handle, dst.Handle, gpu.BufferCopy{Size: uint64(len(data))})
		return nil
	})
	if err != nil {
		e.DestroyBuffer(dst)
		return nil, errors.Wrap(err, "uploadBuffer")
	}
	return dst, nil
}

// UploadImage creates a device-local color image of format holding the tightly
// packed texels in data. The image is left in the read-only layout. Transfer
// destination usage is added to flags.
func (e *Engine) UploadImage(data []byte, format gpu.Format, extent gpu.Extent3D, flags gpu.ImageUsage) (*Image, error) {
	if extent.Depth == 0 {
		extent.Depth = 1
	}
	want := uint64(extent.Width) * uint64(extent.Height) * uint64(extent.Depth) * uint64(format.BytesPerTexel())
	if want == 0 || uint64(len(data)) != want {
		return nil, errors.Newf("uploadImage: %d bytes of data for a %dx%d image of %d bytes",
			len(data), extent.Width, extent.Height, want)
	}

	staging, err := e.stage(data)
	if err != nil {
		return nil, errors.Wrap(err, "uploadImage")
	}
	defer e.DestroyBuffer(staging)

	img, err := e.CreateImage(gpu.MemoryGPUOnly, format, extent, flags|gpu.ImageTransferDst, gpu.AspectColor)
	if err != nil {
		return nil, errors.Wrap(err, "uploadImage")
	}

	err = e.immediate.Submit(func(cmd gpu.CommandBuffer) error {
		TransitionImage(cmd, img.Handle, gpu.LayoutUndefined, gpu.LayoutTransferDst)
		cmd.CopyBufferToImage(staging.Handle, img.Handle, extent)
		TransitionImage(cmd, img.Handle, gpu.LayoutTransferDst, gpu.LayoutReadOnly)
		return nil
	})
	if err != nil {
		e.DestroyImage(img)
		return nil, errors.Wrap(err, "uploadImage")
	}
	return img, nil
}

// CreateImageFromRGBA uploads an 8-bit RGBA image.
func (e *Engine) CreateImageFromRGBA(src *image.RGBA, format gpu.Format, flags gpu.ImageUsage) (*Image, error) {
	if format.BytesPerTexel() != 4 {
		return nil, errors.Newf("createImageFromRGBA: format %d is not 32 bits per texel", format)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	pixels := src.Pix
	if src.Stride != width*4 || len(pixels) != width*height*4 {
		pixels = make([]byte, 0, width*height*4)
		for y := 0; y < height; y++ {
			start := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			pixels = append(pixels, src.Pix[start:start+width*4]...)
		}
	}

	return e.UploadImage(pixels, format, gpu.Extent3D{
		Width:  uint32(width),
		Height: uint32(height),
		Depth:  1,
	}, flags)
}

// ReadBuffer copies the contents of b, which needs transfer source usage, back
// to the CPU.
func (e *Engine) ReadBuffer(b *Buffer) ([]byte, error) {
	if b.Usage&gpu.BufferTransferSrc == 0 {
		return nil, errors.New("readBuffer: buffer lacks transfer source usage")
	}

	readback, err := e.CreateBuffer(gpu.MemoryGPUToCPU, b.Size, gpu.BufferTransferDst)
	if err != nil {
		return nil, errors.Wrap(err, "readBuffer")
	}
	defer e.DestroyBuffer(readback)

	err = e.immediate.Submit(func(cmd gpu.CommandBuffer) error {
		cmd.CopyBuffer(b.Handle, readback.Handle, gpu.BufferCopy{Size: b.Size})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "readBuffer")
	}

	mapped := readback.Mapped()
	if uint64(len(mapped)) < b.Size {
		return nil, errors.Newf("readBuffer: readback buffer maps %d of %d bytes", len(mapped), b.Size)
	}
	return append([]byte(nil), mapped[:b.Size]...), nil
}
