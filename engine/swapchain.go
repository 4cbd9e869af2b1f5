package engine

import (
	"log/slog"

	"github.com/cockroachdb/errors"

	"vulkan-renderer/deletion"
	"vulkan-renderer/gpu"
)

// Swapchain is the chain of presentable images and their views.
//
// Every creation registers a teardown closure on the queue it is given, once
// per queue. The closure acts only when the live generation equals the last
// generation created through its queue. Recreate destroys the chain right away
// and moves to the next generation, which turns the closures of other queues
// into no-ops.
type Swapchain struct {
	dev   gpu.Device
	log   *slog.Logger
	size  func() gpu.Extent2D
	vsync bool

	generation uint64
	native     gpu.Swapchain
	images     []gpu.Image
	views      []gpu.ImageView
	format     gpu.Format
	extent     gpu.Extent2D

	// stale is set when the framebuffer had no area at the last creation
	// attempt. There is no chain until the next successful Recreate.
	stale bool

	listeners []func(gpu.Extent2D) error

	// registered maps each queue holding a teardown closure to the generation
	// it stands for.
	registered map[*deletion.Queue]uint64
}

func newSwapchain(dev gpu.Device, log *slog.Logger, size func() gpu.Extent2D, vsync bool) *Swapchain {
	return &Swapchain{
		dev:        dev,
		log:        log,
		size:       size,
		vsync:      vsync,
		registered: make(map[*deletion.Queue]uint64),
	}
}

// create builds the chain for the current framebuffer size and registers its
// teardown on q.
func (s *Swapchain) create(q *deletion.Queue) error {
	size := s.size()
	if size.Empty() {
		s.log.Debug("framebuffer has no area, swapchain creation deferred",
			slog.Uint64("generation", s.generation))
		s.stale = true
		return nil
	}

	created, err := s.dev.CreateSwapchain(gpu.SwapchainInfo{
		Width:  size.Width,
		Height: size.Height,
		Usage:  gpu.ImageColorAttachment | gpu.ImageTransferDst,
		VSync:  s.vsync,
	})
	if err != nil {
		return errors.Wrap(err, "createSwapchain")
	}

	views := make([]gpu.ImageView, 0, len(created.Images))
	for _, img := range created.Images {
		view, err := s.dev.CreateImageView(img, created.Format, gpu.AspectColor)
		if err != nil {
			for _, v := range views {
				s.dev.DestroyImageView(v)
			}
			s.dev.DestroySwapchain(created.Swapchain)
			return errors.Wrap(err, "createImageViews")
		}
		views = append(views, view)
	}

	s.native = created.Swapchain
	s.images = created.Images
	s.views = views
	s.format = created.Format
	s.extent = created.Extent
	s.stale = false

	_, ok := s.registered[q]
	s.registered[q] = s.generation
	if !ok {
		q.Add(func() {
			generation := s.registered[q]
			delete(s.registered, q)
			if s.generation != generation {
				return
			}
			s.destroy()
		})
	}

	s.log.Debug("swapchain created",
		slog.Uint64("generation", s.generation),
		slog.Int("images", len(s.images)),
		slog.Uint64("width", uint64(s.extent.Width)),
		slog.Uint64("height", uint64(s.extent.Height)),
	)
	return nil
}

// destroy releases the views and the native chain of the current generation.
func (s *Swapchain) destroy() {
	for _, v := range s.views {
		s.dev.DestroyImageView(v)
	}
	if s.native != nil {
		s.dev.DestroySwapchain(s.native)
	}
	s.native = nil
	s.images = nil
	s.views = nil
}

// Recreate waits for the device to go idle, destroys the current chain, moves to
// the next generation and builds a new chain, registering its teardown on q.
// Listeners run after a chain was built.
func (s *Swapchain) Recreate(q *deletion.Queue) error {
	if err := s.dev.WaitIdle(); err != nil {
		return errors.Wrap(err, "waitIdle")
	}

	s.destroy()
	s.generation++

	if err := s.create(q); err != nil {
		return err
	}
	if s.stale {
		return nil
	}

	for _, fn := range s.listeners {
		if err := fn(s.extent); err != nil {
			return errors.Wrap(err, "onRecreate")
		}
	}
	return nil
}

// OnRecreate registers fn to run with the new extent after every recreation.
func (s *Swapchain) OnRecreate(fn func(gpu.Extent2D) error) {
	s.listeners = append(s.listeners, fn)
}

// Generation returns the number of recreations so far.
func (s *Swapchain) Generation() uint64 { return s.generation }

// Stale reports whether the chain is waiting for a framebuffer with an area.
func (s *Swapchain) Stale() bool { return s.stale }

// Extent returns the size of the images.
func (s *Swapchain) Extent() gpu.Extent2D { return s.extent }

// Format returns the format of the images.
func (s *Swapchain) Format() gpu.Format { return s.format }

// Len returns the number of images.
func (s *Swapchain) Len() int { return len(s.images) }

// Image returns the i-th presentable image.
func (s *Swapchain) Image(i uint32) gpu.Image { return s.images[i] }

// View returns the view of the i-th presentable image.
func (s *Swapchain) View(i uint32) gpu.ImageView { return s.views[i] }

// Native returns the device swapchain, nil while stale.
func (s *Swapchain) Native() gpu.Swapchain { return s.native }
