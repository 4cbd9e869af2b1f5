// Package gputest provides an in-memory gpu.Device for tests.
//
// The fake device never runs work on its own: submissions stay pending until a
// fence wait or an idle wait needs them, at which point they complete in
// submission order and their copy commands move bytes between buffers. Misuse
// that a real driver would only catch with validation layers, or not at all, is
// collected in Violations.
package gputest

import (
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"

	"vulkan-renderer/gpu"
)

// Device is a fake gpu.Device. It is not safe for concurrent use.
type Device struct {
	// SurfaceExtent is the current extent of the presentation surface. A zero
	// extent makes swapchains follow the requested size.
	SurfaceExtent gpu.Extent2D

	// ImageCount is the number of images of new swapchains.
	ImageCount int

	// SurfaceFormat is the format of new swapchains.
	SurfaceFormat gpu.Format

	// Violations lists every detected misuse.
	Violations []string

	// Submissions lists every submission in order.
	Submissions []*Submission

	// Events is a chronological log of synchronization calls.
	Events []string

	// WaitIdleCalls counts WaitIdle calls.
	WaitIdleCalls int

	nextID      uint64
	objects     map[uint64]tracked
	failures    map[string][]error
	acquire     []error
	present     []error
	nextImage   map[*Swapchain]uint32
	allocator   *Allocator
	deviceAddrs map[*Buffer]uint64
}

var _ gpu.Device = (*Device)(nil)

// New returns a fake device with a 1280x720 surface and three swapchain images.
func New() *Device {
	return &Device{
		SurfaceExtent: gpu.Extent2D{Width: 1280, Height: 720},
		ImageCount:    3,
		SurfaceFormat: gpu.FormatB8G8R8A8Srgb,
		objects:       make(map[uint64]tracked),
		failures:      make(map[string][]error),
		nextImage:     make(map[*Swapchain]uint32),
		deviceAddrs:   make(map[*Buffer]uint64),
	}
}

// FailNext makes the next call of the named operation return err. Operation names
// are the method names of gpu.Device and gpu.Allocator.
func (d *Device) FailNext(op string, err error) {
	d.failures[op] = append(d.failures[op], err)
}

// QueueAcquireResult scripts the result of a future AcquireNextImage call.
func (d *Device) QueueAcquireResult(err error) {
	d.acquire = append(d.acquire, err)
}

// QueuePresentResult scripts the result of a future Present call.
func (d *Device) QueuePresentResult(err error) {
	d.present = append(d.present, err)
}

// Live returns the number of objects of the kind which have not been destroyed.
func (d *Device) Live(kind Kind) int {
	n := 0
	for _, o := range d.objects {
		if o.base().kind == kind && !o.base().destroyed {
			n++
		}
	}
	return n
}

// Leaks lists every object which has not been destroyed, sorted by creation.
func (d *Device) Leaks() []string {
	var ids []uint64
	for id, o := range d.objects {
		if !o.base().destroyed {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	leaks := make([]string, 0, len(ids))
	for _, id := range ids {
		leaks = append(leaks, d.objects[id].base().String())
	}
	return leaks
}

// Pending returns the number of submissions the fake GPU has not finished.
func (d *Device) Pending() int {
	n := 0
	for _, s := range d.Submissions {
		if !s.Completed {
			n++
		}
	}
	return n
}

// CompleteAll finishes every pending submission.
func (d *Device) CompleteAll() {
	d.completeUntil(len(d.Submissions))
}

// LiveSwapchains returns the swapchains which have not been destroyed.
func (d *Device) LiveSwapchains() []*Swapchain {
	var out []*Swapchain
	for _, o := range d.objects {
		if sc, ok := o.(*Swapchain); ok && !sc.destroyed {
			out = append(out, sc)
		}
	}
	return out
}

func (d *Device) violate(format string, args ...any) {
	d.Violations = append(d.Violations, fmt.Sprintf(format, args...))
}

func (d *Device) event(format string, args ...any) {
	d.Events = append(d.Events, fmt.Sprintf(format, args...))
}

func (d *Device) fail(op string) error {
	queued := d.failures[op]
	if len(queued) == 0 {
		return nil
	}
	d.failures[op] = queued[1:]
	return errors.Wrap(queued[0], op)
}

func (d *Device) track(o tracked, kind Kind) {
	d.nextID++
	b := o.base()
	b.kind = kind
	b.id = d.nextID
	d.objects[b.id] = o
}

// release marks o destroyed, reporting double destruction, foreign objects and
// objects still used by pending GPU work.
func (d *Device) release(o gpu.Object, kind Kind) bool {
	t, ok := o.(tracked)
	if !ok || t == nil {
		d.violate("destroying a %s which is not a fake object: %v", kind, o)
		return false
	}
	b := t.base()
	if b.kind != kind {
		d.violate("destroying %s as a %s", b, kind)
		return false
	}
	if b.destroyed {
		d.violate("%s destroyed twice", b)
		return false
	}
	if s := d.pendingUser(o); s != nil {
		d.violate("%s destroyed while submission %d still uses it", b, s.Seq)
	}
	b.destroyed = true
	return true
}

func (d *Device) alive(o gpu.Object, kind Kind) bool {
	t, ok := o.(tracked)
	if !ok || t == nil || t.base().kind != kind {
		d.violate("using a %s which is not a fake object: %v", kind, o)
		return false
	}
	if t.base().destroyed {
		d.violate("using destroyed %s", t.base())
		return false
	}
	return true
}

// pendingUser returns a pending submission referencing o.
func (d *Device) pendingUser(o gpu.Object) *Submission {
	for _, s := range d.Submissions {
		if s.Completed {
			continue
		}
		refs := []gpu.Object{s.Info.Command, s.Info.Wait, s.Info.Signal, s.Info.Fence}
		for _, cmd := range s.Commands {
			refs = append(refs, cmd.references()...)
		}
		for _, ref := range refs {
			if ref == nil {
				continue
			}
			if ref == o {
				return s
			}
			if view, ok := ref.(*ImageView); ok && view.Image != nil && gpu.Object(view.Image) == o {
				return s
			}
		}
	}
	return nil
}

func (d *Device) completeUntil(n int) {
	for _, s := range d.Submissions[:n] {
		if s.Completed {
			continue
		}
		for _, cmd := range s.Commands {
			d.execute(cmd)
		}
		s.Completed = true
		if cb, ok := s.Info.Command.(*CommandBuffer); ok && cb.state == statePending {
			cb.state = stateExecutable
		}
		if sem, ok := s.Info.Signal.(*Semaphore); ok && sem != nil {
			sem.Signaled = true
		}
		if f, ok := s.Info.Fence.(*Fence); ok && f != nil {
			f.Signaled = true
		}
		d.event("complete submission %d", s.Seq)
	}
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	if err := d.fail("CreateFence"); err != nil {
		return nil, err
	}
	f := &Fence{Signaled: signaled}
	d.track(f, KindFence)
	return f, nil
}

func (d *Device) DestroyFence(f gpu.Fence) {
	d.release(f, KindFence)
}

func (d *Device) WaitFence(f gpu.Fence, timeout uint64) error {
	if !d.alive(f, KindFence) {
		return errors.New("WaitFence: invalid fence")
	}
	fence := f.(*Fence)
	d.event("wait %s", fence)
	if err := d.fail("WaitFence"); err != nil {
		return err
	}
	if fence.Signaled {
		return nil
	}
	for i, s := range d.Submissions {
		if !s.Completed && s.Info.Fence == f {
			d.completeUntil(i + 1)
			return nil
		}
	}
	d.violate("waiting on %s which no pending submission signals", fence)
	return gpu.ErrTimeout
}

func (d *Device) ResetFence(f gpu.Fence) error {
	if !d.alive(f, KindFence) {
		return errors.New("ResetFence: invalid fence")
	}
	if err := d.fail("ResetFence"); err != nil {
		return err
	}
	if s := d.pendingUser(f); s != nil {
		d.violate("%s reset while submission %d is pending", f.(*Fence), s.Seq)
	}
	d.event("reset %s", f.(*Fence))
	f.(*Fence).Signaled = false
	return nil
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	if err := d.fail("CreateSemaphore"); err != nil {
		return nil, err
	}
	s := &Semaphore{}
	d.track(s, KindSemaphore)
	return s, nil
}

func (d *Device) DestroySemaphore(s gpu.Semaphore) {
	d.release(s, KindSemaphore)
}

func (d *Device) CreateCommandPool() (gpu.CommandPool, error) {
	if err := d.fail("CreateCommandPool"); err != nil {
		return nil, err
	}
	p := &CommandPool{}
	d.track(p, KindCommandPool)
	return p, nil
}

func (d *Device) DestroyCommandPool(p gpu.CommandPool) {
	pool, ok := p.(*CommandPool)
	if !ok {
		d.violate("destroying a foreign command pool")
		return
	}
	for _, cb := range pool.buffers {
		if cb.state == statePending {
			if s := d.pendingUser(cb); s != nil {
				d.violate("%s destroyed while %s is pending in submission %d", pool, cb, s.Seq)
			}
		}
		if !cb.destroyed {
			cb.destroyed = true
		}
	}
	d.release(p, KindCommandPool)
}

func (d *Device) AllocateCommandBuffer(p gpu.CommandPool) (gpu.CommandBuffer, error) {
	if !d.alive(p, KindCommandPool) {
		return nil, errors.New("AllocateCommandBuffer: invalid pool")
	}
	if err := d.fail("AllocateCommandBuffer"); err != nil {
		return nil, err
	}
	pool := p.(*CommandPool)
	cb := &CommandBuffer{dev: d, pool: pool}
	d.track(cb, KindCommandBuffer)
	pool.buffers = append(pool.buffers, cb)
	return cb, nil
}

func (d *Device) commandBuffer(c gpu.CommandBuffer) (*CommandBuffer, bool) {
	if !d.alive(c, KindCommandBuffer) {
		return nil, false
	}
	return c.(*CommandBuffer), true
}

func (d *Device) ResetCommandBuffer(c gpu.CommandBuffer) error {
	cb, ok := d.commandBuffer(c)
	if !ok {
		return errors.New("ResetCommandBuffer: invalid command buffer")
	}
	if err := d.fail("ResetCommandBuffer"); err != nil {
		return err
	}
	if cb.state == statePending {
		d.violate("%s reset while the GPU may still execute it", cb)
	}
	d.event("reset %s", cb)
	cb.state = stateInitial
	cb.Commands = nil
	return nil
}

func (d *Device) BeginCommandBuffer(c gpu.CommandBuffer) error {
	cb, ok := d.commandBuffer(c)
	if !ok {
		return errors.New("BeginCommandBuffer: invalid command buffer")
	}
	if err := d.fail("BeginCommandBuffer"); err != nil {
		return err
	}
	if cb.state == statePending {
		d.violate("%s begun while the GPU may still execute it", cb)
	}
	d.event("begin %s", cb)
	cb.state = stateRecording
	cb.Commands = nil
	return nil
}

func (d *Device) EndCommandBuffer(c gpu.CommandBuffer) error {
	cb, ok := d.commandBuffer(c)
	if !ok {
		return errors.New("EndCommandBuffer: invalid command buffer")
	}
	if err := d.fail("EndCommandBuffer"); err != nil {
		return err
	}
	if cb.state != stateRecording {
		d.violate("%s ended without being begun", cb)
	}
	cb.state = stateExecutable
	return nil
}

func (d *Device) Submit(info gpu.SubmitInfo) error {
	cb, ok := d.commandBuffer(info.Command)
	if !ok {
		return errors.New("Submit: invalid command buffer")
	}
	if err := d.fail("Submit"); err != nil {
		return err
	}
	if cb.state != stateExecutable {
		d.violate("%s submitted while not executable", cb)
	}
	if info.Wait != nil {
		sem := info.Wait.(*Semaphore)
		if !sem.Signaled {
			d.violate("submission waits on %s which nothing signaled", sem)
		}
		sem.Signaled = false
	}
	if info.Fence != nil {
		f := info.Fence.(*Fence)
		if f.Signaled {
			d.violate("submission signals %s which is already signaled", f)
		}
	}

	s := &Submission{
		Seq:      len(d.Submissions),
		Info:     info,
		Commands: append([]Command(nil), cb.Commands...),
	}
	d.Submissions = append(d.Submissions, s)
	cb.state = statePending
	d.event("submit %s as %d", cb, s.Seq)
	return nil
}

func (d *Device) WaitIdle() error {
	d.WaitIdleCalls++
	d.event("wait idle")
	if err := d.fail("WaitIdle"); err != nil {
		return err
	}
	d.CompleteAll()
	return nil
}

func (d *Device) CreateSwapchain(info gpu.SwapchainInfo) (*gpu.SwapchainImages, error) {
	if err := d.fail("CreateSwapchain"); err != nil {
		return nil, err
	}

	extent := d.SurfaceExtent
	if extent.Empty() {
		extent = gpu.Extent2D{Width: info.Width, Height: info.Height}
	}
	if extent.Empty() {
		return nil, errors.New("CreateSwapchain: zero extent")
	}

	sc := &Swapchain{Extent: extent}
	d.track(sc, KindSwapchain)

	result := &gpu.SwapchainImages{
		Swapchain: sc,
		Format:    d.SurfaceFormat,
		Extent:    extent,
	}
	for i := 0; i < d.ImageCount; i++ {
		img := &Image{
			Info: gpu.ImageInfo{
				Format: d.SurfaceFormat,
				Extent: gpu.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
				Usage:  gpu.ImageColorAttachment | info.Usage,
			},
			swapchain: sc,
		}
		d.track(img, KindImage)
		sc.Images = append(sc.Images, img)
		result.Images = append(result.Images, img)
	}
	d.event("create %s %dx%d", sc, extent.Width, extent.Height)
	return result, nil
}

func (d *Device) DestroySwapchain(s gpu.Swapchain) {
	if !d.release(s, KindSwapchain) {
		return
	}
	sc := s.(*Swapchain)
	for _, img := range sc.Images {
		if sub := d.pendingUser(img); sub != nil {
			d.violate("%s destroyed while submission %d still uses %s", sc, sub.Seq, img)
		}
		img.destroyed = true
	}
	d.event("destroy %s", sc)
}

func (d *Device) AcquireNextImage(s gpu.Swapchain, signal gpu.Semaphore) (uint32, error) {
	if !d.alive(s, KindSwapchain) {
		return 0, errors.New("AcquireNextImage: invalid swapchain")
	}
	sc := s.(*Swapchain)
	d.event("acquire %s", sc)

	if len(d.acquire) > 0 {
		err := d.acquire[0]
		d.acquire = d.acquire[1:]
		if err != nil {
			return 0, errors.Wrap(err, "AcquireNextImage")
		}
	}

	sem := signal.(*Semaphore)
	if sem.Signaled {
		d.violate("acquire signals %s which is already signaled", sem)
	}
	sem.Signaled = true

	index := d.nextImage[sc]
	d.nextImage[sc] = (index + 1) % uint32(len(sc.Images))
	return index, nil
}

func (d *Device) Present(s gpu.Swapchain, imageIndex uint32, wait gpu.Semaphore) error {
	if !d.alive(s, KindSwapchain) {
		return errors.New("Present: invalid swapchain")
	}
	sc := s.(*Swapchain)
	d.event("present %s image %d", sc, imageIndex)

	if wait != nil {
		sem := wait.(*Semaphore)
		pending := false
		for _, sub := range d.Submissions {
			if !sub.Completed && sub.Info.Signal == wait {
				pending = true
			}
		}
		if !sem.Signaled && !pending {
			d.violate("present waits on %s which nothing signals", sem)
		}
		sem.Signaled = false
	}

	if len(d.present) > 0 {
		err := d.present[0]
		d.present = d.present[1:]
		if err != nil {
			return errors.Wrap(err, "Present")
		}
	}
	return nil
}

func (d *Device) CreateImageView(image gpu.Image, format gpu.Format, aspect gpu.Aspect) (gpu.ImageView, error) {
	if !d.alive(image, KindImage) {
		return nil, errors.New("CreateImageView: invalid image")
	}
	if err := d.fail("CreateImageView"); err != nil {
		return nil, err
	}
	v := &ImageView{Image: image.(*Image), Aspect: aspect}
	d.track(v, KindImageView)
	return v, nil
}

func (d *Device) DestroyImageView(v gpu.ImageView) {
	d.release(v, KindImageView)
}

func (d *Device) CreateAllocator() (gpu.Allocator, error) {
	if err := d.fail("CreateAllocator"); err != nil {
		return nil, err
	}
	a := &Allocator{dev: d}
	d.track(a, KindAllocator)
	d.allocator = a
	return a, nil
}

func (d *Device) BufferAddress(b gpu.Buffer) uint64 {
	if !d.alive(b, KindBuffer) {
		return 0
	}
	buf := b.(*Buffer)
	if buf.Info.Usage&gpu.BufferDeviceAddress == 0 {
		d.violate("device address of %s which lacks device address usage", buf)
	}
	return 0x10000000 + buf.id*0x1000
}

func (d *Device) CreateSampler(info gpu.SamplerInfo) (gpu.Sampler, error) {
	if err := d.fail("CreateSampler"); err != nil {
		return nil, err
	}
	s := &Sampler{Info: info}
	d.track(s, KindSampler)
	return s, nil
}

func (d *Device) DestroySampler(s gpu.Sampler) {
	d.release(s, KindSampler)
}

func (d *Device) CreateShaderModule(code []byte) (gpu.ShaderModule, error) {
	if err := d.fail("CreateShaderModule"); err != nil {
		return nil, err
	}
	m := &ShaderModule{Code: append([]byte(nil), code...)}
	d.track(m, KindShaderModule)
	return m, nil
}

func (d *Device) DestroyShaderModule(m gpu.ShaderModule) {
	d.release(m, KindShaderModule)
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	if err := d.fail("CreateDescriptorSetLayout"); err != nil {
		return nil, err
	}
	l := &DescriptorSetLayout{Bindings: append([]gpu.DescriptorBinding(nil), bindings...)}
	d.track(l, KindDescriptorSetLayout)
	return l, nil
}

func (d *Device) DestroyDescriptorSetLayout(l gpu.DescriptorSetLayout) {
	d.release(l, KindDescriptorSetLayout)
}

func (d *Device) CreateDescriptorPool(info gpu.DescriptorPoolInfo) (gpu.DescriptorPool, error) {
	if err := d.fail("CreateDescriptorPool"); err != nil {
		return nil, err
	}
	p := &DescriptorPool{Info: info}
	d.track(p, KindDescriptorPool)
	return p, nil
}

func (d *Device) DestroyDescriptorPool(p gpu.DescriptorPool) {
	if !d.release(p, KindDescriptorPool) {
		return
	}
	for _, o := range d.objects {
		if set, ok := o.(*DescriptorSet); ok {
			set.destroyed = true
		}
	}
}

func (d *Device) AllocateDescriptorSet(p gpu.DescriptorPool, l gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	if !d.alive(p, KindDescriptorPool) || !d.alive(l, KindDescriptorSetLayout) {
		return nil, errors.New("AllocateDescriptorSet: invalid pool or layout")
	}
	if err := d.fail("AllocateDescriptorSet"); err != nil {
		return nil, err
	}
	pool := p.(*DescriptorPool)
	if pool.Info.MaxSets > 0 && uint32(pool.sets) >= pool.Info.MaxSets {
		return nil, errors.New("AllocateDescriptorSet: pool exhausted")
	}
	pool.sets++
	s := &DescriptorSet{}
	d.track(s, KindDescriptorSet)
	return s, nil
}

func (d *Device) FreeDescriptorSet(p gpu.DescriptorPool, s gpu.DescriptorSet) {
	if d.release(s, KindDescriptorSet) {
		p.(*DescriptorPool).sets--
	}
}

func (d *Device) WriteImageDescriptor(s gpu.DescriptorSet, write gpu.ImageDescriptor) {
	if !d.alive(s, KindDescriptorSet) {
		return
	}
	set := s.(*DescriptorSet)
	set.Writes = append(set.Writes, write)
}

func (d *Device) CreatePipelineLayout(info gpu.PipelineLayoutInfo) (gpu.PipelineLayout, error) {
	if err := d.fail("CreatePipelineLayout"); err != nil {
		return nil, err
	}
	l := &PipelineLayout{Info: info}
	d.track(l, KindPipelineLayout)
	return l, nil
}

func (d *Device) DestroyPipelineLayout(l gpu.PipelineLayout) {
	d.release(l, KindPipelineLayout)
}

func (d *Device) CreateGraphicsPipeline(info gpu.GraphicsPipelineInfo) (gpu.Pipeline, error) {
	if !d.alive(info.Vertex, KindShaderModule) || !d.alive(info.Fragment, KindShaderModule) {
		return nil, errors.New("CreateGraphicsPipeline: invalid shader module")
	}
	if err := d.fail("CreateGraphicsPipeline"); err != nil {
		return nil, err
	}
	p := &Pipeline{Info: info}
	d.track(p, KindPipeline)
	return p, nil
}

func (d *Device) DestroyPipeline(p gpu.Pipeline) {
	d.release(p, KindPipeline)
}
