// Package vulkan is the Vulkan implementation of gpu.Device.
//
// Open bootstraps everything the renderer needs from the driver: instance,
// optional validation, window surface, physical and logical device and the single
// queue all work is submitted to. The physical device has to support Vulkan 1.3
// with dynamic rendering, synchronization2, buffer device addresses and
// descriptor indexing.
package vulkan

import (
	"log/slog"
	"strings"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	"vulkan-renderer/deletion"
	"vulkan-renderer/gpu"
	"vulkan-renderer/logging"
	"vulkan-renderer/queues"
)

const (
	validationLayer    = "VK_LAYER_KHRONOS_validation\x00"
	debugReportExtName = "VK_EXT_debug_report\x00"
)

// Config selects how the device is bootstrapped.
type Config struct {
	// AppName is reported to the driver.
	AppName string

	// Validation enables the Khronos validation layer and routes its messages
	// to Logger.
	Validation bool

	Logger *slog.Logger
}

// Device is an open Vulkan device. It implements gpu.Device.
type Device struct {
	log    *slog.Logger
	window *glfw.Window

	instance vk.Instance
	debug    vk.DebugReportCallback
	surface  vk.Surface

	physical vk.PhysicalDevice
	name     string
	memory   vk.PhysicalDeviceMemoryProperties

	device vk.Device
	family uint32
	queue  vk.Queue
	procs  *deviceProcs

	layers []string

	teardown *deletion.Queue
}

var _ gpu.Device = (*Device)(nil)

// Open creates the device presenting to window. On failure nothing created so far
// is left behind.
func Open(window *glfw.Window, cfg Config) (*Device, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.AppName == "" {
		cfg.AppName = "vulkan-renderer"
	}

	d := &Device{
		log:      cfg.Logger,
		window:   window,
		physical: vk.PhysicalDevice(vk.NullHandle),
		device:   vk.Device(vk.NullHandle),
		surface:  vk.NullSurface,
	}

	var rollback deletion.Queue
	if err := d.open(cfg, &rollback); err != nil {
		rollback.Flush()
		return nil, err
	}
	d.teardown = rollback.Take()

	d.log.Info("device ready", slog.String("gpu", d.name), slog.Uint64("queueFamily", uint64(d.family)))
	return d, nil
}

func (d *Device) open(cfg Config, q *deletion.Queue) error {
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		return errors.Wrap(err, "loadVulkan")
	}

	if err := d.createInstance(cfg); err != nil {
		return errors.Wrap(err, "createInstance")
	}
	q.Add(func() { vk.DestroyInstance(d.instance, nil) })

	if err := vk.InitInstance(d.instance); err != nil {
		return errors.Wrap(err, "initInstance")
	}

	if cfg.Validation {
		if err := d.createDebugCallback(); err != nil {
			return errors.Wrap(err, "createDebugCallback")
		}
		q.Add(func() { vk.DestroyDebugReportCallback(d.instance, d.debug, nil) })
	}

	if err := d.createSurface(); err != nil {
		return errors.Wrap(err, "createSurface")
	}
	q.Add(func() { vk.DestroySurface(d.instance, d.surface, nil) })

	if err := d.pickPhysicalDevice(); err != nil {
		return errors.Wrap(err, "pickPhysicalDevice")
	}

	if err := d.createLogicalDevice(); err != nil {
		return errors.Wrap(err, "createLogicalDevice")
	}
	q.Add(func() { vk.DestroyDevice(d.device, nil) })

	procs, err := loadDeviceProcs(d.instance, d.device)
	if err != nil {
		return errors.Wrap(err, "loadDeviceProcs")
	}
	d.procs = procs

	return nil
}

// Destroy waits for the device to go idle and releases everything Open created.
// All objects created from the device must have been destroyed before.
func (d *Device) Destroy() {
	if d.device != vk.Device(vk.NullHandle) {
		vk.DeviceWaitIdle(d.device)
	}
	if d.teardown != nil {
		d.teardown.Flush()
	}
	d.device = vk.Device(vk.NullHandle)
}

// Name returns the name of the physical device.
func (d *Device) Name() string {
	return d.name
}

func (d *Device) createInstance(cfg Config) error {
	if cfg.Validation && !checkValidationSupport() {
		return errors.New("validation layers requested but not available")
	}

	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   safeString(cfg.AppName),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        "No Engine\x00",
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         minAPIVersion,
	}

	extensions := safeStrings(d.window.GetRequiredInstanceExtensions())
	if cfg.Validation {
		extensions = append(extensions, debugReportExtName)
		d.layers = []string{validationLayer}
	}

	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(d.layers)),
		PpEnabledLayerNames:     d.layers,
	}

	var instance vk.Instance
	if err := check(vk.CreateInstance(&createInfo, nil, &instance), "vkCreateInstance"); err != nil {
		return err
	}
	d.instance = instance
	return nil
}

func (d *Device) createDebugCallback() error {
	createInfo := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(debugReportFlags),
		PfnCallback: newDebugCallback(d.log),
	}

	var callback vk.DebugReportCallback
	res := vk.CreateDebugReportCallback(d.instance, &createInfo, nil, &callback)
	if err := check(res, "vkCreateDebugReportCallbackEXT"); err != nil {
		return err
	}
	d.debug = callback
	return nil
}

func (d *Device) createSurface() error {
	surfacePtr, err := d.window.CreateWindowSurface(d.instance, nil)
	if err != nil {
		return errors.Wrap(err, "cannot create surface within GLFW window")
	}

	d.surface = vk.SurfaceFromPointer(surfacePtr)
	return nil
}

func (d *Device) pickPhysicalDevice() error {
	var deviceCount uint32
	if err := check(vk.EnumeratePhysicalDevices(d.instance, &deviceCount, nil),
		"vkEnumeratePhysicalDevices"); err != nil {
		return err
	}

	devices := make([]vk.PhysicalDevice, deviceCount)
	if deviceCount > 0 {
		if err := check(vk.EnumeratePhysicalDevices(d.instance, &deviceCount, devices),
			"vkEnumeratePhysicalDevices"); err != nil {
			return err
		}
	}

	candidates := make([]Candidate, len(devices))
	for i, pd := range devices {
		candidates[i] = d.describe(pd)
		d.log.Debug("available device",
			slog.String("gpu", candidates[i].Name),
			slog.Uint64("score", uint64(candidates[i].Score())),
		)
	}

	selected, err := Select(candidates)
	if err != nil {
		return err
	}

	d.physical = devices[selected]
	d.name = candidates[selected].Name

	var memProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(d.physical, &memProperties)
	memProperties.Deref()
	for i := uint32(0); i < memProperties.MemoryTypeCount; i++ {
		memProperties.MemoryTypes[i].Deref()
	}
	d.memory = memProperties

	return nil
}

// describe collects what device selection needs to know about pd.
func (d *Device) describe(pd vk.PhysicalDevice) Candidate {
	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(pd, &properties)
	properties.Deref()

	c := Candidate{
		Name:       vk.ToString(properties.DeviceName[:]),
		Discrete:   properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu,
		APIVersion: properties.ApiVersion,
	}

	if properties.ApiVersion >= minAPIVersion {
		c.Features, _ = queryFeatures(d.instance, pd)
	}
	c.Extensions = deviceExtensions(pd)
	c.Families = d.queueFamilies(pd)

	support := d.querySwapChainSupport(pd)
	c.SurfaceFormats = len(support.formats)
	c.PresentModes = len(support.presentModes)

	return c
}

func (d *Device) queueFamilies(pd vk.PhysicalDevice) []queues.Family {
	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &queueFamilyCount, nil)

	properties := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &queueFamilyCount, properties)

	families := make([]queues.Family, len(properties))
	for i, family := range properties {
		family.Deref()

		families[i].Graphics = family.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0

		var hasPresent vk.Bool32
		res := vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), d.surface, &hasPresent)
		if err := check(res, "vkGetPhysicalDeviceSurfaceSupportKHR"); err != nil {
			d.log.Warn("querying surface support", slog.Int("family", i), slog.Any("err", err))
			continue
		}
		families[i].Present = hasPresent.B()
	}

	return families
}

func deviceExtensions(pd vk.PhysicalDevice) []string {
	var count uint32
	if vk.EnumerateDeviceExtensionProperties(pd, "", &count, nil) != vk.Success {
		return nil
	}

	available := make([]vk.ExtensionProperties, count)
	if vk.EnumerateDeviceExtensionProperties(pd, "", &count, available) != vk.Success {
		return nil
	}

	names := make([]string, 0, len(available))
	for _, ext := range available {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names
}

func checkValidationSupport() bool {
	var count uint32
	if vk.EnumerateInstanceLayerProperties(&count, nil) != vk.Success {
		return false
	}
	availableLayers := make([]vk.LayerProperties, count)
	if vk.EnumerateInstanceLayerProperties(&count, availableLayers) != vk.Success {
		return false
	}

	for _, layer := range availableLayers {
		layer.Deref()
		if vk.ToString(layer.LayerName[:])+"\x00" == validationLayer {
			return true
		}
	}
	return false
}

func (d *Device) createLogicalDevice() error {
	family, ok := queues.Find(d.queueFamilies(d.physical)).Unified()
	if !ok {
		return errors.New("selected device has no queue family for graphics and presentation")
	}
	d.family = family

	queueCreateInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: family,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	features := newFeatureChain()
	defer freeC(features)

	extensions := safeStrings(requiredExtensions)
	createInfo := vk.DeviceCreateInfo{
		SType: vk.StructureTypeDeviceCreateInfo,
		PNext: features,

		PQueueCreateInfos:    queueCreateInfos,
		QueueCreateInfoCount: uint32(len(queueCreateInfos)),

		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,

		EnabledLayerCount:   uint32(len(d.layers)),
		PpEnabledLayerNames: d.layers,
	}

	var device vk.Device
	if err := check(vk.CreateDevice(d.physical, &createInfo, nil, &device), "vkCreateDevice"); err != nil {
		return err
	}
	d.device = device

	var queue vk.Queue
	vk.GetDeviceQueue(d.device, family, 0, &queue)
	d.queue = queue

	return nil
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	createInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		createInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var f vk.Fence
	if err := check(vk.CreateFence(d.device, &createInfo, nil, &f), "vkCreateFence"); err != nil {
		return nil, err
	}
	return &fence{handleOf(unsafe.Pointer(f)), f}, nil
}

func (d *Device) DestroyFence(f gpu.Fence) {
	vk.DestroyFence(d.device, fenceOf(f), nil)
}

func (d *Device) WaitFence(f gpu.Fence, timeout uint64) error {
	res := vk.WaitForFences(d.device, 1, []vk.Fence{fenceOf(f)}, vk.True, timeout)
	return check(res, "vkWaitForFences")
}

func (d *Device) ResetFence(f gpu.Fence) error {
	return check(vk.ResetFences(d.device, 1, []vk.Fence{fenceOf(f)}), "vkResetFences")
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	createInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}

	var s vk.Semaphore
	if err := check(vk.CreateSemaphore(d.device, &createInfo, nil, &s), "vkCreateSemaphore"); err != nil {
		return nil, err
	}
	return &semaphore{handleOf(unsafe.Pointer(s)), s}, nil
}

func (d *Device) DestroySemaphore(s gpu.Semaphore) {
	vk.DestroySemaphore(d.device, semaphoreOf(s), nil)
}

func (d *Device) CreateCommandPool() (gpu.CommandPool, error) {
	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: d.family,
	}

	var pool vk.CommandPool
	if err := check(vk.CreateCommandPool(d.device, &poolInfo, nil, &pool), "vkCreateCommandPool"); err != nil {
		return nil, err
	}
	return &commandPool{handleOf(unsafe.Pointer(pool)), pool}, nil
}

func (d *Device) DestroyCommandPool(p gpu.CommandPool) {
	vk.DestroyCommandPool(d.device, p.(*commandPool).h, nil)
}

func (d *Device) AllocateCommandBuffer(p gpu.CommandPool) (gpu.CommandBuffer, error) {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        p.(*commandPool).h,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}

	buffers := make([]vk.CommandBuffer, 1)
	res := vk.AllocateCommandBuffers(d.device, &allocInfo, buffers)
	if err := check(res, "vkAllocateCommandBuffers"); err != nil {
		return nil, err
	}
	return &commandBuffer{handle: handleOf(unsafe.Pointer(buffers[0])), h: buffers[0], procs: d.procs}, nil
}

func (d *Device) ResetCommandBuffer(cmd gpu.CommandBuffer) error {
	return check(vk.ResetCommandBuffer(cmd.(*commandBuffer).h, 0), "vkResetCommandBuffer")
}

func (d *Device) BeginCommandBuffer(cmd gpu.CommandBuffer) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	return check(vk.BeginCommandBuffer(cmd.(*commandBuffer).h, &beginInfo), "vkBeginCommandBuffer")
}

func (d *Device) EndCommandBuffer(cmd gpu.CommandBuffer) error {
	return check(vk.EndCommandBuffer(cmd.(*commandBuffer).h), "vkEndCommandBuffer")
}

func (d *Device) Submit(info gpu.SubmitInfo) error {
	res := d.procs.submit(d.queue, info.Command.(*commandBuffer).h,
		semaphoreOf(info.Wait), info.WaitStage,
		semaphoreOf(info.Signal), info.SignalStage,
		fenceOf(info.Fence),
	)
	return check(res, "vkQueueSubmit2")
}

func (d *Device) WaitIdle() error {
	return check(vk.DeviceWaitIdle(d.device), "vkDeviceWaitIdle")
}

func (d *Device) CreateImageView(img gpu.Image, format gpu.Format, aspect gpu.Aspect) (gpu.ImageView, error) {
	createInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    imageOf(img),
		ViewType: vk.ImageViewType2d,
		Format:   vk.Format(format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(aspect),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var view vk.ImageView
	if err := check(vk.CreateImageView(d.device, &createInfo, nil, &view), "vkCreateImageView"); err != nil {
		return nil, err
	}
	return &imageView{handleOf(unsafe.Pointer(view)), view}, nil
}

func (d *Device) DestroyImageView(v gpu.ImageView) {
	vk.DestroyImageView(d.device, imageViewOf(v), nil)
}

func (d *Device) BufferAddress(b gpu.Buffer) uint64 {
	return d.procs.bufferAddress(d.device, bufferOf(b))
}

// safeString returns s terminated by a null byte, which is how the binding
// expects strings handed to the driver.
func safeString(s string) string {
	if strings.HasSuffix(s, "\x00") {
		return s
	}
	return s + "\x00"
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s)
	}
	return out
}
