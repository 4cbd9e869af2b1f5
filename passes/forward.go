// Package passes records the render passes of a frame: the forward pass drawing
// the scene into an offscreen target and the overlay pass drawing the UI on top
// of the swapchain image.
package passes

import (
	"io/fs"
	"log/slog"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/xlab/linmath"

	"vulkan-renderer/deletion"
	"vulkan-renderer/engine"
	"vulkan-renderer/gpu"
	"vulkan-renderer/logging"
	"vulkan-renderer/scene"
	"vulkan-renderer/shaders"
	"vulkan-renderer/unsafer"
)

// Formats of the forward pass targets.
const (
	ColorFormat = gpu.FormatR16G16B16A16Sfloat
	DepthFormat = gpu.FormatD32Sfloat
)

// PushConstants is what the forward vertex shader receives per draw.
type PushConstants struct {
	Camera       linmath.Mat4x4
	VertexBuffer uint64
}

// PushConstantsSize is the size of PushConstants in bytes.
const PushConstantsSize = uint32(unsafe.Sizeof(PushConstants{}))

// ForwardOptions configure a Forward pass.
type ForwardOptions struct {
	Logger *slog.Logger

	// Shaders holds the compiled forward.vert.spv and forward.frag.spv.
	Shaders fs.FS
}

// Forward draws every object of a scene with depth testing into a color target
// the size of the swapchain.
type Forward struct {
	eng *engine.Engine
	log *slog.Logger

	color *engine.Image
	depth *engine.Image

	setLayout gpu.DescriptorSetLayout
	layout    gpu.PipelineLayout
	pipeline  gpu.Pipeline

	teardown *deletion.Queue
}

// NewForward creates the targets and the pipeline of the forward pass. The
// targets follow the swapchain size from then on.
func NewForward(eng *engine.Engine, opts ForwardOptions) (*Forward, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	f := &Forward{eng: eng, log: opts.Logger}

	var rollback deletion.Queue
	if err := f.init(opts, &rollback); err != nil {
		rollback.Flush()
		return nil, err
	}
	f.teardown = rollback.Take()

	eng.Swapchain().OnRecreate(f.resize)
	return f, nil
}

func (f *Forward) init(opts ForwardOptions, rollback *deletion.Queue) error {
	dev := f.eng.Device()

	if err := f.createTargets(f.eng.Swapchain().Extent()); err != nil {
		return err
	}
	rollback.Add(f.destroyTargets)

	setLayout, err := dev.CreateDescriptorSetLayout([]gpu.DescriptorBinding{{
		Binding: 0,
		Type:    gpu.DescriptorCombinedImageSampler,
		Stages:  gpu.ShaderFragment,
	}})
	if err != nil {
		return errors.Wrap(err, "createDescriptorSetLayout")
	}
	rollback.Add(func() { dev.DestroyDescriptorSetLayout(setLayout) })
	f.setLayout = setLayout

	layout, err := dev.CreatePipelineLayout(gpu.PipelineLayoutInfo{
		SetLayouts: []gpu.DescriptorSetLayout{setLayout},
		PushConstants: []gpu.PushConstantRange{{
			Stages: gpu.ShaderVertex,
			Offset: 0,
			Size:   PushConstantsSize,
		}},
	})
	if err != nil {
		return errors.Wrap(err, "createPipelineLayout")
	}
	rollback.Add(func() { dev.DestroyPipelineLayout(layout) })
	f.layout = layout

	vertex, err := loadShader(dev, opts.Shaders, shaders.ForwardVertex)
	if err != nil {
		return err
	}
	defer dev.DestroyShaderModule(vertex)

	fragment, err := loadShader(dev, opts.Shaders, shaders.ForwardFragment)
	if err != nil {
		return err
	}
	defer dev.DestroyShaderModule(fragment)

	pipeline, err := dev.CreateGraphicsPipeline(gpu.GraphicsPipelineInfo{
		Layout:       layout,
		Vertex:       vertex,
		Fragment:     fragment,
		ColorFormat:  ColorFormat,
		DepthFormat:  DepthFormat,
		DepthTest:    true,
		DepthWrite:   true,
		DepthCompare: gpu.CompareLess,
		AlphaBlend:   true,
	})
	if err != nil {
		return errors.Wrap(err, "createGraphicsPipeline")
	}
	rollback.Add(func() { dev.DestroyPipeline(pipeline) })
	f.pipeline = pipeline

	f.log.Debug("forward pass created",
		slog.Uint64("width", uint64(f.color.Extent.Width)),
		slog.Uint64("height", uint64(f.color.Extent.Height)),
	)
	return nil
}

func loadShader(dev gpu.Device, fsys fs.FS, name string) (gpu.ShaderModule, error) {
	if fsys == nil {
		return nil, errors.Newf("no shader directory to load %s from", name)
	}
	code, err := shaders.Read(fsys, name)
	if err != nil {
		return nil, err
	}
	module, err := dev.CreateShaderModule(code)
	if err != nil {
		return nil, errors.Wrapf(err, "createShaderModule %s", name)
	}
	return module, nil
}

func (f *Forward) createTargets(extent gpu.Extent2D) error {
	size := gpu.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1}

	color, err := f.eng.CreateImage(gpu.MemoryGPUOnly, ColorFormat, size,
		gpu.ImageTransferSrc|gpu.ImageTransferDst|gpu.ImageStorage|gpu.ImageColorAttachment,
		gpu.AspectColor)
	if err != nil {
		return errors.Wrap(err, "createColorTarget")
	}

	depth, err := f.eng.CreateImage(gpu.MemoryGPUOnly, DepthFormat, size,
		gpu.ImageDepthAttachment, gpu.AspectDepth)
	if err != nil {
		f.eng.DestroyImage(color)
		return errors.Wrap(err, "createDepthTarget")
	}

	f.color, f.depth = color, depth
	return nil
}

func (f *Forward) destroyTargets() {
	if f.depth != nil {
		f.eng.DestroyImage(f.depth)
		f.depth = nil
	}
	if f.color != nil {
		f.eng.DestroyImage(f.color)
		f.color = nil
	}
}

// resize replaces the targets after the swapchain was rebuilt. The device is
// idle at that point.
func (f *Forward) resize(extent gpu.Extent2D) error {
	if f.teardown == nil || extent == f.Extent() {
		return nil
	}

	f.destroyTargets()
	if err := f.createTargets(extent); err != nil {
		return errors.Wrap(err, "resizeForwardTargets")
	}

	f.log.Debug("forward targets resized",
		slog.Uint64("width", uint64(extent.Width)),
		slog.Uint64("height", uint64(extent.Height)),
	)
	return nil
}

// Close destroys the pipeline and the targets. The GPU must not be using them
// anymore.
func (f *Forward) Close() {
	if f.teardown == nil {
		return
	}
	f.teardown.Flush()
	f.teardown = nil
}

// Target returns the color target.
func (f *Forward) Target() *engine.Image { return f.color }

// Extent returns the size of the targets.
func (f *Forward) Extent() gpu.Extent2D {
	if f.color == nil {
		return gpu.Extent2D{}
	}
	return f.color.Extent.Extent2D()
}

// MaterialLayout returns the layout of material descriptor sets.
func (f *Forward) MaterialLayout() gpu.DescriptorSetLayout { return f.setLayout }

// Render records drawing s into the color target. The target is left in the
// general layout.
func (f *Forward) Render(cmd gpu.CommandBuffer, s *scene.Scene) error {
	if f.teardown == nil {
		return errors.New("forward pass is closed")
	}
	if f.color == nil || f.depth == nil {
		return errors.New("forward pass has no targets")
	}
	extent := f.Extent()

	engine.TransitionImage(cmd, f.color.Handle, gpu.LayoutUndefined, gpu.LayoutGeneral)
	engine.TransitionImage(cmd, f.depth.Handle, gpu.LayoutUndefined, gpu.LayoutDepthAttachment)

	bg := s.Background
	cmd.ClearColorImage(f.color.Handle, gpu.LayoutGeneral, [4]float32{bg[0], bg[1], bg[2], 1})

	cmd.BeginRendering(gpu.RenderingInfo{
		Area: extent,
		Color: &gpu.Attachment{
			View:   f.color.View,
			Layout: gpu.LayoutGeneral,
			Load:   gpu.LoadOpLoad,
		},
		Depth: &gpu.Attachment{
			View:       f.depth.View,
			Layout:     gpu.LayoutDepthAttachment,
			Load:       gpu.LoadOpClear,
			ClearDepth: 1,
		},
	})
	defer cmd.EndRendering()

	cmd.BindPipeline(f.pipeline)

	// Flip Y so the scene is drawn with Y up.
	cmd.SetViewport(gpu.Viewport{
		X:        0,
		Y:        float32(extent.Height),
		Width:    float32(extent.Width),
		Height:   -float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	})
	cmd.SetScissor(gpu.Rect2D{Width: extent.Width, Height: extent.Height})

	camera := s.Camera
	camera.Aspect = float32(extent.Width) / float32(extent.Height)

	push := PushConstants{Camera: camera.Matrix()}
	for i, obj := range s.Objects {
		if obj.Mesh < 0 || obj.Mesh >= len(s.Meshes) {
			return errors.Newf("object %d uses mesh %d of %d", i, obj.Mesh, len(s.Meshes))
		}
		mesh := &s.Meshes[obj.Mesh]
		if mesh.Material < 0 || mesh.Material >= len(s.Materials) {
			return errors.Newf("mesh %d uses material %d of %d", obj.Mesh, mesh.Material, len(s.Materials))
		}

		cmd.BindDescriptorSet(f.layout, s.Materials[mesh.Material].DiffuseSet)

		push.VertexBuffer = mesh.VertexAddress
		cmd.PushConstants(f.layout, gpu.ShaderVertex, unsafer.StructToBytes(&push))

		cmd.BindIndexBuffer(mesh.IndexBuffer.Handle)
		cmd.DrawIndexed(mesh.IndexCount)
	}
	return nil
}
