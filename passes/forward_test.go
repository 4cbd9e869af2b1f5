package passes

import (
	"encoding/binary"
	"testing"
	"testing/fstest"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vulkan-renderer/engine"
	"vulkan-renderer/gpu"
	"vulkan-renderer/gpu/gputest"
	"vulkan-renderer/scene"
	"vulkan-renderer/shaders"
	"vulkan-renderer/unsafer"
)

func spirv() []byte {
	code := make([]byte, 20)
	binary.LittleEndian.PutUint32(code, shaders.Magic)
	return code
}

func shaderFS() fstest.MapFS {
	return fstest.MapFS{
		shaders.ForwardVertex:   {Data: spirv()},
		shaders.ForwardFragment: {Data: spirv()},
	}
}

type window struct{ size gpu.Extent2D }

func newEngine(t *testing.T) (*engine.Engine, *gputest.Device, *window) {
	t.Helper()

	dev := gputest.New()
	dev.SurfaceExtent = gpu.Extent2D{}
	win := &window{size: gpu.Extent2D{Width: 640, Height: 480}}

	eng, err := engine.New(dev, engine.Options{
		FramebufferSize: func() gpu.Extent2D { return win.size },
	})
	require.NoError(t, err)
	return eng, dev, win
}

func closeAndCheck(t *testing.T, eng *engine.Engine, dev *gputest.Device) {
	t.Helper()
	require.NoError(t, eng.Close())
	assert.Empty(t, dev.Violations)
	assert.Empty(t, dev.Leaks())
}

func TestPushConstantsLayout(t *testing.T) {
	assert.Equal(t, uint32(72), PushConstantsSize)
	assert.Equal(t, uintptr(64), unsafe.Offsetof(PushConstants{}.VertexBuffer))

	var pc PushConstants
	pc.Camera.Identity()
	pc.Camera[3][0] = 5 // translation x, column 3
	pc.VertexBuffer = 0x1122334455667788

	data := unsafer.StructToBytes(&pc)
	require.Len(t, data, 72)
	assert.Equal(t, uint64(0x1122334455667788), binary.LittleEndian.Uint64(data[64:]))
	assert.Equal(t, float32(5), *(*float32)(unsafe.Pointer(&data[48])))
	assert.Equal(t, float32(1), *(*float32)(unsafe.Pointer(&data[0])))
}

func TestNewForward(t *testing.T) {
	eng, dev, _ := newEngine(t)

	f, err := NewForward(eng, ForwardOptions{Shaders: shaderFS()})
	require.NoError(t, err)

	assert.Equal(t, gpu.Extent2D{Width: 640, Height: 480}, f.Extent())
	color := f.Target().Handle.(*gputest.Image)
	assert.Equal(t, ColorFormat, color.Info.Format)
	assert.NotZero(t, color.Info.Usage&gpu.ImageTransferSrc)
	assert.NotZero(t, color.Info.Usage&gpu.ImageColorAttachment)
	assert.Equal(t, DepthFormat, f.depth.Format)

	pipeline := f.pipeline.(*gputest.Pipeline)
	assert.Equal(t, gpu.CompareLess, pipeline.Info.DepthCompare)
	assert.True(t, pipeline.Info.DepthTest)
	assert.True(t, pipeline.Info.DepthWrite)
	assert.True(t, pipeline.Info.AlphaBlend)
	assert.Equal(t, ColorFormat, pipeline.Info.ColorFormat)

	layout := f.layout.(*gputest.PipelineLayout)
	assert.Equal(t, []gpu.PushConstantRange{{Stages: gpu.ShaderVertex, Size: 72}}, layout.Info.PushConstants)

	assert.Zero(t, dev.Live(gputest.KindShaderModule))

	f.Close()
	f.Close()
	closeAndCheck(t, eng, dev)
}

func TestNewForwardRollsBack(t *testing.T) {
	cases := map[string]func(dev *gputest.Device) fstest.MapFS{
		"missing fragment shader": func(*gputest.Device) fstest.MapFS {
			fsys := shaderFS()
			delete(fsys, shaders.ForwardFragment)
			return fsys
		},
		"bad vertex shader": func(*gputest.Device) fstest.MapFS {
			fsys := shaderFS()
			fsys[shaders.ForwardVertex] = &fstest.MapFile{Data: []byte{1, 2, 3}}
			return fsys
		},
		"pipeline failure": func(dev *gputest.Device) fstest.MapFS {
			dev.FailNext("CreateGraphicsPipeline", errors.New("no"))
			return shaderFS()
		},
		"depth target failure": func(dev *gputest.Device) fstest.MapFS {
			dev.FailNext("CreateImage", nil)
			dev.FailNext("CreateImage", errors.New("out of memory"))
			return shaderFS()
		},
	}

	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			eng, dev, _ := newEngine(t)
			images := dev.Live(gputest.KindImage)

			_, err := NewForward(eng, ForwardOptions{Shaders: setup(dev)})
			require.Error(t, err)

			assert.Equal(t, images, dev.Live(gputest.KindImage))
			assert.Zero(t, dev.Live(gputest.KindShaderModule))
			assert.Zero(t, dev.Live(gputest.KindPipelineLayout))
			assert.Zero(t, dev.Live(gputest.KindDescriptorSetLayout))
			closeAndCheck(t, eng, dev)
		})
	}
}

func TestForwardFollowsSwapchain(t *testing.T) {
	eng, dev, win := newEngine(t)

	f, err := NewForward(eng, ForwardOptions{Shaders: shaderFS()})
	require.NoError(t, err)
	images := dev.Live(gputest.KindImage)

	win.size = gpu.Extent2D{Width: 300, Height: 200}
	require.NoError(t, eng.Resize())
	assert.Equal(t, win.size, f.Extent())
	assert.Equal(t, images, dev.Live(gputest.KindImage))

	win.size = gpu.Extent2D{}
	require.NoError(t, eng.Resize())
	assert.Equal(t, gpu.Extent2D{Width: 300, Height: 200}, f.Extent())

	eng.Defer(f.Close)
	closeAndCheck(t, eng, dev)
}

type drawable struct {
	scene *scene.Scene
	pool  gpu.DescriptorPool
	index *engine.Buffer
}

func newDrawable(t *testing.T, eng *engine.Engine, f *Forward) *drawable {
	t.Helper()
	dev := eng.Device()

	pool, err := dev.CreateDescriptorPool(gpu.DescriptorPoolInfo{MaxSets: 1, CombinedImageSamplers: 1})
	require.NoError(t, err)
	set, err := dev.AllocateDescriptorSet(pool, f.MaterialLayout())
	require.NoError(t, err)
	index, err := eng.CreateBuffer(gpu.MemoryGPUOnly, 12, gpu.BufferIndex)
	require.NoError(t, err)

	s := scene.New()
	s.Background = [3]float32{0.2, 0.3, 0.4}
	s.Materials = []scene.Material{{DiffuseSet: set}}
	s.Meshes = []scene.Mesh{{IndexCount: 3, IndexBuffer: index, VertexAddress: 0xabc000}}
	s.Objects = []scene.Object{{Mesh: 0}, {Mesh: 0}}
	return &drawable{scene: s, pool: pool, index: index}
}

func (d *drawable) destroy(eng *engine.Engine) {
	eng.DestroyBuffer(d.index)
	eng.Device().DestroyDescriptorPool(d.pool)
}

func recording(t *testing.T, dev *gputest.Device) (*gputest.CommandBuffer, func()) {
	t.Helper()
	pool, err := dev.CreateCommandPool()
	require.NoError(t, err)
	cmd, err := dev.AllocateCommandBuffer(pool)
	require.NoError(t, err)
	require.NoError(t, dev.BeginCommandBuffer(cmd))
	return cmd.(*gputest.CommandBuffer), func() { dev.DestroyCommandPool(pool) }
}

func TestForwardRender(t *testing.T) {
	eng, dev, _ := newEngine(t)
	f, err := NewForward(eng, ForwardOptions{Shaders: shaderFS()})
	require.NoError(t, err)
	d := newDrawable(t, eng, f)

	cmd, done := recording(t, dev)
	require.NoError(t, f.Render(cmd, d.scene))

	assert.Equal(t, []string{
		"PipelineBarrier", "PipelineBarrier", "ClearColorImage",
		"BeginRendering", "BindPipeline", "SetViewport", "SetScissor",
		"BindDescriptorSet", "PushConstants", "BindIndexBuffer", "DrawIndexed",
		"BindDescriptorSet", "PushConstants", "BindIndexBuffer", "DrawIndexed",
		"EndRendering",
	}, cmd.Ops())

	barriers := cmd.Commands[0].Barriers
	require.Len(t, barriers, 1)
	assert.Equal(t, gpu.LayoutUndefined, barriers[0].OldLayout)
	assert.Equal(t, gpu.LayoutGeneral, barriers[0].NewLayout)
	assert.Equal(t, gpu.LayoutDepthAttachment, cmd.Commands[1].Barriers[0].NewLayout)
	assert.Equal(t, gpu.AspectDepth, cmd.Commands[1].Barriers[0].Aspect)

	assert.Equal(t, [4]float32{0.2, 0.3, 0.4, 1}, cmd.Commands[2].Color)

	rendering := cmd.Commands[3].Rendering
	assert.Equal(t, gpu.LoadOpLoad, rendering.Color.Load)
	assert.Equal(t, gpu.LoadOpClear, rendering.Depth.Load)
	assert.Equal(t, float32(1), rendering.Depth.ClearDepth)
	assert.Equal(t, f.Extent(), rendering.Area)

	assert.Equal(t, gpu.Viewport{Y: 480, Width: 640, Height: -480, MaxDepth: 1}, cmd.Commands[5].Viewport)
	assert.Equal(t, []gpu.Rect2D{{Width: 640, Height: 480}}, cmd.Commands[6].Rects)

	push := cmd.Commands[8]
	require.Len(t, push.Data, 72)
	assert.Equal(t, uint32(gpu.ShaderVertex), push.Count)
	assert.Equal(t, uint64(0xabc000), binary.LittleEndian.Uint64(push.Data[64:]))

	camera := d.scene.Camera
	camera.Aspect = 640.0 / 480.0
	m := camera.Matrix()
	assert.Equal(t, unsafer.StructToBytes(&m), push.Data[:64])

	assert.Equal(t, uint32(3), cmd.Commands[10].Count)

	done()
	d.destroy(eng)
	f.Close()
	closeAndCheck(t, eng, dev)
}

func TestForwardRenderRejectsBadIndices(t *testing.T) {
	eng, dev, _ := newEngine(t)
	f, err := NewForward(eng, ForwardOptions{Shaders: shaderFS()})
	require.NoError(t, err)
	d := newDrawable(t, eng, f)

	cmd, done := recording(t, dev)
	d.scene.Objects = append(d.scene.Objects, scene.Object{Mesh: 4})
	assert.ErrorContains(t, f.Render(cmd, d.scene), "mesh 4")
	assert.Equal(t, "EndRendering", cmd.Ops()[len(cmd.Ops())-1])

	d.scene.Objects = d.scene.Objects[:1]
	d.scene.Meshes[0].Material = 2
	assert.ErrorContains(t, f.Render(cmd, d.scene), "material 2")

	done()
	d.destroy(eng)
	f.Close()
	assert.Error(t, f.Render(cmd, d.scene))
	closeAndCheck(t, eng, dev)
}
