package scene

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xlab/linmath"

	"vulkan-renderer/engine"
	"vulkan-renderer/gpu"
	"vulkan-renderer/gpu/gputest"
	"vulkan-renderer/unsafer"
)

type fixture struct {
	dev    *gputest.Device
	eng    *engine.Engine
	loader *Loader
	dir    string
	white  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dev := gputest.New()
	eng, err := engine.New(dev, engine.Options{
		FramebufferSize: func() gpu.Extent2D { return gpu.Extent2D{Width: 640, Height: 480} },
	})
	require.NoError(t, err)

	layout, err := dev.CreateDescriptorSetLayout([]gpu.DescriptorBinding{{
		Binding: 0,
		Type:    gpu.DescriptorCombinedImageSampler,
		Stages:  gpu.ShaderFragment,
	}})
	require.NoError(t, err)
	sampler, err := dev.CreateSampler(gpu.SamplerInfo{Filter: gpu.FilterLinear})
	require.NoError(t, err)

	dir := t.TempDir()
	white := filepath.Join(dir, "white.png")
	writePNG(t, white, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	loader, err := NewLoader(eng, LoaderOptions{
		Layout:       layout,
		Sampler:      sampler,
		WhiteTexture: white,
	})
	require.NoError(t, err)

	f := &fixture{dev: dev, eng: eng, loader: loader, dir: dir, white: white}
	t.Cleanup(func() {
		loader.Close()
		dev.DestroySampler(sampler)
		dev.DestroyDescriptorSetLayout(layout)
		require.NoError(t, eng.Close())
		assert.Empty(t, dev.Violations)
		assert.Empty(t, dev.Leaks())
	})
	return f
}

func writePNG(t *testing.T, path string, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func triangle() ([]Vertex, []uint32) {
	return []Vertex{
		{Position: linmath.Vec3{0, 0, 0}, Normal: linmath.Vec3{0, 0, 1}},
		{Position: linmath.Vec3{1, 0, 0}, UVX: 1, Normal: linmath.Vec3{0, 0, 1}},
		{Position: linmath.Vec3{0, 1, 0}, UVY: 1, Normal: linmath.Vec3{0, 0, 1}},
	}, []uint32{0, 1, 2}
}

func TestVertexLayout(t *testing.T) {
	assert.Equal(t, 32, VertexSize)
}

func TestCreateMesh(t *testing.T) {
	f := newFixture(t)
	vertices, indices := triangle()

	mesh, err := f.loader.CreateMesh(vertices, indices, 3)
	require.NoError(t, err)
	defer f.loader.DestroyMesh(&mesh)

	assert.Equal(t, uint32(3), mesh.IndexCount)
	assert.Equal(t, 3, mesh.Material)
	assert.NotZero(t, mesh.VertexAddress)
	assert.Equal(t, 2, f.dev.Live(gputest.KindBuffer), "staging buffer is released")

	vb := mesh.VertexBuffer.Handle.(*gputest.Buffer)
	ib := mesh.IndexBuffer.Handle.(*gputest.Buffer)
	assert.Equal(t, unsafer.SliceToBytes(vertices), vb.Data)
	assert.Equal(t, unsafer.SliceToBytes(indices), ib.Data)
	assert.NotZero(t, vb.Info.Usage&gpu.BufferDeviceAddress)
	assert.NotZero(t, ib.Info.Usage&gpu.BufferIndex)
	assert.Equal(t, gpu.MemoryGPUOnly, vb.Info.Memory)
}

func TestCreateMeshRollsBack(t *testing.T) {
	f := newFixture(t)
	vertices, indices := triangle()

	f.dev.FailNext("Submit", errors.New("queue lost"))
	_, err := f.loader.CreateMesh(vertices, indices, 0)
	require.Error(t, err)
	assert.Zero(t, f.dev.Live(gputest.KindBuffer))

	_, err = f.loader.CreateMesh(nil, indices, 0)
	assert.Error(t, err)
}

func TestCreateMaterialFromFile(t *testing.T) {
	f := newFixture(t)
	images := f.dev.Live(gputest.KindImage)

	mat, err := f.loader.CreateMaterialFromFile(f.white)
	require.NoError(t, err)

	set := mat.DiffuseSet.(*gputest.DescriptorSet)
	require.Len(t, set.Writes, 1)
	assert.Equal(t, uint32(0), set.Writes[0].Binding)
	assert.Equal(t, gpu.LayoutReadOnly, set.Writes[0].Layout)
	assert.Equal(t, mat.Diffuse.View, set.Writes[0].View)
	assert.Equal(t, f.loader.opts.Sampler, set.Writes[0].Sampler)
	assert.Equal(t, gpu.FormatR8G8B8A8Srgb, mat.Diffuse.Format)

	texels := mat.Diffuse.Handle.(*gputest.Image).Data
	assert.Equal(t, []byte{255, 255, 255, 255}, texels[:4])

	assert.Equal(t, images+1, f.dev.Live(gputest.KindImage))

	f.loader.DestroyMaterial(&mat)
	assert.Zero(t, f.dev.Live(gputest.KindDescriptorSet))
	assert.Equal(t, images, f.dev.Live(gputest.KindImage))
}

func TestCreateMaterialRollsBack(t *testing.T) {
	f := newFixture(t)
	images := f.dev.Live(gputest.KindImage)

	f.dev.FailNext("AllocateDescriptorSet", errors.New("pool exhausted"))
	_, err := f.loader.CreateMaterialFromFile(f.white)
	require.Error(t, err)
	assert.Equal(t, images, f.dev.Live(gputest.KindImage))

	_, err = f.loader.CreateMaterialFromFile(filepath.Join(f.dir, "missing.png"))
	assert.Error(t, err)
}

const sceneOBJ = `mtllib scene.mtl
o Floor
v -1 0 -1
v 1 0 -1
v 1 0 1
v -1 0 1
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 1 0
usemtl stone
f 1/1/1 2/2/1 3/3/1 4/4/1
o Marker
v 0 0 0
v 0 1 0
v 1 1 0
f 5 6 7
`

const sceneMTL = `newmtl stone
map_Kd stone.png

newmtl plain
Kd 1 0 0
`

func TestLoadFile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "scene.obj"), []byte(sceneOBJ), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "scene.mtl"), []byte(sceneMTL), 0o644))
	writePNG(t, filepath.Join(f.dir, "stone.png"), color.NRGBA{R: 128, G: 128, B: 128, A: 255})

	s, err := f.loader.LoadFile(filepath.Join(f.dir, "scene.obj"))
	require.NoError(t, err)

	assert.Equal(t, DefaultBackground, s.Background)
	assert.Equal(t, DefaultCamera(), s.Camera)

	// stone, plain (white) and the default material of the marker.
	require.Len(t, s.Materials, 3)
	assert.Equal(t, "stone", s.Materials[0].Name)
	assert.Equal(t, "plain", s.Materials[1].Name)
	assert.Equal(t, "default", s.Materials[2].Name)
	stone := s.Materials[0].Diffuse.Handle.(*gputest.Image).Data
	assert.Equal(t, byte(128), stone[0])

	require.Len(t, s.Meshes, 2)
	assert.Equal(t, uint32(6), s.Meshes[0].IndexCount)
	assert.Equal(t, 0, s.Meshes[0].Material)
	assert.Equal(t, uint32(3), s.Meshes[1].IndexCount)
	assert.Equal(t, 2, s.Meshes[1].Material)
	assert.Equal(t, []Object{{Mesh: 0}, {Mesh: 1}}, s.Objects)

	f.loader.Destroy(s)
	assert.Empty(t, s.Meshes)
	assert.Zero(t, f.dev.Live(gputest.KindBuffer))
}

func TestLoadFileDestroysPartialScene(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "scene.obj"), []byte(sceneOBJ), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "scene.mtl"), []byte(sceneMTL), 0o644))
	writePNG(t, filepath.Join(f.dir, "stone.png"), color.NRGBA{A: 255})
	images := f.dev.Live(gputest.KindImage)

	// Both materials upload, the staging buffer of the first mesh fails.
	f.dev.FailNext("CreateBuffer", nil)
	f.dev.FailNext("CreateBuffer", nil)
	f.dev.FailNext("CreateBuffer", errors.New("out of memory"))

	_, err := f.loader.LoadFile(filepath.Join(f.dir, "scene.obj"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of memory")

	assert.Equal(t, images, f.dev.Live(gputest.KindImage))
	assert.Zero(t, f.dev.Live(gputest.KindBuffer))
	assert.Zero(t, f.dev.Live(gputest.KindDescriptorSet))
}
