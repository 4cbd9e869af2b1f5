// Package scene holds what the forward pass draws: meshes in device buffers,
// textured materials and the camera, and creates them from model files.
package scene

import (
	"unsafe"

	"github.com/xlab/linmath"

	"vulkan-renderer/engine"
	"vulkan-renderer/gpu"
)

// Vertex is the layout the vertex shader reads from the vertex buffer through
// its device address. Texture coordinates are split to fill the padding of the
// two vectors.
type Vertex struct {
	Position linmath.Vec3
	UVX      float32
	Normal   linmath.Vec3
	UVY      float32
}

// VertexSize is the size of Vertex in bytes.
const VertexSize = int(unsafe.Sizeof(Vertex{}))

// Mesh is an indexed triangle list in device memory.
type Mesh struct {
	Name          string
	IndexCount    uint32
	VertexBuffer  *engine.Buffer
	IndexBuffer   *engine.Buffer
	VertexAddress uint64

	// Material indexes Scene.Materials.
	Material int
}

// Material is a diffuse texture and the descriptor set it is bound through.
type Material struct {
	Name       string
	DiffuseSet gpu.DescriptorSet
	Diffuse    *engine.Image
}

// Object is a drawn instance of a mesh.
type Object struct {
	Mesh int
}

// Scene is everything drawn in a frame.
type Scene struct {
	Background [3]float32
	Camera     Camera

	Meshes    []Mesh
	Materials []Material
	Objects   []Object
}

// DefaultBackground is the clear color of new scenes.
var DefaultBackground = [3]float32{0.1, 0.1, 0.1}

// New returns an empty scene with the default background and camera.
func New() *Scene {
	return &Scene{
		Background: DefaultBackground,
		Camera:     DefaultCamera(),
	}
}
