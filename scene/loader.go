package scene

import (
	"log/slog"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"vulkan-renderer/assets"
	"vulkan-renderer/engine"
	"vulkan-renderer/gpu"
	"vulkan-renderer/logging"
	"vulkan-renderer/unsafer"
)

// DefaultMaxMaterials is the number of materials a Loader can hold at once
// unless configured otherwise.
const DefaultMaxMaterials = 256

// LoaderOptions configure a Loader.
type LoaderOptions struct {
	Logger *slog.Logger

	// Layout is the layout of material descriptor sets: one combined image
	// sampler at binding 0.
	Layout gpu.DescriptorSetLayout

	// Sampler samples every diffuse texture.
	Sampler gpu.Sampler

	// WhiteTexture is the texture file of materials without a diffuse texture.
	WhiteTexture string

	MaxMaterials uint32
}

// Loader creates meshes and materials on an engine. It owns the descriptor pool
// material sets are allocated from.
type Loader struct {
	eng  *engine.Engine
	log  *slog.Logger
	opts LoaderOptions
	pool gpu.DescriptorPool
}

// NewLoader creates a Loader and its descriptor pool.
func NewLoader(eng *engine.Engine, opts LoaderOptions) (*Loader, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Layout == nil || opts.Sampler == nil {
		return nil, errors.New("scene loader needs a descriptor set layout and a sampler")
	}
	if opts.MaxMaterials == 0 {
		opts.MaxMaterials = DefaultMaxMaterials
	}

	pool, err := eng.Device().CreateDescriptorPool(gpu.DescriptorPoolInfo{
		MaxSets:               opts.MaxMaterials,
		CombinedImageSamplers: opts.MaxMaterials,
	})
	if err != nil {
		return nil, errors.Wrap(err, "createDescriptorPool")
	}

	return &Loader{
		eng:  eng,
		log:  opts.Logger,
		opts: opts,
		pool: pool,
	}, nil
}

// Close destroys the descriptor pool. Every material has to be destroyed
// before.
func (l *Loader) Close() {
	if l.pool == nil {
		return
	}
	l.eng.Device().DestroyDescriptorPool(l.pool)
	l.pool = nil
}

// CreateMesh uploads vertices and indices through one staging buffer into a
// vertex buffer, read by address from shaders, and a 32-bit index buffer.
func (l *Loader) CreateMesh(vertices []Vertex, indices []uint32, material int) (Mesh, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return Mesh{}, errors.New("createMesh: no geometry")
	}

	vertexBytes := unsafer.SliceToBytes(vertices)
	indexBytes := unsafer.SliceToBytes(indices)
	vertexSize := uint64(len(vertexBytes))
	indexSize := uint64(len(indexBytes))

	staging, err := l.eng.CreateBuffer(gpu.MemoryCPUToGPU, vertexSize+indexSize, gpu.BufferTransferSrc)
	if err != nil {
		return Mesh{}, errors.Wrap(err, "createMesh: staging")
	}
	defer l.eng.DestroyBuffer(staging)

	mapped := staging.Mapped()
	if uint64(len(mapped)) < vertexSize+indexSize {
		return Mesh{}, errors.New("createMesh: staging buffer is not mapped")
	}
	copy(mapped, vertexBytes)
	copy(mapped[vertexSize:], indexBytes)

	vertexBuffer, err := l.eng.CreateBuffer(gpu.MemoryGPUOnly, vertexSize,
		gpu.BufferStorage|gpu.BufferTransferDst|gpu.BufferDeviceAddress)
	if err != nil {
		return Mesh{}, errors.Wrap(err, "createMesh: vertex buffer")
	}

	indexBuffer, err := l.eng.CreateBuffer(gpu.MemoryGPUOnly, indexSize, gpu.BufferIndex|gpu.BufferTransferDst)
	if err != nil {
		l.eng.DestroyBuffer(vertexBuffer)
		return Mesh{}, errors.Wrap(err, "createMesh: index buffer")
	}

	err = l.eng.Immediate().Submit(func(cmd gpu.CommandBuffer) error {
		cmd.CopyBuffer(staging.Handle, vertexBuffer.Handle, gpu.BufferCopy{Size: vertexSize})
		cmd.CopyBuffer(staging.Handle, indexBuffer.Handle, gpu.BufferCopy{
			SrcOffset: vertexSize,
			Size:      indexSize,
		})
		return nil
	})
	if err != nil {
		l.eng.DestroyBuffer(indexBuffer)
		l.eng.DestroyBuffer(vertexBuffer)
		return Mesh{}, errors.Wrap(err, "createMesh: upload")
	}

	return Mesh{
		IndexCount:    uint32(len(indices)),
		VertexBuffer:  vertexBuffer,
		IndexBuffer:   indexBuffer,
		VertexAddress: l.eng.BufferAddress(vertexBuffer),
		Material:      material,
	}, nil
}

// DestroyMesh releases the buffers of m.
func (l *Loader) DestroyMesh(m *Mesh) {
	if m.IndexBuffer != nil {
		l.eng.DestroyBuffer(m.IndexBuffer)
		m.IndexBuffer = nil
	}
	if m.VertexBuffer != nil {
		l.eng.DestroyBuffer(m.VertexBuffer)
		m.VertexBuffer = nil
	}
}

// CreateMaterialFromFile loads the texture at path and binds it to a new
// descriptor set.
func (l *Loader) CreateMaterialFromFile(path string) (Material, error) {
	pixels, err := assets.LoadTexture(path)
	if err != nil {
		return Material{}, errors.Wrap(err, "createMaterial")
	}

	diffuse, err := l.eng.CreateImageFromRGBA(pixels, gpu.FormatR8G8B8A8Srgb, gpu.ImageSampled)
	if err != nil {
		return Material{}, errors.Wrap(err, "createMaterial")
	}

	set, err := l.eng.Device().AllocateDescriptorSet(l.pool, l.opts.Layout)
	if err != nil {
		l.eng.DestroyImage(diffuse)
		return Material{}, errors.Wrap(err, "createMaterial: allocateDescriptorSet")
	}

	l.eng.Device().WriteImageDescriptor(set, gpu.ImageDescriptor{
		Binding: 0,
		View:    diffuse.View,
		Sampler: l.opts.Sampler,
		Layout:  gpu.LayoutReadOnly,
	})

	return Material{
		Name:       filepath.Base(path),
		DiffuseSet: set,
		Diffuse:    diffuse,
	}, nil
}

// DestroyMaterial frees the descriptor set and the texture of m.
func (l *Loader) DestroyMaterial(m *Material) {
	if m.DiffuseSet != nil {
		l.eng.Device().FreeDescriptorSet(l.pool, m.DiffuseSet)
		m.DiffuseSet = nil
	}
	if m.Diffuse != nil {
		l.eng.DestroyImage(m.Diffuse)
		m.Diffuse = nil
	}
}

// LoadFile creates a scene from the OBJ file at path. Every mesh becomes one
// object. Materials without a diffuse texture, and meshes without a material,
// use the white texture. When loading fails, everything created so far is
// destroyed.
func (l *Loader) LoadFile(path string) (*Scene, error) {
	model, err := assets.LoadOBJ(path, l.log)
	if err != nil {
		return nil, errors.Wrap(err, "loadScene")
	}

	s := New()
	if err := l.populate(s, model); err != nil {
		l.Destroy(s)
		return nil, errors.Wrapf(err, "loadScene %s", path)
	}

	l.log.Info("scene loaded",
		slog.String("path", path),
		slog.Int("meshes", len(s.Meshes)),
		slog.Int("materials", len(s.Materials)),
		slog.Int("objects", len(s.Objects)),
	)
	return s, nil
}

func (l *Loader) populate(s *Scene, model *assets.Model) error {
	for _, m := range model.Materials {
		path := l.opts.WhiteTexture
		if m.DiffuseTexture == "" {
			l.log.Warn("material has no diffuse texture, using white",
				slog.String("material", m.Name))
		} else {
			path = filepath.Join(model.Dir, m.DiffuseTexture)
		}

		mat, err := l.CreateMaterialFromFile(path)
		if err != nil {
			return errors.Wrapf(err, "material %s", m.Name)
		}
		mat.Name = m.Name
		s.Materials = append(s.Materials, mat)
	}

	fallback := -1
	for _, m := range model.Meshes {
		material := m.Material
		if material < 0 {
			if fallback < 0 {
				mat, err := l.CreateMaterialFromFile(l.opts.WhiteTexture)
				if err != nil {
					return errors.Wrap(err, "default material")
				}
				mat.Name = "default"
				fallback = len(s.Materials)
				s.Materials = append(s.Materials, mat)
			}
			material = fallback
		}

		vertices := make([]Vertex, len(m.Vertices))
		for i, v := range m.Vertices {
			vertices[i] = Vertex{
				Position: v.Position,
				UVX:      v.UV[0],
				Normal:   v.Normal,
				UVY:      v.UV[1],
			}
		}

		mesh, err := l.CreateMesh(vertices, m.Indices, material)
		if err != nil {
			return errors.Wrapf(err, "mesh %s", m.Name)
		}
		mesh.Name = m.Name

		s.Objects = append(s.Objects, Object{Mesh: len(s.Meshes)})
		s.Meshes = append(s.Meshes, mesh)
	}
	return nil
}

// Destroy releases every mesh and material of s. The GPU must not be using them
// anymore.
func (l *Loader) Destroy(s *Scene) {
	for i := range s.Meshes {
		l.DestroyMesh(&s.Meshes[i])
	}
	for i := range s.Materials {
		l.DestroyMaterial(&s.Materials[i])
	}
	s.Meshes = nil
	s.Materials = nil
	s.Objects = nil
}
