// Package assets reads the files a scene is made of: Wavefront OBJ models with
// their MTL material libraries and the textures those reference.
package assets

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/chewxy/math32"
	"github.com/cockroachdb/errors"
	"github.com/mokiat/go-data-front/decoder/mtl"
	"github.com/mokiat/go-data-front/decoder/obj"

	"vulkan-renderer/logging"
)

// Vertex is one corner of a triangle. UV has its V axis pointing down.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	UV       [2]float32
}

// Mesh is an indexed triangle list drawn with one material.
type Mesh struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32

	// Material indexes Model.Materials and is -1 for meshes without one.
	Material int
}

// Material is the subset of an MTL material the renderer draws with.
type Material struct {
	Name         string
	DiffuseColor [3]float32

	// DiffuseTexture is the texture path as written in the library, relative to
	// the model's directory. It is empty when the material has none.
	DiffuseTexture string
}

// Model is a loaded OBJ file.
type Model struct {
	// Dir is the directory the model was loaded from.
	Dir       string
	Meshes    []Mesh
	Materials []Material
}

// LoadOBJ reads the OBJ file at path and the material libraries it names.
// Polygons are split into triangles and texture coordinates are flipped
// vertically. A missing or broken material library is logged and its materials
// are left out.
func LoadOBJ(path string, log *slog.Logger) (*Model, error) {
	if log == nil {
		log = logging.Discard()
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening model")
	}
	defer fh.Close()

	decoded, err := obj.NewDecoder(obj.DefaultLimits()).Decode(fh)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding model %s", path)
	}

	model := &Model{Dir: filepath.Dir(path)}
	materials := make(map[string]int)
	for _, lib := range decoded.MaterialLibraries {
		libPath := filepath.Join(model.Dir, lib)
		library, err := loadMTL(libPath)
		if err != nil {
			log.Warn("skipping material library",
				slog.String("path", libPath),
				slog.Any("err", err),
			)
			continue
		}
		for _, m := range library.Materials {
			materials[m.Name] = len(model.Materials)
			model.Materials = append(model.Materials, Material{
				Name: m.Name,
				DiffuseColor: [3]float32{
					float32(m.DiffuseColor.R),
					float32(m.DiffuseColor.G),
					float32(m.DiffuseColor.B),
				},
				DiffuseTexture: filepath.FromSlash(m.DiffuseTexture),
			})
		}
	}

	for _, object := range decoded.Objects {
		for _, mesh := range object.Meshes {
			m := buildMesh(decoded, mesh)
			if len(m.Indices) == 0 {
				continue
			}

			m.Name = object.Name
			if m.Name == "" {
				m.Name = filepath.Base(path)
			}
			if len(object.Meshes) > 1 {
				m.Name += "/" + mesh.MaterialName
			}

			m.Material = -1
			if idx, ok := materials[mesh.MaterialName]; ok {
				m.Material = idx
			} else if mesh.MaterialName != "" {
				log.Warn("mesh uses an unknown material",
					slog.String("mesh", m.Name),
					slog.String("material", mesh.MaterialName),
				)
			}
			model.Meshes = append(model.Meshes, m)
		}
	}

	if len(model.Meshes) == 0 {
		return nil, errors.Newf("model %s has no faces", path)
	}

	log.Debug("model loaded",
		slog.String("path", path),
		slog.Int("meshes", len(model.Meshes)),
		slog.Int("materials", len(model.Materials)),
	)
	return model, nil
}

func loadMTL(path string) (*mtl.Library, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	return mtl.NewDecoder(mtl.DefaultLimits()).Decode(fh)
}

// buildMesh turns the faces of mesh into a triangle list. Corners sharing the
// same position, normal and texture coordinate references share a vertex.
func buildMesh(model *obj.Model, mesh *obj.Mesh) Mesh {
	var out Mesh
	unique := make(map[obj.Reference]uint32)

	for _, face := range mesh.Faces {
		refs := face.References
		if len(refs) < 3 {
			continue
		}

		var flat [3]float32
		if !refs[0].HasNormal() {
			flat = faceNormal(model, refs)
		}

		corner := func(ref obj.Reference) uint32 {
			if idx, ok := unique[ref]; ok {
				return idx
			}

			v := model.GetVertexFromReference(ref)
			vertex := Vertex{
				Position: [3]float32{float32(v.X), float32(v.Y), float32(v.Z)},
				Normal:   flat,
			}
			if ref.HasNormal() {
				n := model.GetNormalFromReference(ref)
				vertex.Normal = [3]float32{float32(n.X), float32(n.Y), float32(n.Z)}
			}
			if ref.HasTexCoord() {
				tc := model.GetTexCoordFromReference(ref)
				vertex.UV = [2]float32{float32(tc.U), 1 - float32(tc.V)}
			}

			idx := uint32(len(out.Vertices))
			out.Vertices = append(out.Vertices, vertex)
			if ref.HasNormal() {
				unique[ref] = idx
			}
			return idx
		}

		// Fan triangulation around the first corner.
		first := corner(refs[0])
		prev := corner(refs[1])
		for _, ref := range refs[2:] {
			next := corner(ref)
			out.Indices = append(out.Indices, first, prev, next)
			prev = next
		}
	}
	return out
}

func faceNormal(model *obj.Model, refs []obj.Reference) [3]float32 {
	a := model.GetVertexFromReference(refs[0])
	b := model.GetVertexFromReference(refs[1])
	c := model.GetVertexFromReference(refs[2])

	ux, uy, uz := b.X-a.X, b.Y-a.Y, b.Z-a.Z
	vx, vy, vz := c.X-a.X, c.Y-a.Y, c.Z-a.Z
	n := [3]float32{
		float32(uy*vz - uz*vy),
		float32(uz*vx - ux*vz),
		float32(ux*vy - uy*vx),
	}

	length := math32.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if length == 0 {
		return n
	}
	return [3]float32{n[0] / length, n[1] / length, n[2] / length}
}
