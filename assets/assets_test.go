package assets

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

const quadOBJ = `mtllib quad.mtl
o Quad
v -1 -1 0
v 1 -1 0
v 1 1 0
v -1 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
usemtl painted
f 1/1/1 2/2/1 3/3/1 4/4/1
`

const quadMTL = `newmtl painted
Kd 0.5 0.25 1
map_Kd textures/paint.png
`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestLoadOBJTriangulates(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"quad.obj": quadOBJ,
		"quad.mtl": quadMTL,
	})

	model, err := LoadOBJ(filepath.Join(dir, "quad.obj"), nil)
	require.NoError(t, err)

	assert.Equal(t, dir, model.Dir)
	require.Len(t, model.Meshes, 1)
	mesh := model.Meshes[0]
	assert.Equal(t, "Quad", mesh.Name)
	assert.Len(t, mesh.Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, mesh.Indices)

	// V is flipped.
	assert.Equal(t, [2]float32{0, 1}, mesh.Vertices[0].UV)
	assert.Equal(t, [2]float32{1, 0}, mesh.Vertices[2].UV)
	assert.Equal(t, [3]float32{0, 0, 1}, mesh.Vertices[1].Normal)

	require.Len(t, model.Materials, 1)
	require.Equal(t, 0, mesh.Material)
	mat := model.Materials[0]
	assert.Equal(t, "painted", mat.Name)
	assert.Equal(t, [3]float32{0.5, 0.25, 1}, mat.DiffuseColor)
	assert.Equal(t, filepath.Join("textures", "paint.png"), mat.DiffuseTexture)
}

func TestLoadOBJWithoutLibraryOrNormals(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"tri.obj": "mtllib missing.mtl\nv 0 0 0\nv 1 0 0\nv 0 1 0\nusemtl gone\nf 1 2 3\n",
	})

	model, err := LoadOBJ(filepath.Join(dir, "tri.obj"), nil)
	require.NoError(t, err)

	require.Len(t, model.Meshes, 1)
	mesh := model.Meshes[0]
	assert.Equal(t, -1, mesh.Material)
	assert.Empty(t, model.Materials)
	require.Len(t, mesh.Vertices, 3)
	for _, v := range mesh.Vertices {
		assert.Equal(t, [3]float32{0, 0, 1}, v.Normal)
	}
}

func TestLoadOBJErrors(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"empty.obj": "v 0 0 0\n",
	})

	_, err := LoadOBJ(filepath.Join(dir, "missing.obj"), nil)
	assert.Error(t, err)

	_, err = LoadOBJ(filepath.Join(dir, "empty.obj"), nil)
	assert.ErrorContains(t, err, "no faces")
}

func checker() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 0, color.NRGBA{G: 255, A: 255})
	img.Set(0, 1, color.NRGBA{B: 255, A: 255})
	img.Set(1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	return img
}

func TestDecodeTexture(t *testing.T) {
	var pngData, bmpData bytes.Buffer
	require.NoError(t, png.Encode(&pngData, checker()))
	require.NoError(t, bmp.Encode(&bmpData, checker()))

	for name, data := range map[string][]byte{"png": pngData.Bytes(), "bmp": bmpData.Bytes()} {
		img, err := DecodeTexture(data)
		require.NoError(t, err, name)
		assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds(), name)
		assert.Equal(t, color.RGBA{G: 255, A: 255}, img.RGBAAt(1, 0), name)
		assert.Equal(t, color.RGBA{B: 255, A: 255}, img.RGBAAt(0, 1), name)
	}
}

func TestDecodeTextureRejectsOtherFiles(t *testing.T) {
	_, err := DecodeTexture([]byte("v 0 0 0\nf 1 2 3\n"))
	assert.ErrorContains(t, err, "not an image")

	_, err = DecodeTexture([]byte("%PDF-1.4\n%%EOF\n"))
	assert.ErrorContains(t, err, "application/pdf")
}

func TestLoadTexture(t *testing.T) {
	var data bytes.Buffer
	require.NoError(t, png.Encode(&data, checker()))
	dir := writeFiles(t, map[string]string{"white.png": data.String()})

	img, err := LoadTexture(filepath.Join(dir, "white.png"))
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())

	_, err = LoadTexture(filepath.Join(dir, "none.png"))
	assert.Error(t, err)
}
