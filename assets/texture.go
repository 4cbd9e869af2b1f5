package assets

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/h2non/filetype"
	"golang.org/x/image/draw"

	// Decoders registered with image.Decode.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// LoadTexture reads and decodes the image file at path.
func LoadTexture(path string) (*image.RGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading texture")
	}

	img, err := DecodeTexture(data)
	if err != nil {
		return nil, errors.Wrapf(err, "texture %s", path)
	}
	return img, nil
}

// DecodeTexture decodes a PNG, JPEG, GIF, BMP, TIFF or WebP image into 8-bit
// RGBA with its origin at (0, 0).
func DecodeTexture(data []byte) (*image.RGBA, error) {
	kind, err := filetype.Match(data)
	if err != nil {
		return nil, errors.Wrap(err, "detecting file type")
	}
	if !filetype.IsImage(data) {
		if kind == filetype.Unknown {
			return nil, errors.New("not an image")
		}
		return nil, errors.Newf("not an image but %s", kind.MIME.Value)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", kind.Extension)
	}

	if rgba, ok := src.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba, nil
	}

	b := src.Bounds()
	if b.Empty() {
		return nil, errors.Newf("%s image is empty", format)
	}
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
	return rgba, nil
}
