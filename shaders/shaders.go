// Package shaders holds the GLSL sources of the renderer's pipelines and loads
// their compiled SPIR-V. Run `go generate` to compile the sources again; the
// .spv files are looked up next to the binary at run time.
package shaders

import (
	"encoding/binary"
	"io/fs"
	"os"

	"github.com/cockroachdb/errors"
)

//go:generate glslc -O forward.vert -o forward.vert.spv
//go:generate glslc -O forward.frag -o forward.frag.spv

// Magic is the first word of every SPIR-V module.
const Magic uint32 = 0x07230203

// Names of the compiled forward pass stages.
const (
	ForwardVertex   = "forward.vert.spv"
	ForwardFragment = "forward.frag.spv"
)

// Load reads the SPIR-V module name from the directory dir.
func Load(dir, name string) ([]byte, error) {
	return Read(os.DirFS(dir), name)
}

// Read reads the SPIR-V module name from fsys and checks that it looks like
// one: a whole number of 32-bit words starting with the SPIR-V magic.
func Read(fsys fs.FS, name string) ([]byte, error) {
	code, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, errors.Wrapf(err, "reading shader %s", name)
	}
	if err := Validate(code); err != nil {
		return nil, errors.Wrapf(err, "shader %s", name)
	}
	return code, nil
}

// Validate checks the size and the magic number of a SPIR-V module.
func Validate(code []byte) error {
	if len(code) == 0 || len(code)%4 != 0 {
		return errors.Newf("code size %d is not a positive multiple of 4", len(code))
	}
	if magic := binary.LittleEndian.Uint32(code); magic != Magic {
		return errors.Newf("bad magic number 0x%08x", magic)
	}
	return nil
}
