package shaders

import (
	"encoding/binary"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func module(words ...uint32) []byte {
	code := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(code[4*i:], w)
	}
	return code
}

func TestRead(t *testing.T) {
	good := module(Magic, 0x00010300, 0, 1, 0)
	fsys := fstest.MapFS{
		"good.spv":    {Data: good},
		"odd.spv":     {Data: good[:7]},
		"empty.spv":   {Data: nil},
		"bad.spv":     {Data: module(0xdeadbeef, 0)},
		"swapped.spv": {Data: module(0x03022307)},
	}

	code, err := Read(fsys, "good.spv")
	require.NoError(t, err)
	assert.Equal(t, good, code)

	for _, name := range []string{"odd.spv", "empty.spv", "bad.spv", "swapped.spv"} {
		_, err := Read(fsys, name)
		assert.Error(t, err, name)
		assert.Contains(t, err.Error(), name)
	}

	_, err = Read(fsys, "missing.spv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	code := module(Magic, 0x00010000, 0, 8, 0)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ForwardVertex), code, 0o644))

	got, err := Load(dir, ForwardVertex)
	require.NoError(t, err)
	assert.Equal(t, code, got)

	_, err = Load(dir, ForwardFragment)
	assert.Error(t, err)
}
