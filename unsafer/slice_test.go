package unsafer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceToBytes(t *testing.T) {
	in := []uint32{0x04030201, 0x08070605}

	out := SliceToBytes(in)

	require.Len(t, out, 8)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, out)

	out[0] = 9
	assert.Equal(t, uint32(0x04030209), in[0], "the result must alias the input")

	assert.Nil(t, SliceToBytes([]float32{}))
}

func TestStructToBytes(t *testing.T) {
	type record struct {
		A uint32
		B uint64
	}
	r := record{A: 1, B: 2}

	out := StructToBytes(&r)

	require.Len(t, out, 16)
	assert.Equal(t, byte(1), out[0])
	assert.Equal(t, byte(2), out[8])
}

func TestSliceBytesToUint32(t *testing.T) {
	words := SliceBytesToUint32([]byte{0x03, 0x02, 0x23, 0x07, 0xff})
	assert.Equal(t, []uint32{0x07230203}, words)
}
