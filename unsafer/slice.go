// Package unsafer reinterprets Go values as raw bytes for handing them to the GPU.
package unsafer

import (
	"encoding/binary"
	"unsafe"
)

// SliceToBytes interprets an arbitrary input slice as a byte slice.
//
// Note that the returned slice points to the same underlying data in memory. It
// does not make a copy.
func SliceToBytes[T any](input []T) []byte {
	if len(input) == 0 {
		return nil
	}
	size := int(unsafe.Sizeof(input[0])) * len(input)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(input))), size)
}

// StructToBytes interprets the memory of the value pointed to by ptr as a byte
// slice. As with SliceToBytes no copy is made.
func StructToBytes[T any](ptr *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), unsafe.Sizeof(*ptr))
}

// SliceBytesToUint32 repacks little-endian bytes into 32 bit words, which is how
// SPIR-V bytecode is handed to the driver. Trailing bytes which do not form a
// whole word are dropped.
func SliceBytesToUint32(data []byte) []uint32 {
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return words
}
