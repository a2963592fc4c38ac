package rbtree

import (
	"encoding/binary"

	"github.com/pierrec/lz4/v4"
)

// uint32ByteSize is the number of bytes in a uint32.
const uint32ByteSize = 4

// Block tags. LZ4 refuses incompressible input, such blocks are stored raw.
const (
	blockRaw byte = iota
	blockLZ4
)

// CompressUInt32Slice compresses a slice of uint32-s with LZ4.
// The first byte of the result tells whether the payload is LZ4 or raw little-endian.
func CompressUInt32Slice(data []uint32) []byte {
	raw := make([]byte, 0, len(data)*uint32ByteSize)
	for _, value := range data {
		raw = binary.LittleEndian.AppendUint32(raw, value)
	}

	compressed := make([]byte, 1+lz4.CompressBlockBound(len(raw)))
	compressed[0] = blockLZ4

	written, err := lz4.CompressBlock(raw, compressed[1:], nil)
	if err != nil || written == 0 {
		return append([]byte{blockRaw}, raw...)
	}

	return compressed[:1+written]
}

// DecompressUInt32Slice decompresses a slice of uint32-s previously compressed by CompressUInt32Slice.
// `result` must be preallocated. It reports whether the block was decoded completely.
func DecompressUInt32Slice(data []byte, result []uint32) bool {
	if len(data) == 0 {
		return len(result) == 0
	}

	decompressed := data[1:]

	if data[0] == blockLZ4 {
		decompressed = make([]byte, len(result)*uint32ByteSize)

		read, err := lz4.UncompressBlock(data[1:], decompressed)
		if err != nil || read != len(decompressed) {
			return false
		}
	}

	if len(decompressed) != len(result)*uint32ByteSize {
		return false
	}

	for idx := range result {
		result[idx] = binary.LittleEndian.Uint32(decompressed[idx*uint32ByteSize:])
	}

	return true
}

// DeltaEncodeUInt32Slice replaces each element with the difference from its
// predecessor, in place. The first element is left unchanged. This transforms
// sorted sequences into small, repetitive values that compress better with LZ4.
func DeltaEncodeUInt32Slice(data []uint32) {
	for i := len(data) - 1; i > 0; i-- {
		data[i] -= data[i-1]
	}
}

// DeltaDecodeUInt32Slice performs a prefix-sum to restore original values from
// deltas produced by DeltaEncodeUInt32Slice. The operation is performed in place.
func DeltaDecodeUInt32Slice(data []uint32) {
	for i := 1; i < len(data); i++ {
		data[i] += data[i-1]
	}
}
