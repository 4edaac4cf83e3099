package model

import (
	"fmt"
	"math"
)

// EncodeUint64 big-endian encodes v so that byte-lexicographic order matches
// numeric order, for use as (part of) an index key.
func EncodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// EncodeValue deterministically encodes an arbitrary field value (as decoded
// from JSON: float64, string, bool, nil) into an order-preserving byte
// string, so range scans over a secondary index produce correctly ordered
// results.
func EncodeValue(v interface{}) []byte {
	switch x := v.(type) {
	case nil:
		return []byte{0x00}
	case bool:
		if x {
			return []byte{0x01, 0x01}
		}
		return []byte{0x01, 0x00}
	case float64:
		return append([]byte{0x02}, encodeFloat64(x)...)
	case int:
		return append([]byte{0x02}, encodeFloat64(float64(x))...)
	case int64:
		return append([]byte{0x02}, encodeFloat64(float64(x))...)
	case string:
		return append([]byte{0x03}, []byte(x)...)
	default:
		return append([]byte{0x04}, []byte(fmt.Sprintf("%v", x))...)
	}
}

// encodeFloat64 produces an order-preserving 8-byte encoding of a float64:
// flip the sign bit for positives, invert all bits for negatives.
func encodeFloat64(f float64) []byte {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(bits)
		bits >>= 8
	}
	return b
}
