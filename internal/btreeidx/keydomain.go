package btreeidx

import (
	"bytes"
	"encoding/binary"
	"math"
)

// AttrType tags which of the three supported scalar domains an index was
// built over. Values match spec.md §3's meta-page encoding exactly:
// 0 = INT32, 1 = F64, 2 = STR10.
type AttrType int32

const (
	AttrInt32    AttrType = 0
	AttrFloat64  AttrType = 1
	AttrString10 AttrType = 2
)

func (t AttrType) String() string {
	switch t {
	case AttrInt32:
		return "INT32"
	case AttrFloat64:
		return "F64"
	case AttrString10:
		return "STR10"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether t is one of the three supported domains.
func (t AttrType) Valid() bool {
	return t == AttrInt32 || t == AttrFloat64 || t == AttrString10
}

// Str10 is the fixed 10-byte character key domain. Trailing zero bytes
// are significant only in that they make a shorter logical string
// compare lower than a longer one sharing the same prefix — comparison
// is plain lexicographic byte comparison, per spec.md §3.
type Str10 [10]byte

// NewStr10 builds a Str10 from s, truncating to 10 bytes or zero-padding
// on the right if shorter.
func NewStr10(s string) Str10 {
	var k Str10
	copy(k[:], s)
	return k
}

func (k Str10) String() string {
	return string(bytes.TrimRight(k[:], "\x00"))
}

// keyOps bundles the compare/encode/decode operations for one key
// domain K. Each public entry point (InsertEntry, StartScan) picks the
// right keyOps with a single switch on AttrType and hands it to a generic
// internal function, rather than switching on AttrType in every
// comparison — the "monomorphise over key type" approach spec.md §9
// recommends; Go generics make the resolved ops a concrete, inlinable
// function set rather than an interface dispatched per call.
type keyOps[K any] struct {
	size    int
	compare func(a, b K) int
	encode  func(k K, dst []byte)
	decode  func(src []byte) K
}

func int32Ops() keyOps[int32] {
	return keyOps[int32]{
		size: 4,
		compare: func(a, b int32) int {
			switch {
			case a < b:
				return -1
			case a > b:
				return 1
			default:
				return 0
			}
		},
		encode: func(k int32, dst []byte) { binary.LittleEndian.PutUint32(dst, uint32(k)) },
		decode: func(src []byte) int32 { return int32(binary.LittleEndian.Uint32(src)) },
	}
}

func float64Ops() keyOps[float64] {
	return keyOps[float64]{
		size: 8,
		compare: func(a, b float64) int {
			switch {
			case a < b:
				return -1
			case a > b:
				return 1
			default:
				return 0
			}
		},
		encode: func(k float64, dst []byte) { binary.LittleEndian.PutUint64(dst, math.Float64bits(k)) },
		decode: func(src []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(src)) },
	}
}

func str10Ops() keyOps[Str10] {
	return keyOps[Str10]{
		size: 10,
		compare: func(a, b Str10) int {
			return bytes.Compare(a[:], b[:])
		},
		encode: func(k Str10, dst []byte) { copy(dst, k[:]) },
		decode: func(src []byte) Str10 {
			var k Str10
			copy(k[:], src)
			return k
		},
	}
}

// keyWidth returns the fixed on-disk width, in bytes, of a key of type t.
func keyWidth(t AttrType) int {
	switch t {
	case AttrInt32:
		return 4
	case AttrFloat64:
		return 8
	case AttrString10:
		return 10
	default:
		return 0
	}
}
