// Package entry defines the ordered key/value pair stored in both the
// B+Tree and the hash index, along with the comparator that gives the
// B+Tree its total order. Keys are opaque byte slices so that either
// index type can be built over any encodable key, rather than being
// hardcoded to a single Go type the way the teacher's original index
// was.
package entry

import "encoding/binary"

// RID is a record id: the heap-file location an index entry points at.
// Mirrors the original's (page_id, slot_num) pair.
type RID struct {
	PageID int32
	Slot   int32
}

// Entry is one key/value pair stored in a leaf node or hash bucket.
type Entry struct {
	Key   []byte
	Value RID
}

// Comparator orders two encoded keys: negative if a < b, zero if equal,
// positive if a > b. Injected at tree-construction time (spec.md
// §4.4) rather than fixed to one key type.
type Comparator func(a, b []byte) int

// ByteOrderComparator compares keys lexicographically, byte by byte.
// The default comparator for any byte-slice key already encoded in a
// order-preserving form (e.g. big-endian integers, fixed-width strings).
func ByteOrderComparator(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}

// EncodeInt32Key encodes an int32 as a big-endian, order-preserving key.
func EncodeInt32Key(v int32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v)^0x80000000)
	return buf[:]
}

// DecodeInt32Key is the inverse of EncodeInt32Key.
func DecodeInt32Key(b []byte) int32 {
	return int32(binary.BigEndian.Uint32(b) ^ 0x80000000)
}

// MarshalRID encodes an RID into an 8-byte buffer.
func MarshalRID(r RID) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.PageID))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(r.Slot))
	return buf[:]
}

// UnmarshalRID decodes an RID from an 8-byte buffer.
func UnmarshalRID(buf []byte) RID {
	return RID{
		PageID: int32(binary.LittleEndian.Uint32(buf[0:4])),
		Slot:   int32(binary.LittleEndian.Uint32(buf[4:8])),
	}
}
