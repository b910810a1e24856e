package hashindex

import (
	"encoding/binary"

	"coredb/pkg/entry"
	"coredb/pkg/page"
)

// Bucket header layout:
//
//	[int32 localDepth][int32 numKeys] then numKeys * (key[keySize] + RID[8])
const (
	bucketOffLocalDepth = 0
	bucketOffNumKeys    = 4
	bucketHeaderSize    = 8
)

type bucket struct {
	pg      *page.Page
	keySize int
}

func pageToBucket(pg *page.Page, keySize int) bucket {
	return bucket{pg: pg, keySize: keySize}
}

func initBucket(pg *page.Page, keySize int, localDepth int32) bucket {
	b := bucket{pg: pg, keySize: keySize}
	for i := range b.pg.Data()[:bucketHeaderSize] {
		b.pg.Data()[i] = 0
	}
	b.setLocalDepth(localDepth)
	b.setNumKeys(0)
	return b
}

func (b bucket) data() []byte { return b.pg.Data() }

func (b bucket) LocalDepth() int32 {
	return int32(binary.LittleEndian.Uint32(b.data()[bucketOffLocalDepth:]))
}

func (b bucket) setLocalDepth(d int32) {
	binary.LittleEndian.PutUint32(b.data()[bucketOffLocalDepth:], uint32(d))
}

func (b bucket) NumKeys() int {
	return int(int32(binary.LittleEndian.Uint32(b.data()[bucketOffNumKeys:])))
}

func (b bucket) setNumKeys(n int) {
	binary.LittleEndian.PutUint32(b.data()[bucketOffNumKeys:], uint32(int32(n)))
}

func (b bucket) entrySize() int { return b.keySize + 8 }

func (b bucket) entryOffset(i int) int { return bucketHeaderSize + i*b.entrySize() }

func (b bucket) keyAt(i int) []byte {
	off := b.entryOffset(i)
	return b.data()[off : off+b.keySize]
}

func (b bucket) valueAt(i int) entry.RID {
	off := b.entryOffset(i) + b.keySize
	return entry.UnmarshalRID(b.data()[off : off+8])
}

func (b bucket) setEntryAt(i int, key []byte, value entry.RID) {
	off := b.entryOffset(i)
	copy(b.data()[off:off+b.keySize], key)
	copy(b.data()[off+b.keySize:off+b.keySize+8], entry.MarshalRID(value))
}

// Find returns every value stored for key (duplicates allowed, as in
// the teacher's own bucket.Find, which permits repeated keys).
func (b bucket) Find(key []byte) []entry.RID {
	var out []entry.RID
	for i := 0; i < b.NumKeys(); i++ {
		if entry.ByteOrderComparator(b.keyAt(i), key) == 0 {
			out = append(out, b.valueAt(i))
		}
	}
	return out
}

// maxKeys returns how many entries fit in one page's worth of bucket
// storage.
func (b bucket) maxKeys() int {
	return (page.Size - bucketHeaderSize) / b.entrySize()
}

// Insert appends (key, value) unconditionally and reports whether the
// bucket has now reached its configured split threshold.
func (b bucket) Insert(key []byte, value entry.RID, splitThreshold int) bool {
	i := b.NumKeys()
	b.setEntryAt(i, key, value)
	b.setNumKeys(i + 1)
	return b.NumKeys() >= splitThreshold
}

// Delete removes the first entry matching (key, value's RID is
// ignored; first match wins, mirroring the teacher's single-entry
// Delete). Returns false if key wasn't present.
func (b bucket) Delete(key []byte) bool {
	for i := 0; i < b.NumKeys(); i++ {
		if entry.ByteOrderComparator(b.keyAt(i), key) == 0 {
			last := b.NumKeys() - 1
			b.setEntryAt(i, b.keyAt(last), b.valueAt(last))
			b.setNumKeys(last)
			return true
		}
	}
	return false
}

// entries returns every (key, value) pair currently stored, used by
// split to redistribute and by Select to dump the whole table.
func (b bucket) entries() ([][]byte, []entry.RID) {
	n := b.NumKeys()
	keys := make([][]byte, n)
	vals := make([]entry.RID, n)
	for i := 0; i < n; i++ {
		keys[i] = append([]byte(nil), b.keyAt(i)...)
		vals[i] = b.valueAt(i)
	}
	return keys, vals
}
