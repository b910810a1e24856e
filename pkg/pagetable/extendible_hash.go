// Package pagetable implements the buffer pool's page table as an
// in-memory extendible hash directory mapping page_id -> frame_id.
//
// The directory holds 2^globalDepth slots, each pointing at a bucket;
// a bucket's localDepth is always <= globalDepth, and every directory
// slot whose low localDepth bits agree shares the same bucket. On
// overflow, the overflowing bucket's local depth grows by one and its
// entries are repartitioned by the bit at that new depth; the
// directory itself only doubles when a bucket's local depth would
// otherwise exceed the global depth. There is no merging: the
// directory only ever grows (spec: "simplification; directory only
// grows").
package pagetable

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash"
)

type entry struct {
	pageID  int32
	frameID int
}

type bucket struct {
	localDepth int
	entries    []entry
}

func newBucket(localDepth int) *bucket {
	return &bucket{localDepth: localDepth}
}

func (b *bucket) find(pageID int32) (int, bool) {
	for _, e := range b.entries {
		if e.pageID == pageID {
			return e.frameID, true
		}
	}
	return 0, false
}

func (b *bucket) full(bucketSize int) bool {
	return len(b.entries) >= bucketSize
}

// insert updates an existing entry in place, or appends if there's
// room. Returns false if the bucket is full and pageID isn't already
// present (the caller must split).
func (b *bucket) insert(pageID int32, frameID int, bucketSize int) bool {
	for i := range b.entries {
		if b.entries[i].pageID == pageID {
			b.entries[i].frameID = frameID
			return true
		}
	}
	if b.full(bucketSize) {
		return false
	}
	b.entries = append(b.entries, entry{pageID, frameID})
	return true
}

func (b *bucket) remove(pageID int32) bool {
	for i, e := range b.entries {
		if e.pageID == pageID {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Table is the extendible hash directory used as the buffer pool's
// page table. All operations take a single mutex.
type Table struct {
	mtx         sync.Mutex
	globalDepth int
	bucketSize  int
	dir         []*bucket
}

// New constructs a page table whose buckets hold up to bucketSize
// entries each. Starts with a single bucket at depth 0.
func New(bucketSize int) *Table {
	return &Table{
		bucketSize: bucketSize,
		dir:        []*bucket{newBucket(0)},
	}
}

func hashPageID(pageID int32) uint64 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(pageID))
	return xxhash.Sum64(buf[:])
}

func (t *Table) indexOf(pageID int32) int {
	mask := (1 << t.globalDepth) - 1
	return int(hashPageID(pageID)) & mask
}

// Find returns the frame id for pageID, if resident.
func (t *Table) Find(pageID int32) (int, bool) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.dir[t.indexOf(pageID)].find(pageID)
}

// Insert maps pageID to frameID, splitting buckets (and doubling the
// directory, if necessary) until the entry fits.
func (t *Table) Insert(pageID int32, frameID int) {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	idx := t.indexOf(pageID)
	for !t.dir[idx].insert(pageID, frameID, t.bucketSize) {
		t.split(idx)
		idx = t.indexOf(pageID)
	}
}

// split grows the bucket at directory slot idx by one local depth,
// doubling the global directory first if the bucket is already at
// global depth, then redistributes its entries between two fresh
// buckets by the bit at the new local depth.
func (t *Table) split(idx int) {
	old := t.dir[idx]
	localDepth := old.localDepth

	if localDepth == t.globalDepth {
		t.globalDepth++
		// Double the directory: each existing slot is duplicated,
		// mirroring the old half onto the new half in order.
		t.dir = append(t.dir, t.dir...)
	}

	newLocalDepth := localDepth + 1
	zero := newBucket(newLocalDepth)
	one := newBucket(newLocalDepth)
	splitBit := uint64(1) << uint(localDepth)
	for _, e := range old.entries {
		if hashPageID(e.pageID)&splitBit != 0 {
			one.entries = append(one.entries, e)
		} else {
			zero.entries = append(zero.entries, e)
		}
	}

	for i, b := range t.dir {
		if b == old {
			if uint64(i)&splitBit != 0 {
				t.dir[i] = one
			} else {
				t.dir[i] = zero
			}
		}
	}
}

// Remove erases pageID's entry, if present. No merging/shrinking is
// ever performed.
func (t *Table) Remove(pageID int32) bool {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.dir[t.indexOf(pageID)].remove(pageID)
}

// GlobalDepth returns the directory's current global depth.
func (t *Table) GlobalDepth() int {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.globalDepth
}

// LocalDepth returns the local depth of the bucket at directory slot i.
func (t *Table) LocalDepth(i int) int {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.dir[i].localDepth
}

// NumBuckets returns the number of distinct buckets currently in the
// directory (slots sharing a bucket count once).
func (t *Table) NumBuckets() int {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	seen := make(map[*bucket]struct{}, len(t.dir))
	for _, b := range t.dir {
		seen[b] = struct{}{}
	}
	return len(seen)
}
