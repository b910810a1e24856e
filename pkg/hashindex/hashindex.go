// Package hashindex implements a disk-resident secondary index using
// extendible hashing, the on-disk sibling of pkg/pagetable's in-memory
// directory (spec.md §9: the same partitioning algorithm, exercised
// twice). Where the page table hashes page ids with xxhash to pick a
// buffer pool frame, this package hashes index keys with murmur3 to
// pick a bucket page, and persists the directory itself as a page
// registered in the shared catalog under the index's name — the
// on-disk counterpart of the teacher's own second hash family
// (hashers.go) and sibling ".meta" bootstrap file, now folded into one
// shared header page mechanism instead of a second file per index.
package hashindex

import (
	"encoding/binary"

	"coredb/pkg/buffer"
	"coredb/pkg/catalog"
	"coredb/pkg/entry"
	"coredb/pkg/page"

	"github.com/spaolacci/murmur3"
)

// Directory page layout:
//
//	[int32 globalDepth][int32 bucketSplitThreshold] then 2^globalDepth * int32 bucket page ids
const (
	dirOffGlobalDepth = 0
	dirOffThreshold   = 4
	dirEntriesStart   = 8
)

// Table is a disk-resident extendible hash index.
type Table struct {
	name      string
	bpm       *buffer.Pool
	cat       *catalog.Catalog
	keySize   int
	threshold int // bucket split trigger (teacher's MAX_BUCKET_SIZE)
	dirPageID int32
}

// Open attaches to (or creates) the named hash index, mirroring
// btree.Open's catalog-driven bootstrap.
func Open(name string, bpm *buffer.Pool, cat *catalog.Catalog, keySize, bucketSize int) (*Table, error) {
	t := &Table{name: name, bpm: bpm, cat: cat, keySize: keySize, threshold: bucketSize, dirPageID: page.InvalidID}

	dirID, err := cat.Lookup(name)
	if err == nil {
		t.dirPageID = dirID
		return t, nil
	}
	if err != catalog.ErrNotFound {
		return nil, err
	}

	// Fresh index: allocate a directory page at global depth 0 with a
	// single bucket.
	bucketID, bucketPg, err := bpm.NewPage()
	if err != nil {
		return nil, err
	}
	initBucket(bucketPg, keySize, 0)
	bpm.UnpinPage(bucketID, true)

	dirID, dirPg, err := bpm.NewPage()
	if err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint32(dirPg.Data()[dirOffGlobalDepth:], 0)
	binary.LittleEndian.PutUint32(dirPg.Data()[dirOffThreshold:], uint32(bucketSize))
	binary.LittleEndian.PutUint32(dirPg.Data()[dirEntriesStart:], uint32(bucketID))
	bpm.UnpinPage(dirID, true)

	if err := cat.InsertRecord(name, dirID); err != nil {
		return nil, err
	}
	t.dirPageID = dirID
	return t, nil
}

func (t *Table) hash(key []byte, depth int32) uint32 {
	if depth == 0 {
		return 0
	}
	full := murmur3.Sum32(key)
	mask := uint32(1)<<uint(depth) - 1
	return full & mask
}

func (t *Table) globalDepth(dirData []byte) int32 {
	return int32(binary.LittleEndian.Uint32(dirData[dirOffGlobalDepth:]))
}

func (t *Table) bucketIDAt(dirData []byte, slot uint32) int32 {
	off := dirEntriesStart + int(slot)*4
	return int32(binary.LittleEndian.Uint32(dirData[off:]))
}

func (t *Table) setBucketIDAt(dirData []byte, slot uint32, bucketID int32) {
	off := dirEntriesStart + int(slot)*4
	binary.LittleEndian.PutUint32(dirData[off:], uint32(bucketID))
}

// Find returns every value stored for key.
func (t *Table) Find(key []byte) ([]entry.RID, error) {
	dirPg, err := mustFetch(t.bpm, t.dirPageID)
	if err != nil {
		return nil, err
	}
	depth := t.globalDepth(dirPg.Data())
	slot := t.hash(key, depth)
	bucketID := t.bucketIDAt(dirPg.Data(), slot)
	t.bpm.UnpinPage(t.dirPageID, false)

	bucketPg, err := mustFetch(t.bpm, bucketID)
	if err != nil {
		return nil, err
	}
	defer t.bpm.UnpinPage(bucketID, false)
	return pageToBucket(bucketPg, t.keySize).Find(key), nil
}

// Insert adds (key, value), splitting the target bucket (and, if
// necessary, doubling the directory) once it reaches the split
// threshold of bucketSize entries.
func (t *Table) Insert(key []byte, value entry.RID) error {
	dirPg, err := mustFetch(t.bpm, t.dirPageID)
	if err != nil {
		return err
	}
	depth := t.globalDepth(dirPg.Data())
	slot := t.hash(key, depth)
	bucketID := t.bucketIDAt(dirPg.Data(), slot)
	t.bpm.UnpinPage(t.dirPageID, true)

	bucketPg, err := mustFetch(t.bpm, bucketID)
	if err != nil {
		return err
	}
	b := pageToBucket(bucketPg, t.keySize)
	overflow := b.Insert(key, value, t.threshold)
	t.bpm.UnpinPage(bucketID, true)
	if !overflow {
		return nil
	}
	return t.split(bucketID)
}

// split grows the overflowing bucket's local depth by one (doubling
// the directory first if needed) and redistributes its entries
// between it and a freshly allocated sibling, exactly mirroring
// pkg/pagetable.Table.split but against on-disk pages.
func (t *Table) split(bucketID int32) error {
	bucketPg, err := mustFetch(t.bpm, bucketID)
	if err != nil {
		return err
	}
	b := pageToBucket(bucketPg, t.keySize)
	localDepth := b.LocalDepth()
	keys, vals := b.entries()

	dirPg, err := mustFetch(t.bpm, t.dirPageID)
	if err != nil {
		t.bpm.UnpinPage(bucketID, true)
		return err
	}
	globalDepth := t.globalDepth(dirPg.Data())

	if localDepth == globalDepth {
		globalDepth++
		binary.LittleEndian.PutUint32(dirPg.Data()[dirOffGlobalDepth:], uint32(globalDepth))
		oldCount := uint32(1) << uint(globalDepth-1)
		for i := uint32(0); i < oldCount; i++ {
			t.setBucketIDAt(dirPg.Data(), oldCount+i, t.bucketIDAt(dirPg.Data(), i))
		}
	}

	mask := uint32(1)<<uint(localDepth) - 1
	numSlots := uint32(1) << uint(globalDepth)
	var lowBits uint32
	for slot := uint32(0); slot < numSlots; slot++ {
		if t.bucketIDAt(dirPg.Data(), slot) == bucketID {
			lowBits = slot & mask
			break
		}
	}

	newDepth := localDepth + 1
	newBucketID, newBucketPg, err := t.bpm.NewPage()
	if err != nil {
		t.bpm.UnpinPage(bucketID, true)
		t.bpm.UnpinPage(t.dirPageID, true)
		return err
	}
	newBucket := initBucket(newBucketPg, t.keySize, newDepth)
	b.setLocalDepth(newDepth)
	b.setNumKeys(0)

	splitBit := uint32(1) << uint(localDepth)
	for i, k := range keys {
		if t.hash(k, newDepth)&splitBit != 0 {
			newBucket.Insert(k, vals[i], t.threshold+1)
		} else {
			b.Insert(k, vals[i], t.threshold+1)
		}
	}

	for slot := uint32(0); slot < numSlots; slot++ {
		if slot&mask != lowBits {
			continue
		}
		if slot&splitBit != 0 {
			t.setBucketIDAt(dirPg.Data(), slot, newBucketID)
		} else {
			t.setBucketIDAt(dirPg.Data(), slot, bucketID)
		}
	}

	t.bpm.UnpinPage(bucketID, true)
	t.bpm.UnpinPage(newBucketID, true)
	t.bpm.UnpinPage(t.dirPageID, true)

	if b.NumKeys() >= t.threshold {
		return t.split(bucketID)
	}
	if newBucket.NumKeys() >= t.threshold {
		return t.split(newBucketID)
	}
	return nil
}

// Delete removes one entry matching key.
func (t *Table) Delete(key []byte) (bool, error) {
	dirPg, err := mustFetch(t.bpm, t.dirPageID)
	if err != nil {
		return false, err
	}
	depth := t.globalDepth(dirPg.Data())
	slot := t.hash(key, depth)
	bucketID := t.bucketIDAt(dirPg.Data(), slot)
	t.bpm.UnpinPage(t.dirPageID, false)

	bucketPg, err := mustFetch(t.bpm, bucketID)
	if err != nil {
		return false, err
	}
	found := pageToBucket(bucketPg, t.keySize).Delete(key)
	t.bpm.UnpinPage(bucketID, true)
	return found, nil
}

// All returns every (key, value) pair in the table, visiting each
// distinct bucket page exactly once regardless of how many directory
// slots point at it.
func (t *Table) All() ([][]byte, []entry.RID, error) {
	dirPg, err := mustFetch(t.bpm, t.dirPageID)
	if err != nil {
		return nil, nil, err
	}
	depth := t.globalDepth(dirPg.Data())
	numSlots := uint32(1) << uint(depth)
	seen := make(map[int32]bool)
	var keys [][]byte
	var vals []entry.RID
	for slot := uint32(0); slot < numSlots; slot++ {
		bucketID := t.bucketIDAt(dirPg.Data(), slot)
		if seen[bucketID] {
			continue
		}
		seen[bucketID] = true
		bucketPg, err := mustFetch(t.bpm, bucketID)
		if err != nil {
			t.bpm.UnpinPage(t.dirPageID, false)
			return nil, nil, err
		}
		bk, bv := pageToBucket(bucketPg, t.keySize).entries()
		keys = append(keys, bk...)
		vals = append(vals, bv...)
		t.bpm.UnpinPage(bucketID, false)
	}
	t.bpm.UnpinPage(t.dirPageID, false)
	return keys, vals, nil
}

// GlobalDepth returns the directory's current global depth.
func (t *Table) GlobalDepth() (int32, error) {
	dirPg, err := mustFetch(t.bpm, t.dirPageID)
	if err != nil {
		return 0, err
	}
	defer t.bpm.UnpinPage(t.dirPageID, false)
	return t.globalDepth(dirPg.Data()), nil
}

func mustFetch(bpm *buffer.Pool, id int32) (*page.Page, error) {
	return bpm.FetchPage(id)
}
