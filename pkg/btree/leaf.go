package btree

import (
	"encoding/binary"

	"coredb/pkg/entry"
	"coredb/pkg/page"
)

// leafView interprets a pinned page's bytes as a B+Tree leaf node:
// size key/RID pairs in ascending key order, plus a next-page link to
// the leaf's right sibling.
type leafView struct {
	view
}

func pageToLeaf(pg *page.Page, keySize int) leafView {
	return leafView{view{pg: pg, keySize: keySize}}
}

func initLeaf(pg *page.Page, keySize int, parentID, maxSize int32) leafView {
	l := pageToLeaf(pg, keySize)
	l.init(leafNode, pg.ID(), parentID, int(maxSize))
	return l
}

func (l leafView) NextPageID() int32 {
	return int32(binary.LittleEndian.Uint32(l.data()[offNext:]))
}

func (l leafView) SetNextPageID(id int32) {
	binary.LittleEndian.PutUint32(l.data()[offNext:], uint32(id))
}

func (l leafView) valueAt(i int) entry.RID {
	off := l.entryOffset(i) + l.keySize
	return entry.UnmarshalRID(l.data()[off : off+8])
}

func (l leafView) setValueAt(i int, v entry.RID) {
	off := l.entryOffset(i) + l.keySize
	copy(l.data()[off:off+8], entry.MarshalRID(v))
}

// Get returns the value stored for key, if present.
func (l leafView) Get(key []byte, cmp entry.Comparator) (entry.RID, bool) {
	i := l.keyIndex(key, cmp)
	if i < 0 {
		return entry.RID{}, false
	}
	return l.valueAt(i), true
}

// Insert performs an ordered binary-search insert of (key, value).
// Returns false without modifying the node if key is already present
// (unique keys only, per spec.md §4.4).
func (l leafView) Insert(key []byte, value entry.RID, cmp entry.Comparator) bool {
	n := l.Size()
	lo, hi := 0, n-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		c := cmp(key, l.keyAt(mid))
		switch {
		case c < 0:
			hi = mid - 1
		case c > 0:
			lo = mid + 1
		default:
			return false
		}
	}
	for i := n; i > lo; i-- {
		l.setKeyAt(i, l.keyAt(i-1))
		l.setValueAt(i, l.valueAt(i-1))
	}
	l.setKeyAt(lo, key)
	l.setValueAt(lo, value)
	l.increaseSize(1)
	return true
}

// Delete removes key from the node, if present. Returns false if key
// wasn't found.
func (l leafView) Delete(key []byte, cmp entry.Comparator) bool {
	i := l.keyIndex(key, cmp)
	if i < 0 {
		return false
	}
	for j := i; j < l.Size()-1; j++ {
		l.setKeyAt(j, l.keyAt(j+1))
		l.setValueAt(j, l.valueAt(j+1))
	}
	l.increaseSize(-1)
	return true
}

// MoveHalfTo moves the upper half of entries into other, a freshly
// initialized sibling leaf.
func (l leafView) MoveHalfTo(other leafView) {
	start := l.MaxSize() / 2
	n := l.Size()
	for i := start; i < n; i++ {
		other.setKeyAt(i-start, l.keyAt(i))
		other.setValueAt(i-start, l.valueAt(i))
		other.increaseSize(1)
	}
	l.setSize(start)
}

// MoveAllFrom appends every entry of other onto l (used by Merge).
func (l leafView) MoveAllFrom(other leafView) {
	base := l.Size()
	for i := 0; i < other.Size(); i++ {
		l.setKeyAt(base+i, other.keyAt(i))
		l.setValueAt(base+i, other.valueAt(i))
		l.increaseSize(1)
	}
	other.setSize(0)
}

// PopFront removes and returns the first (key, value) pair.
func (l leafView) PopFront() ([]byte, entry.RID) {
	key := append([]byte(nil), l.keyAt(0)...)
	val := l.valueAt(0)
	l.Delete(key, entry.ByteOrderComparator)
	return key, val
}

// PopBack removes and returns the last (key, value) pair.
func (l leafView) PopBack() ([]byte, entry.RID) {
	i := l.Size() - 1
	key := append([]byte(nil), l.keyAt(i)...)
	val := l.valueAt(i)
	l.setSize(i)
	return key, val
}

// PushBack appends (key, value) as the new last entry, without the
// ordered-insert binary search (caller guarantees ordering — used only
// by borrow, where the pair is already known to belong at an end).
func (l leafView) PushBack(key []byte, value entry.RID) {
	i := l.Size()
	l.setKeyAt(i, key)
	l.setValueAt(i, value)
	l.increaseSize(1)
}

// PushFront inserts (key, value) as the new first entry.
func (l leafView) PushFront(key []byte, value entry.RID) {
	n := l.Size()
	for i := n; i > 0; i-- {
		l.setKeyAt(i, l.keyAt(i-1))
		l.setValueAt(i, l.valueAt(i-1))
	}
	l.setKeyAt(0, key)
	l.setValueAt(0, value)
	l.increaseSize(1)
}
