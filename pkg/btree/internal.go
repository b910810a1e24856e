package btree

import (
	"encoding/binary"

	"coredb/pkg/buffer"
	"coredb/pkg/entry"
	"coredb/pkg/page"
)

// internalView interprets a pinned page's bytes as a B+Tree internal
// node: size (key, child page id) slots. Slot 0's key is unused by
// convention (spec.md §4.4: "slot 0 is the less-than-separator-1
// child"); only its child pointer is meaningful.
type internalView struct {
	view
}

func pageToInternal(pg *page.Page, keySize int) internalView {
	return internalView{view{pg: pg, keySize: keySize}}
}

func initInternal(pg *page.Page, keySize int, parentID, maxSize int32) internalView {
	n := internalView{view{pg: pg, keySize: keySize}}
	n.init(internalNode, pg.ID(), parentID, int(maxSize))
	return n
}

func (n internalView) valueAt(i int) int32 {
	off := n.entryOffset(i) + n.keySize
	return int32(binary.LittleEndian.Uint32(n.data()[off:]))
}

func (n internalView) setValueAt(i int, v int32) {
	off := n.entryOffset(i) + n.keySize
	binary.LittleEndian.PutUint32(n.data()[off:], uint32(v))
}

// FindChild binary-searches the separators for the greatest key <= the
// search key and returns the corresponding child page id.
func (n internalView) FindChild(key []byte, cmp entry.Comparator) int32 {
	lo, hi := 1, n.Size()-1
	if hi < 1 || cmp(key, n.keyAt(1)) < 0 {
		return n.valueAt(0)
	}
	for lo <= hi {
		mid := lo + (hi-lo)/2
		c := cmp(key, n.keyAt(mid))
		switch {
		case c < 0:
			hi = mid - 1
		case c > 0:
			lo = mid + 1
		default:
			return n.valueAt(mid)
		}
	}
	return n.valueAt(hi)
}

// ValueIndex returns the slot index holding child, or -1.
func (n internalView) ValueIndex(child int32) int {
	for i := 0; i < n.Size(); i++ {
		if n.valueAt(i) == child {
			return i
		}
	}
	return -1
}

// InsertAfter inserts (key, child) immediately after slot index (used
// when a node at slot `index` just split and `child` is its new right
// sibling).
func (n internalView) InsertAfter(index int, key []byte, child int32) {
	sz := n.Size()
	for i := sz; i >= index+1; i-- {
		n.setKeyAt(i, n.keyAt(i-1))
		n.setValueAt(i, n.valueAt(i-1))
	}
	n.setKeyAt(index+1, key)
	n.setValueAt(index+1, child)
	n.increaseSize(1)
}

// Delete removes the slot whose separator equals key.
func (n internalView) Delete(key []byte, cmp entry.Comparator) bool {
	i := n.keyIndex(key, cmp)
	if i < 0 {
		return false
	}
	for j := i; j < n.Size()-1; j++ {
		n.setKeyAt(j, n.keyAt(j+1))
		n.setValueAt(j, n.valueAt(j+1))
	}
	n.increaseSize(-1)
	return true
}

// MoveHalfTo moves slots [min_size, max_size+1) into other, reparenting
// every moved child to other's page id.
func (n internalView) MoveHalfTo(other internalView, bpm *buffer.Pool) error {
	start := n.MinSize()
	end := n.MaxSize() + 1
	if end > n.Size() {
		end = n.Size()
	}
	for i := start; i < end; i++ {
		j := i - start
		other.setKeyAt(j, n.keyAt(i))
		other.setValueAt(j, n.valueAt(i))
		other.increaseSize(1)
		if err := reparent(bpm, n.valueAt(i), other.PageID()); err != nil {
			return err
		}
	}
	n.setSize(start)
	return nil
}

// MoveAllFrom appends every slot of other onto n, reparenting every
// moved child (used by Merge).
func (n internalView) MoveAllFrom(other internalView, bpm *buffer.Pool) error {
	base := n.Size()
	for i := 0; i < other.Size(); i++ {
		n.setKeyAt(base+i, other.keyAt(i))
		n.setValueAt(base+i, other.valueAt(i))
		n.increaseSize(1)
		if err := reparent(bpm, other.valueAt(i), n.PageID()); err != nil {
			return err
		}
	}
	other.setSize(0)
	return nil
}

// PopFront removes and returns the first slot, reparenting is the
// caller's responsibility (borrow always immediately re-attaches the
// moved child to its new parent).
func (n internalView) PopFront() ([]byte, int32) {
	key := append([]byte(nil), n.keyAt(0)...)
	val := n.valueAt(0)
	for j := 0; j < n.Size()-1; j++ {
		n.setKeyAt(j, n.keyAt(j+1))
		n.setValueAt(j, n.valueAt(j+1))
	}
	n.increaseSize(-1)
	return key, val
}

// PopBack removes and returns the last slot.
func (n internalView) PopBack() ([]byte, int32) {
	i := n.Size() - 1
	key := append([]byte(nil), n.keyAt(i)...)
	val := n.valueAt(i)
	n.setSize(i)
	return key, val
}

// PushBack appends (key, child) as the new last slot.
func (n internalView) PushBack(key []byte, child int32) {
	i := n.Size()
	n.setKeyAt(i, key)
	n.setValueAt(i, child)
	n.increaseSize(1)
}

// PushFront inserts (key, child) as the new first slot, shifting
// everything else right.
func (n internalView) PushFront(key []byte, child int32) {
	sz := n.Size()
	for i := sz; i > 0; i-- {
		n.setKeyAt(i, n.keyAt(i-1))
		n.setValueAt(i, n.valueAt(i-1))
	}
	n.setKeyAt(0, key)
	n.setValueAt(0, child)
	n.increaseSize(1)
}

// reparent fetches childID and sets its parent pointer to parentID,
// dirtying and unpinning it. Works for either node type since the
// parent field sits at the same header offset.
func reparent(bpm *buffer.Pool, childID, parentID int32) error {
	pg, err := mustFetch(bpm, childID)
	if err != nil {
		return err
	}
	view{pg: pg}.SetParentPageID(parentID)
	bpm.UnpinPage(childID, true)
	return nil
}
