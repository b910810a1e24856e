// Package btree implements a disk-resident B+Tree index over the
// buffer pool: fixed-width keys ordered by an injected comparator,
// RID-valued leaves, and page-id-valued internal nodes. Every node
// lives in exactly one pinned page.Page; there are no in-memory
// pointers between nodes, only page ids, reparented explicitly on
// every split, merge, and borrow.
package btree

import (
	"encoding/binary"
	"fmt"
	"io"

	"coredb/pkg/buffer"
	"coredb/pkg/entry"
	"coredb/pkg/page"
)

// nodeType tags a page as a leaf or internal B+Tree node.
type nodeType byte

const (
	internalNode nodeType = 0
	leafNode     nodeType = 1
)

// Fixed header layout shared by leaf and internal pages. Kept wide
// enough for both; internal pages simply never touch the next-page
// field and leaf pages never touch it as a child pointer.
const (
	offType     = 0
	offParent   = offType + 1
	offSize     = offParent + 4
	offMaxSize  = offSize + 4
	offNext     = offMaxSize + 4 // leaf: next leaf page id; internal: unused
	headerSize  = offNext + 4
)

// view is the shared header accessor embedded in both leafView and
// internalView. It never outlives the pin on the underlying page.
type view struct {
	pg      *page.Page
	keySize int
}

func (v view) data() []byte { return v.pg.Data() }

func (v view) PageID() int32 { return v.pg.ID() }

func (v view) Type() nodeType { return nodeType(v.data()[offType]) }

func (v view) IsLeaf() bool { return v.Type() == leafNode }

func (v view) ParentPageID() int32 {
	return int32(binary.LittleEndian.Uint32(v.data()[offParent:]))
}

func (v view) SetParentPageID(id int32) {
	binary.LittleEndian.PutUint32(v.data()[offParent:], uint32(id))
}

func (v view) Size() int {
	return int(int32(binary.LittleEndian.Uint32(v.data()[offSize:])))
}

func (v view) setSize(n int) {
	binary.LittleEndian.PutUint32(v.data()[offSize:], uint32(int32(n)))
}

func (v view) increaseSize(delta int) { v.setSize(v.Size() + delta) }

func (v view) MaxSize() int {
	return int(int32(binary.LittleEndian.Uint32(v.data()[offMaxSize:])))
}

func (v view) setMaxSize(n int) {
	binary.LittleEndian.PutUint32(v.data()[offMaxSize:], uint32(int32(n)))
}

// MinSize is ceil(max/2) for internal nodes and ceil((max-1)/2) for
// leaves (spec.md §4.4: "implementation may pick either consistent
// convention").
func (v view) MinSize() int {
	if v.IsLeaf() {
		return (v.MaxSize() - 1 + 1) / 2
	}
	return (v.MaxSize() + 1) / 2
}

func (v view) init(t nodeType, pageID, parentID int32, maxSize int) {
	for i := range v.data()[:headerSize] {
		v.data()[i] = 0
	}
	v.data()[offType] = byte(t)
	v.SetParentPageID(parentID)
	v.setSize(0)
	v.setMaxSize(maxSize)
	if t == leafNode {
		invalidID := page.InvalidID
		binary.LittleEndian.PutUint32(v.data()[offNext:], uint32(invalidID))
	}
}

// entrySize returns the fixed slot width for this node's array: leaf
// slots hold key+RID, internal slots hold key+child page id.
func (v view) entrySize() int {
	if v.IsLeaf() {
		return v.keySize + 8
	}
	return v.keySize + 4
}

func (v view) entryOffset(i int) int {
	return headerSize + i*v.entrySize()
}

func (v view) keyAt(i int) []byte {
	off := v.entryOffset(i)
	return v.data()[off : off+v.keySize]
}

func (v view) setKeyAt(i int, key []byte) {
	off := v.entryOffset(i)
	copy(v.data()[off:off+v.keySize], key)
}

// keyIndex returns the index of key in this node's array using cmp, or
// -1 if absent. Mirrors the source's KeyIndex (linear scan; node sizes
// are small teaching-database constants, so no need for binary search
// here beyond what find_child below already does).
func (v view) keyIndex(key []byte, cmp entry.Comparator) int {
	for i := 0; i < v.Size(); i++ {
		if cmp(v.keyAt(i), key) == 0 {
			return i
		}
	}
	return -1
}

func nodeTypeOf(pg *page.Page) nodeType {
	return nodeType(pg.Data()[offType])
}

// debugString writes a one-line human summary of the node, used by
// Print/PrintPN.
func (v view) debugString(w io.Writer, label string) {
	fmt.Fprintf(w, "%s(page=%d parent=%d size=%d/%d)", label, v.PageID(), v.ParentPageID(), v.Size(), v.MaxSize())
}

// mustFetch is a small convenience wrapper used throughout the tree:
// every traversal step fetches a page from the pool and must check for
// exhaustion.
func mustFetch(bpm *buffer.Pool, id int32) (*page.Page, error) {
	pg, err := bpm.FetchPage(id)
	if err != nil {
		return nil, fmt.Errorf("btree: fetch page %d: %w", id, err)
	}
	return pg, nil
}
