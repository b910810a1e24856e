package btree

import (
	"coredb/pkg/entry"
	"coredb/pkg/page"
)

// Iterator walks a range of (key, RID) pairs in ascending key order.
// Unlike the source, IsEnd here uses the conventional past-the-end
// convention (pos == leaf.Size(), not pos == leaf.Size()-1) — spec.md
// §9 flags the source's off-by-one as buggy and replaces it here.
type Iterator struct {
	tree *Tree
	leaf leafView
	pos  int
	done bool
}

// Begin returns an iterator positioned at the first entry, or an
// already-done iterator over an empty tree.
func (t *Tree) Begin() (*Iterator, error) {
	if t.IsEmpty() {
		return &Iterator{tree: t, done: true}, nil
	}
	leaf, err := t.findLeafEdge(true)
	if err != nil {
		return nil, err
	}
	it := &Iterator{tree: t, leaf: leaf, pos: 0}
	it.done = leaf.Size() == 0
	return it, nil
}

// BeginAt returns an iterator positioned at key, or at the first key
// greater than it if key is absent, matching the source's begin(key).
func (t *Tree) BeginAt(key []byte) (*Iterator, error) {
	if t.IsEmpty() {
		return &Iterator{tree: t, done: true}, nil
	}
	leaf, err := t.findLeaf(key)
	if err != nil {
		return nil, err
	}
	idx := leaf.keyIndex(key, t.cmp)
	if idx < 0 {
		for i := 0; i < leaf.Size(); i++ {
			if t.cmp(leaf.keyAt(i), key) > 0 {
				idx = i
				break
			}
		}
		if idx < 0 {
			idx = leaf.Size()
		}
	}
	it := &Iterator{tree: t, leaf: leaf, pos: idx}
	it.done = idx >= leaf.Size()
	if it.done {
		return it.advanceLeaf()
	}
	return it, nil
}

// advanceLeaf unpins the current leaf and follows its next_page_id to
// the following leaf, positioned at slot 0. Returns an iterator marked
// done if there is no next leaf or that leaf is empty; an empty leaf is
// not skipped over.
func (it *Iterator) advanceLeaf() (*Iterator, error) {
	nextID := it.leaf.NextPageID()
	it.tree.bpm.UnpinPage(it.leaf.PageID(), false)
	if nextID == page.InvalidID {
		it.done = true
		return it, nil
	}
	pg, err := mustFetch(it.tree.bpm, nextID)
	if err != nil {
		return nil, err
	}
	it.leaf = pageToLeaf(pg, it.tree.keySize)
	it.pos = 0
	it.done = it.leaf.Size() == 0
	return it, nil
}

// IsEnd reports whether the iterator has exhausted the range.
func (it *Iterator) IsEnd() bool { return it.done }

// Entry returns the current (key, value) pair. Must not be called past
// end.
func (it *Iterator) Entry() ([]byte, entry.RID) {
	return append([]byte(nil), it.leaf.keyAt(it.pos)...), it.leaf.valueAt(it.pos)
}

// Next advances the iterator by one position.
func (it *Iterator) Next() error {
	if it.done {
		return nil
	}
	it.pos++
	if it.pos < it.leaf.Size() {
		return nil
	}
	_, err := it.advanceLeaf()
	return err
}

// Close releases the iterator's pinned leaf, if any. Safe to call more
// than once.
func (it *Iterator) Close() {
	if it.leaf.pg != nil && !it.done {
		it.tree.bpm.UnpinPage(it.leaf.PageID(), false)
		it.done = true
	}
}
