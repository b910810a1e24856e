package btree

import (
	"coredb/pkg/buffer"
	"coredb/pkg/catalog"
	"coredb/pkg/entry"
	"coredb/pkg/page"
)

// Tree is a disk-resident B+Tree index, one per (table, key) pair,
// sharing one buffer pool and catalog header page with every other
// index in the database. Not safe for concurrent use without an
// external latch (spec.md §9: "no latch-coupling ... left as future
// work").
type Tree struct {
	name            string
	bpm             *buffer.Pool
	cat             *catalog.Catalog
	cmp             entry.Comparator
	keySize         int
	leafMaxSize     int
	internalMaxSize int
	rootPageID      int32
}

// Open attaches to (or creates) the named index. If the catalog
// already has a root_page_id for name, the tree resumes from it;
// otherwise it starts empty and registers itself lazily on first
// insert, exactly like the source's IsEmpty()-gated root allocation.
func Open(name string, bpm *buffer.Pool, cat *catalog.Catalog, cmp entry.Comparator, keySize, leafMaxSize, internalMaxSize int) (*Tree, error) {
	t := &Tree{
		name:            name,
		bpm:             bpm,
		cat:             cat,
		cmp:             cmp,
		keySize:         keySize,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
		rootPageID:      page.InvalidID,
	}
	rootID, err := cat.Lookup(name)
	if err == nil {
		t.rootPageID = rootID
	} else if err != catalog.ErrNotFound {
		return nil, err
	}
	return t, nil
}

// IsEmpty reports whether the tree has no root yet.
func (t *Tree) IsEmpty() bool { return t.rootPageID == page.InvalidID }

// RootPageID returns the tree's current root page id.
func (t *Tree) RootPageID() int32 { return t.rootPageID }

func (t *Tree) updateRootPageID(insertRecord bool) error {
	if insertRecord {
		return t.cat.InsertRecord(t.name, t.rootPageID)
	}
	return t.cat.UpdateRecord(t.name, t.rootPageID)
}

// findLeaf descends from the root to the leaf that would contain key,
// unpinning every internal node visited along the way and returning
// the terminal leaf still pinned (spec.md §4.4 find_leaf).
func (t *Tree) findLeaf(key []byte) (leafView, error) {
	curID := t.rootPageID
	pg, err := mustFetch(t.bpm, curID)
	if err != nil {
		return leafView{}, err
	}
	for nodeTypeOf(pg) != leafNode {
		in := pageToInternal(pg, t.keySize)
		nextID := in.FindChild(key, t.cmp)
		t.bpm.UnpinPage(curID, false)
		curID = nextID
		pg, err = mustFetch(t.bpm, curID)
		if err != nil {
			return leafView{}, err
		}
	}
	return pageToLeaf(pg, t.keySize), nil
}

// findLeafEdge descends to the leftmost (left=true) or rightmost
// (left=false) leaf, used by Begin/End.
func (t *Tree) findLeafEdge(left bool) (leafView, error) {
	curID := t.rootPageID
	pg, err := mustFetch(t.bpm, curID)
	if err != nil {
		return leafView{}, err
	}
	for nodeTypeOf(pg) != leafNode {
		in := pageToInternal(pg, t.keySize)
		var nextID int32
		if left {
			nextID = in.valueAt(0)
		} else {
			nextID = in.valueAt(in.Size() - 1)
		}
		t.bpm.UnpinPage(curID, false)
		curID = nextID
		pg, err = mustFetch(t.bpm, curID)
		if err != nil {
			return leafView{}, err
		}
	}
	return pageToLeaf(pg, t.keySize), nil
}

// GetValue performs a point lookup.
func (t *Tree) GetValue(key []byte) (entry.RID, bool, error) {
	if t.IsEmpty() {
		return entry.RID{}, false, nil
	}
	leaf, err := t.findLeaf(key)
	if err != nil {
		return entry.RID{}, false, err
	}
	val, ok := leaf.Get(key, t.cmp)
	t.bpm.UnpinPage(leaf.PageID(), false)
	return val, ok, nil
}

// Insert adds (key, value). Returns false if key is already present.
func (t *Tree) Insert(key []byte, value entry.RID) (bool, error) {
	if t.IsEmpty() {
		id, pg, err := t.bpm.NewPage()
		if err != nil {
			return false, err
		}
		t.rootPageID = id
		root := initLeaf(pg, t.keySize, page.InvalidID, int32(t.leafMaxSize))
		if err := t.updateRootPageID(true); err != nil {
			t.bpm.UnpinPage(id, true)
			return false, err
		}
		ok := root.Insert(key, value, t.cmp)
		t.bpm.UnpinPage(id, true)
		return ok, nil
	}

	leaf, err := t.findLeaf(key)
	if err != nil {
		return false, err
	}
	ok := leaf.Insert(key, value, t.cmp)
	if ok && leaf.Size() == leaf.MaxSize() {
		if err := t.splitLeaf(leaf); err != nil {
			t.bpm.UnpinPage(leaf.PageID(), true)
			return false, err
		}
	}
	t.bpm.UnpinPage(leaf.PageID(), true)
	return ok, nil
}

// splitLeaf allocates a new leaf, moves the upper half of origin's
// entries into it, links the sibling chain, and pushes the new
// separator up via insertIntoParent (spec.md §4.4 "Split (leaf)").
func (t *Tree) splitLeaf(origin leafView) error {
	newID, newPg, err := t.bpm.NewPage()
	if err != nil {
		return err
	}
	defer t.bpm.UnpinPage(newID, true)

	sibling := initLeaf(newPg, t.keySize, origin.ParentPageID(), int32(origin.MaxSize()))
	origin.MoveHalfTo(sibling)
	sibling.SetNextPageID(origin.NextPageID())
	origin.SetNextPageID(sibling.PageID())

	sepKey := append([]byte(nil), sibling.keyAt(0)...)
	return t.insertIntoParent(origin.view, sepKey, sibling.view)
}

// splitInternal is splitLeaf's counterpart for internal nodes
// (spec.md §4.4 "Split (internal)").
func (t *Tree) splitInternal(origin internalView) error {
	newID, newPg, err := t.bpm.NewPage()
	if err != nil {
		return err
	}
	defer t.bpm.UnpinPage(newID, true)

	sibling := initInternal(newPg, t.keySize, origin.ParentPageID(), int32(origin.MaxSize()))
	sepKey := append([]byte(nil), origin.keyAt(origin.MinSize())...)
	if err := origin.MoveHalfTo(sibling, t.bpm); err != nil {
		return err
	}
	return t.insertIntoParent(origin.view, sepKey, sibling.view)
}

// insertIntoParent is shared by both split paths. If origin is the
// root, a fresh internal root is allocated above it; otherwise the
// separator is inserted into origin's existing parent, splitting that
// parent in turn if it overflows.
func (t *Tree) insertIntoParent(origin view, sepKey []byte, newNode view) error {
	if origin.ParentPageID() == page.InvalidID {
		rootID, rootPg, err := t.bpm.NewPage()
		if err != nil {
			return err
		}
		root := initInternal(rootPg, t.keySize, page.InvalidID, int32(t.internalMaxSize))
		root.setValueAt(0, origin.PageID())
		root.setKeyAt(1, sepKey)
		root.setValueAt(1, newNode.PageID())
		root.setSize(2)

		t.rootPageID = rootID
		origin.SetParentPageID(rootID)
		newNode.SetParentPageID(rootID)
		t.bpm.UnpinPage(rootID, true)
		return t.updateRootPageID(false)
	}

	parentID := origin.ParentPageID()
	parentPg, err := mustFetch(t.bpm, parentID)
	if err != nil {
		return err
	}
	parent := pageToInternal(parentPg, t.keySize)
	idx := parent.ValueIndex(origin.PageID())
	parent.InsertAfter(idx, sepKey, newNode.PageID())
	newNode.SetParentPageID(parentID)

	var splitErr error
	if parent.Size() == parent.MaxSize()+1 {
		splitErr = t.splitInternal(parent)
	}
	t.bpm.UnpinPage(parentID, true)
	return splitErr
}

// Remove deletes key, rebalancing (borrow or merge) as needed.
func (t *Tree) Remove(key []byte) error {
	if t.IsEmpty() {
		return nil
	}
	leaf, err := t.findLeaf(key)
	if err != nil {
		return err
	}
	err = t.deleteEntryLeaf(key, leaf)
	t.bpm.UnpinPage(leaf.PageID(), true)
	return err
}

// deleteEntryLeaf implements delete_entry for a leaf target.
func (t *Tree) deleteEntryLeaf(key []byte, node leafView) error {
	node.Delete(key, t.cmp)
	if node.ParentPageID() == page.InvalidID {
		return nil // root leaf: never rebalanced below min_size.
	}
	if node.Size() >= node.MinSize() {
		return nil
	}
	return t.rebalanceLeaf(node)
}

// deleteEntryInternal implements delete_entry for an internal target,
// including the "promote only child to root" case.
func (t *Tree) deleteEntryInternal(key []byte, node internalView) error {
	node.Delete(key, t.cmp)
	if node.ParentPageID() == page.InvalidID {
		if node.Size() == 1 {
			newRootID := node.valueAt(0)
			t.rootPageID = newRootID
			newRootPg, err := mustFetch(t.bpm, newRootID)
			if err != nil {
				return err
			}
			view{pg: newRootPg}.SetParentPageID(page.InvalidID)
			t.bpm.UnpinPage(newRootID, true)
			return t.updateRootPageID(false)
		}
		return nil
	}
	if node.Size() >= node.MinSize() {
		return nil
	}
	return t.rebalanceInternal(node)
}

// siblingIDs fetches node's parent and returns it, pinned, with the page
// ids of node's left and right siblings (by parent slot order);
// page.InvalidID marks an end of the parent's child array. The siblings
// themselves are not fetched. Caller must unpin the parent.
func (t *Tree) siblingIDs(node view) (parent internalView, leftID, rightID int32, err error) {
	parentPg, err := mustFetch(t.bpm, node.ParentPageID())
	if err != nil {
		return internalView{}, 0, 0, err
	}
	parent = pageToInternal(parentPg, t.keySize)
	idx := parent.ValueIndex(node.PageID())
	leftID, rightID = page.InvalidID, page.InvalidID
	if idx > 0 {
		leftID = parent.valueAt(idx - 1)
	}
	if idx < parent.Size()-1 {
		rightID = parent.valueAt(idx + 1)
	}
	return parent, leftID, rightID, nil
}

func (t *Tree) rebalanceLeaf(node leafView) error {
	parent, leftID, rightID, err := t.siblingIDs(node.view)
	if err != nil {
		return err
	}
	defer t.bpm.UnpinPage(parent.PageID(), true)

	maxSize := node.MaxSize()

	if leftID != page.InvalidID {
		leftPg, err := mustFetch(t.bpm, leftID)
		if err != nil {
			return err
		}
		left := pageToLeaf(leftPg, t.keySize)
		if left.Size()+node.Size() < maxSize {
			err = t.mergeLeaf(left, node, parent)
		} else {
			t.borrowLeaf(left, node, parent)
		}
		t.bpm.UnpinPage(leftID, true)
		return err
	}
	if rightID != page.InvalidID {
		rightPg, err := mustFetch(t.bpm, rightID)
		if err != nil {
			return err
		}
		right := pageToLeaf(rightPg, t.keySize)
		if node.Size()+right.Size() < maxSize {
			err = t.mergeLeaf(node, right, parent)
		} else {
			t.borrowLeaf(node, right, parent)
		}
		t.bpm.UnpinPage(rightID, true)
		return err
	}
	return nil
}

func (t *Tree) rebalanceInternal(node internalView) error {
	parent, leftID, rightID, err := t.siblingIDs(node.view)
	if err != nil {
		return err
	}
	defer t.bpm.UnpinPage(parent.PageID(), true)

	maxSize := node.MaxSize()

	if leftID != page.InvalidID {
		leftPg, err := mustFetch(t.bpm, leftID)
		if err != nil {
			return err
		}
		left := pageToInternal(leftPg, t.keySize)
		if left.Size()+node.Size() < maxSize {
			err = t.mergeInternal(left, node, parent)
		} else {
			err = t.borrowInternal(left, node, parent)
		}
		t.bpm.UnpinPage(leftID, true)
		return err
	}
	if rightID != page.InvalidID {
		rightPg, err := mustFetch(t.bpm, rightID)
		if err != nil {
			return err
		}
		right := pageToInternal(rightPg, t.keySize)
		if node.Size()+right.Size() < maxSize {
			err = t.mergeInternal(node, right, parent)
		} else {
			err = t.borrowInternal(node, right, parent)
		}
		t.bpm.UnpinPage(rightID, true)
		return err
	}
	return nil
}

// borrowLeaf moves one boundary pair between left and right, whichever
// is underflowing, and fixes the parent separator (spec.md §4.4
// Borrow, leaf case).
func (t *Tree) borrowLeaf(left, right leafView, parent internalView) {
	idx := parent.ValueIndex(right.PageID())
	if left.Size() < left.MinSize() {
		key, val := right.PopFront()
		left.PushBack(key, val)
		parent.setKeyAt(idx, right.keyAt(0))
	} else {
		key, val := left.PopBack()
		right.PushFront(key, val)
		parent.setKeyAt(idx, key)
	}
}

// borrowInternal is borrowLeaf's counterpart for internal nodes,
// reparenting the moved child.
func (t *Tree) borrowInternal(left, right internalView, parent internalView) error {
	idx := parent.ValueIndex(right.PageID())
	if left.Size() < left.MinSize() {
		key, child := right.PopFront()
		if err := reparent(t.bpm, child, left.PageID()); err != nil {
			return err
		}
		left.PushBack(key, child)
		parent.setKeyAt(idx, right.keyAt(0))
	} else {
		key, child := left.PopBack()
		right.PushFront(key, child)
		if err := reparent(t.bpm, child, right.PageID()); err != nil {
			return err
		}
		parent.setKeyAt(idx, key)
	}
	return nil
}

// mergeLeaf appends right's entries onto left, unlinks right from the
// sibling chain, and recursively deletes the separator from the parent
// (spec.md §4.4 Merge).
// The emptied right page is left allocated but unreferenced: neither
// the source nor this port ever reclaims page ids on merge (spec.md
// §9, "next_page_id ... never reused even after delete_page").
func (t *Tree) mergeLeaf(left, right leafView, parent internalView) error {
	left.MoveAllFrom(right)
	left.SetNextPageID(right.NextPageID())
	idx := parent.ValueIndex(right.PageID())
	sep := append([]byte(nil), parent.keyAt(idx)...)
	return t.deleteEntryInternal(sep, parent)
}

// mergeInternal is mergeLeaf's counterpart for internal nodes.
func (t *Tree) mergeInternal(left, right internalView, parent internalView) error {
	if err := left.MoveAllFrom(right, t.bpm); err != nil {
		return err
	}
	idx := parent.ValueIndex(right.PageID())
	sep := append([]byte(nil), parent.keyAt(idx)...)
	return t.deleteEntryInternal(sep, parent)
}
