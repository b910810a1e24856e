package btree

// Verify walks the whole tree checking testable property 5 (min_size
// <= size <= max_size for every non-root node, correct separator
// bounds) and returns false at the first violation.
func (t *Tree) Verify() (bool, error) {
	if t.IsEmpty() {
		return true, nil
	}
	ok, _, _, err := t.verifyNode(t.rootPageID, true, nil, nil)
	return ok, err
}

// verifyNode returns (isValid, minKey, maxKey, err) for the subtree
// rooted at pageID. lo/hi (nil = unbounded) are the separator bounds
// inherited from the parent.
func (t *Tree) verifyNode(pageID int32, isRoot bool, lo, hi []byte) (bool, []byte, []byte, error) {
	pg, err := mustFetch(t.bpm, pageID)
	if err != nil {
		return false, nil, nil, err
	}
	defer t.bpm.UnpinPage(pageID, false)

	if nodeTypeOf(pg) == leafNode {
		leaf := pageToLeaf(pg, t.keySize)
		n := leaf.Size()
		if !isRoot && (n < leaf.MinSize() || n > leaf.MaxSize()) {
			return false, nil, nil, nil
		}
		for i := 0; i < n-1; i++ {
			if t.cmp(leaf.keyAt(i), leaf.keyAt(i+1)) >= 0 {
				return false, nil, nil, nil
			}
		}
		if n == 0 {
			return true, nil, nil, nil
		}
		if lo != nil && t.cmp(leaf.keyAt(0), lo) < 0 {
			return false, nil, nil, nil
		}
		if hi != nil && t.cmp(leaf.keyAt(n-1), hi) > 0 {
			return false, nil, nil, nil
		}
		return true, leaf.keyAt(0), leaf.keyAt(n - 1), nil
	}

	in := pageToInternal(pg, t.keySize)
	n := in.Size()
	if !isRoot && (n < in.MinSize() || n > in.MaxSize()) {
		return false, nil, nil, nil
	}
	var subtreeLo, subtreeHi []byte
	for i := 0; i < n; i++ {
		var childLo, childHi []byte
		childLo, childHi = lo, hi
		if i > 0 {
			childLo = in.keyAt(i)
		}
		if i < n-1 {
			childHi = in.keyAt(i + 1)
		}
		ok, l, h, err := t.verifyNode(in.valueAt(i), false, childLo, childHi)
		if err != nil {
			return false, nil, nil, err
		}
		if !ok {
			return false, nil, nil, nil
		}
		if i == 0 {
			subtreeLo = l
		}
		if i == n-1 {
			subtreeHi = h
		}
	}
	return true, subtreeLo, subtreeHi, nil
}
