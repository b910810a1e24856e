package btree

import (
	"fmt"
	"io"

	"coredb/pkg/entry"
)

// Print pretty-prints every node of the tree, root first, depth-first.
// Grounded on the teacher's own BTreeIndex.Print/PrintPN debug dump.
func (t *Tree) Print(w io.Writer) {
	if t.IsEmpty() {
		fmt.Fprintln(w, "(empty tree)")
		return
	}
	t.printNode(w, t.rootPageID, "")
}

// PrintPN prints a single node by page id, without descending into its
// children.
func (t *Tree) PrintPN(pageID int32, w io.Writer) error {
	pg, err := mustFetch(t.bpm, pageID)
	if err != nil {
		return err
	}
	defer t.bpm.UnpinPage(pageID, false)

	if nodeTypeOf(pg) == leafNode {
		leaf := pageToLeaf(pg, t.keySize)
		leaf.debugString(w, "leaf")
		fmt.Fprint(w, " keys=[")
		for i := 0; i < leaf.Size(); i++ {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprint(w, entry.DecodeInt32Key(leaf.keyAt(i)))
		}
		fmt.Fprintln(w, "]")
		return nil
	}

	in := pageToInternal(pg, t.keySize)
	in.debugString(w, "internal")
	fmt.Fprint(w, " children=[")
	for i := 0; i < in.Size(); i++ {
		if i > 0 {
			fmt.Fprint(w, ",")
		}
		fmt.Fprint(w, in.valueAt(i))
	}
	fmt.Fprintln(w, "]")
	return nil
}

func (t *Tree) printNode(w io.Writer, pageID int32, indent string) {
	pg, err := mustFetch(t.bpm, pageID)
	if err != nil {
		fmt.Fprintf(w, "%s<error fetching page %d: %v>\n", indent, pageID, err)
		return
	}

	if nodeTypeOf(pg) == leafNode {
		leaf := pageToLeaf(pg, t.keySize)
		fmt.Fprint(w, indent)
		leaf.debugString(w, "leaf")
		fmt.Fprintln(w)
		t.bpm.UnpinPage(pageID, false)
		return
	}

	in := pageToInternal(pg, t.keySize)
	fmt.Fprint(w, indent)
	in.debugString(w, "internal")
	fmt.Fprintln(w)
	children := make([]int32, in.Size())
	for i := range children {
		children[i] = in.valueAt(i)
	}
	t.bpm.UnpinPage(pageID, false)

	for _, child := range children {
		t.printNode(w, child, indent+"  ")
	}
}
