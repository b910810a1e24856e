package btree

import (
	"path/filepath"
	"testing"

	"coredb/pkg/buffer"
	"coredb/pkg/catalog"
	"coredb/pkg/disk"
	"coredb/pkg/entry"
)

func newTestTree(t *testing.T, leafMaxSize, internalMaxSize int) *Tree {
	t.Helper()
	dm, err := disk.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("disk.Open: %v", err)
	}
	t.Cleanup(func() { dm.Close() })
	bpm := buffer.New(32, dm, 2, 4)
	cat := catalog.New(bpm)
	if err := cat.Bootstrap(); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	tree, err := Open("t", bpm, cat, entry.ByteOrderComparator, 4, leafMaxSize, internalMaxSize)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return tree
}

func key(k int32) []byte { return entry.EncodeInt32Key(k) }

func rid(k int32) entry.RID { return entry.RID{PageID: k, Slot: 0} }

func mustInsert(t *testing.T, tree *Tree, k int32) {
	t.Helper()
	ok, err := tree.Insert(key(k), rid(k))
	if err != nil {
		t.Fatalf("Insert(%d): %v", k, err)
	}
	if !ok {
		t.Fatalf("Insert(%d) returned ok=false", k)
	}
}

func mustFind(t *testing.T, tree *Tree, k int32) {
	t.Helper()
	v, ok, err := tree.GetValue(key(k))
	if err != nil {
		t.Fatalf("GetValue(%d): %v", k, err)
	}
	if !ok {
		t.Fatalf("GetValue(%d) missing", k)
	}
	if v != rid(k) {
		t.Fatalf("GetValue(%d) = %v, want %v", k, v, rid(k))
	}
}

// Scenario 4: leaf_max=4, internal_max=3, insert 1..5; the 4th insert
// fills the initial leaf to max_size and splits it into [1,2][3,4] under
// root [3], and 5 then lands in the right leaf: [1,2][3,4,5].
func TestInsertOneToFiveSplitsLeaf(t *testing.T) {
	tree := newTestTree(t, 4, 3)
	for _, k := range []int32{1, 2, 3, 4, 5} {
		mustInsert(t, tree, k)
	}
	for _, k := range []int32{1, 2, 3, 4, 5} {
		mustFind(t, tree, k)
	}
	if tree.IsEmpty() {
		t.Fatal("tree should not be empty after inserts")
	}
	ok, err := tree.Verify()
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("tree structure invalid after splitting leaf")
	}
}

// Scenario 5: from scenario 4, remove 5,4,3 and the tree should
// collapse back to a single leaf [1,2].
func TestRemoveCascadesMergeToSingleLeaf(t *testing.T) {
	tree := newTestTree(t, 4, 3)
	for _, k := range []int32{1, 2, 3, 4, 5} {
		mustInsert(t, tree, k)
	}
	for _, k := range []int32{5, 4, 3} {
		if err := tree.Remove(key(k)); err != nil {
			t.Fatalf("Remove(%d): %v", k, err)
		}
	}
	for _, k := range []int32{1, 2} {
		mustFind(t, tree, k)
	}
	for _, k := range []int32{3, 4, 5} {
		if _, ok, _ := tree.GetValue(key(k)); ok {
			t.Fatalf("key %d should have been removed", k)
		}
	}
	ok, err := tree.Verify()
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("tree structure invalid after remove cascade")
	}
}

// Scenario 6: range iteration over the scenario-4 tree yields exactly
// (1),(2),(3),(4),(5) in order, then IsEnd().
func TestIteratorYieldsEntriesInOrder(t *testing.T) {
	tree := newTestTree(t, 4, 3)
	for _, k := range []int32{1, 2, 3, 4, 5} {
		mustInsert(t, tree, k)
	}
	it, err := tree.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer it.Close()

	var got []int32
	for !it.IsEnd() {
		k, _ := it.Entry()
		got = append(got, entry.DecodeInt32Key(k))
		if err := it.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	want := []int32{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("iterator yielded %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("iterator yielded %v, want %v", got, want)
		}
	}
}

func TestInsertDuplicateKeyFails(t *testing.T) {
	tree := newTestTree(t, 4, 3)
	mustInsert(t, tree, 1)
	ok, err := tree.Insert(key(1), rid(99))
	if err != nil {
		t.Fatalf("Insert duplicate: %v", err)
	}
	if ok {
		t.Fatal("Insert of a duplicate key should return ok=false")
	}
}

func TestInsertManyAndVerify(t *testing.T) {
	tree := newTestTree(t, 4, 4)
	const n = 200
	for i := int32(0); i < n; i++ {
		mustInsert(t, tree, i)
	}
	for i := int32(0); i < n; i++ {
		mustFind(t, tree, i)
	}
	ok, err := tree.Verify()
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("tree structure invalid after many inserts")
	}
}
