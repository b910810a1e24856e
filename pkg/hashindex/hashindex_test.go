package hashindex

import (
	"path/filepath"
	"testing"

	"coredb/pkg/buffer"
	"coredb/pkg/catalog"
	"coredb/pkg/disk"
	"coredb/pkg/entry"
)

func newTestTable(t *testing.T, bucketSize int) *Table {
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
	table, err := Open("t", bpm, cat, 4, bucketSize)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return table
}

func hkey(k int32) []byte { return entry.EncodeInt32Key(k) }

func hrid(k int32) entry.RID { return entry.RID{PageID: k, Slot: 0} }

func TestInsertAndFind(t *testing.T) {
	table := newTestTable(t, 2)
	for _, k := range []int32{0, 4, 8, 12, 16} {
		if err := table.Insert(hkey(k), hrid(k)); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	for _, k := range []int32{0, 4, 8, 12, 16} {
		vals, err := table.Find(hkey(k))
		if err != nil {
			t.Fatalf("Find(%d): %v", k, err)
		}
		if len(vals) != 1 || vals[0] != hrid(k) {
			t.Fatalf("Find(%d) = %v, want [%v]", k, vals, hrid(k))
		}
	}
}

func TestFindMissingKey(t *testing.T) {
	table := newTestTable(t, 2)
	vals, err := table.Find(hkey(1))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(vals) != 0 {
		t.Fatalf("Find on an absent key = %v, want empty", vals)
	}
}

// Repeated splits (and cascading splits where a bucket ends up holding
// zero entries to re-seed lowBits from) must leave every inserted key
// findable and the directory's global depth grown past 0.
func TestSplitCascadeKeepsEntriesFindable(t *testing.T) {
	table := newTestTable(t, 2)
	const n = 100
	for i := int32(0); i < n; i++ {
		if err := table.Insert(hkey(i), hrid(i)); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := int32(0); i < n; i++ {
		vals, err := table.Find(hkey(i))
		if err != nil {
			t.Fatalf("Find(%d): %v", i, err)
		}
		if len(vals) != 1 || vals[0] != hrid(i) {
			t.Fatalf("Find(%d) = %v, want [%v]", i, vals, hrid(i))
		}
	}
	depth, err := table.GlobalDepth()
	if err != nil {
		t.Fatalf("GlobalDepth: %v", err)
	}
	if depth == 0 {
		t.Fatal("global depth should have grown past 0 after 100 inserts at bucket size 2")
	}
}

func TestDeleteThenFindMisses(t *testing.T) {
	table := newTestTable(t, 2)
	if err := table.Insert(hkey(1), hrid(1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	found, err := table.Delete(hkey(1))
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !found {
		t.Fatal("Delete should report the key was found")
	}
	vals, err := table.Find(hkey(1))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(vals) != 0 {
		t.Fatalf("Find after Delete = %v, want empty", vals)
	}
}

func TestDeleteMissingKey(t *testing.T) {
	table := newTestTable(t, 2)
	found, err := table.Delete(hkey(1))
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if found {
		t.Fatal("Delete of a never-inserted key should report not found")
	}
}

// All must visit every distinct bucket exactly once even once the
// directory has grown past one bucket.
func TestAllReturnsEveryEntryOnce(t *testing.T) {
	table := newTestTable(t, 2)
	const n = 50
	want := make(map[int32]bool, n)
	for i := int32(0); i < n; i++ {
		if err := table.Insert(hkey(i), hrid(i)); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
		want[i] = true
	}
	keys, vals, err := table.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(keys) != n || len(vals) != n {
		t.Fatalf("All returned %d keys, %d values, want %d each", len(keys), len(vals), n)
	}
	seen := make(map[int32]bool, n)
	for i, k := range keys {
		dk := entry.DecodeInt32Key(k)
		if seen[dk] {
			t.Fatalf("key %d returned more than once by All", dk)
		}
		seen[dk] = true
		if vals[i] != hrid(dk) {
			t.Fatalf("All key %d paired with value %v, want %v", dk, vals[i], hrid(dk))
		}
	}
	for k := range want {
		if !seen[k] {
			t.Fatalf("All missing key %d", k)
		}
	}
}
