package pagetable

import "testing"

func TestFindAfterInsert(t *testing.T) {
	tb := New(2)
	tb.Insert(5, 100)
	frame, ok := tb.Find(5)
	if !ok || frame != 100 {
		t.Fatalf("Find(5) = (%d, %v), want (100, true)", frame, ok)
	}
	if _, ok := tb.Find(6); ok {
		t.Fatal("Find on a page id never inserted should miss")
	}
}

func TestInsertUpdatesExistingFrame(t *testing.T) {
	tb := New(2)
	tb.Insert(5, 100)
	tb.Insert(5, 200)
	frame, ok := tb.Find(5)
	if !ok || frame != 200 {
		t.Fatalf("Find(5) = (%d, %v), want (200, true)", frame, ok)
	}
}

// Overfilling a bucket forces a split; the directory stays structurally
// valid and every previously inserted key remains findable regardless
// of how the splits fell.
func TestSplitGrowsDirectoryAndPreservesEntries(t *testing.T) {
	tb := New(2)
	const n = 64
	for i := int32(0); i < n; i++ {
		tb.Insert(i, int(i))
		if !tb.VerifyDirectory() {
			t.Fatalf("directory invalid after inserting page %d", i)
		}
	}
	for i := int32(0); i < n; i++ {
		frame, ok := tb.Find(i)
		if !ok || frame != int(i) {
			t.Fatalf("Find(%d) = (%d, %v), want (%d, true)", i, frame, ok, i)
		}
	}
	if tb.GlobalDepth() == 0 {
		t.Fatal("global depth should have grown past 0 after 64 inserts with bucket size 2")
	}
	for i := 0; i < (1 << tb.GlobalDepth()); i++ {
		if tb.LocalDepth(i) > tb.GlobalDepth() {
			t.Fatalf("slot %d local depth %d exceeds global depth %d", i, tb.LocalDepth(i), tb.GlobalDepth())
		}
	}
}

func TestRemove(t *testing.T) {
	tb := New(2)
	tb.Insert(5, 100)
	if !tb.Remove(5) {
		t.Fatal("Remove(5) should succeed for a resident page")
	}
	if _, ok := tb.Find(5); ok {
		t.Fatal("Find(5) should miss after Remove")
	}
	if tb.Remove(5) {
		t.Fatal("Remove(5) should fail the second time (already gone)")
	}
}

func TestNumBucketsStartsAtOne(t *testing.T) {
	tb := New(2)
	if tb.NumBuckets() != 1 {
		t.Fatalf("NumBuckets() = %d, want 1 for a fresh table", tb.NumBuckets())
	}
}
