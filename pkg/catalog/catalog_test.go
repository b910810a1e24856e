package catalog

import (
	"fmt"
	"path/filepath"
	"testing"

	"coredb/pkg/buffer"
	"coredb/pkg/disk"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	dm, err := disk.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("disk.Open: %v", err)
	}
	t.Cleanup(func() { dm.Close() })
	bpm := buffer.New(32, dm, 2, 4)
	cat := New(bpm)
	if err := cat.Bootstrap(); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return cat
}

func TestBootstrapIsIdempotent(t *testing.T) {
	cat := newTestCatalog(t)
	if err := cat.Bootstrap(); err != nil {
		t.Fatalf("second Bootstrap: %v", err)
	}
}

func TestInsertLookupUpdate(t *testing.T) {
	cat := newTestCatalog(t)
	if err := cat.InsertRecord("idx_a", 5); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}
	got, err := cat.Lookup("idx_a")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != 5 {
		t.Fatalf("Lookup = %d, want 5", got)
	}
	if err := cat.UpdateRecord("idx_a", 9); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}
	got, err = cat.Lookup("idx_a")
	if err != nil {
		t.Fatalf("Lookup after update: %v", err)
	}
	if got != 9 {
		t.Fatalf("Lookup after update = %d, want 9", got)
	}
}

func TestLookupMissingReturnsErrNotFound(t *testing.T) {
	cat := newTestCatalog(t)
	if _, err := cat.Lookup("nope"); err != ErrNotFound {
		t.Fatalf("Lookup on missing name = %v, want ErrNotFound", err)
	}
}

func TestInsertDuplicateNameFails(t *testing.T) {
	cat := newTestCatalog(t)
	if err := cat.InsertRecord("idx_a", 1); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}
	if err := cat.InsertRecord("idx_a", 2); err == nil {
		t.Fatal("InsertRecord with a name already registered should fail")
	}
}

func TestUpdateMissingReturnsErrNotFound(t *testing.T) {
	cat := newTestCatalog(t)
	if err := cat.UpdateRecord("nope", 1); err != ErrNotFound {
		t.Fatalf("UpdateRecord on missing name = %v, want ErrNotFound", err)
	}
}

// Enough records to overflow a single header page forces a
// continuation page to be allocated and chained; every record must
// remain reachable through Lookup/Names afterward.
func TestInsertManyRecordsChainsContinuationPages(t *testing.T) {
	cat := newTestCatalog(t)
	const n = 300
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("index_number_%d", i)
		if err := cat.InsertRecord(name, int32(i)); err != nil {
			t.Fatalf("InsertRecord(%s): %v", name, err)
		}
	}
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("index_number_%d", i)
		got, err := cat.Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", name, err)
		}
		if got != int32(i) {
			t.Fatalf("Lookup(%s) = %d, want %d", name, got, i)
		}
	}
	names, err := cat.Names()
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	if len(names) != n {
		t.Fatalf("Names returned %d entries, want %d", len(names), n)
	}
}
