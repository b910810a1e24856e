package concurrency

import (
	"testing"

	"github.com/google/uuid"
)

type fakeTable string

func (f fakeTable) GetName() string { return string(f) }

func TestResourceLockManagerReadersShare(t *testing.T) {
	lm := NewResourceLockManager()
	r := Resource{tableName: "t", key: 1}
	if err := lm.Lock(r, RLock); err != nil {
		t.Fatalf("first RLock: %v", err)
	}
	if err := lm.Lock(r, RLock); err != nil {
		t.Fatalf("second RLock (should not block): %v", err)
	}
	if err := lm.Unlock(r, RLock); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if err := lm.Unlock(r, RLock); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
}

func TestResourceLockManagerUnlockWithoutLockFails(t *testing.T) {
	lm := NewResourceLockManager()
	r := Resource{tableName: "t", key: 1}
	if err := lm.Unlock(r, RLock); err == nil {
		t.Fatal("Unlock on a never-locked resource should error")
	}
}

func TestWaitsForGraphDetectsCycle(t *testing.T) {
	g := NewGraph()
	a := &Transaction{clientID: uuid.New(), lockedResources: make(map[Resource]LockType)}
	b := &Transaction{clientID: uuid.New(), lockedResources: make(map[Resource]LockType)}
	if g.DetectCycle() {
		t.Fatal("empty graph should not report a cycle")
	}
	g.AddEdge(a, b)
	if g.DetectCycle() {
		t.Fatal("a single edge should not be a cycle")
	}
	g.AddEdge(b, a)
	if !g.DetectCycle() {
		t.Fatal("a->b->a should be detected as a cycle")
	}
	g.RemoveEdge(b, a)
	if g.DetectCycle() {
		t.Fatal("cycle should be gone after removing one edge")
	}
}

func TestTransactionManagerLockAndCommit(t *testing.T) {
	tm := NewTransactionManager(NewResourceLockManager())
	client := uuid.New()
	if err := tm.Begin(client); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tm.Begin(client); err == nil {
		t.Fatal("Begin twice for the same client should fail")
	}
	if err := tm.Lock(client, fakeTable("accounts"), 1, WLock); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	// Re-locking the same resource at the same level is a no-op.
	if err := tm.Lock(client, fakeTable("accounts"), 1, WLock); err != nil {
		t.Fatalf("re-Lock same level: %v", err)
	}
	if err := tm.Commit(client); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, found := tm.GetTransaction(client); found {
		t.Fatal("transaction should be gone after Commit")
	}
}

func TestTransactionManagerUpgradeRejected(t *testing.T) {
	tm := NewTransactionManager(NewResourceLockManager())
	client := uuid.New()
	if err := tm.Begin(client); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tm.Lock(client, fakeTable("accounts"), 1, RLock); err != nil {
		t.Fatalf("RLock: %v", err)
	}
	if err := tm.Lock(client, fakeTable("accounts"), 1, WLock); err == nil {
		t.Fatal("upgrading an RLock to a WLock in-place should be rejected")
	}
}

func TestTransactionManagerLockWithoutBeginFails(t *testing.T) {
	tm := NewTransactionManager(NewResourceLockManager())
	if err := tm.Lock(uuid.New(), fakeTable("t"), 1, RLock); err == nil {
		t.Fatal("Lock with no running transaction should fail")
	}
}

func TestTransactionManagerIndependentResourcesDontConflict(t *testing.T) {
	tm := NewTransactionManager(NewResourceLockManager())
	c1, c2 := uuid.New(), uuid.New()
	if err := tm.Begin(c1); err != nil {
		t.Fatalf("Begin c1: %v", err)
	}
	if err := tm.Begin(c2); err != nil {
		t.Fatalf("Begin c2: %v", err)
	}
	if err := tm.Lock(c1, fakeTable("t"), 1, WLock); err != nil {
		t.Fatalf("c1 lock resource 1: %v", err)
	}
	if err := tm.Lock(c2, fakeTable("t"), 2, WLock); err != nil {
		t.Fatalf("c2 lock resource 2 (independent, should not conflict): %v", err)
	}
	if err := tm.Commit(c1); err != nil {
		t.Fatalf("Commit c1: %v", err)
	}
	if err := tm.Commit(c2); err != nil {
		t.Fatalf("Commit c2: %v", err)
	}
}
