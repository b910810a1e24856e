package execution

import (
	"path/filepath"
	"testing"

	"coredb/pkg/concurrency"
	"coredb/pkg/config"
	"coredb/pkg/database"

	"github.com/google/uuid"
)

func newTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.OpenTuned(filepath.Join(t.TempDir(), "test.db"), config.Default())
	if err != nil {
		t.Fatalf("OpenTuned: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func beginTx(t *testing.T, tm *concurrency.TransactionManager) *concurrency.Transaction {
	t.Helper()
	clientID := uuid.New()
	if err := tm.Begin(clientID); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	tx, ok := tm.GetTransaction(clientID)
	if !ok {
		t.Fatal("GetTransaction should find the transaction just begun")
	}
	return tx
}

func TestInsertExecutorLocksThenInserts(t *testing.T) {
	db := newTestDB(t)
	table, err := db.CreateTable("accounts", database.BTreeIndexType)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	tm := concurrency.NewTransactionManager(concurrency.NewResourceLockManager())
	tx := beginTx(t, tm)

	insert := NewInsertExecutor(table, tm)
	if err := insert.Execute(tx, 1, 100); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(tx.Resources()) != 1 {
		t.Fatalf("transaction should hold exactly one lock after one insert, got %d", len(tx.Resources()))
	}

	row, err := table.Find(1)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if row.Value != 100 {
		t.Fatalf("Find = %d, want 100", row.Value)
	}
}

func TestIndexScanExecutorFindsInsertedRow(t *testing.T) {
	db := newTestDB(t)
	table, err := db.CreateTable("accounts", database.HashIndexType)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := table.Insert(1, 42); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	tm := concurrency.NewTransactionManager(concurrency.NewResourceLockManager())
	tx := beginTx(t, tm)

	scan := NewIndexScanExecutor(table, tm)
	row, err := scan.Execute(tx, 1)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if row.Value != 42 {
		t.Fatalf("Execute = %d, want 42", row.Value)
	}
}

func TestDeleteExecutorRemovesRow(t *testing.T) {
	db := newTestDB(t)
	table, err := db.CreateTable("accounts", database.BTreeIndexType)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := table.Insert(1, 42); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	tm := concurrency.NewTransactionManager(concurrency.NewResourceLockManager())
	tx := beginTx(t, tm)

	del := NewDeleteExecutor(table, tm)
	if err := del.Execute(tx, 1); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := table.Find(1); err == nil {
		t.Fatal("row should be gone after delete")
	}
}

func TestSeqScanExecutorReturnsEveryRow(t *testing.T) {
	db := newTestDB(t)
	table, err := db.CreateTable("accounts", database.HashIndexType)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	for i := int64(0); i < 5; i++ {
		if err := table.Insert(i, i); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	scan := NewSeqScanExecutor(table, nil, nil)
	rows, err := scan.Execute()
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("Execute returned %d rows, want 5", len(rows))
	}
}

// Two independent keys on the same table must not conflict: the
// second insert's lock acquisition must succeed without blocking.
func TestInsertExecutorIndependentKeysDontConflict(t *testing.T) {
	db := newTestDB(t)
	table, err := db.CreateTable("accounts", database.BTreeIndexType)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	tm := concurrency.NewTransactionManager(concurrency.NewResourceLockManager())
	tx1 := beginTx(t, tm)
	tx2 := beginTx(t, tm)

	insert := NewInsertExecutor(table, tm)
	if err := insert.Execute(tx1, 1, 10); err != nil {
		t.Fatalf("Execute tx1: %v", err)
	}
	if err := insert.Execute(tx2, 2, 20); err != nil {
		t.Fatalf("Execute tx2: %v", err)
	}
	if err := tm.Commit(tx1.ClientID()); err != nil {
		t.Fatalf("Commit tx1: %v", err)
	}
	if err := tm.Commit(tx2.ClientID()); err != nil {
		t.Fatalf("Commit tx2: %v", err)
	}
}
