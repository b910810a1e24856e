// Package execution provides thin executor shells over a table's
// index: no cost model, no query plan, no joins. Grounded on
// original_source/src/execution/{seq_scan,index_scan,insert,delete}_executor.cpp,
// which this module's distilled spec treats as external glue the
// storage core is exercised through rather than something to build.
// Each executor threads a *concurrency.Transaction through unchanged,
// acquiring whatever locks the operation needs before touching the
// index.
package execution

import (
	"coredb/pkg/concurrency"
	"coredb/pkg/database"
)

// SeqScanExecutor iterates every row of a table start to end.
type SeqScanExecutor struct {
	table database.Index
	tm    *concurrency.TransactionManager
	tx    *concurrency.Transaction
}

func NewSeqScanExecutor(table database.Index, tm *concurrency.TransactionManager, tx *concurrency.Transaction) *SeqScanExecutor {
	return &SeqScanExecutor{table: table, tm: tm, tx: tx}
}

// Execute returns every row currently in the table. Select is
// unlocked: it may see an inconsistent snapshot under concurrent
// writers, the same caveat concurrency.HandleSelect documents.
func (e *SeqScanExecutor) Execute() ([]database.Row, error) {
	return e.table.Select()
}

// IndexScanExecutor probes a table for a single key.
type IndexScanExecutor struct {
	table database.Index
	tm    *concurrency.TransactionManager
}

func NewIndexScanExecutor(table database.Index, tm *concurrency.TransactionManager) *IndexScanExecutor {
	return &IndexScanExecutor{table: table, tm: tm}
}

// Execute looks up key, taking a read lock on the (table, key)
// resource for the given transaction first.
func (e *IndexScanExecutor) Execute(tx *concurrency.Transaction, key int64) (database.Row, error) {
	if e.tm != nil {
		if err := e.tm.Lock(tx.ClientID(), tableHandle{e.table}, key, concurrency.RLock); err != nil {
			return database.Row{}, err
		}
	}
	return e.table.Find(key)
}

// InsertExecutor inserts one row, failing on a duplicate key.
type InsertExecutor struct {
	table database.Index
	tm    *concurrency.TransactionManager
}

func NewInsertExecutor(table database.Index, tm *concurrency.TransactionManager) *InsertExecutor {
	return &InsertExecutor{table: table, tm: tm}
}

func (e *InsertExecutor) Execute(tx *concurrency.Transaction, key, value int64) error {
	if e.tm != nil {
		if err := e.tm.Lock(tx.ClientID(), tableHandle{e.table}, key, concurrency.WLock); err != nil {
			return err
		}
	}
	return e.table.Insert(key, value)
}

// DeleteExecutor removes one row by key.
type DeleteExecutor struct {
	table database.Index
	tm    *concurrency.TransactionManager
}

func NewDeleteExecutor(table database.Index, tm *concurrency.TransactionManager) *DeleteExecutor {
	return &DeleteExecutor{table: table, tm: tm}
}

func (e *DeleteExecutor) Execute(tx *concurrency.Transaction, key int64) error {
	if e.tm != nil {
		if err := e.tm.Lock(tx.ClientID(), tableHandle{e.table}, key, concurrency.WLock); err != nil {
			return err
		}
	}
	return e.table.Delete(key)
}

// tableHandle adapts a database.Index to concurrency.Table, which
// needs only the table's name to build a lock Resource.
type tableHandle struct {
	t database.Index
}

func (h tableHandle) GetName() string { return h.t.GetName() }
