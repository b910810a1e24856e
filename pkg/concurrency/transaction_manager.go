package concurrency

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Table is the subset of database.Database's table handles that lock
// management needs: just enough to name the resource being locked.
// Kept local instead of importing pkg/database, since GetName is all
// a Resource is built from.
type Table interface {
	GetName() string
}

// TransactionManager manages every in-flight transaction on a server.
// Each client runs one transaction at a time, so its uuid identifies
// both.
type TransactionManager struct {
	resourceLockManager *ResourceLockManager
	waitsForGraph       *WaitsForGraph
	transactions        map[uuid.UUID]*Transaction
	mtx                 sync.RWMutex
}

func NewTransactionManager(lm *ResourceLockManager) *TransactionManager {
	return &TransactionManager{
		resourceLockManager: lm,
		waitsForGraph:       NewGraph(),
		transactions:        make(map[uuid.UUID]*Transaction),
	}
}

func (tm *TransactionManager) ResourceLockManager() *ResourceLockManager {
	return tm.resourceLockManager
}

func (tm *TransactionManager) Transactions() map[uuid.UUID]*Transaction {
	return tm.transactions
}

// GetTransaction returns the running transaction for a client, if any.
func (tm *TransactionManager) GetTransaction(clientID uuid.UUID) (*Transaction, bool) {
	tm.mtx.RLock()
	defer tm.mtx.RUnlock()
	tx, found := tm.transactions[clientID]
	return tx, found
}

// Begin starts a transaction for clientID; errors if one is already running.
func (tm *TransactionManager) Begin(clientID uuid.UUID) error {
	tm.mtx.Lock()
	defer tm.mtx.Unlock()
	if _, found := tm.transactions[clientID]; found {
		return errors.New("transaction already began")
	}
	tm.transactions[clientID] = &Transaction{clientID: clientID, lockedResources: make(map[Resource]LockType)}
	return nil
}

// Lock acquires lType on (table, resourceKey) for clientID's transaction,
// detecting deadlocks via the waits-for graph before blocking.
func (tm *TransactionManager) Lock(clientID uuid.UUID, table Table, resourceKey int64, lType LockType) error {
	transaction, found := tm.GetTransaction(clientID)
	if !found {
		return errors.New("no such transaction")
	}
	newResource := Resource{tableName: table.GetName(), key: resourceKey}
	possibleConflicts := tm.conflictingTransactions(newResource, lType)
	transaction.RLock()

	curr, locked := transaction.Resources()[newResource]
	if locked {
		transaction.RUnlock()
		if curr == RLock && lType == WLock {
			return errors.New("tm.lock: cannot upgrade lock")
		}
		return nil
	}

	for _, t := range possibleConflicts {
		tm.waitsForGraph.AddEdge(transaction, t)
		defer tm.waitsForGraph.RemoveEdge(transaction, t)
	}
	if tm.waitsForGraph.DetectCycle() {
		transaction.RUnlock()
		return errors.New("tm.lock: deadlock detected")
	}
	transaction.RUnlock()

	if err := tm.resourceLockManager.Lock(newResource, lType); err != nil {
		return err
	}
	transaction.WLock()
	defer transaction.WUnlock()
	transaction.Resources()[newResource] = lType
	return nil
}

// Unlock releases lType on (table, resourceKey) for clientID's transaction.
func (tm *TransactionManager) Unlock(clientID uuid.UUID, table Table, resourceKey int64, lType LockType) error {
	transaction, found := tm.GetTransaction(clientID)
	if !found {
		return errors.New("no such transaction")
	}
	transaction.WLock()
	defer transaction.WUnlock()

	resource := Resource{tableName: table.GetName(), key: resourceKey}
	lock, found := transaction.lockedResources[resource]
	if !found || lock != lType {
		return errors.New("tm.unlock: invalid unlock request")
	}
	delete(transaction.lockedResources, resource)
	return tm.resourceLockManager.Unlock(resource, lType)
}

// Commit releases every resource held by clientID's transaction and
// removes it from the running set.
func (tm *TransactionManager) Commit(clientID uuid.UUID) error {
	tm.mtx.Lock()
	defer tm.mtx.Unlock()
	t, found := tm.transactions[clientID]
	if !found {
		return errors.New("no transactions running")
	}
	t.RLock()
	defer t.RUnlock()
	for r, lType := range t.lockedResources {
		if err := tm.resourceLockManager.Unlock(r, lType); err != nil {
			return err
		}
	}
	delete(tm.transactions, clientID)
	return nil
}

// conflictingTransactions returns every transaction already holding a
// lock on r that would conflict with a new lType request.
func (tm *TransactionManager) conflictingTransactions(r Resource, lType LockType) []*Transaction {
	txs := make([]*Transaction, 0)
	for _, t := range tm.transactions {
		t.RLock()
		for storedResource, storedType := range t.lockedResources {
			if storedResource == r && (storedType == WLock || lType == WLock) {
				txs = append(txs, t)
				break
			}
		}
		t.RUnlock()
	}
	return txs
}
