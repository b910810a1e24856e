package concurrency

import (
	"sync"

	"github.com/google/uuid"
)

// Transaction tracks one client's currently held locks. A client runs
// at most one transaction at a time, so its uuid uniquely identifies
// both.
type Transaction struct {
	clientID        uuid.UUID
	lockedResources map[Resource]LockType
	mtx             sync.RWMutex
}

func (t *Transaction) WLock() { t.mtx.Lock() }

func (t *Transaction) WUnlock() { t.mtx.Unlock() }

func (t *Transaction) RLock() { t.mtx.RLock() }

func (t *Transaction) RUnlock() { t.mtx.RUnlock() }

func (t *Transaction) ClientID() uuid.UUID { return t.clientID }

func (t *Transaction) Resources() map[Resource]LockType { return t.lockedResources }
