package concurrency

// LockType indicates whether a lock is a reader or a writer lock.
type LockType int

const (
	RLock LockType = iota
	WLock
)

// Resource is a single lockable unit, a row in one table identified by
// its RID-derived key. Two callers naming the same (tableName, key)
// contend for the same lock regardless of which index or transaction
// reaches it.
type Resource struct {
	tableName string
	key       int64
}

func (r *Resource) TableName() string { return r.tableName }
func (r *Resource) Key() int64        { return r.key }
