// Package database ties one buffer pool, catalog, and set of named
// tables into a single opened database, the way the teacher's own
// Database/Index pair does, generalized from one pager-per-table file
// to every table sharing one buffer pool and one header page.
package database

import (
	"io"

	"coredb/pkg/entry"
)

// IndexType names which on-disk structure backs a table.
type IndexType string

const (
	BTreeIndexType IndexType = "btree"
	HashIndexType  IndexType = "hash"
)

// Row is a single (key, value) tuple as seen at the database's CLI
// layer, matching the teacher's own entry.Entry shape of two plain
// int64s rather than the storage core's opaque encoded key and
// (page_id, slot) RID.
type Row struct {
	Key   int64
	Value int64
}

// Index is the interface every table (whichever structure backs it)
// presents to the database and REPL layers.
type Index interface {
	Close() error
	GetName() string
	Find(key int64) (Row, error)
	Insert(key, value int64) error
	Update(key, value int64) error
	Delete(key int64) error
	Select() ([]Row, error)
	Print(w io.Writer)
	PrintPN(pagenum int, w io.Writer)
}

func encodeKey(key int64) []byte {
	return entry.EncodeInt32Key(int32(key))
}

func encodeValue(value int64) entry.RID {
	return entry.RID{PageID: int32(value >> 32), Slot: int32(uint32(value))}
}

func decodeValue(r entry.RID) int64 {
	return (int64(r.PageID) << 32) | int64(uint32(r.Slot))
}
