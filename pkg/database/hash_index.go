package database

import (
	"errors"
	"fmt"
	"io"

	"coredb/pkg/entry"
	"coredb/pkg/hashindex"
)

// hashTable adapts a *hashindex.Table to the Index interface.
type hashTable struct {
	name  string
	table *hashindex.Table
}

func openHashTable(name string, deps tableDeps) (*hashTable, error) {
	table, err := hashindex.Open(name, deps.bpm, deps.cat, 4, deps.tunables.BucketSize)
	if err != nil {
		return nil, err
	}
	return &hashTable{name: name, table: table}, nil
}

func (h *hashTable) GetName() string { return h.name }

func (h *hashTable) Close() error { return nil }

func (h *hashTable) Find(key int64) (Row, error) {
	vals, err := h.table.Find(encodeKey(key))
	if err != nil {
		return Row{}, err
	}
	if len(vals) == 0 {
		return Row{}, errors.New("key not found")
	}
	return Row{Key: key, Value: decodeValue(vals[0])}, nil
}

func (h *hashTable) Insert(key, value int64) error {
	if vals, err := h.table.Find(encodeKey(key)); err != nil {
		return err
	} else if len(vals) > 0 {
		return errors.New("key already exists")
	}
	return h.table.Insert(encodeKey(key), encodeValue(value))
}

func (h *hashTable) Update(key, value int64) error {
	if vals, err := h.table.Find(encodeKey(key)); err != nil {
		return err
	} else if len(vals) == 0 {
		return errors.New("key not found")
	}
	if _, err := h.table.Delete(encodeKey(key)); err != nil {
		return err
	}
	return h.table.Insert(encodeKey(key), encodeValue(value))
}

func (h *hashTable) Delete(key int64) error {
	found, err := h.table.Delete(encodeKey(key))
	if err != nil {
		return err
	}
	if !found {
		return errors.New("key not found")
	}
	return nil
}

func (h *hashTable) Select() ([]Row, error) {
	keys, vals, err := h.table.All()
	if err != nil {
		return nil, err
	}
	rows := make([]Row, len(keys))
	for i := range keys {
		rows[i] = Row{Key: int64(entry.DecodeInt32Key(keys[i])), Value: decodeValue(vals[i])}
	}
	return rows, nil
}

func (h *hashTable) Print(w io.Writer) {
	depth, err := h.table.GlobalDepth()
	if err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}
	rows, err := h.Select()
	if err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}
	fmt.Fprintf(w, "hash table %s, global depth %d\n", h.name, depth)
	for _, r := range rows {
		fmt.Fprintf(w, "(%d, %d)\n", r.Key, r.Value)
	}
}

// PrintPN has no meaning for a hash index (no fixed page-per-node
// layout to address by number the way a B+Tree can); it prints the
// same summary as Print.
func (h *hashTable) PrintPN(pagenum int, w io.Writer) { h.Print(w) }
