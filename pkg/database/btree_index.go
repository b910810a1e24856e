package database

import (
	"errors"
	"fmt"
	"io"

	"coredb/pkg/btree"
	"coredb/pkg/entry"
)

// btreeTable adapts a *btree.Tree to the Index interface, encoding
// every Row's int64 key/value pair into the tree's byte-slice
// key/RID-value representation.
type btreeTable struct {
	name string
	tree *btree.Tree
}

func openBTreeTable(name string, deps tableDeps) (*btreeTable, error) {
	tree, err := btree.Open(name, deps.bpm, deps.cat, entry.ByteOrderComparator, 4, deps.tunables.LeafMaxSize, deps.tunables.InternalMaxSize)
	if err != nil {
		return nil, err
	}
	return &btreeTable{name: name, tree: tree}, nil
}

func (b *btreeTable) GetName() string { return b.name }

func (b *btreeTable) Close() error { return nil }

func (b *btreeTable) Find(key int64) (Row, error) {
	val, found, err := b.tree.GetValue(encodeKey(key))
	if err != nil {
		return Row{}, err
	}
	if !found {
		return Row{}, errors.New("key not found")
	}
	return Row{Key: key, Value: decodeValue(val)}, nil
}

func (b *btreeTable) Insert(key, value int64) error {
	ok, err := b.tree.Insert(encodeKey(key), encodeValue(value))
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("key already exists")
	}
	return nil
}

// Update overwrites an existing key's value. The underlying tree has
// no in-place update, so this removes and reinserts, unlike the
// teacher's single node.insert(key, value, true) call.
func (b *btreeTable) Update(key, value int64) error {
	if _, found, err := b.tree.GetValue(encodeKey(key)); err != nil {
		return err
	} else if !found {
		return errors.New("key not found")
	}
	if err := b.tree.Remove(encodeKey(key)); err != nil {
		return err
	}
	_, err := b.tree.Insert(encodeKey(key), encodeValue(value))
	return err
}

func (b *btreeTable) Delete(key int64) error {
	return b.tree.Remove(encodeKey(key))
}

func (b *btreeTable) Select() ([]Row, error) {
	it, err := b.tree.Begin()
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var rows []Row
	for !it.IsEnd() {
		k, v := it.Entry()
		rows = append(rows, Row{Key: int64(entry.DecodeInt32Key(k)), Value: decodeValue(v)})
		if err := it.Next(); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (b *btreeTable) Print(w io.Writer) { b.tree.Print(w) }

func (b *btreeTable) PrintPN(pagenum int, w io.Writer) {
	if err := b.tree.PrintPN(int32(pagenum), w); err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
	}
}
