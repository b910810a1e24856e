// Package catalog implements the single header page (page id 0) that
// every index in the database shares: a durable index_name ->
// root_page_id map, consulted on every B+Tree/hash-index open and
// updated on every root change (spec.md §3, "header page on-disk
// format").
package catalog

import (
	"encoding/binary"
	"errors"
	"fmt"

	"coredb/pkg/buffer"
	"coredb/pkg/page"
)

// ErrNotFound is returned when a name has no catalog record.
var ErrNotFound = errors.New("catalog: index not found")

// Record layout within a header (or continuation) page:
//
//	[int32 numRecords][int32 nextPageID]
//	repeated numRecords times: [uint16 nameLen][name][int32 rootPageID]
const (
	offNumRecords = 0
	offNextPage   = 4
	recordsStart  = 8
)

// Catalog is the buffer-pool-backed index_name -> root_page_id table.
type Catalog struct {
	bpm *buffer.Pool
}

// New wraps bpm. Bootstrap must be called once before use on a fresh
// database file.
func New(bpm *buffer.Pool) *Catalog {
	return &Catalog{bpm: bpm}
}

// Bootstrap ensures the header page exists, allocating it as the very
// first page of a fresh database (spec: reserved page id 0). A block
// that was never written reads back as zeroes, and an initialized header
// never chains to page 0, so a zero next-page field marks a fresh file.
// Safe to call on an already-initialized database.
func (c *Catalog) Bootstrap() error {
	if pg, err := c.bpm.FetchPage(page.HeaderPageID); err == nil {
		fresh := binary.LittleEndian.Uint32(pg.Data()[offNextPage:]) == 0
		c.bpm.UnpinPage(page.HeaderPageID, false)
		if !fresh {
			return nil
		}
		c.bpm.DeletePage(page.HeaderPageID)
	}
	id, pg, err := c.bpm.NewPage()
	if err != nil {
		return fmt.Errorf("catalog: allocate header page: %w", err)
	}
	if id != page.HeaderPageID {
		return fmt.Errorf("catalog: expected header page id %d, got %d", page.HeaderPageID, id)
	}
	invalidID := page.InvalidID
	binary.LittleEndian.PutUint32(pg.Data()[offNumRecords:], 0)
	binary.LittleEndian.PutUint32(pg.Data()[offNextPage:], uint32(invalidID))
	c.bpm.UnpinPage(page.HeaderPageID, true)
	return nil
}

type record struct {
	name         string
	rootPageID   int32
	pageID       int32 // page this record physically lives on
	recordOffset int   // byte offset of this record's rootPageID field
}

// walk scans every header/continuation page, calling visit(pageID,
// data) for each, stopping early if visit returns false.
func (c *Catalog) walk(visit func(pageID int32, pg []byte) bool) error {
	id := page.HeaderPageID
	for id != page.InvalidID {
		pg, err := c.bpm.FetchPage(id)
		if err != nil {
			return fmt.Errorf("catalog: fetch page %d: %w", id, err)
		}
		data := pg.Data()
		cont := visit(id, data)
		next := int32(binary.LittleEndian.Uint32(data[offNextPage:]))
		c.bpm.UnpinPage(id, false)
		if !cont {
			return nil
		}
		id = next
	}
	return nil
}

func (c *Catalog) find(name string) (*record, error) {
	var found *record
	err := c.walk(func(pageID int32, data []byte) bool {
		n := int(int32(binary.LittleEndian.Uint32(data[offNumRecords:])))
		off := recordsStart
		for i := 0; i < n; i++ {
			nameLen := int(binary.LittleEndian.Uint16(data[off:]))
			off += 2
			recName := string(data[off : off+nameLen])
			off += nameLen
			rootPageID := int32(binary.LittleEndian.Uint32(data[off:]))
			recOff := off
			off += 4
			if recName == name {
				found = &record{name: recName, rootPageID: rootPageID, pageID: pageID, recordOffset: recOff}
				return false
			}
		}
		return true
	})
	return found, err
}

// Lookup returns name's root page id.
func (c *Catalog) Lookup(name string) (int32, error) {
	rec, err := c.find(name)
	if err != nil {
		return page.InvalidID, err
	}
	if rec == nil {
		return page.InvalidID, ErrNotFound
	}
	return rec.rootPageID, nil
}

// InsertRecord adds a brand-new index_name -> root_page_id record,
// allocating a continuation page if every existing page is full.
// Mirrors the source's HeaderPage::InsertRecord, called once per index
// the first time its root page id is known (spec.md §4.4,
// insert_into_parent / tree construction).
func (c *Catalog) InsertRecord(name string, rootPageID int32) error {
	if rec, _ := c.find(name); rec != nil {
		return fmt.Errorf("catalog: index %q already registered", name)
	}

	entrySize := 2 + len(name) + 4
	var lastPageID int32 = page.InvalidID

	err := c.walk(func(pageID int32, data []byte) bool {
		lastPageID = pageID
		n := int(int32(binary.LittleEndian.Uint32(data[offNumRecords:])))
		used := recordsStart
		for i := 0; i < n; i++ {
			nameLen := int(binary.LittleEndian.Uint16(data[used:]))
			used += 2 + nameLen + 4
		}
		if used+entrySize <= page.Size {
			pg, err := c.bpm.FetchPage(pageID)
			if err != nil {
				return false
			}
			d := pg.Data()
			binary.LittleEndian.PutUint16(d[used:], uint16(len(name)))
			used += 2
			copy(d[used:], name)
			used += len(name)
			binary.LittleEndian.PutUint32(d[used:], uint32(rootPageID))
			binary.LittleEndian.PutUint32(d[offNumRecords:], uint32(n+1))
			c.bpm.UnpinPage(pageID, true)
			lastPageID = page.InvalidID // signal: handled
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	if lastPageID == page.InvalidID {
		return nil
	}

	// Every page was full: allocate a continuation page and chain it.
	newID, newPg, err := c.bpm.NewPage()
	if err != nil {
		return fmt.Errorf("catalog: allocate continuation page: %w", err)
	}
	invalidID := page.InvalidID
	binary.LittleEndian.PutUint32(newPg.Data()[offNumRecords:], 1)
	binary.LittleEndian.PutUint32(newPg.Data()[offNextPage:], uint32(invalidID))
	off := recordsStart
	binary.LittleEndian.PutUint16(newPg.Data()[off:], uint16(len(name)))
	off += 2
	copy(newPg.Data()[off:], name)
	off += len(name)
	binary.LittleEndian.PutUint32(newPg.Data()[off:], uint32(rootPageID))
	c.bpm.UnpinPage(newID, true)

	oldPg, err := c.bpm.FetchPage(lastPageID)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(oldPg.Data()[offNextPage:], uint32(newID))
	c.bpm.UnpinPage(lastPageID, true)
	return nil
}

// UpdateRecord overwrites an existing record's root_page_id. Called
// every time a tree's root changes (spec.md §4.4 UpdateRootPageId).
func (c *Catalog) UpdateRecord(name string, rootPageID int32) error {
	rec, err := c.find(name)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotFound
	}
	pg, err := c.bpm.FetchPage(rec.pageID)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(pg.Data()[rec.recordOffset:], uint32(rootPageID))
	c.bpm.UnpinPage(rec.pageID, true)
	return nil
}

// Names returns every registered index name, for catalog introspection
// (e.g. a REPL "list indexes" command).
func (c *Catalog) Names() ([]string, error) {
	var names []string
	err := c.walk(func(pageID int32, data []byte) bool {
		n := int(int32(binary.LittleEndian.Uint32(data[offNumRecords:])))
		off := recordsStart
		for i := 0; i < n; i++ {
			nameLen := int(binary.LittleEndian.Uint16(data[off:]))
			off += 2
			names = append(names, string(data[off:off+nameLen]))
			off += nameLen + 4
		}
		return true
	})
	return names, err
}
