package database

import (
	"errors"
	"os"
	"regexp"
	"strings"
	"sync"

	"coredb/pkg/buffer"
	"coredb/pkg/catalog"
	"coredb/pkg/config"
	"coredb/pkg/disk"
)

var alphanumeric = regexp.MustCompile(`\W`)

// tableDeps bundles the shared infrastructure every table constructor
// needs, so Open doesn't have to pass five separate arguments around.
type tableDeps struct {
	bpm      *buffer.Pool
	cat      *catalog.Catalog
	tunables config.Tunables
}

// Database owns the single on-disk file, buffer pool, and catalog
// shared by every table, generalizing the teacher's one-pager-per-file
// design: every table bootstraps through the shared header page instead
// of a sidecar .meta file (see DESIGN.md, "Dropped teacher code").
type Database struct {
	disk     *disk.Manager
	bpm      *buffer.Pool
	cat      *catalog.Catalog
	tunables config.Tunables

	mtx    sync.Mutex
	tables map[string]Index
}

// Open opens (or creates) a database backed by a single file at path.
func Open(path string) (*Database, error) {
	return OpenTuned(path, config.Default())
}

// OpenTuned is Open with explicit pool/index sizing instead of
// config.Default().
func OpenTuned(path string, tunables config.Tunables) (*Database, error) {
	dm, err := disk.Open(path)
	if err != nil {
		return nil, err
	}
	bpm := buffer.New(tunables.PoolSize, dm, tunables.ReplacerK, tunables.BucketSize)
	cat := catalog.New(bpm)
	if err := cat.Bootstrap(); err != nil {
		return nil, err
	}
	db := &Database{disk: dm, bpm: bpm, cat: cat, tunables: tunables, tables: make(map[string]Index)}
	if err := db.reopenTables(); err != nil {
		return nil, err
	}
	return db, nil
}

// reopenTables re-attaches every table that has a "<name>:type" record
// (persisted by CreateTable, even before the table holds any data),
// using that record to decide which backend to open.
func (db *Database) reopenTables() error {
	names, err := db.cat.Names()
	if err != nil {
		return err
	}
	for _, name := range names {
		if !isTypeMarker(name) {
			continue
		}
		name = strings.TrimSuffix(name, typeMarkerName(""))
		idx, err := db.openExisting(name)
		if err != nil {
			return err
		}
		db.tables[name] = idx
	}
	return nil
}

func typeMarkerName(name string) string { return name + ":type" }

func isTypeMarker(name string) bool {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == ':' {
			return true
		}
	}
	return false
}

func (db *Database) openExisting(name string) (Index, error) {
	typ, err := db.cat.Lookup(typeMarkerName(name))
	if err != nil {
		return nil, err
	}
	deps := tableDeps{bpm: db.bpm, cat: db.cat, tunables: db.tunables}
	if typ == 0 {
		return openBTreeTable(name, deps)
	}
	return openHashTable(name, deps)
}

// Close writes every resident page to disk and closes the backing file.
func (db *Database) Close() error {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	for _, t := range db.tables {
		if err := t.Close(); err != nil {
			return err
		}
	}
	if err := db.bpm.FlushAll(); err != nil {
		return err
	}
	return db.disk.Close()
}

// CreateTable creates a brand-new table of the given type.
func (db *Database) CreateTable(name string, indexType IndexType) (Index, error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()

	if alphanumeric.MatchString(name) {
		return nil, errors.New("table name must be alphanumeric")
	}
	if _, exists := db.tables[name]; exists {
		return nil, errors.New("table already exists")
	}

	deps := tableDeps{bpm: db.bpm, cat: db.cat, tunables: db.tunables}
	var idx Index
	var err error
	var typeTag int32
	switch indexType {
	case BTreeIndexType:
		idx, err = openBTreeTable(name, deps)
		typeTag = 0
	case HashIndexType:
		idx, err = openHashTable(name, deps)
		typeTag = 1
	default:
		return nil, errors.New("invalid index type")
	}
	if err != nil {
		return nil, err
	}
	if err := db.cat.InsertRecord(typeMarkerName(name), typeTag); err != nil {
		return nil, err
	}
	db.tables[name] = idx
	return idx, nil
}

// GetTable returns a table by name, either from the in-memory set or
// by reattaching it from the catalog.
func (db *Database) GetTable(name string) (Index, error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	if idx, ok := db.tables[name]; ok {
		return idx, nil
	}
	idx, err := db.openExisting(name)
	if err != nil {
		return nil, errors.New("table not found")
	}
	db.tables[name] = idx
	return idx, nil
}

// GetTables returns every currently attached table.
func (db *Database) GetTables() map[string]Index {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	out := make(map[string]Index, len(db.tables))
	for k, v := range db.tables {
		out[k] = v
	}
	return out
}

// BufferPool exposes the shared buffer pool, e.g. for a recovery
// manager's checkpoint flush.
func (db *Database) BufferPool() *buffer.Pool { return db.bpm }

// FilePath returns the path of the single backing file this database
// was opened against.
func (db *Database) FilePath() string { return db.disk.FileName() }

// CreateLogFile creates filename if it doesn't already exist, so a
// RecoveryManager (which expects its log file to pre-exist) can be
// constructed against a fresh database.
func (db *Database) CreateLogFile(filename string) error {
	if _, err := os.Stat(filename); err == nil {
		return nil
	}
	file, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return err
	}
	return file.Close()
}
