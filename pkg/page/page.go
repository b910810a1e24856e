// Package page defines the fixed-size byte region cached by a single
// buffer pool frame, along with the pin/dirty bookkeeping every
// component of the storage core (page table, replacer, buffer pool,
// B+Tree, hash index) reads or mutates.
package page

import (
	"sync"
	"sync/atomic"
)

// Size is the fixed size, in bytes, of every page (and therefore every
// frame). 4096 bytes is the classical choice for a teaching database.
const Size = 4096

// InvalidID is the reserved page id meaning "no page" (spec: -1).
const InvalidID int32 = -1

// HeaderPageID is the one reserved page carrying the index_name ->
// root_page_id catalog map.
const HeaderPageID int32 = 0

// Page is the byte region held by a frame, plus the metadata a
// BufferPoolManager must track per spec: current page id, pin count,
// and dirty flag. It does not know which frame holds it; the buffer
// pool is the only thing that maps frame index <-> Page.
type Page struct {
	id       int32
	pinCount atomic.Int32
	dirty    bool
	rwlock   sync.RWMutex
	data     [Size]byte
}

// ID returns the page id currently held by this frame's page (InvalidID
// if the frame is free).
func (p *Page) ID() int32 { return p.id }

// SetID sets the page id.
func (p *Page) SetID(id int32) { p.id = id }

// IsDirty reports whether this page's bytes differ from what's on disk.
func (p *Page) IsDirty() bool { return p.dirty }

// SetDirty sets the dirty flag directly.
func (p *Page) SetDirty(dirty bool) { p.dirty = dirty }

// MarkDirty ORs the dirty flag with true: a sticky operation, since the
// buffer pool never clears dirty except by resetting the frame for
// reuse (spec: "never clears an already-dirty flag").
func (p *Page) MarkDirty() { p.dirty = true }

// Data returns the full fixed-size byte slice backing this page.
func (p *Page) Data() []byte { return p.data[:] }

// PinCount returns the current pin count.
func (p *Page) PinCount() int32 { return p.pinCount.Load() }

// Pin increments the pin count (a new reference to this page).
func (p *Page) Pin() int32 { return p.pinCount.Add(1) }

// Unpin decrements the pin count and returns the new value.
func (p *Page) Unpin() int32 { return p.pinCount.Add(-1) }

// Reset clears the page back to a free-frame state: zeroed bytes,
// invalid id, not dirty, unpinned. Called before a frame is handed to
// a new page_id by the buffer pool.
func (p *Page) Reset() {
	for i := range p.data {
		p.data[i] = 0
	}
	p.id = InvalidID
	p.dirty = false
	p.pinCount.Store(0)
}

// WLock takes a writer's lock on the page's bytes.
func (p *Page) WLock() { p.rwlock.Lock() }

// WUnlock releases a writer's lock.
func (p *Page) WUnlock() { p.rwlock.Unlock() }

// RLock takes a reader's lock on the page's bytes.
func (p *Page) RLock() { p.rwlock.RLock() }

// RUnlock releases a reader's lock.
func (p *Page) RUnlock() { p.rwlock.RUnlock() }
