// Package buffer implements the buffer pool manager: the single
// mediator between every other component of the storage core and the
// disk. It owns a fixed array of frames, a free list, the extendible
// hash page table, and the LRU-K replacer, and serializes every
// operation behind one mutex.
package buffer

import (
	"context"
	"errors"
	"os"
	"runtime"
	"sync"

	"coredb/pkg/disk"
	"coredb/pkg/page"
	"coredb/pkg/pagetable"
	"coredb/pkg/replacer"

	"golang.org/x/sync/errgroup"
)

// ErrNoFreeFrame is returned by NewPage/FetchPage when the pool has no
// free or evictable frame to hand out.
var ErrNoFreeFrame = errors.New("buffer: no free or evictable frame")

// Pool is the buffer pool manager.
type Pool struct {
	mtx sync.Mutex

	frames   []page.Page
	freeList []int

	table    *pagetable.Table
	replacer *replacer.LRUK
	disk     *disk.Manager

	nextPageID int32
}

// New constructs a buffer pool of poolSize frames, backed by disk, with
// an LRU-K replacer of history window replacerK and a page-table bucket
// capacity of bucketSize.
func New(poolSize int, disk *disk.Manager, replacerK int, bucketSize int) *Pool {
	p := &Pool{
		frames:   make([]page.Page, poolSize),
		freeList: make([]int, poolSize),
		table:    pagetable.New(bucketSize),
		replacer: replacer.New(poolSize, replacerK),
		disk:     disk,
	}
	for i := range p.freeList {
		p.freeList[i] = i
		p.frames[i].SetID(page.InvalidID)
	}
	// Allocation resumes after the last block already in the backing
	// file, so a reopened database never hands out an id in use.
	if fi, err := os.Stat(disk.FileName()); err == nil {
		p.nextPageID = int32(fi.Size() / int64(page.Size))
	}
	return p
}

// PoolSize returns the number of frames in the pool.
func (p *Pool) PoolSize() int { return len(p.frames) }

// acquireFrame returns a frame id to hand out, preferring the free
// list, then asking the replacer to evict. If the victim frame is
// dirty, it is flushed first and its old mapping removed from the page
// table. Returns ErrNoFreeFrame if nothing is available.
// Caller must hold p.mtx.
func (p *Pool) acquireFrame() (int, error) {
	if n := len(p.freeList); n > 0 {
		fid := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return fid, nil
	}
	fid, err := p.replacer.Evict()
	if err != nil {
		return 0, ErrNoFreeFrame
	}
	fr := &p.frames[fid]
	if fr.IsDirty() {
		_ = p.disk.WriteBlock(fr.ID(), fr.Data())
	}
	p.table.Remove(fr.ID())
	return fid, nil
}

// NewPage allocates a fresh page id and pins it to a frame. Returns
// (InvalidID, nil, ErrNoFreeFrame) if the pool is exhausted.
func (p *Pool) NewPage() (int32, *page.Page, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	fid, err := p.acquireFrame()
	if err != nil {
		return page.InvalidID, nil, err
	}

	pageID := p.nextPageID
	p.nextPageID++

	fr := &p.frames[fid]
	fr.Reset()
	fr.SetID(pageID)
	fr.Pin()

	p.replacer.RecordAccess(fid)
	p.replacer.SetEvictable(fid, false)
	p.table.Insert(pageID, fid)

	return pageID, fr, nil
}

// FetchPage returns the frame holding pageID, pinning it (reading it
// from disk first if it isn't already resident). Returns
// (nil, ErrNoFreeFrame) if a fetch-from-disk is needed but the pool has
// no frame to give it.
func (p *Pool) FetchPage(pageID int32) (*page.Page, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if fid, ok := p.table.Find(pageID); ok {
		fr := &p.frames[fid]
		fr.Pin()
		p.replacer.RecordAccess(fid)
		p.replacer.SetEvictable(fid, false)
		return fr, nil
	}

	fid, err := p.acquireFrame()
	if err != nil {
		return nil, err
	}

	fr := &p.frames[fid]
	fr.Reset()
	fr.SetID(pageID)
	if err := p.disk.ReadBlock(pageID, fr.Data()); err != nil {
		p.freeList = append(p.freeList, fid)
		fr.Reset()
		return nil, err
	}
	fr.Pin()

	p.replacer.RecordAccess(fid)
	p.replacer.SetEvictable(fid, false)
	p.table.Insert(pageID, fid)

	return fr, nil
}

// UnpinPage decrements pageID's pin count. isDirty is OR'd into the
// frame's dirty flag — it never clears an already-dirty frame. Once
// the pin count reaches zero the frame becomes evictable. Fails if
// pageID isn't resident or is already unpinned.
func (p *Pool) UnpinPage(pageID int32, isDirty bool) bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	fid, ok := p.table.Find(pageID)
	if !ok {
		return false
	}
	fr := &p.frames[fid]
	if fr.PinCount() <= 0 {
		return false
	}
	if isDirty {
		fr.MarkDirty()
	}
	if fr.Unpin() == 0 {
		p.replacer.SetEvictable(fid, true)
	}
	return true
}

// FlushPage writes pageID's frame to disk if resident. Per the
// project's open-question decision (see DESIGN.md), this does NOT
// clear the dirty flag.
func (p *Pool) FlushPage(pageID int32) bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.flushLocked(pageID)
}

func (p *Pool) flushLocked(pageID int32) bool {
	fid, ok := p.table.Find(pageID)
	if !ok {
		return false
	}
	fr := &p.frames[fid]
	_ = p.disk.WriteBlock(fr.ID(), fr.Data())
	return true
}

// FlushAll writes every resident frame to disk, regardless of dirty
// status, matching spec.md's "for every frame whose page_id != INVALID,
// write to disk". The writes are parallelized with a bounded worker
// pool (golang.org/x/sync/errgroup) since they are independent once we've
// read out which frames are resident; the pool latch is held until every
// write has finished, so no frame is reused while its bytes are written.
func (p *Pool) FlushAll() error {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	ids := make([]int32, 0, len(p.frames))
	bufs := make([][]byte, 0, len(p.frames))
	for i := range p.frames {
		if p.frames[i].ID() != page.InvalidID {
			ids = append(ids, p.frames[i].ID())
			bufs = append(bufs, p.frames[i].Data())
		}
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(ids) {
		workers = len(ids)
	}
	if workers < 1 {
		workers = 1
	}

	g, _ := errgroup.WithContext(context.Background())
	sem := make(chan struct{}, workers)
	for i := range ids {
		i := i
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()
			return p.disk.WriteBlock(ids[i], bufs[i])
		})
	}
	return g.Wait()
}

// DeletePage removes pageID from the pool. Returns true (vacuously) if
// pageID isn't resident; false if it's resident but still pinned.
func (p *Pool) DeletePage(pageID int32) bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	fid, ok := p.table.Find(pageID)
	if !ok {
		return true
	}
	fr := &p.frames[fid]
	if fr.PinCount() > 0 {
		return false
	}
	p.replacer.Remove(fid)
	p.table.Remove(pageID)
	fr.Reset()
	p.freeList = append(p.freeList, fid)
	return true
}
