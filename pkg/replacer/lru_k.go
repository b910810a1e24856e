// Package replacer implements the LRU-K eviction policy used by the
// buffer pool to pick a victim frame among the unpinned ones.
//
// A frame with fewer than k recorded accesses sits in a FIFO queue, in
// arrival order; once it is accessed for the k-th time it graduates
// into an LRU queue, where it moves to the tail on every access from
// then on. Eviction always prefers the FIFO queue (frames with too
// little history to estimate a backward k-distance are the classical
// LRU-K tie-break victims) and only falls back to LRU once FIFO is
// exhausted of evictable frames.
package replacer

import (
	"errors"
	"sync"

	"coredb/pkg/list"
)

// ErrNoEvictableFrame is returned by Evict when no tracked frame is
// currently evictable.
var ErrNoEvictableFrame = errors.New("replacer: no evictable frame")

type frameInfo struct {
	frameID   int
	hits      int
	evictable bool
}

// LRUK is an LRU-K replacer over a fixed universe of frame ids
// [0, numFrames). Every exported method takes the replacer's single
// mutex; there is no other suspension point.
type LRUK struct {
	k         int
	mtx       sync.Mutex
	fifo      *list.List // frames with hits < k, head = oldest arrival
	lru       *list.List // frames with hits >= k, tail = most recently referenced
	links     map[int]*list.Link
	info      map[int]*frameInfo
	evictable int // count of tracked frames with evictable == true
}

// New constructs an LRU-K replacer tracking up to numFrames distinct
// frame ids with history window k.
func New(numFrames int, k int) *LRUK {
	return &LRUK{
		k:     k,
		fifo:  list.NewList(),
		lru:   list.NewList(),
		links: make(map[int]*list.Link, numFrames),
		info:  make(map[int]*frameInfo, numFrames),
	}
}

// RecordAccess records a reference to frameID, growing its hit count
// (clamped at k) and moving it between the FIFO and LRU queues as
// described in the package doc. A frame seen for the first time starts
// non-evictable until SetEvictable marks it otherwise.
func (r *LRUK) RecordAccess(frameID int) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	fi, ok := r.info[frameID]
	if !ok {
		fi = &frameInfo{frameID: frameID}
		r.info[frameID] = fi
		fi.hits = 1
		if fi.hits >= r.k {
			r.links[frameID] = r.lru.PushTail(frameID)
		} else {
			r.links[frameID] = r.fifo.PushTail(frameID)
		}
		return
	}

	switch {
	case fi.hits < r.k:
		fi.hits++
		if fi.hits == r.k {
			// Graduate FIFO -> LRU tail.
			r.links[frameID].PopSelf()
			r.links[frameID] = r.lru.PushTail(frameID)
		}
	default:
		// Already at/above k: clamp and move to LRU tail.
		fi.hits = r.k
		r.links[frameID].PopSelf()
		r.links[frameID] = r.lru.PushTail(frameID)
	}
}

// SetEvictable toggles whether frameID may be chosen as an eviction
// victim. Does not move the frame within FIFO/LRU. A frame never
// recorded via RecordAccess is a no-op.
func (r *LRUK) SetEvictable(frameID int, evictable bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	fi, ok := r.info[frameID]
	if !ok {
		return
	}
	if fi.evictable && !evictable {
		r.evictable--
	} else if !fi.evictable && evictable {
		r.evictable++
	}
	fi.evictable = evictable
}

// Evict scans FIFO head-to-tail, then LRU head-to-tail, and removes
// and returns the first evictable frame found. Returns
// ErrNoEvictableFrame if nothing qualifies.
func (r *LRUK) Evict() (int, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if frameID, ok := r.evictFrom(r.fifo); ok {
		return frameID, nil
	}
	if frameID, ok := r.evictFrom(r.lru); ok {
		return frameID, nil
	}
	return 0, ErrNoEvictableFrame
}

func (r *LRUK) evictFrom(queue *list.List) (int, bool) {
	for link := queue.PeekHead(); link != nil; link = link.GetNext() {
		frameID := link.GetValue().(int)
		if r.info[frameID].evictable {
			link.PopSelf()
			delete(r.links, frameID)
			delete(r.info, frameID)
			r.evictable--
			return frameID, true
		}
	}
	return 0, false
}

// Remove drops a frame from tracking entirely. Precondition (enforced
// by the buffer pool, per spec): frameID must currently be evictable.
func (r *LRUK) Remove(frameID int) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	fi, ok := r.info[frameID]
	if !ok {
		return
	}
	if !fi.evictable {
		return
	}
	r.links[frameID].PopSelf()
	delete(r.links, frameID)
	delete(r.info, frameID)
	r.evictable--
}

// Size returns the number of tracked, evictable frames.
func (r *LRUK) Size() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.evictable
}
