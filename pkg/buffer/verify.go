package buffer

import "github.com/bits-and-blooms/bitset"

// VerifyPartition checks the buffer pool's core frame-ownership
// invariant: every frame index belongs to exactly one of "free" or
// "resident" (page id != InvalidID), never both and never neither.
// Intended for use from tests after a sequence of operations.
func (p *Pool) VerifyPartition() bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	free := bitset.New(uint(len(p.frames)))
	for _, fid := range p.freeList {
		if free.Test(uint(fid)) {
			return false // frame listed twice in the free list
		}
		free.Set(uint(fid))
	}

	for i := range p.frames {
		resident := p.frames[i].ID() != -1
		if free.Test(uint(i)) && resident {
			return false
		}
		if !free.Test(uint(i)) && !resident {
			return false
		}
	}
	return true
}
