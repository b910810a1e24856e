package pagetable

import "github.com/bits-and-blooms/bitset"

// VerifyDirectory checks the extendible hash directory's structural
// invariant: every slot's local depth is <= the global depth, and two
// slots i, j that disagree only above localDepth bits must share the
// same bucket (spec: "slots whose low localDepth bits agree share a
// bucket"). Intended for use from tests.
func (t *Table) VerifyDirectory() bool {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	seen := bitset.New(uint(len(t.dir)))
	for i, b := range t.dir {
		if b.localDepth > t.globalDepth {
			return false
		}
		seen.Set(uint(i))

		mask := (1 << uint(b.localDepth)) - 1
		low := i & mask
		for j := range t.dir {
			if j&mask == low && t.dir[j] != b {
				return false
			}
		}
	}
	return seen.Count() == uint(len(t.dir))
}
