// Package alloc implements the hybrid free-space allocator: a bitmap
// allocator for small files, an extent allocator for large files, and a
// hybrid router that keeps both views in sync (spec.md §4.2-§4.4).
package alloc

import (
	"math/bits"

	"github.com/archivefs/cartridge/errs"
	"github.com/archivefs/cartridge/internal/logging"
	"github.com/sirupsen/logrus"
)

const wordBits = 64

// Bitmap tracks free/used blocks as a vector of 64-bit words, one bit per
// block (1 == allocated). Grounded on dbm's byte-mask bit-range helpers
// (dbm/bits.go) and lldb's block-state bitmap idiom (lldb/xact.go's
// bitPage), generalized from byte-granularity to word-granularity.
type Bitmap struct {
	words     []uint64
	total     uint64
	freeCount uint64 // advisory; the hybrid allocator keeps the canonical count.
	log       *logrus.Entry
}

// NewBitmap returns a Bitmap tracking total blocks, all initially free.
func NewBitmap(total uint64, log *logrus.Entry) *Bitmap {
	return &Bitmap{
		words:     make([]uint64, wordCount(total)),
		total:     total,
		freeCount: total,
		log:       logging.OrDefault(log),
	}
}

func wordCount(total uint64) uint64 {
	return (total + wordBits - 1) / wordBits
}

// Total returns the number of blocks tracked.
func (b *Bitmap) Total() uint64 { return b.total }

// FreeCount returns the advisory free-block count maintained by the bitmap
// itself. Callers composing this allocator (the hybrid allocator) should
// prefer their own canonical counter; see spec.md §9.
func (b *Bitmap) FreeCount() uint64 { return b.freeCount }

// IsAllocated reports whether block b is marked allocated. Blocks beyond
// Total are reported as allocated (there is nothing to hand out).
func (bm *Bitmap) IsAllocated(block uint64) bool {
	if block >= bm.total {
		return true
	}
	w, bit := block/wordBits, block%wordBits
	return bm.words[w]&(1<<bit) != 0
}

func (bm *Bitmap) setBit(block uint64) {
	w, bit := block/wordBits, block%wordBits
	bm.words[w] |= 1 << bit
}

func (bm *Bitmap) clearBit(block uint64) {
	w, bit := block/wordBits, block%wordBits
	bm.words[w] &^= 1 << bit
}

// AllocateBlocks scans for the first n free bits and marks them allocated.
// There is no contiguity guarantee. On failure to collect n free blocks the
// partial allocation is rolled back and errs.KindOutOfSpace is returned.
func (bm *Bitmap) AllocateBlocks(n int) ([]uint64, error) {
	if n <= 0 {
		return nil, nil
	}

	found := make([]uint64, 0, n)
	for w := range bm.words {
		word := bm.words[w]
		if word == ^uint64(0) {
			continue
		}
		for bit := 0; bit < wordBits; bit++ {
			block := uint64(w)*wordBits + uint64(bit)
			if block >= bm.total {
				break
			}
			if word&(1<<uint(bit)) != 0 {
				continue
			}
			found = append(found, block)
			if len(found) == n {
				goto collected
			}
		}
	}

	// Not enough free bits: roll back nothing (we haven't mutated state
	// yet) and fail.
	return nil, errs.New(errs.KindOutOfSpace, "bitmap.AllocateBlocks",
		"not enough free blocks in bitmap view")

collected:
	for _, block := range found {
		bm.setBit(block)
	}
	bm.freeCount -= uint64(len(found))

	return found, nil
}

// FreeAllocatedBlocks clears the bits for blocks. Freeing an already-free
// block is tolerated as a warning (spec.md §4.2): it does not adjust the
// free counter a second time.
func (bm *Bitmap) FreeAllocatedBlocks(blocks []uint64) {
	for _, block := range blocks {
		if block >= bm.total {
			bm.log.WithField("block_id", block).Warn("bitmap: free of out-of-range block ignored")
			continue
		}
		if !bm.IsAllocated(block) {
			bm.log.WithField("block_id", block).Warn("bitmap: double free")
			continue
		}
		bm.clearBit(block)
		bm.freeCount++
	}
}

// MarkAllocated marks blocks allocated without adjusting the free counter
// (used by the hybrid allocator to keep its non-primary view in sync with
// the canonical counter it owns).
func (bm *Bitmap) MarkAllocated(blocks []uint64) {
	for _, block := range blocks {
		if block < bm.total && !bm.IsAllocated(block) {
			bm.setBit(block)
		}
	}
}

// MarkFree marks blocks free without adjusting the free counter.
func (bm *Bitmap) MarkFree(blocks []uint64) {
	for _, block := range blocks {
		if block < bm.total && bm.IsAllocated(block) {
			bm.clearBit(block)
		}
	}
}

// ExtendCapacity grows the bitmap to track newTotal blocks, appending zero
// (free) words and growing the free counter by the added amount.
func (bm *Bitmap) ExtendCapacity(newTotal uint64) {
	if newTotal <= bm.total {
		return
	}
	added := newTotal - bm.total
	needWords := wordCount(newTotal)
	for uint64(len(bm.words)) < needWords {
		bm.words = append(bm.words, 0)
	}
	bm.total = newTotal
	bm.freeCount += added
}

// FragmentationScore counts 0<->1 transitions across the bit stream,
// divided by the total number of blocks.
func (bm *Bitmap) FragmentationScore() float64 {
	if bm.total == 0 {
		return 0
	}

	var transitions uint64
	var prev byte
	for block := uint64(0); block < bm.total; block++ {
		var cur byte
		if bm.IsAllocated(block) {
			cur = 1
		}
		if block > 0 && cur != prev {
			transitions++
		}
		prev = cur
	}

	return float64(transitions) / float64(bm.total)
}

// popcount is exposed for tests/diagnostics that want an independent count
// of allocated blocks across the whole word vector.
func (bm *Bitmap) popcount() int {
	total := 0
	for _, w := range bm.words {
		total += bits.OnesCount64(w)
	}
	return total
}
