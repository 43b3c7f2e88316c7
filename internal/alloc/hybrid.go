package alloc

import (
	"github.com/archivefs/cartridge/errs"
	"github.com/archivefs/cartridge/internal/logging"
	"github.com/sirupsen/logrus"
)

// Threshold is S from spec.md §4.4: 256 KiB expressed in page-sized
// blocks. Requests smaller than Threshold blocks route to the bitmap
// allocator; requests of Threshold blocks or more route to the extent
// allocator.
const Threshold = (256 * 1024) / 4096 // 64 blocks, given a 4096-byte page.

// Hybrid routes allocation requests to a Bitmap or an ExtentAllocator by
// size, keeping both views in sync and owning the single canonical
// free-block counter (spec.md §4.4, §9). Grounded on dbm.DB's pattern of
// layering its own bookkeeping (acache/fcache/scache) alongside
// lldb.Allocator rather than inside it: Hybrid is the same shape, a thin
// router with its own state that delegates to two sub-views.
type Hybrid struct {
	bitmap *Bitmap
	extent *ExtentAllocator

	total      uint64
	freeBlocks uint64 // canonical; sub-allocators' counters are advisory only.

	log *logrus.Entry
}

// NewHybrid returns a Hybrid allocator over total blocks, all free.
func NewHybrid(total uint64, log *logrus.Entry) *Hybrid {
	log = logging.OrDefault(log)
	return &Hybrid{
		bitmap:     NewBitmap(total, log),
		extent:     NewExtentAllocator(total),
		total:      total,
		freeBlocks: total,
		log:        log,
	}
}

// Total returns the number of blocks tracked.
func (h *Hybrid) Total() uint64 { return h.total }

// FreeBlocks returns the canonical free-block counter.
func (h *Hybrid) FreeBlocks() uint64 { return h.freeBlocks }

// Bitmap exposes the underlying bitmap view, chiefly for tests/diagnostics.
func (h *Hybrid) Bitmap() *Bitmap { return h.bitmap }

// Extent exposes the underlying extent view, chiefly for tests/diagnostics.
func (h *Hybrid) Extent() *ExtentAllocator { return h.extent }

// Allocate routes the request by size: fewer than Threshold blocks goes to
// the bitmap allocator, otherwise to the extent allocator. Whichever
// serves the request, the other view is told to mark the same blocks
// allocated so the two stay consistent (spec.md §4.4).
func (h *Hybrid) Allocate(n uint64) ([]uint64, error) {
	if n == 0 {
		return nil, nil
	}
	if n > h.freeBlocks {
		return nil, errs.New(errs.KindOutOfSpace, "hybrid.Allocate", "request exceeds canonical free_blocks")
	}

	var blocks []uint64

	if n < Threshold {
		got, err := h.bitmap.AllocateBlocks(int(n))
		if err != nil {
			return nil, errs.Wrap(errs.KindOutOfSpace, "hybrid.Allocate", "bitmap route exhausted", err)
		}
		blocks = got
		h.extent.MarkAllocated(blocks)
		h.log.WithFields(logrus.Fields{"route": "bitmap", "n": n}).Debug("hybrid: allocated")
	} else {
		start, err := h.extent.AllocateContiguous(n)
		if err != nil {
			return nil, errs.Wrap(errs.KindOutOfSpace, "hybrid.Allocate", "extent route exhausted", err)
		}
		blocks = make([]uint64, n)
		for i := uint64(0); i < n; i++ {
			blocks[i] = start + i
		}
		h.bitmap.MarkAllocated(blocks)
		h.log.WithFields(logrus.Fields{"route": "extent", "n": n, "start": start}).Debug("hybrid: allocated")
	}

	h.freeBlocks -= n
	return blocks, nil
}

// Free routes by the same size rule, applied to the number of blocks being
// freed, keeping both views in sync and advancing the canonical counter.
func (h *Hybrid) Free(blocks []uint64) {
	if len(blocks) == 0 {
		return
	}

	n := uint64(len(blocks))
	if n < Threshold {
		h.bitmap.FreeAllocatedBlocks(blocks)
		h.extent.MarkFree(blocks)
	} else {
		h.extent.FreeExtent(blocks)
		h.bitmap.MarkFree(blocks)
	}

	h.freeBlocks += n
}

// FragmentationScore is a free-block-weighted average of the bitmap and
// extent sub-scores (spec.md §4.4).
func (h *Hybrid) FragmentationScore() float64 {
	bFree := h.bitmap.FreeCount()
	eFree := h.extent.FreeCount()
	total := bFree + eFree
	if total == 0 {
		return 0
	}

	weighted := float64(bFree)*h.bitmap.FragmentationScore() + float64(eFree)*h.extent.FragmentationScore()
	return weighted / float64(total)
}

// ExtendCapacity grows both sub-allocators' views to newTotal and
// increases the canonical free_blocks counter by the added amount
// (spec.md §4.4).
func (h *Hybrid) ExtendCapacity(newTotal uint64) {
	if newTotal <= h.total {
		return
	}
	added := newTotal - h.total
	h.bitmap.ExtendCapacity(newTotal)
	h.extent.ExtendCapacity(newTotal)
	h.total = newTotal
	h.freeBlocks += added
}

// MarkReserved marks blocks allocated on both views and deducts them from
// the canonical counter, without going through the size-routing logic.
// Used once, at construction, by the cartridge orchestrator to reserve
// blocks 0 (header), 1 (catalog root) and 2 (allocator state) (spec.md
// §3).
func (h *Hybrid) MarkReserved(blocks []uint64) {
	h.bitmap.MarkAllocated(blocks)
	h.extent.MarkAllocated(blocks)
	if uint64(len(blocks)) <= h.freeBlocks {
		h.freeBlocks -= uint64(len(blocks))
	} else {
		h.freeBlocks = 0
	}
}
