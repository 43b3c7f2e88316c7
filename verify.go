package cartridge

import (
	"strconv"

	"github.com/archivefs/cartridge/internal/arc"
)

// Report is the result of a consistency-check pass over the live archive
// (spec.md §8's universal invariants, surfaced as a read-only diagnostic
// rather than a hard assertion).
//
// Grounded on lldb.Allocator.Verify and its AllocStats output: a
// non-mutating walk that cross-checks the allocator's bookkeeping against
// what the rest of the structure actually uses, reporting discrepancies
// rather than panicking on them.
type Report struct {
	TotalBlocks      uint64
	FreeBlocksHeader uint64 // header.FreeBlocks as currently held in memory.
	FreeBlocksAlloc  uint64 // the hybrid allocator's canonical counter.
	BlocksInUse      uint64 // reservedBlocks + sum of every file's len(Blocks).
	Anomalies        []string
}

// OK reports whether the pass found no anomalies.
func (r Report) OK() bool { return len(r.Anomalies) == 0 }

// Verify walks the catalog and the allocator's canonical counter and
// cross-checks them against spec.md §8's invariant: "after flush, the sum
// of metadata.blocks lengths plus the three reserved blocks equals
// total_blocks - free_blocks." It never mutates state.
func (c *Cartridge) Verify() Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := Report{
		TotalBlocks:      c.alloc.Total(),
		FreeBlocksHeader: c.header.FreeBlocks,
		FreeBlocksAlloc:  c.alloc.FreeBlocks(),
		BlocksInUse:      reservedBlocks,
	}

	seen := make(map[uint64]string, 64)
	for _, entry := range c.catalog.RangeSearch("") {
		for _, blockID := range entry.Value.Blocks {
			if owner, dup := seen[blockID]; dup {
				r.Anomalies = append(r.Anomalies, "block "+strconv.FormatUint(blockID, 10)+" referenced by both "+owner+" and "+entry.Key)
				continue
			}
			seen[blockID] = entry.Key
			r.BlocksInUse++
		}
	}

	if r.FreeBlocksHeader != r.FreeBlocksAlloc {
		r.Anomalies = append(r.Anomalies, "header.free_blocks disagrees with the allocator's canonical counter")
	}
	if r.BlocksInUse+r.FreeBlocksAlloc != r.TotalBlocks {
		r.Anomalies = append(r.Anomalies, "blocks_in_use + free_blocks does not equal total_blocks")
	}

	return r
}

// CacheStats reports the ARC buffer pool's current hit/miss counters and
// T1/T2/B1/B2/p sizing (spec.md §4.6).
func (c *Cartridge) CacheStats() arc.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Stats()
}

// CompactionHint reports whether the hybrid allocator's fragmentation
// score exceeds threshold, without performing any actual block
// relocation (true compaction is a Non-goal; see SPEC_FULL.md).
//
// Grounded on AllocStats.Relocations: lldb tracks how many used blocks a
// real compaction pass would need to move; this hint answers the cheaper
// question of "would it be worth it" using the same fragmentation_score
// spec.md §4.2-§4.4 already compute.
func (c *Cartridge) CompactionHint(threshold float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alloc.FragmentationScore() > threshold
}
