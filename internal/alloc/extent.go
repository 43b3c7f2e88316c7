package alloc

import (
	"sort"

	"github.com/archivefs/cartridge/errs"
)

// Extent is a contiguous run of blocks, [start, start+length).
type Extent struct {
	Start  uint64
	Length uint64
}

func (e Extent) end() uint64 { return e.Start + e.Length }

// allocatedBlocks expands every gap between free extents (and before the
// first/after the last) into an explicit block list. Used only when
// rebuilding the bitmap view from a deserialised extent list.
func (ea *ExtentAllocator) allocatedBlocks() []uint64 {
	var out []uint64
	var cursor uint64
	for _, e := range ea.extents {
		for b := cursor; b < e.Start; b++ {
			out = append(out, b)
		}
		cursor = e.end()
	}
	for b := cursor; b < ea.total; b++ {
		out = append(out, b)
	}
	return out
}

// adjacent reports whether a and b touch end-to-end in either order
// (spec.md §3: "Adjacent when a.start+a.length == b.start or symmetric").
func adjacent(a, b Extent) bool {
	return a.end() == b.Start || b.end() == a.Start
}

// ExtentAllocator tracks free space as a list of coalescing extents,
// ordered by start, and allocates with best-fit-by-size. Grounded on
// lldb's free-list-table (lldb/flt.go), which buckets free block runs by
// size and threads them through head/tail pointers; this implementation
// keeps a single start-ordered list per spec.md §4.3 instead of FLT's
// size-bucketed lists, since the spec's best-fit rule scans by size rather
// than by bucket, but the "never leave two free extents touching" discipline
// is the same invariant FLT's coalescing preserves.
type ExtentAllocator struct {
	extents []Extent // sorted by Start; invariant: no two are adjacent.
	total   uint64
}

// NewExtentAllocator returns an allocator over total blocks, starting with
// a single free extent spanning the whole range.
func NewExtentAllocator(total uint64) *ExtentAllocator {
	ea := &ExtentAllocator{total: total}
	if total > 0 {
		ea.extents = []Extent{{Start: 0, Length: total}}
	}
	return ea
}

// Total returns the number of blocks tracked.
func (ea *ExtentAllocator) Total() uint64 { return ea.total }

// FreeCount returns the advisory free-block count derived by summing the
// free extents. As with Bitmap, the hybrid allocator's own counter is
// canonical; this is for diagnostics and tests only.
func (ea *ExtentAllocator) FreeCount() uint64 {
	var sum uint64
	for _, e := range ea.extents {
		sum += e.Length
	}
	return sum
}

// Extents returns a copy of the current free-extent list, sorted by start.
func (ea *ExtentAllocator) Extents() []Extent {
	out := make([]Extent, len(ea.extents))
	copy(out, ea.extents)
	return out
}

func (ea *ExtentAllocator) indexAtOrAfter(start uint64) int {
	return sort.Search(len(ea.extents), func(i int) bool {
		return ea.extents[i].Start >= start
	})
}

// insertAndCoalesce inserts e into the free list, merging with the
// immediately preceding and following extents if adjacent. This is the
// central invariant (spec.md §4.3): after insertion, no two extents are
// adjacent.
func (ea *ExtentAllocator) insertAndCoalesce(e Extent) {
	i := ea.indexAtOrAfter(e.Start)

	// Merge with the nearest lower neighbour, if adjacent.
	if i > 0 && adjacent(ea.extents[i-1], e) {
		e = Extent{Start: ea.extents[i-1].Start, Length: ea.extents[i-1].Length + e.Length}
		ea.extents = append(ea.extents[:i-1], ea.extents[i:]...)
		i--
	}

	// Merge with the nearest higher neighbour, if adjacent.
	if i < len(ea.extents) && adjacent(e, ea.extents[i]) {
		e = Extent{Start: e.Start, Length: e.Length + ea.extents[i].Length}
		ea.extents = append(ea.extents[:i], ea.extents[i+1:]...)
	}

	ea.extents = append(ea.extents, Extent{})
	copy(ea.extents[i+1:], ea.extents[i:])
	ea.extents[i] = e
}

// removeRange carves [start, start+length) out of whatever free extent(s)
// currently cover it, splitting as needed. It is the caller's
// responsibility to ensure the range is actually free; ranges that are
// already allocated are silently skipped per block (mirrors spec.md's
// tolerant double-free semantics elsewhere in the allocator family).
func (ea *ExtentAllocator) removeRange(start, length uint64) {
	want := Extent{Start: start, Length: length}
	i := 0
	for i < len(ea.extents) {
		e := ea.extents[i]
		lo := max64(e.Start, want.Start)
		hi := min64(e.end(), want.end())
		if lo >= hi {
			i++
			continue
		}

		// e overlaps [lo, hi). Replace e with up to two remaining pieces.
		var replacement []Extent
		if e.Start < lo {
			replacement = append(replacement, Extent{Start: e.Start, Length: lo - e.Start})
		}
		if hi < e.end() {
			replacement = append(replacement, Extent{Start: hi, Length: e.end() - hi})
		}

		ea.extents = append(ea.extents[:i], append(replacement, ea.extents[i+1:]...)...)
		i += len(replacement)
	}
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// AllocateContiguous chooses the smallest free extent that is at least n
// blocks long (best-fit), allocates from its start, and reinserts any
// remainder. Returns errs.KindOutOfSpace if no extent fits.
func (ea *ExtentAllocator) AllocateContiguous(n uint64) (uint64, error) {
	if n == 0 {
		return 0, errs.New(errs.KindInvalidArgument, "extent.AllocateContiguous", "n must be > 0")
	}

	best := -1
	for i, e := range ea.extents {
		if e.Length < n {
			continue
		}
		if best == -1 || e.Length < ea.extents[best].Length {
			best = i
		}
	}

	if best == -1 {
		return 0, errs.New(errs.KindOutOfSpace, "extent.AllocateContiguous",
			"no free extent large enough for contiguous request")
	}

	chosen := ea.extents[best]
	ea.extents = append(ea.extents[:best], ea.extents[best+1:]...)

	if chosen.Length > n {
		ea.insertAndCoalesce(Extent{Start: chosen.Start + n, Length: chosen.Length - n})
	}

	return chosen.Start, nil
}

// FreeExtent frees blocks (not assumed sorted or contiguous as given),
// grouping them into maximal consecutive runs and coalescing each run with
// its free neighbours.
func (ea *ExtentAllocator) FreeExtent(blocks []uint64) {
	for _, run := range groupConsecutive(blocks) {
		ea.insertAndCoalesce(run)
	}
}

// MarkAllocated removes blocks (which need not be contiguous; the bitmap
// allocator does not promise contiguity) from the free-extent view,
// without touching any free-block counter. Used by the hybrid allocator to
// keep the extent view in sync when the bitmap allocator served a request.
func (ea *ExtentAllocator) MarkAllocated(blocks []uint64) {
	for _, run := range groupConsecutive(blocks) {
		ea.removeRange(run.Start, run.Length)
	}
}

// MarkFree inserts blocks back into the free-extent view, coalescing as
// usual, without touching any free-block counter.
func (ea *ExtentAllocator) MarkFree(blocks []uint64) {
	ea.FreeExtent(blocks)
}

// ExtendCapacity appends a new extent (total, added) covering the grown
// range, coalescing with the last extent if adjacent.
func (ea *ExtentAllocator) ExtendCapacity(newTotal uint64) {
	if newTotal <= ea.total {
		return
	}
	added := newTotal - ea.total
	ea.insertAndCoalesce(Extent{Start: ea.total, Length: added})
	ea.total = newTotal
}

// FragmentationScore is the number of free extents beyond the minimum of
// one, divided by total capacity: 0 means fully contiguous free space (at
// most one free extent). Since free extents are never adjacent, there are
// at most ceil(total/2) of them, so the score stays below 0.5 (reached
// only as free and allocated blocks alternate).
func (ea *ExtentAllocator) FragmentationScore() float64 {
	if ea.total == 0 || len(ea.extents) <= 1 {
		return 0
	}
	return float64(len(ea.extents)-1) / float64(ea.total)
}

// groupConsecutive sorts blocks and folds runs of consecutive ids into
// Extents.
func groupConsecutive(blocks []uint64) []Extent {
	if len(blocks) == 0 {
		return nil
	}

	sorted := make([]uint64, len(blocks))
	copy(sorted, blocks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var runs []Extent
	runStart := sorted[0]
	runLen := uint64(1)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			continue // de-duplicate.
		}
		if sorted[i] == sorted[i-1]+1 {
			runLen++
			continue
		}
		runs = append(runs, Extent{Start: runStart, Length: runLen})
		runStart = sorted[i]
		runLen = 1
	}
	runs = append(runs, Extent{Start: runStart, Length: runLen})

	return runs
}
