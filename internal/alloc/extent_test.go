package alloc

import "testing"

func TestExtentAllocateBestFit(t *testing.T) {
	ea := NewExtentAllocator(1000)

	a1, err := ea.AllocateContiguous(500) // consumes [0,500); remainder [500,1000).
	if err != nil {
		t.Fatal(err)
	}
	_, err = ea.AllocateContiguous(400) // consumes [500,900); remainder [900,1000).
	if err != nil {
		t.Fatal(err)
	}

	ea.FreeExtent(rangeOf(a1, 500)) // re-frees [0,500); free list is now [0,500) and [900,1000).

	start, err := ea.AllocateContiguous(40)
	if err != nil {
		t.Fatal(err)
	}
	if start != 900 {
		t.Fatalf("best-fit should pick the smaller hole at 900, got start=%d", start)
	}
}

func TestExtentCoalescesOnFree(t *testing.T) {
	ea := NewExtentAllocator(100)

	a, err := ea.AllocateContiguous(10)
	if err != nil {
		t.Fatal(err)
	}
	b, err := ea.AllocateContiguous(10)
	if err != nil {
		t.Fatal(err)
	}

	ea.FreeExtent(rangeOf(a, 10))
	ea.FreeExtent(rangeOf(b, 10))

	assertNoAdjacentExtents(t, ea)
	if ea.FreeCount() != 100 {
		t.Fatalf("free count = %d, want 100", ea.FreeCount())
	}
}

func TestExtentOutOfSpace(t *testing.T) {
	ea := NewExtentAllocator(10)
	if _, err := ea.AllocateContiguous(11); err == nil {
		t.Fatal("expected OutOfSpace")
	}
}

func TestExtentExtendCapacityCoalescesWithLast(t *testing.T) {
	ea := NewExtentAllocator(10)
	ea.AllocateContiguous(5) // leaves [5,10) free, the last extent.

	ea.ExtendCapacity(20) // new range [10,20) touches [5,10).
	if len(ea.Extents()) != 1 {
		t.Fatalf("expected a single coalesced extent after extend, got %d", len(ea.Extents()))
	}
	if ea.FreeCount() != 15 {
		t.Fatalf("free count = %d, want 15", ea.FreeCount())
	}
}

func TestExtentMarkAllocatedSplitsExtent(t *testing.T) {
	ea := NewExtentAllocator(100)
	ea.MarkAllocated([]uint64{40, 41, 42})

	for _, b := range []uint64{40, 41, 42} {
		assertNotFree(t, ea, b)
	}
	assertNoAdjacentExtents(t, ea)
	if ea.FreeCount() != 97 {
		t.Fatalf("free count = %d, want 97", ea.FreeCount())
	}
}

func TestExtentMarkFreeReversesMarkAllocated(t *testing.T) {
	ea := NewExtentAllocator(100)
	blocks := []uint64{40, 41, 42}
	ea.MarkAllocated(blocks)
	ea.MarkFree(blocks)

	if ea.FreeCount() != 100 {
		t.Fatalf("free count = %d, want 100", ea.FreeCount())
	}
	if len(ea.Extents()) != 1 {
		t.Fatalf("expected fully coalesced single extent, got %d", len(ea.Extents()))
	}
}

func rangeOf(start, length uint64) []uint64 {
	out := make([]uint64, length)
	for i := range out {
		out[i] = start + uint64(i)
	}
	return out
}

func assertNoAdjacentExtents(t *testing.T, ea *ExtentAllocator) {
	t.Helper()
	exts := ea.Extents()
	for i := 1; i < len(exts); i++ {
		if exts[i-1].end() == exts[i].Start {
			t.Fatalf("extents %v and %v are adjacent; missed coalescing", exts[i-1], exts[i])
		}
	}
}

func assertNotFree(t *testing.T, ea *ExtentAllocator, block uint64) {
	t.Helper()
	for _, e := range ea.Extents() {
		if block >= e.Start && block < e.end() {
			t.Fatalf("block %d expected allocated, found free in extent %v", block, e)
		}
	}
}
