package alloc

import "testing"

func TestHybridRoutesBySize(t *testing.T) {
	h := NewHybrid(1000, nil)

	small, err := h.Allocate(10) // below Threshold -> bitmap.
	if err != nil {
		t.Fatal(err)
	}
	if len(small) != 10 {
		t.Fatalf("got %d blocks, want 10", len(small))
	}

	large, err := h.Allocate(Threshold + 10) // at/above Threshold -> extent.
	if err != nil {
		t.Fatal(err)
	}
	if len(large) != Threshold+10 {
		t.Fatalf("got %d blocks, want %d", len(large), Threshold+10)
	}

	// Both views must agree on what's allocated: the bitmap must know
	// about the extent-routed blocks and vice versa.
	for _, b := range large {
		if !h.bitmap.IsAllocated(b) {
			t.Fatalf("bitmap view missing extent-allocated block %d", b)
		}
	}
	for _, e := range h.extent.Extents() {
		for _, b := range small {
			if b >= e.Start && b < e.end() {
				t.Fatalf("extent view still shows bitmap-allocated block %d as free", b)
			}
		}
	}
}

func TestHybridCanonicalFreeBlocksSurvivesRoundTrip(t *testing.T) {
	h := NewHybrid(1000, nil)
	before := h.FreeBlocks()
	beforeFrag := h.FragmentationScore()

	blocks, err := h.Allocate(200)
	if err != nil {
		t.Fatal(err)
	}
	h.Free(blocks)

	if h.FreeBlocks() != before {
		t.Fatalf("free_blocks after allocate+free = %d, want %d", h.FreeBlocks(), before)
	}
	if h.FragmentationScore() != beforeFrag {
		t.Fatalf("fragmentation after allocate+free = %v, want %v", h.FragmentationScore(), beforeFrag)
	}
}

func TestHybridExtendCapacity(t *testing.T) {
	h := NewHybrid(100, nil)
	h.Allocate(50)

	h.ExtendCapacity(200)
	if h.Total() != 200 {
		t.Fatalf("total = %d, want 200", h.Total())
	}
	if h.FreeBlocks() != 150 {
		t.Fatalf("free_blocks = %d, want 150", h.FreeBlocks())
	}
}

func TestHybridOutOfSpace(t *testing.T) {
	h := NewHybrid(10, nil)
	if _, err := h.Allocate(11); err == nil {
		t.Fatal("expected OutOfSpace")
	}
}

func TestHybridMarkReserved(t *testing.T) {
	h := NewHybrid(100, nil)
	h.MarkReserved([]uint64{0, 1, 2})

	if h.FreeBlocks() != 97 {
		t.Fatalf("free_blocks = %d, want 97", h.FreeBlocks())
	}
	if !h.bitmap.IsAllocated(0) || !h.bitmap.IsAllocated(1) || !h.bitmap.IsAllocated(2) {
		t.Fatal("reserved blocks should show allocated in the bitmap view")
	}
}
