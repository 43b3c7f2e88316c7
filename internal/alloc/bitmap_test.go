package alloc

import "testing"

func TestBitmapAllocateAndFree(t *testing.T) {
	bm := NewBitmap(100, nil)

	blocks, err := bm.AllocateBlocks(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 10 {
		t.Fatalf("got %d blocks, want 10", len(blocks))
	}
	if bm.FreeCount() != 90 {
		t.Fatalf("free count = %d, want 90", bm.FreeCount())
	}
	for _, b := range blocks {
		if !bm.IsAllocated(b) {
			t.Fatalf("block %d should be allocated", b)
		}
	}

	bm.FreeAllocatedBlocks(blocks)
	if bm.FreeCount() != 100 {
		t.Fatalf("free count after free = %d, want 100", bm.FreeCount())
	}
	for _, b := range blocks {
		if bm.IsAllocated(b) {
			t.Fatalf("block %d should be free again", b)
		}
	}
}

func TestBitmapOutOfSpaceRollsBack(t *testing.T) {
	bm := NewBitmap(5, nil)

	if _, err := bm.AllocateBlocks(6); err == nil {
		t.Fatal("expected OutOfSpace error")
	}
	if bm.FreeCount() != 5 {
		t.Fatalf("failed allocation must not partially consume blocks: free count = %d, want 5", bm.FreeCount())
	}
}

func TestBitmapDoubleFreeIsWarningNotError(t *testing.T) {
	bm := NewBitmap(10, nil)
	blocks, _ := bm.AllocateBlocks(2)
	bm.FreeAllocatedBlocks(blocks)

	before := bm.FreeCount()
	bm.FreeAllocatedBlocks(blocks) // double free
	if bm.FreeCount() != before {
		t.Fatalf("double free must not double-count: before=%d after=%d", before, bm.FreeCount())
	}
}

func TestBitmapExtendCapacity(t *testing.T) {
	bm := NewBitmap(10, nil)
	bm.AllocateBlocks(5)

	bm.ExtendCapacity(20)
	if bm.Total() != 20 {
		t.Fatalf("total = %d, want 20", bm.Total())
	}
	if bm.FreeCount() != 15 {
		t.Fatalf("free count = %d, want 15", bm.FreeCount())
	}
	for b := uint64(10); b < 20; b++ {
		if bm.IsAllocated(b) {
			t.Fatalf("newly extended block %d should be free", b)
		}
	}
}

func TestBitmapFragmentationScore(t *testing.T) {
	bm := NewBitmap(8, nil)
	// Allocate alternating blocks: 0,2,4,6 -> maximal fragmentation.
	for _, b := range []uint64{0, 2, 4, 6} {
		bm.setBit(b)
	}
	score := bm.FragmentationScore()
	if score <= 0 {
		t.Fatalf("expected positive fragmentation score, got %v", score)
	}
}
