package alloc

import "testing"

func TestHybridMarshalUnmarshalRoundTrip(t *testing.T) {
	h := NewHybrid(1000, nil)
	h.MarkReserved([]uint64{0, 1, 2})
	if _, err := h.Allocate(500); err != nil {
		t.Fatal(err)
	}

	data, err := h.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	padded := make([]byte, len(data)+64)
	copy(padded, data)

	got, err := Unmarshal(padded)
	if err != nil {
		t.Fatal(err)
	}

	if got.Total() != h.Total() {
		t.Fatalf("Total() = %d, want %d", got.Total(), h.Total())
	}
	if got.FreeBlocks() != h.FreeBlocks() {
		t.Fatalf("FreeBlocks() = %d, want %d", got.FreeBlocks(), h.FreeBlocks())
	}

	for _, b := range []uint64{0, 1, 2} {
		if !got.Bitmap().IsAllocated(b) {
			t.Fatalf("block %d should be allocated after round trip", b)
		}
	}
}
