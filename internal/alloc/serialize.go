package alloc

import (
	"encoding/json"

	"github.com/archivefs/cartridge/errs"
)

// wireHybrid is the JSON shape persisted to the allocator page. Only the
// extent list and canonical counters are serialised; the bitmap view is
// rebuilt from the extent list on load (it is fully derivable: every block
// not covered by a free extent is allocated), avoiding two redundant
// encodings of the same free/used partition in one page.
type wireHybrid struct {
	Total      uint64   `json:"total"`
	FreeBlocks uint64   `json:"free_blocks"`
	Extents    []Extent `json:"extents"`
}

// Marshal encodes the allocator's canonical state as JSON, the same
// format catalog.Tree uses for page 1, so both pages share the
// "zero-pad, truncate at first 0x00" load contract (spec.md §6).
func (h *Hybrid) Marshal() ([]byte, error) {
	w := wireHybrid{Total: h.total, FreeBlocks: h.freeBlocks, Extents: h.extent.Extents()}
	return json.Marshal(w)
}

// Unmarshal decodes allocator state produced by Marshal and rebuilds the
// bitmap view from the extent list.
func Unmarshal(data []byte) (*Hybrid, error) {
	if i := indexZero(data); i >= 0 {
		data = data[:i]
	}

	var w wireHybrid
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errs.Wrap(errs.KindCorruption, "alloc.Unmarshal", "decoding allocator page", err)
	}

	h := NewHybrid(w.Total, nil)
	h.freeBlocks = w.FreeBlocks
	h.extent = &ExtentAllocator{extents: append([]Extent(nil), w.Extents...), total: w.Total}

	allocated := h.extent.allocatedBlocks()
	h.bitmap.MarkAllocated(allocated)

	return h, nil
}

func indexZero(data []byte) int {
	for i, b := range data {
		if b == 0 {
			return i
		}
	}
	return -1
}
