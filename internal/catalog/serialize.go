package catalog

import (
	"encoding/json"

	"github.com/archivefs/cartridge/errs"
)

// wireTree is the JSON shape written to the catalog page. Nodes are stored
// as a flat list rather than nested, matching the arena-by-id
// representation used in memory.
type wireTree struct {
	RootID uint64  `json:"root_id"`
	NextID uint64  `json:"next_id"`
	Nodes  []*node `json:"nodes"`
}

// Marshal encodes the catalog as JSON. The caller is responsible for
// checking the result fits in one page; Marshal itself has no size limit.
func (t *Tree) Marshal() ([]byte, error) {
	w := wireTree{RootID: t.rootID, NextID: t.nextID}
	for _, n := range t.nodes {
		w.Nodes = append(w.Nodes, n)
	}
	return json.Marshal(w)
}

// Unmarshal decodes a catalog from its JSON form. Because JSON text never
// contains a raw zero byte, callers may zero-pad the page payload and hand
// it to Unmarshal as-is; the input is cut at the first zero byte before
// decoding, so the padding never reaches the JSON decoder.
func Unmarshal(data []byte) (*Tree, error) {
	// Trim at the first zero byte, matching the "deserialise the prefix up
	// to the first zero byte" load contract (spec.md §6).
	if i := indexZero(data); i >= 0 {
		data = data[:i]
	}

	var w wireTree
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errs.Wrap(errs.KindCorruption, "catalog.Unmarshal", "decoding catalog page", err)
	}

	t := &Tree{
		nodes:  make(map[uint64]*node, len(w.Nodes)),
		rootID: w.RootID,
		nextID: w.NextID,
	}
	for _, n := range w.Nodes {
		t.nodes[n.ID] = n
	}
	if _, ok := t.nodes[t.rootID]; !ok {
		return nil, errs.New(errs.KindCorruption, "catalog.Unmarshal", "root id not present among decoded nodes")
	}
	return t, nil
}

func indexZero(data []byte) int {
	for i, b := range data {
		if b == 0 {
			return i
		}
	}
	return -1
}
