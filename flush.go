package cartridge

import (
	"github.com/archivefs/cartridge/errs"
	"github.com/archivefs/cartridge/internal/page"
)

// Flush serialises the catalog to block 1, the allocator to block 2, and
// the header to block 0, writes every dirty page, clears the dirty set,
// and syncs if Durability requires it (spec.md §4.9).
//
// Catalog or allocator serialisation that does not fit in one page is a
// fatal InvariantError in this contract (spec.md §9's first open
// question: "preserve this constraint and surface InvariantError on
// overflow — matching the source").
func (c *Cartridge) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

func (c *Cartridge) flushLocked() error {
	catalogBytes, err := c.catalog.Marshal()
	if err != nil {
		return errs.Wrap(errs.KindInvariant, "Flush", "marshal catalog", err)
	}
	if len(catalogBytes) > page.PayloadSize {
		return errs.New(errs.KindInvariant, "Flush", "serialised catalog exceeds one page")
	}

	allocBytes, err := c.alloc.Marshal()
	if err != nil {
		return errs.Wrap(errs.KindInvariant, "Flush", "marshal allocator", err)
	}
	if len(allocBytes) > page.PayloadSize {
		return errs.New(errs.KindInvariant, "Flush", "serialised allocator state exceeds one page")
	}

	if c.header.FreeBlocks > c.header.TotalBlocks {
		return errs.New(errs.KindInvariant, "Flush", "free_blocks exceeds total_blocks")
	}

	c.header.FreeBlocks = c.alloc.FreeBlocks()
	c.header.TotalBlocks = c.alloc.Total()

	catalogPage, err := page.NewWithPayload(page.TypeCatalogBTree, catalogBytes)
	if err != nil {
		return errs.Wrap(errs.KindInvariant, "Flush", "build catalog page", err)
	}
	catalogPage.Seal()

	allocPage, err := page.NewWithPayload(page.TypeFreelist, allocBytes)
	if err != nil {
		return errs.Wrap(errs.KindInvariant, "Flush", "build allocator page", err)
	}
	allocPage.Seal()

	headerBuf := make([]byte, page.Size)
	copy(headerBuf, c.header.ToBytes())

	if err := c.f.WritePage(HeaderBlock, headerBuf); err != nil {
		return err
	}
	if err := c.f.WritePage(CatalogBlock, catalogPage.Bytes()); err != nil {
		return err
	}
	if err := c.f.WritePage(AllocatorBlock, allocPage.Bytes()); err != nil {
		return err
	}

	for id, payload := range c.dirty {
		if id == HeaderBlock || id == CatalogBlock || id == AllocatorBlock {
			continue
		}
		if err := c.f.WritePage(id, payload); err != nil {
			return err
		}
	}
	c.dirty = make(map[uint64][]byte)

	if c.opts.Durability == DurabilityFlush || c.opts.Durability == DurabilityFull {
		if err := c.f.Sync(); err != nil {
			return err
		}
	}

	return nil
}
