package cartridge

import (
	"github.com/archivefs/cartridge/errs"
	"github.com/archivefs/cartridge/internal/page"
)

// EnsureCapacity grows the archive, if auto-grow is enabled, until
// free_blocks * P >= bytes (spec.md §4.9).
func (c *Cartridge) EnsureCapacity(bytes uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureCapacityLocked(bytes)
}

func (c *Cartridge) ensureCapacityLocked(bytes uint64) error {
	if c.opts.AutoGrow != nil && !*c.opts.AutoGrow {
		return nil
	}
	for c.alloc.FreeBlocks()*uint64(page.Size) < bytes {
		if err := c.growLocked(); err != nil {
			return err
		}
	}
	return nil
}

// Grow doubles total_blocks, capped at MaxBlocks, extends the backing
// file and the allocator, and updates the header (spec.md §4.9).
func (c *Cartridge) Grow() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.growLocked()
}

func (c *Cartridge) growLocked() error {
	current := c.alloc.Total()

	newTotal := current * 2
	if c.opts.MaxBlocks > 0 && newTotal > c.opts.MaxBlocks {
		newTotal = c.opts.MaxBlocks
	}
	if newTotal <= current {
		return errs.New(errs.KindOutOfSpace, "Grow", "already at max_blocks")
	}

	if err := c.f.Extend(newTotal); err != nil {
		return err
	}
	c.alloc.ExtendCapacity(newTotal)
	c.header.TotalBlocks = newTotal
	c.header.FreeBlocks = c.alloc.FreeBlocks()

	return nil
}
