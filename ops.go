package cartridge

import (
	"github.com/archivefs/cartridge/errs"
	"github.com/archivefs/cartridge/internal/catalog"
	"github.com/archivefs/cartridge/internal/page"
)

// CreateFile refuses if path exists; otherwise ensures capacity, allocates
// blocks, splits content into page-sized chunks (last zero-padded), stages
// dirty pages, inserts metadata, and audits (spec.md §4.9).
func (c *Cartridge) CreateFile(path string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkPolicy("file-write", "create_file", path); err != nil {
		return err
	}
	if err := c.createFileLocked(path, data); err != nil {
		return err
	}
	c.audit("system", "create_file", path, "")
	return nil
}

func (c *Cartridge) createFileLocked(path string, data []byte) error {
	if _, ok := c.catalog.Search(path); ok {
		return errs.New(errs.KindAlreadyExists, "CreateFile", path)
	}

	var blocks []uint64
	if len(data) > 0 {
		if err := c.ensureCapacityLocked(uint64(len(data))); err != nil {
			return err
		}

		n := blockCount(len(data))
		got, err := c.alloc.Allocate(uint64(n))
		if err != nil {
			return errs.Wrap(errs.KindOutOfSpace, "CreateFile", path, err)
		}
		blocks = got

		c.stagePages(blocks, data)
	}

	now := now()
	meta := catalog.FileMetadata{
		FileType:   catalog.FileTypeFile,
		Size:       uint64(len(data)),
		Blocks:     blocks,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	c.catalog.Insert(path, meta)
	c.header.FreeBlocks = c.alloc.FreeBlocks()

	return nil
}

// stagePages splits data into page.PayloadSize-sized chunks (the last
// zero-padded) and stages each as a dirty content page.
func (c *Cartridge) stagePages(blocks []uint64, data []byte) {
	for i, blockID := range blocks {
		start := i * page.PayloadSize
		end := start + page.PayloadSize
		if end > len(data) {
			end = len(data)
		}

		p, _ := page.NewWithPayload(page.TypeContentData, data[start:end])
		p.Seal()
		c.dirty[blockID] = p.Bytes()
		c.cache.Put(blockID, p.Payload())
	}
}

func blockCount(size int) int {
	n := size / page.PayloadSize
	if size%page.PayloadSize != 0 {
		n++
	}
	return n
}

// ReadFile requires existing metadata; reads each block from cache or the
// backing file (caching the result), concatenates, and truncates to size.
func (c *Cartridge) ReadFile(path string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkPolicy("file-read", "read_file", path); err != nil {
		return nil, err
	}

	meta, ok := c.catalog.Search(path)
	if !ok {
		return nil, errs.New(errs.KindNotFound, "ReadFile", path)
	}

	out := make([]byte, 0, meta.Size)
	for _, blockID := range meta.Blocks {
		payload, err := c.readPageLocked(blockID)
		if err != nil {
			return nil, err
		}
		out = append(out, payload...)
	}
	if uint64(len(out)) > meta.Size {
		out = out[:meta.Size]
	}

	c.audit("system", "read_file", path, "")
	return out, nil
}

func (c *Cartridge) readPageLocked(blockID uint64) ([]byte, error) {
	if payload, ok := c.cache.Get(blockID); ok {
		return payload, nil
	}
	if staged, ok := c.dirty[blockID]; ok {
		p, err := page.Deserialize(staged)
		if err != nil {
			return nil, errs.Wrap(errs.KindCorruption, "readPage", "dirty buffer", err)
		}
		c.cache.Put(blockID, p.Payload())
		return p.Payload(), nil
	}

	raw, err := c.f.ReadPage(blockID)
	if err != nil {
		return nil, err
	}
	p, err := page.Deserialize(raw)
	if err != nil {
		return nil, errs.Wrap(errs.KindFormat, "readPage", "invalid page", err)
	}
	if !p.Verify() {
		return nil, errs.New(errs.KindIO, "readPage", "checksum mismatch")
	}
	c.cache.Put(blockID, p.Payload())
	return p.Payload(), nil
}

// WriteFile requires an existing file; frees its old blocks, allocates new
// ones, writes, and updates size/blocks/modified_at (spec.md §4.9).
func (c *Cartridge) WriteFile(path string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkPolicy("file-write", "write_file", path); err != nil {
		return err
	}

	meta, ok := c.catalog.Search(path)
	if !ok {
		return errs.New(errs.KindNotFound, "WriteFile", path)
	}

	c.alloc.Free(meta.Blocks)
	for _, b := range meta.Blocks {
		delete(c.dirty, b)
	}

	var blocks []uint64
	if len(data) > 0 {
		if err := c.ensureCapacityLocked(uint64(len(data))); err != nil {
			return err
		}
		got, err := c.alloc.Allocate(uint64(blockCount(len(data))))
		if err != nil {
			return errs.Wrap(errs.KindOutOfSpace, "WriteFile", path, err)
		}
		blocks = got
		c.stagePages(blocks, data)
	}

	meta.Size = uint64(len(data))
	meta.Blocks = blocks
	meta.ModifiedAt = now()
	c.catalog.Insert(path, meta)
	c.header.FreeBlocks = c.alloc.FreeBlocks()

	c.audit("system", "write_file", path, "")
	return nil
}

// AppendFile reads the existing content, appends suffix, and writes the
// concatenation back (spec.md §4.9: "composed from the above").
func (c *Cartridge) AppendFile(path string, suffix []byte) error {
	current, err := c.ReadFile(path)
	if err != nil {
		return err
	}
	return c.WriteFile(path, append(current, suffix...))
}

// DeleteFile requires an existing path; frees its blocks and removes the
// catalog entry.
func (c *Cartridge) DeleteFile(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkPolicy("file-write", "delete_file", path); err != nil {
		return err
	}

	meta, ok := c.catalog.Delete(path)
	if !ok {
		return errs.New(errs.KindNotFound, "DeleteFile", path)
	}

	c.alloc.Free(meta.Blocks)
	for _, b := range meta.Blocks {
		delete(c.dirty, b)
	}
	c.header.FreeBlocks = c.alloc.FreeBlocks()

	c.audit("system", "delete_file", path, "")
	return nil
}

// CreateDir inserts a directory entry with no blocks.
func (c *Cartridge) CreateDir(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkPolicy("file-write", "create_dir", path); err != nil {
		return err
	}
	if _, ok := c.catalog.Search(path); ok {
		return errs.New(errs.KindAlreadyExists, "CreateDir", path)
	}

	ts := now()
	c.catalog.Insert(path, catalog.FileMetadata{
		FileType:   catalog.FileTypeDirectory,
		CreatedAt:  ts,
		ModifiedAt: ts,
	})

	c.audit("system", "create_dir", path, "")
	return nil
}

// ListDir returns every catalog entry whose path starts with prefix,
// composed from RangeSearch (spec.md §4.9).
func (c *Cartridge) ListDir(prefix string) []catalog.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalog.RangeSearch(prefix)
}
