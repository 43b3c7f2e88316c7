package cartridge

import (
	"path/filepath"

	"github.com/archivefs/cartridge/errs"
	"github.com/archivefs/cartridge/internal/alloc"
	"github.com/archivefs/cartridge/internal/catalog"
	"github.com/archivefs/cartridge/internal/page"
	"github.com/archivefs/cartridge/internal/snapshot"
)

// defaultSnapshotDirName is the directory created alongside a disk-backed
// cartridge to hold its snapshots, mirroring the manifest directory
// convention of spec.md §6.
const defaultSnapshotDirName = ".cartridge-snapshots"

// snapshotManager lazily constructs the snapshot.Manager rooted at the
// cartridge's snapshot directory (spec.md §4.8). An in-memory cartridge
// (no backing file) uses the relative directory .cartridge-snapshots,
// resolved against the working directory, unless Options.SnapshotDir
// overrides it.
func (c *Cartridge) snapshotManager() (*snapshot.Manager, error) {
	if c.snap != nil {
		return c.snap, nil
	}

	dir := c.opts.SnapshotDir
	if dir == "" {
		if c.f.Path() != "" {
			dir = filepath.Join(filepath.Dir(c.f.Path()), defaultSnapshotDirName)
		} else {
			dir = defaultSnapshotDirName
		}
	}
	c.snapshotDir = dir

	m, err := snapshot.New(dir, c.opts.Log)
	if err != nil {
		return nil, err
	}
	c.snap = m
	return m, nil
}

// collectPagesLocked gathers the full on-disk representation of every block the
// archive currently uses: the header, the catalog, the allocator state,
// and every content block referenced from the catalog (spec.md §3:
// "page_set: map<block_id, bytes>").
func (c *Cartridge) collectPagesLocked() (map[uint64][]byte, error) {
	pages := make(map[uint64][]byte)

	headerBuf := make([]byte, page.Size)
	copy(headerBuf, c.header.ToBytes())
	pages[HeaderBlock] = headerBuf

	catalogBytes, err := c.catalog.Marshal()
	if err != nil {
		return nil, errs.Wrap(errs.KindInvariant, "Snapshot", "marshal catalog", err)
	}
	catalogPage, err := page.NewWithPayload(page.TypeCatalogBTree, catalogBytes)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvariant, "Snapshot", "build catalog page", err)
	}
	catalogPage.Seal()
	pages[CatalogBlock] = catalogPage.Bytes()

	allocBytes, err := c.alloc.Marshal()
	if err != nil {
		return nil, errs.Wrap(errs.KindInvariant, "Snapshot", "marshal allocator", err)
	}
	allocPage, err := page.NewWithPayload(page.TypeFreelist, allocBytes)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvariant, "Snapshot", "build allocator page", err)
	}
	allocPage.Seal()
	pages[AllocatorBlock] = allocPage.Bytes()

	for _, entry := range c.catalog.RangeSearch("") {
		for _, blockID := range entry.Value.Blocks {
			if _, ok := pages[blockID]; ok {
				continue
			}
			raw, err := c.blockBytesLocked(blockID)
			if err != nil {
				return nil, err
			}
			pages[blockID] = raw
		}
	}

	return pages, nil
}

// blockBytesLocked returns the full serialized page bytes for blockID,
// preferring a staged dirty write over the backing file.
func (c *Cartridge) blockBytesLocked(blockID uint64) ([]byte, error) {
	if staged, ok := c.dirty[blockID]; ok {
		out := make([]byte, len(staged))
		copy(out, staged)
		return out, nil
	}
	return c.f.ReadPage(blockID)
}

// CreateSnapshot writes the current page set and header to the snapshot
// directory, returning a microsecond-timestamp id (spec.md §4.8).
func (c *Cartridge) CreateSnapshot(name, description string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkPolicy("snapshot", "create_snapshot", name); err != nil {
		return 0, err
	}

	mgr, err := c.snapshotManager()
	if err != nil {
		return 0, err
	}

	pages, err := c.collectPagesLocked()
	if err != nil {
		return 0, err
	}

	parentPath := ""
	if c.f != nil {
		parentPath = c.f.Path()
	}

	id, err := mgr.CreateSnapshot(snapshotIDNow, name, description, parentPath, pages)
	if err != nil {
		return 0, err
	}

	c.audit("system", "create_snapshot", name, "")
	return id, nil
}

// snapshotIDNow mints a microsecond-timestamp snapshot id; overridden in
// tests for determinism.
var snapshotIDNow snapshot.IDFunc = func() uint64 {
	return uint64(now().UnixMicro())
}

// RestoreSnapshot rewrites the live archive from a prior snapshot's page
// set: every page is written back to the backing store, the in-memory
// header/catalog/allocator are reloaded from the restored pages, and the
// page cache and dirty set are dropped (spec.md §4.8, scenario 5).
func (c *Cartridge) RestoreSnapshot(id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkPolicy("snapshot", "restore_snapshot", ""); err != nil {
		return err
	}

	mgr, err := c.snapshotManager()
	if err != nil {
		return err
	}

	pages, err := mgr.RestoreSnapshot(id)
	if err != nil {
		return err
	}

	var maxBlock uint64
	for blockID := range pages {
		if blockID+1 > maxBlock {
			maxBlock = blockID + 1
		}
	}
	if maxBlock > 0 {
		if err := c.f.Extend(maxBlock); err != nil {
			return err
		}
	}
	for blockID, raw := range pages {
		if err := c.f.WritePage(blockID, raw); err != nil {
			return err
		}
	}

	headerBuf, ok := pages[HeaderBlock]
	if !ok {
		return errs.New(errs.KindCorruption, "RestoreSnapshot", "snapshot missing header block")
	}
	header, err := page.HeaderFromBytes(headerBuf)
	if err != nil {
		return errs.Wrap(errs.KindFormat, "RestoreSnapshot", "header", err)
	}

	catalogBuf, ok := pages[CatalogBlock]
	if !ok {
		return errs.New(errs.KindCorruption, "RestoreSnapshot", "snapshot missing catalog block")
	}
	catalogPage, err := page.Deserialize(catalogBuf)
	if err != nil {
		return errs.Wrap(errs.KindFormat, "RestoreSnapshot", "catalog page", err)
	}
	tree, err := catalog.Unmarshal(catalogPage.Payload())
	if err != nil {
		return err
	}

	allocBuf, ok := pages[AllocatorBlock]
	if !ok {
		return errs.New(errs.KindCorruption, "RestoreSnapshot", "snapshot missing allocator block")
	}
	allocPage, err := page.Deserialize(allocBuf)
	if err != nil {
		return errs.Wrap(errs.KindFormat, "RestoreSnapshot", "allocator page", err)
	}
	hybrid, err := alloc.Unmarshal(allocPage.Payload())
	if err != nil {
		return err
	}

	c.header = header
	c.catalog = tree
	c.alloc = hybrid
	c.dirty = make(map[uint64][]byte)
	c.cache.Purge()

	c.audit("system", "restore_snapshot", "", "")
	return nil
}

// DeleteSnapshot removes a snapshot's directory and in-memory entry.
func (c *Cartridge) DeleteSnapshot(id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mgr, err := c.snapshotManager()
	if err != nil {
		return err
	}
	return mgr.DeleteSnapshot(id)
}

// ListSnapshots returns every known snapshot's metadata, ascending by
// creation time.
func (c *Cartridge) ListSnapshots() ([]snapshot.Metadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mgr, err := c.snapshotManager()
	if err != nil {
		return nil, err
	}
	return mgr.ListSnapshots(), nil
}

// PruneSnapshots keeps the keepN most recent snapshots and deletes the
// rest (spec.md §4.8).
func (c *Cartridge) PruneSnapshots(keepN int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mgr, err := c.snapshotManager()
	if err != nil {
		return err
	}
	return mgr.PruneOldSnapshots(keepN)
}
