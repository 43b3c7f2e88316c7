package cartridge

import (
	"github.com/archivefs/cartridge/errs"
	"github.com/archivefs/cartridge/internal/alloc"
	"github.com/archivefs/cartridge/internal/arc"
	"github.com/archivefs/cartridge/internal/catalog"
	"github.com/archivefs/cartridge/internal/filer"
	"github.com/archivefs/cartridge/internal/page"
)

// Open reads and validates the header at path, loads the catalog from
// block 1 and the allocator from block 2 (spec.md §4.9).
func Open(path string, opts Options) (*Cartridge, error) {
	opts = opts.withDefaults()

	lock, err := filer.LockExclusive(path + ".lock")
	if err != nil {
		return nil, err
	}

	f, err := filer.OpenOSFiler(path)
	if err != nil {
		_ = lock.Close()
		return nil, err
	}

	headerBuf, err := f.ReadPage(HeaderBlock)
	if err != nil {
		_ = f.Close()
		_ = lock.Close()
		return nil, err
	}
	header, err := page.HeaderFromBytes(headerBuf)
	if err != nil {
		_ = f.Close()
		_ = lock.Close()
		return nil, errs.Wrap(errs.KindFormat, "Open", path, err)
	}

	catalogBuf, err := f.ReadPage(CatalogBlock)
	if err != nil {
		_ = f.Close()
		_ = lock.Close()
		return nil, err
	}
	catalogPage, err := page.Deserialize(catalogBuf)
	if err != nil {
		_ = f.Close()
		_ = lock.Close()
		return nil, errs.Wrap(errs.KindFormat, "Open", "catalog page", err)
	}
	if !catalogPage.Verify() {
		_ = f.Close()
		_ = lock.Close()
		return nil, errs.New(errs.KindIO, "Open", "catalog page checksum mismatch")
	}
	tree, err := catalog.Unmarshal(catalogPage.Payload())
	if err != nil {
		_ = f.Close()
		_ = lock.Close()
		return nil, err
	}

	allocBuf, err := f.ReadPage(AllocatorBlock)
	if err != nil {
		_ = f.Close()
		_ = lock.Close()
		return nil, err
	}
	allocPage, err := page.Deserialize(allocBuf)
	if err != nil {
		_ = f.Close()
		_ = lock.Close()
		return nil, errs.Wrap(errs.KindFormat, "Open", "allocator page", err)
	}
	if !allocPage.Verify() {
		_ = f.Close()
		_ = lock.Close()
		return nil, errs.New(errs.KindIO, "Open", "allocator page checksum mismatch")
	}
	hybrid, err := alloc.Unmarshal(allocPage.Payload())
	if err != nil {
		_ = f.Close()
		_ = lock.Close()
		return nil, err
	}

	c := &Cartridge{
		opts:    opts,
		f:       f,
		header:  header,
		alloc:   hybrid,
		catalog: tree,
		cache:   arc.New(opts.CacheCapacity, opts.Log),
		dirty:   make(map[uint64][]byte),
		lock:    lock,
	}

	return c, nil
}
