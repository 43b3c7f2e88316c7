package cartridge

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/archivefs/cartridge/errs"
	"github.com/archivefs/cartridge/internal/alloc"
	"github.com/archivefs/cartridge/internal/arc"
	"github.com/archivefs/cartridge/internal/catalog"
	"github.com/archivefs/cartridge/internal/filer"
	"github.com/archivefs/cartridge/internal/page"
)

const initialBlocks = reservedBlocks

// Create validates slug, derives a path from it (<slug>.cart in the
// current directory), and creates a disk-backed cartridge with a minimal
// initial size, emitting the manifest (spec.md §4.9).
func Create(slug, title string, opts Options) (*Cartridge, error) {
	return CreateAt(slug+".cart", slug, title, opts)
}

// CreateAt validates slug, creates a backing file at path (forcing the
// .cart extension), and emits /.cartridge/manifest.json.
func CreateAt(path, slug, title string, opts Options) (*Cartridge, error) {
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}

	path = forceCartExtension(path)

	if _, err := os.Stat(path); err == nil {
		return nil, errs.New(errs.KindAlreadyExists, "CreateAt", path)
	}

	fileCfg, err := LoadConfig(filepath.Join(filepath.Dir(path), ConfigFileName))
	if err != nil {
		return nil, err
	}
	opts = fileCfg.ApplyTo(opts)
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
	if err := f.Extend(initialBlocks); err != nil {
		_ = f.Close()
		_ = lock.Close()
		return nil, err
	}

	c := &Cartridge{
		opts:    opts,
		f:       f,
		header:  page.NewArchiveHeader(initialBlocks, initialBlocks-reservedBlocks, CatalogBlock),
		alloc:   alloc.NewHybrid(initialBlocks, opts.Log),
		catalog: catalog.New(),
		cache:   arc.New(opts.CacheCapacity, opts.Log),
		dirty:   make(map[uint64][]byte),
		lock:    lock,
	}
	c.alloc.MarkReserved([]uint64{HeaderBlock, CatalogBlock, AllocatorBlock})

	versioning, acl, sse := fileCfg.Fuses()
	c.header.SetVersioning(versioning)
	c.header.SetACL(acl)
	c.header.SetSSE(sse)

	manifest := NewManifest(slug, title)
	manifest.Created = now().UTC().Format(time.RFC3339)
	manifestBytes, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		_ = f.Close()
		_ = lock.Close()
		return nil, errs.Wrap(errs.KindInvariant, "CreateAt", "marshal manifest", err)
	}

	if err := c.createFileLocked(ManifestPath, manifestBytes); err != nil {
		_ = f.Close()
		_ = lock.Close()
		return nil, err
	}

	if err := c.flushLocked(); err != nil {
		_ = f.Close()
		_ = lock.Close()
		return nil, err
	}

	return c, nil
}

func forceCartExtension(path string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	return stem + ".cart"
}
