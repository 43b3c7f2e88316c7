// Package cartridge implements the top-level orchestrator (spec.md §4.9):
// a mutable, page-based single-file archive with a filesystem-like
// interface, sequencing the page/header, hybrid allocator, B+ tree
// catalog, ARC buffer pool, backing file I/O, and snapshot manager
// packages into one durable store.
//
// Grounded on github.com/cznic/exp/dbm's DB type: one struct owning the
// allocator, the catalog (there: per-array trees; here: one path catalog),
// the caches, and a single coarse lock guarding all of it, with a
// Create/Open split and an explicit Sync/flush boundary rather than
// per-operation durability.
package cartridge

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/archivefs/cartridge/errs"
	"github.com/archivefs/cartridge/internal/alloc"
	"github.com/archivefs/cartridge/internal/arc"
	"github.com/archivefs/cartridge/internal/catalog"
	"github.com/archivefs/cartridge/internal/filer"
	"github.com/archivefs/cartridge/internal/logging"
	"github.com/archivefs/cartridge/internal/page"
	"github.com/archivefs/cartridge/internal/snapshot"
)

// Block ids reserved at construction time (spec.md §3: "Block 0 is
// header, 1 catalog root, 2 allocator state").
const (
	HeaderBlock    uint64 = 0
	CatalogBlock   uint64 = 1
	AllocatorBlock uint64 = 2
	reservedBlocks        = 3
)

// Durability selects how aggressively flush/close sync the backing file,
// mirroring dbm.Options's ACID tiers (ACIDNone/ACIDTransactions/ACIDFull)
// adapted to this engine's explicit-flush contract (spec.md §5: "no
// per-operation durability; only flush and close promise prior mutations
// are on disk").
type Durability int

const (
	// DurabilityNone never calls Sync; Flush writes pages without syncing.
	// The zero value of Durability is not a tier: it means "unset" and
	// defaults to DurabilityFlush.
	DurabilityNone Durability = iota + 1
	// DurabilityFlush calls Sync on every Flush.
	DurabilityFlush
	// DurabilityFull calls Sync on every Flush and on Close.
	DurabilityFull
)

// Options configures a Cartridge at Create/Open/New time.
type Options struct {
	// MaxBlocks bounds auto-growth (spec.md §4.9 grow()); zero means no
	// bound beyond the natural uint64 range.
	MaxBlocks uint64
	// AutoGrow enables ensure_capacity's implicit grow() calls (spec.md
	// §4.9: "no-op if auto-grow disabled"; cartridge.rs's auto_grow
	// field, default true). nil defaults to true; set to a false pointer
	// for manual capacity management, where callers must Grow()
	// themselves and writes that would otherwise grow the archive fail
	// OutOfSpace instead.
	AutoGrow *bool
	// CacheCapacity is the ARC buffer pool's page capacity.
	CacheCapacity int
	// Durability selects the sync tier; defaults to DurabilityFlush.
	Durability Durability
	// Policy, if non-nil, is consulted before every mutating operation.
	Policy PolicyEngine
	// Audit, if non-nil, receives a fire-and-forget record of every
	// operation.
	Audit AuditSink
	// SnapshotDir overrides where snapshots are stored; defaults to a
	// directory next to the backing file (or a relative directory for
	// in-memory cartridges).
	SnapshotDir string
	// Log is the structured logger; defaults to discarding everything.
	Log *logrus.Entry
}

func (o Options) withDefaults() Options {
	if o.CacheCapacity <= 0 {
		o.CacheCapacity = 256
	}
	if o.AutoGrow == nil {
		t := true
		o.AutoGrow = &t
	}
	if o.Durability == 0 {
		o.Durability = DurabilityFlush
	}
	o.Log = logging.OrDefault(o.Log)
	return o
}

// PolicyEngine is the access-control contract (spec.md §6): "evaluate
// returns false surfaces as AccessDenied".
type PolicyEngine interface {
	Evaluate(policy, action, path string, context map[string]string) bool
}

// AuditSink is the fire-and-forget audit contract (spec.md §6).
type AuditSink interface {
	Log(actor, op, resourceID, session string)
}

// Cartridge is the orchestrator: header, allocator, catalog, cache, dirty
// set, and (optionally) the backing file, all guarded by one coarse lock
// per spec.md §9's "shared mutable orchestrator state" note.
type Cartridge struct {
	mu sync.Mutex

	opts Options

	f       filer.Filer
	header  *page.ArchiveHeader
	alloc   *alloc.Hybrid
	catalog *catalog.Tree
	cache   *arc.Cache

	dirty map[uint64][]byte // block id -> payload bytes staged for flush.

	snapshotDir string
	snap        *snapshot.Manager
	lock        *filer.FileLock // held for the lifetime of a disk-backed cartridge.

	closed bool
}

// New creates an in-memory-only cartridge with totalBlocks capacity,
// reserving blocks 0/1/2 (spec.md §4.9: "new(total_blocks): in-memory
// only; reserves blocks 0,1,2; catalog root at 1").
func New(totalBlocks uint64, opts Options) (*Cartridge, error) {
	opts = opts.withDefaults()

	if totalBlocks < reservedBlocks {
		return nil, errs.New(errs.KindInvalidArgument, "New", "total_blocks must be at least 3")
	}

	c := &Cartridge{
		opts:    opts,
		f:       filer.NewMemFiler(),
		header:  page.NewArchiveHeader(totalBlocks, totalBlocks-reservedBlocks, CatalogBlock),
		alloc:   alloc.NewHybrid(totalBlocks, opts.Log),
		catalog: catalog.New(),
		cache:   arc.New(opts.CacheCapacity, opts.Log),
		dirty:   make(map[uint64][]byte),
	}
	c.alloc.MarkReserved([]uint64{HeaderBlock, CatalogBlock, AllocatorBlock})

	return c, nil
}

func (c *Cartridge) audit(actor, op, resourceID, session string) {
	if c.opts.Audit != nil {
		c.opts.Audit.Log(actor, op, resourceID, session)
	}
}

func (c *Cartridge) checkPolicy(policyName, action, path string) error {
	if c.opts.Policy == nil {
		return nil
	}
	if !c.opts.Policy.Evaluate(policyName, action, path, nil) {
		return errs.New(errs.KindAccessDenied, action, path)
	}
	return nil
}

// Close releases the backing file and any held lock. If Durability is
// DurabilityFull, it flushes and syncs first.
func (c *Cartridge) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	if c.opts.Durability == DurabilityFull {
		if err := c.flushLocked(); err != nil {
			return err
		}
	}

	if c.lock != nil {
		if err := c.lock.Close(); err != nil {
			return err
		}
	}
	if err := c.f.Close(); err != nil {
		return err
	}
	c.closed = true
	return nil
}

// now is overridden in tests; production code uses wall-clock time.
var now = func() time.Time { return time.Now() }
