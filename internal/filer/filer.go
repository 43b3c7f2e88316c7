// Package filer implements the backing-file I/O contract (spec.md §4.7):
// byte-addressed random access over a file sized to total_blocks * P, plus
// the two concrete implementations the cartridge orchestrator needs — a
// disk-backed Filer and an in-memory one for the no-backing-file
// constructor and for tests.
//
// Grounded on lldb.Filer / lldb.OSFiler / lldb.MemFiler: the same split
// between a persistent and an in-memory implementation of one small
// interface, adapted here from byte/atom addressing to whole-page
// addressing.
package filer

import (
	"io"
	"os"

	"github.com/archivefs/cartridge/errs"
	"github.com/archivefs/cartridge/internal/page"
)

// Filer is the backing-storage contract every cartridge operates over.
type Filer interface {
	// ReadPage reads the page at id into a page.Size-byte buffer.
	ReadPage(id uint64) ([]byte, error)
	// WritePage writes exactly page.Size bytes at id.
	WritePage(id uint64, data []byte) error
	// Extend grows the backing store to newTotalBlocks pages, zero-filled.
	Extend(newTotalBlocks uint64) error
	// Sync is a durability barrier equivalent to fsync.
	Sync() error
	// Path returns the underlying location, used only for snapshot
	// provenance; in-memory filers return "".
	Path() string
	// Close releases any underlying resources.
	Close() error
}

// OSFiler is a disk-backed Filer over an *os.File.
type OSFiler struct {
	f    *os.File
	path string
}

var _ Filer = (*OSFiler)(nil)

// OpenOSFiler opens (creating if necessary) the file at path as an
// OSFiler.
func OpenOSFiler(path string) (*OSFiler, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "OpenOSFiler", path, err)
	}
	return &OSFiler{f: f, path: path}, nil
}

func (o *OSFiler) offset(id uint64) int64 { return int64(id) * int64(page.Size) }

func (o *OSFiler) ReadPage(id uint64) ([]byte, error) {
	buf := make([]byte, page.Size)
	_, err := o.f.ReadAt(buf, o.offset(id))
	if err != nil && err != io.EOF {
		return nil, errs.Wrap(errs.KindIO, "OSFiler.ReadPage", o.path, err)
	}
	return buf, nil
}

func (o *OSFiler) WritePage(id uint64, data []byte) error {
	if len(data) != page.Size {
		return errs.New(errs.KindInvalidArgument, "OSFiler.WritePage", "data must be exactly one page")
	}
	if _, err := o.f.WriteAt(data, o.offset(id)); err != nil {
		return errs.Wrap(errs.KindIO, "OSFiler.WritePage", o.path, err)
	}
	return nil
}

func (o *OSFiler) Extend(newTotalBlocks uint64) error {
	size := int64(newTotalBlocks) * int64(page.Size)
	if err := o.f.Truncate(size); err != nil {
		return errs.Wrap(errs.KindIO, "OSFiler.Extend", o.path, err)
	}
	return nil
}

func (o *OSFiler) Sync() error {
	if err := o.f.Sync(); err != nil {
		return errs.Wrap(errs.KindIO, "OSFiler.Sync", o.path, err)
	}
	return nil
}

func (o *OSFiler) Path() string { return o.path }

func (o *OSFiler) Close() error {
	if err := o.f.Close(); err != nil {
		return errs.Wrap(errs.KindIO, "OSFiler.Close", o.path, err)
	}
	return nil
}

// MemFiler is an in-memory Filer, used by the no-backing-file cartridge
// constructor and by snapshot round-trip tests.
type MemFiler struct {
	pages map[uint64][]byte
	total uint64
}

var _ Filer = (*MemFiler)(nil)

func NewMemFiler() *MemFiler {
	return &MemFiler{pages: make(map[uint64][]byte)}
}

func (m *MemFiler) ReadPage(id uint64) ([]byte, error) {
	if buf, ok := m.pages[id]; ok {
		out := make([]byte, page.Size)
		copy(out, buf)
		return out, nil
	}
	return make([]byte, page.Size), nil
}

func (m *MemFiler) WritePage(id uint64, data []byte) error {
	if len(data) != page.Size {
		return errs.New(errs.KindInvalidArgument, "MemFiler.WritePage", "data must be exactly one page")
	}
	buf := make([]byte, page.Size)
	copy(buf, data)
	m.pages[id] = buf
	if id+1 > m.total {
		m.total = id + 1
	}
	return nil
}

func (m *MemFiler) Extend(newTotalBlocks uint64) error {
	if newTotalBlocks > m.total {
		m.total = newTotalBlocks
	}
	return nil
}

func (m *MemFiler) Sync() error { return nil }

func (m *MemFiler) Path() string { return "" }

func (m *MemFiler) Close() error { return nil }
