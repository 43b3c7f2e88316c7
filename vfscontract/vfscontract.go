// Package vfscontract defines the Go-level contract a SQLite VFS shim
// would implement against the cartridge core (spec.md §6): "translates
// SQLite file operations to read_file/write_file/metadata/delete_file/
// flush on the core; requires whole-file read and full-file rewrite per
// page-sized SQLite write."
//
// A real custom sqlite3_vfs needs a cgo callback surface that
// github.com/mattn/go-sqlite3 does not expose (its Register* hooks cover
// connections/authorizers/functions, not xOpen/xRead/xWrite/xSync), so
// this package stops at the plain interface plus a conformance test
// rather than a registered VFS.
package vfscontract

import "time"

// Stat is the subset of cartridge.catalog.FileMetadata a VFS shim needs.
type Stat struct {
	Size       int64
	ModifiedAt time.Time
}

// FileStore is the contract a SQLite VFS shim drives. Every method maps
// 1:1 onto a Cartridge operation (spec.md §6).
type FileStore interface {
	// ReadFile returns the whole file's content; SQLite's page-sized reads
	// are served by slicing the result, since the core's contract is
	// whole-file access.
	ReadFile(path string) ([]byte, error)
	// WriteFile rewrites the whole file. A VFS shim must read-modify-write
	// the full content for every SQLite page write, since the core has no
	// partial-write primitive.
	WriteFile(path string, data []byte) error
	// Stat reports size and modification time, or ok=false if path does
	// not exist.
	Stat(path string) (Stat, bool, error)
	// DeleteFile removes path, used for SQLite's journal/WAL cleanup.
	DeleteFile(path string) error
	// Flush durably persists every pending write, called from SQLite's
	// xSync.
	Flush() error
}
