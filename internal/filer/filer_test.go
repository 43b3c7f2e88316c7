package filer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/archivefs/cartridge/internal/page"
)

func TestMemFilerWriteReadRoundTrip(t *testing.T) {
	m := NewMemFiler()

	data := bytes.Repeat([]byte{0xAB}, page.Size)
	if err := m.WritePage(3, data); err != nil {
		t.Fatal(err)
	}

	got, err := m.ReadPage(3)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("read page did not match written page")
	}
}

func TestMemFilerReadUnwrittenPageIsZeroFilled(t *testing.T) {
	m := NewMemFiler()
	got, err := m.ReadPage(42)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != page.Size {
		t.Fatalf("len(got) = %d, want %d", len(got), page.Size)
	}
	for _, b := range got {
		if b != 0 {
			t.Fatal("unwritten page should be all zero")
		}
	}
}

func TestMemFilerWritePageWrongSizeErrors(t *testing.T) {
	m := NewMemFiler()
	if err := m.WritePage(0, []byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for undersized page")
	}
}

func TestOSFilerWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.cart")

	f, err := OpenOSFiler(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := f.Extend(4); err != nil {
		t.Fatal(err)
	}

	data := bytes.Repeat([]byte{0x7F}, page.Size)
	if err := f.WritePage(2, data); err != nil {
		t.Fatal(err)
	}
	if err := f.Sync(); err != nil {
		t.Fatal(err)
	}

	got, err := f.ReadPage(2)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("read page did not match written page")
	}

	if f.Path() != path {
		t.Fatalf("Path() = %q, want %q", f.Path(), path)
	}
}

func TestOSFilerExtendGrowsFileSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grow.cart")

	f, err := OpenOSFiler(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := f.Extend(10); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 10*int64(page.Size) {
		t.Fatalf("file size = %d, want %d", info.Size(), 10*int64(page.Size))
	}
}

func TestLockExclusiveBlocksSecondAttempt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.lock")

	first, err := LockExclusive(path)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()

	if _, err := TryLockExclusive(path); err == nil {
		t.Fatal("expected TryLockExclusive to fail while first lock is held")
	}
}

func TestLockReleaseAllowsReacquire(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.lock")

	first, err := LockExclusive(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := TryLockExclusive(path)
	if err != nil {
		t.Fatalf("expected to reacquire lock after release, got %v", err)
	}
	defer second.Close()
}
