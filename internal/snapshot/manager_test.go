package snapshot

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func itoa(id uint64) string { return strconv.FormatUint(id, 10) }

func seqClock(start uint64) IDFunc {
	n := start
	return func() uint64 {
		n++
		return n
	}
}

func samplePages() map[uint64][]byte {
	return map[uint64][]byte{
		0: {0xAA, 0xAA},
		1: {0xBB, 0xBB, 0xBB},
		2: {},
	}
}

func TestCreateThenRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	id, err := m.CreateSnapshot(seqClock(1000), "before-write", "", "/archive.cart", samplePages())
	if err != nil {
		t.Fatal(err)
	}

	got, err := m.RestoreSnapshot(id)
	if err != nil {
		t.Fatal(err)
	}

	want := samplePages()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("restored page set differs from what was snapshotted (-want +got):\n%s", diff)
	}
}

func TestListSnapshotsSortedByCreatedAtAscending(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	clock := seqClock(1)
	var ids []uint64
	for i := 0; i < 3; i++ {
		id, err := m.CreateSnapshot(clock, "snap", "", "", samplePages())
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	list := m.ListSnapshots()
	if len(list) != 3 {
		t.Fatalf("len(list) = %d, want 3", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].CreatedAt > list[i].CreatedAt {
			t.Fatal("snapshots not sorted ascending by created_at")
		}
	}
}

func TestPruneOldSnapshotsKeepsMostRecentN(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	clock := seqClock(1)
	var ids []uint64
	for i := 0; i < 5; i++ {
		id, err := m.CreateSnapshot(clock, "snap", "", "", samplePages())
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	if err := m.PruneOldSnapshots(2); err != nil {
		t.Fatal(err)
	}

	remaining := m.ListSnapshots()
	if len(remaining) != 2 {
		t.Fatalf("len(remaining) = %d, want 2", len(remaining))
	}
	// The two most recently created (last two ids minted) must survive.
	want := map[uint64]bool{ids[3]: true, ids[4]: true}
	for _, meta := range remaining {
		if !want[meta.ID] {
			t.Fatalf("unexpected surviving snapshot %d, want one of %v", meta.ID, ids[3:])
		}
	}
}

func TestDeleteSnapshotRemovesDirectoryAndIndex(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	id, err := m.CreateSnapshot(seqClock(1), "gone-soon", "", "", samplePages())
	if err != nil {
		t.Fatal(err)
	}

	if err := m.DeleteSnapshot(id); err != nil {
		t.Fatal(err)
	}

	if _, err := m.RestoreSnapshot(id); err == nil {
		t.Fatal("expected RestoreSnapshot to fail after delete")
	}

	if _, err := os.Stat(filepath.Join(dir, "snapshot_"+itoa(id))); !os.IsNotExist(err) {
		t.Fatal("snapshot directory should no longer exist")
	}
}

func TestRestoreDetectsTruncatedPagesFile(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	id, err := m.CreateSnapshot(seqClock(1), "will-truncate", "", "", samplePages())
	if err != nil {
		t.Fatal(err)
	}

	pagesPath := filepath.Join(dir, "snapshot_"+itoa(id), "pages.bin")
	data, err := os.ReadFile(pagesPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pagesPath, data[:len(data)-2], 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := m.RestoreSnapshot(id); err == nil {
		t.Fatal("expected truncation to be detected on restore")
	}
}
