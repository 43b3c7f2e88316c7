package page

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestArchiveHeaderRoundTrip(t *testing.T) {
	h := NewArchiveHeader(1000, 997, 1)
	h.SetVersioning(VersioningSnapshotBacked)
	h.SetACL(ACLEnforce)
	h.SetSSE(SSETransparent)
	h.Reserved[10] = 0xAB // preserved, non-fuse byte.

	buf := h.ToBytes()
	got, err := HeaderFromBytes(buf)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(h, got); diff != "" {
		t.Fatalf("header did not round-trip byte-for-byte (-want +got):\n%s", diff)
	}
	if got.Versioning() != VersioningSnapshotBacked {
		t.Errorf("versioning = %v, want SnapshotBacked", got.Versioning())
	}
	if got.ACL() != ACLEnforce {
		t.Errorf("acl = %v, want Enforce", got.ACL())
	}
	if got.SSE() != SSETransparent {
		t.Errorf("sse = %v, want Transparent", got.SSE())
	}
	if got.Reserved[10] != 0xAB {
		t.Error("non-fuse reserved byte was not preserved")
	}
}

func TestArchiveHeaderAllZeroReservedFallsBackToDefaults(t *testing.T) {
	h := NewArchiveHeader(10, 10, 1)

	if h.Versioning() != VersioningNone {
		t.Errorf("versioning = %v, want None", h.Versioning())
	}
	if h.ACL() != ACLIgnore {
		t.Errorf("acl = %v, want Ignore", h.ACL())
	}
	if h.SSE() != SSEIgnore {
		t.Errorf("sse = %v, want Ignore", h.SSE())
	}
}

func TestArchiveHeaderUnknownFuseFallsBackToLeastIntrusive(t *testing.T) {
	h := NewArchiveHeader(10, 10, 1)
	h.Reserved[FuseACLOffset] = 0xFF
	h.Reserved[FuseSSEOffset] = 0xFF
	h.Reserved[FuseVersioningOffset] = 0xFF

	if h.ACL() != ACLIgnore {
		t.Errorf("unknown acl byte should fall back to Ignore, got %v", h.ACL())
	}
	if h.SSE() != SSEIgnore {
		t.Errorf("unknown sse byte should fall back to Ignore, got %v", h.SSE())
	}
	if h.Versioning() != VersioningNone {
		t.Errorf("unknown versioning byte should fall back to None, got %v", h.Versioning())
	}
}

func TestHeaderFromBytesRejectsBadMagic(t *testing.T) {
	h := NewArchiveHeader(10, 10, 1)
	buf := h.ToBytes()
	buf[0] = 'X'

	if _, err := HeaderFromBytes(buf); err == nil {
		t.Fatal("expected magic mismatch error")
	}
}

func TestHeaderFromBytesRejectsBadVersion(t *testing.T) {
	h := NewArchiveHeader(10, 10, 1)
	h.VersionMajor = 99
	buf := h.ToBytes()

	if _, err := HeaderFromBytes(buf); err == nil {
		t.Fatal("expected version mismatch error")
	}
}

func TestHeaderFromBytesRejectsFreeExceedsTotal(t *testing.T) {
	h := NewArchiveHeader(10, 10, 1)
	h.FreeBlocks = 11
	buf := h.ToBytes()

	if _, err := HeaderFromBytes(buf); err == nil {
		t.Fatal("expected free_blocks > total_blocks error")
	}
}

func TestHeaderFromBytesRejectsTruncated(t *testing.T) {
	h := NewArchiveHeader(10, 10, 1)
	buf := h.ToBytes()

	if _, err := HeaderFromBytes(buf[:10]); err == nil {
		t.Fatal("expected truncation error")
	}
}
