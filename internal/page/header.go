package page

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Magic is the 8-byte identifier at the start of every archive header.
var Magic = [8]byte{'C', 'A', 'R', 'T', 0x00, 0x01, 0x00, 0x00}

// ReservedSize is the length of the archive header's reserved region. Its
// first three bytes encode feature fuses (spec.md §6); the rest is
// preserved verbatim across round-trips so future fuses can be added
// without a format break.
const ReservedSize = 256

// archiveHeaderSize is the number of bytes ArchiveHeader occupies: magic(8)
// + version_major(2) + version_minor(2) + block_size(4) + total_blocks(8) +
// free_blocks(8) + btree_root_page(8) + reserved(256).
const archiveHeaderSize = 8 + 2 + 2 + 4 + 8 + 8 + 8 + ReservedSize

// CurrentVersionMajor and CurrentVersionMinor are the version this
// implementation writes and the only version it accepts on open (spec.md
// §3: "version is exact-match").
const (
	CurrentVersionMajor = 1
	CurrentVersionMinor = 0
)

// Fuse byte offsets within the reserved region (spec.md §6).
const (
	FuseVersioningOffset = 0
	FuseACLOffset        = 1
	FuseSSEOffset        = 2
)

// Versioning fuse values.
type VersioningMode byte

const (
	VersioningNone           VersioningMode = 0
	VersioningSnapshotBacked VersioningMode = 1
)

// ACL fuse values.
type ACLMode byte

const (
	ACLIgnore  ACLMode = 0
	ACLRecord  ACLMode = 1
	ACLEnforce ACLMode = 2
)

// SSE fuse values.
type SSEMode byte

const (
	SSEIgnore      SSEMode = 0
	SSERecord      SSEMode = 1
	SSETransparent SSEMode = 2
)

// ArchiveHeader is the content of page 0 (spec.md §3).
type ArchiveHeader struct {
	VersionMajor  uint16
	VersionMinor  uint16
	BlockSize     uint32
	TotalBlocks   uint64
	FreeBlocks    uint64
	BTreeRootPage uint64

	// Reserved is the raw 256-byte reserved region. Unknown bytes beyond
	// the three fuse bytes are preserved verbatim by round-tripping
	// through ToBytes/HeaderFromBytes.
	Reserved [ReservedSize]byte
}

// NewArchiveHeader returns a header for a freshly created archive of
// totalBlocks blocks, freeBlocks of them free, with the catalog root at
// btreeRootPage. Fuses default to their least-intrusive values (all zero).
func NewArchiveHeader(totalBlocks, freeBlocks, btreeRootPage uint64) *ArchiveHeader {
	return &ArchiveHeader{
		VersionMajor:  CurrentVersionMajor,
		VersionMinor:  CurrentVersionMinor,
		BlockSize:     Size,
		TotalBlocks:   totalBlocks,
		FreeBlocks:    freeBlocks,
		BTreeRootPage: btreeRootPage,
	}
}

// ToBytes serializes the header bit-exactly, little-endian, in declaration
// order.
func (h *ArchiveHeader) ToBytes() []byte {
	buf := make([]byte, archiveHeaderSize)
	off := 0

	copy(buf[off:], Magic[:])
	off += len(Magic)

	binary.LittleEndian.PutUint16(buf[off:], h.VersionMajor)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], h.VersionMinor)
	off += 2
	binary.LittleEndian.PutUint32(buf[off:], h.BlockSize)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], h.TotalBlocks)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], h.FreeBlocks)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], h.BTreeRootPage)
	off += 8

	copy(buf[off:], h.Reserved[:])
	off += ReservedSize

	return buf
}

// HeaderFromBytes parses an ArchiveHeader out of src, validating magic,
// version, block size, and the free_blocks <= total_blocks invariant
// (spec.md §3).
func HeaderFromBytes(src []byte) (*ArchiveHeader, error) {
	if len(src) < archiveHeaderSize {
		return nil, fmt.Errorf("page: archive header truncated: %d < %d bytes", len(src), archiveHeaderSize)
	}

	var magic [8]byte
	copy(magic[:], src[:8])
	if magic != Magic {
		return nil, fmt.Errorf("page: bad magic %x, want %x", magic, Magic)
	}

	off := 8
	h := &ArchiveHeader{}
	h.VersionMajor = binary.LittleEndian.Uint16(src[off:])
	off += 2
	h.VersionMinor = binary.LittleEndian.Uint16(src[off:])
	off += 2

	if h.VersionMajor != CurrentVersionMajor || h.VersionMinor != CurrentVersionMinor {
		return nil, fmt.Errorf("page: unsupported version %d.%d, want %d.%d",
			h.VersionMajor, h.VersionMinor, CurrentVersionMajor, CurrentVersionMinor)
	}

	h.BlockSize = binary.LittleEndian.Uint32(src[off:])
	off += 4
	if h.BlockSize != Size {
		return nil, fmt.Errorf("page: block size %d does not match compiled-in page size %d", h.BlockSize, Size)
	}

	h.TotalBlocks = binary.LittleEndian.Uint64(src[off:])
	off += 8
	h.FreeBlocks = binary.LittleEndian.Uint64(src[off:])
	off += 8

	if h.FreeBlocks > h.TotalBlocks {
		return nil, fmt.Errorf("page: free_blocks %d exceeds total_blocks %d", h.FreeBlocks, h.TotalBlocks)
	}

	h.BTreeRootPage = binary.LittleEndian.Uint64(src[off:])
	off += 8

	copy(h.Reserved[:], src[off:off+ReservedSize])

	return h, nil
}

// Equal reports whether h and o serialize to the same bytes.
func (h *ArchiveHeader) Equal(o *ArchiveHeader) bool {
	return bytes.Equal(h.ToBytes(), o.ToBytes())
}

// Versioning returns the versioning fuse, falling back to VersioningNone
// for unknown byte values (spec.md §6: "Unknown byte values fall back to
// the least-intrusive default").
func (h *ArchiveHeader) Versioning() VersioningMode {
	switch v := VersioningMode(h.Reserved[FuseVersioningOffset]); v {
	case VersioningNone, VersioningSnapshotBacked:
		return v
	default:
		return VersioningNone
	}
}

// SetVersioning sets the versioning fuse.
func (h *ArchiveHeader) SetVersioning(m VersioningMode) {
	h.Reserved[FuseVersioningOffset] = byte(m)
}

// ACL returns the ACL fuse, falling back to ACLIgnore for unknown values.
func (h *ArchiveHeader) ACL() ACLMode {
	switch v := ACLMode(h.Reserved[FuseACLOffset]); v {
	case ACLIgnore, ACLRecord, ACLEnforce:
		return v
	default:
		return ACLIgnore
	}
}

// SetACL sets the ACL fuse.
func (h *ArchiveHeader) SetACL(m ACLMode) {
	h.Reserved[FuseACLOffset] = byte(m)
}

// SSE returns the SSE fuse, falling back to SSEIgnore for unknown values.
func (h *ArchiveHeader) SSE() SSEMode {
	switch v := SSEMode(h.Reserved[FuseSSEOffset]); v {
	case SSEIgnore, SSERecord, SSETransparent:
		return v
	default:
		return SSEIgnore
	}
}

// SetSSE sets the SSE fuse.
func (h *ArchiveHeader) SetSSE(m SSEMode) {
	h.Reserved[FuseSSEOffset] = byte(m)
}
