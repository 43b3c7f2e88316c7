// Package page implements the fixed-size, typed, checksummed unit of
// on-disk storage that every other component of the cartridge addresses by
// block id.
package page

import (
	"crypto/sha256"
	"fmt"
)

// Size is the fixed page size in bytes. All blocks in an archive, including
// the header block, are exactly Size bytes long.
const Size = 4096

// HeaderSize is the length, in bytes, of the per-page header that precedes
// the payload.
const HeaderSize = 64

// PayloadSize is the number of payload bytes available after the header.
const PayloadSize = Size - HeaderSize

// checksumSize is the length of the SHA-256 digest stored in the header.
const checksumSize = sha256.Size // 32

// reservedSize pads the header out to HeaderSize: 1 (type tag) + 32
// (checksum) + 31 (reserved) == 64.
const reservedSize = HeaderSize - 1 - checksumSize

// Type tags a page's payload format.
type Type byte

// Page types. The zero value is intentionally invalid so a zeroed buffer
// is never mistaken for a well-formed page.
const (
	TypeInvalid Type = iota
	TypeHeader
	TypeCatalogBTree
	TypeContentData
	TypeFreelist
	TypeAuditLog
)

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case TypeHeader:
		return "Header"
	case TypeCatalogBTree:
		return "CatalogBTree"
	case TypeContentData:
		return "ContentData"
	case TypeFreelist:
		return "Freelist"
	case TypeAuditLog:
		return "AuditLog"
	default:
		return fmt.Sprintf("Type(%d)", byte(t))
	}
}

// Page is one fixed Size-byte unit of on-disk storage: a typed header
// followed by a payload.
//
// The zero checksum is special: it means "skip verification", matching
// spec.md's invariant that a page either carries an all-zero checksum or
// one that matches its payload under SHA-256. Freshly constructed pages
// start with a zero checksum until Seal is called.
type Page struct {
	typ      Type
	checksum [checksumSize]byte
	reserved [reservedSize]byte
	payload  [PayloadSize]byte
}

// New returns an empty page of the given type. The payload is all zeros and
// the checksum is left zero (meaning "skip").
func New(typ Type) *Page {
	return &Page{typ: typ}
}

// NewWithPayload returns a page of the given type carrying payload,
// zero-padded on the right. It is an error for payload to exceed
// PayloadSize.
func NewWithPayload(typ Type, payload []byte) (*Page, error) {
	if len(payload) > PayloadSize {
		return nil, fmt.Errorf("page: payload of %d bytes exceeds capacity %d", len(payload), PayloadSize)
	}

	p := New(typ)
	copy(p.payload[:], payload)

	return p, nil
}

// Type returns the page's type tag.
func (p *Page) Type() Type { return p.typ }

// Payload returns the page's full payload buffer. Callers that only wrote
// fewer than PayloadSize bytes will see the zero padding.
func (p *Page) Payload() []byte { return p.payload[:] }

// Seal computes the SHA-256 of the payload and stores it in the header,
// making the page checksummed (a non-zero checksum, barring the
// astronomically unlikely case the digest itself is all zero).
func (p *Page) Seal() {
	p.checksum = sha256.Sum256(p.payload[:])
}

// IsZeroChecksum reports whether the stored checksum is the all-zero
// sentinel, i.e. checksum verification should be skipped for this page.
func (p *Page) IsZeroChecksum() bool {
	return p.checksum == [checksumSize]byte{}
}

// Verify reports whether the page's payload matches its stored checksum.
// A zero checksum always verifies (spec.md §4.1: "zero ⇒ accept").
func (p *Page) Verify() bool {
	if p.IsZeroChecksum() {
		return true
	}

	got := sha256.Sum256(p.payload[:])
	return got == p.checksum
}

// Serialize writes the page's on-disk representation (exactly Size bytes)
// into dst, which must be at least Size bytes long.
func (p *Page) Serialize(dst []byte) error {
	if len(dst) < Size {
		return fmt.Errorf("page: destination buffer too small: %d < %d", len(dst), Size)
	}

	dst[0] = byte(p.typ)
	copy(dst[1:1+checksumSize], p.checksum[:])
	copy(dst[1+checksumSize:HeaderSize], p.reserved[:])
	copy(dst[HeaderSize:Size], p.payload[:])

	return nil
}

// Bytes returns a freshly allocated Size-byte serialization of the page.
func (p *Page) Bytes() []byte {
	buf := make([]byte, Size)
	_ = p.Serialize(buf) // buf is always large enough.
	return buf
}

// Deserialize parses a page from src, which must be at least Size bytes
// long. Extra trailing bytes are ignored, matching spec.md §6 ("deserialise
// from ≥ P bytes").
func Deserialize(src []byte) (*Page, error) {
	if len(src) < Size {
		return nil, fmt.Errorf("page: source buffer too small: %d < %d", len(src), Size)
	}

	p := &Page{typ: Type(src[0])}
	copy(p.checksum[:], src[1:1+checksumSize])
	copy(p.reserved[:], src[1+checksumSize:HeaderSize])
	copy(p.payload[:], src[HeaderSize:Size])

	return p, nil
}
