package page

import (
	"bytes"
	"testing"
)

func TestSealAndVerify(t *testing.T) {
	p, err := NewWithPayload(TypeContentData, []byte("hello, cartridge"))
	if err != nil {
		t.Fatal(err)
	}

	if !p.Verify() {
		t.Fatal("fresh page with zero checksum must verify")
	}

	p.Seal()
	if !p.Verify() {
		t.Fatal("sealed page must verify against its own payload")
	}

	// Tamper with the payload directly; Verify must now fail since the
	// checksum is non-zero.
	p.payload[0] ^= 0xFF
	if p.Verify() {
		t.Fatal("tampered payload with non-zero checksum must not verify")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	p, err := NewWithPayload(TypeCatalogBTree, bytes.Repeat([]byte{0x42}, 100))
	if err != nil {
		t.Fatal(err)
	}
	p.Seal()

	buf := p.Bytes()
	if len(buf) != Size {
		t.Fatalf("serialized length = %d, want %d", len(buf), Size)
	}

	got, err := Deserialize(buf)
	if err != nil {
		t.Fatal(err)
	}

	if got.Type() != p.Type() {
		t.Fatalf("type = %v, want %v", got.Type(), p.Type())
	}
	if !bytes.Equal(got.Payload(), p.Payload()) {
		t.Fatal("payload mismatch after round trip")
	}
	if !got.Verify() {
		t.Fatal("round-tripped page must still verify")
	}
}

func TestDeserializeAcceptsExtraTrailingBytes(t *testing.T) {
	p := New(TypeFreelist)
	buf := append(p.Bytes(), []byte("trailing garbage")...)

	if _, err := Deserialize(buf); err != nil {
		t.Fatalf("Deserialize should tolerate >= Size bytes: %v", err)
	}
}

func TestNewWithPayloadTooLarge(t *testing.T) {
	_, err := NewWithPayload(TypeContentData, make([]byte, PayloadSize+1))
	if err == nil {
		t.Fatal("expected error for oversized payload")
	}
}

func TestTypeString(t *testing.T) {
	cases := map[Type]string{
		TypeHeader:       "Header",
		TypeCatalogBTree: "CatalogBTree",
		TypeContentData:  "ContentData",
		TypeFreelist:     "Freelist",
		TypeAuditLog:     "AuditLog",
	}
	for typ, want := range cases {
		if got := typ.String(); got != want {
			t.Errorf("Type(%d).String() = %q, want %q", typ, got, want)
		}
	}
}
