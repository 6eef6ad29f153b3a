package page

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundtrip(t *testing.T) {
	p := New(3, KindLeaf)
	copy(p.Payload, []byte("hello leaf"))

	buf := p.Encode()
	if len(buf) != Size {
		t.Fatalf("encoded size = %d, want %d", len(buf), Size)
	}

	got, err := Decode(3, buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Kind != KindLeaf {
		t.Fatalf("Kind = %v, want %v", got.Kind, KindLeaf)
	}
	if !bytes.HasPrefix(got.Payload, []byte("hello leaf")) {
		t.Fatalf("payload mismatch: %q", got.Payload[:16])
	}
}

func TestDecodeZeroPageIsFree(t *testing.T) {
	buf := make([]byte, Size)
	got, err := Decode(7, buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Kind != KindFree {
		t.Fatalf("Kind = %v, want KindFree", got.Kind)
	}
}

func TestDecodeCorruptedPage(t *testing.T) {
	p := New(1, KindInternal)
	copy(p.Payload, []byte("some data"))
	buf := p.Encode()
	buf[HeaderSize] ^= 0xFF // flip a payload bit without updating the CRC

	if _, err := Decode(1, buf); err == nil {
		t.Fatal("expected checksum error, got nil")
	}
}

func TestDecodeWrongSize(t *testing.T) {
	if _, err := Decode(0, make([]byte, 10)); err == nil {
		t.Fatal("expected error for short buffer")
	}
}
