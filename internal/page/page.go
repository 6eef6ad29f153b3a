// Package page defines the fixed-size on-disk page, the atomic unit of I/O
// between the page manager and the buffer pool.
package page

import (
	"encoding/binary"
	"hash/crc32"
)

// Kind tags the contents of a page's payload.
type Kind byte

const (
	KindMeta     Kind = 1
	KindInternal Kind = 2
	KindLeaf     Kind = 3
	KindOverflow Kind = 4
	KindFree     Kind = 5
)

// ID identifies a page by its position in the data file.
type ID uint64

const (
	// PayloadSize is the usable payload capacity of a page: one B-tree node
	// fits exactly within it.
	PayloadSize = 4096

	// HeaderSize is the size of a page's own header (not the file header).
	// Layout: Kind(1) + reserved(3) + PayloadLen(4) + CRC32(4).
	HeaderSize = 12

	// Size is the fixed on-disk page size in bytes, header included.
	Size = HeaderSize + PayloadSize
)

// Page is a fixed-size block: a small header plus an opaque payload.
type Page struct {
	ID      ID
	Kind    Kind
	Payload []byte // always len == Size-HeaderSize
}

// New allocates a zeroed page of the given kind.
func New(id ID, kind Kind) *Page {
	return &Page{ID: id, Kind: kind, Payload: make([]byte, PayloadSize)}
}

// Encode serializes the page to exactly Size bytes, including a CRC32 of
// the payload that Decode verifies.
func (p *Page) Encode() []byte {
	buf := make([]byte, Size)
	buf[0] = byte(p.Kind)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(p.Payload)))
	copy(buf[HeaderSize:], p.Payload)
	crc := crc32.ChecksumIEEE(buf[HeaderSize : HeaderSize+len(p.Payload)])
	binary.LittleEndian.PutUint32(buf[8:12], crc)
	return buf
}

// Decode parses a raw Size-byte block into a Page, verifying its checksum.
// A buffer of all zeroes (an unwritten, newly allocated page) decodes to a
// KindFree page with a zeroed PayloadSize payload rather than an error.
func Decode(id ID, buf []byte) (*Page, error) {
	if len(buf) != Size {
		return nil, errShortBuffer
	}
	if isZero(buf) {
		return &Page{ID: id, Kind: KindFree, Payload: make([]byte, PayloadSize)}, nil
	}
	kind := Kind(buf[0])
	plen := binary.LittleEndian.Uint32(buf[4:8])
	if int(plen) > PayloadSize {
		return nil, errCorrupt
	}
	wantCRC := binary.LittleEndian.Uint32(buf[8:12])
	payload := make([]byte, PayloadSize)
	copy(payload, buf[HeaderSize:])
	actualCRC := crc32.ChecksumIEEE(payload)
	if actualCRC != wantCRC {
		return nil, errCorrupt
	}
	return &Page{ID: id, Kind: kind, Payload: payload}, nil
}

func isZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}
