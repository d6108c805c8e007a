package file

import (
	"encoding/binary"
)

// Page wraps a single block's worth of bytes and provides typed
// get/set accessors. All integers are stored big-endian per spec.md §6.
type Page struct {
	contents []byte
}

// NewPage allocates a zeroed page of the given block size.
func NewPage(blockSize int) *Page {
	return &Page{contents: make([]byte, blockSize)}
}

// NewPageFromBytes wraps an existing byte slice (e.g. a log record body)
// without copying it.
func NewPageFromBytes(b []byte) *Page {
	return &Page{contents: b}
}

func (p *Page) GetInt(offset int) int32 {
	return int32(binary.BigEndian.Uint32(p.contents[offset : offset+4]))
}

func (p *Page) SetInt(offset int, n int32) {
	binary.BigEndian.PutUint32(p.contents[offset:offset+4], uint32(n))
}

// GetInt64 reads an 8-byte big-endian integer, used for block flags and
// block/slot numbers per spec.md §6.
func (p *Page) GetInt64(offset int) int64 {
	return int64(binary.BigEndian.Uint64(p.contents[offset : offset+8]))
}

func (p *Page) SetInt64(offset int, n int64) {
	binary.BigEndian.PutUint64(p.contents[offset:offset+8], uint64(n))
}

// GetBytes reads a length-prefixed byte array (4-byte length, then data).
func (p *Page) GetBytes(offset int) []byte {
	length := int(binary.BigEndian.Uint32(p.contents[offset : offset+4]))
	b := make([]byte, length)
	copy(b, p.contents[offset+4:offset+4+length])
	return b
}

// SetBytes writes a length-prefixed byte array.
func (p *Page) SetBytes(offset int, b []byte) {
	binary.BigEndian.PutUint32(p.contents[offset:offset+4], uint32(len(b)))
	copy(p.contents[offset+4:offset+4+len(b)], b)
}

func (p *Page) GetString(offset int) string {
	return string(p.GetBytes(offset))
}

func (p *Page) SetString(offset int, s string) {
	p.SetBytes(offset, []byte(s))
}

// MaxLength returns the number of bytes needed to store a string of the
// given declared (ASCII) length, including its 4-byte length prefix.
func MaxLength(strlen int) int {
	return 4 + strlen
}

func (p *Page) Contents() []byte {
	return p.contents
}
