// Package format provides the binary encoding of line index entries.
//
// An index file is a flat sequence of entries with no header, footer or
// checksum. Each entry is one line boundary offset:
//
//	offset (4 bytes, big-endian, unsigned)
//
// Entry i holds the byte offset of line i in the data file. The last entry
// is a sentinel equal to the data file length.
package format

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// EntrySize is the width of one encoded offset.
	EntrySize = 4

	// MaxOffset is the largest encodable offset. Data files larger than
	// 4 GiB cannot be indexed.
	MaxOffset = math.MaxUint32
)

var (
	ErrInvalidEncoding = errors.New("invalid offset encoding")
	ErrOffsetOverflow  = errors.New("offset does not fit in index entry")
)

// AppendOffset appends the encoded offset to dst.
func AppendOffset(dst []byte, off uint32) []byte {
	return binary.BigEndian.AppendUint32(dst, off)
}

// DecodeOffset decodes a single entry. b must be exactly EntrySize bytes.
func DecodeOffset(b []byte) (uint32, error) {
	if len(b) != EntrySize {
		return 0, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidEncoding, len(b), EntrySize)
	}
	return binary.BigEndian.Uint32(b), nil
}

// CheckOffset reports whether a file position can be stored in an entry.
func CheckOffset(pos int64) error {
	if pos < 0 || pos > MaxOffset {
		return fmt.Errorf("%w: %d", ErrOffsetOverflow, pos)
	}
	return nil
}
