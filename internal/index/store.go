package index

import (
	"errors"
	"fmt"
	"math"

	"lineidx/internal/format"
	"lineidx/internal/mmap"
)

// Store is a read-only view of an index file.
type Store struct {
	view    *mmap.View
	entries int
}

// Open maps the index file at path. The entry count is the file size divided
// by the entry width; a trailing partial entry is ignored.
func Open(path string) (*Store, error) {
	view, err := mmap.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	return &Store{
		view:    view,
		entries: view.Len() / format.EntrySize,
	}, nil
}

// Path returns the index file path.
func (s *Store) Path() string {
	return s.view.Path()
}

// Entries returns the number of entries in the index, sentinel included.
func (s *Store) Entries() int {
	return s.entries
}

// OffsetOf returns the data file offset recorded for line. There is no
// bounds check against Entries; a line whose entry is not fully present in
// the mapped file yields a *RangeError.
func (s *Store) OffsetOf(line int) (int64, error) {
	if line < 0 || int64(line) > math.MaxInt64/format.EntrySize {
		return 0, &RangeError{Line: line, Pos: -1, Path: s.Path()}
	}
	pos := int64(line) * format.EntrySize

	var buf [format.EntrySize]byte
	n, err := s.view.ReadAt(buf[:], pos)
	if errors.Is(err, mmap.ErrClosed) {
		return 0, fmt.Errorf("%w: %s", ErrStoreClosed, s.Path())
	}
	if n < format.EntrySize {
		return 0, &RangeError{Line: line, Pos: pos, Path: s.Path()}
	}

	off, err := format.DecodeOffset(buf[:])
	if err != nil {
		return 0, err
	}
	return int64(off), nil
}

// Close unmaps the index file. It is idempotent.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.view.Close()
}
