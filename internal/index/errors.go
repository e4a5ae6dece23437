package index

import (
	"errors"
	"fmt"
)

var (
	ErrIndexExists = errors.New("index file already exists")
	ErrIndexRange  = errors.New("line number outside index")
	ErrStoreClosed = errors.New("index store is closed")
)

// RangeError reports a line number whose entry is not present in the index
// file, or whose line lies past the end of the data file.
type RangeError struct {
	Line int
	// Pos is the byte position of the entry in the index file, or the byte
	// offset in the data file when Data is set. It is -1 when the entry
	// position does not fit in an int64.
	Pos  int64
	Path string
	Data bool
}

func (e *RangeError) Error() string {
	if e.Pos < 0 {
		return fmt.Sprintf("line %d is outside %s", e.Line, e.Path)
	}
	if e.Data {
		return fmt.Sprintf("line %d: data offset %#x/%d is past the end of %s", e.Line, e.Pos, e.Pos, e.Path)
	}
	return fmt.Sprintf("line %d: index offset %#x/%d is outside %s", e.Line, e.Pos, e.Pos, e.Path)
}

func (e *RangeError) Is(target error) bool {
	return target == ErrIndexRange
}

// IOError wraps an I/O failure while building or reading an index.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("index %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("index %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
