package lines

import (
	"errors"
	"fmt"
)

var (
	ErrPathNotSet     = errors.New("path is not set")
	ErrRangeOrder     = errors.New("range end precedes start")
	ErrNotRegularFile = errors.New("not a regular file")
	ErrNotDirectory   = errors.New("not a directory")
)

// Attribute names reported by PathNotSetError.
const (
	AttrDataPath  = "data_path"
	AttrIndexPath = "index_path"
)

// PathNotSetError reports an operation that needs a path which was never
// configured.
type PathNotSetError struct {
	Attr string
}

func (e *PathNotSetError) Error() string {
	return fmt.Sprintf("path is not set: %s", e.Attr)
}

func (e *PathNotSetError) Is(target error) bool {
	return target == ErrPathNotSet
}

// RangeOrderError reports a range request whose end is before its start.
type RangeOrderError struct {
	Start, End int
}

func (e *RangeOrderError) Error() string {
	return fmt.Sprintf("ending index must not precede starting index: lines(%d, %d)", e.Start, e.End)
}

func (e *RangeOrderError) Is(target error) bool {
	return target == ErrRangeOrder
}

// PathError reports a rejected path configuration.
type PathError struct {
	Attr string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Attr, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}
