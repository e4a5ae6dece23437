// Package mmap provides read-only memory-mapped views of files.
//
// A View exclusively owns its mapping. Close unmaps it and is safe to call
// more than once, or on a nil View. Slices obtained from Bytes are invalid
// after Close.
package mmap

import (
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	ErrClosed        = errors.New("mmap: view is closed")
	ErrInvalidOffset = errors.New("mmap: invalid offset")
	ErrTooLarge      = errors.New("mmap: file too large to map")
)

// View is a read-only mapped region of a file.
type View struct {
	path   string
	data   []byte
	unmap  func([]byte) error
	closed bool
}

// Open maps the file at path read-only. An empty file yields a View with no
// bytes rather than an error.
func Open(path string) (*View, error) {
	f, err := os.Open(path) //nolint:gosec // G304: callers pass validated data and index paths
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		return &View{path: path}, nil
	}
	if size < 0 || int64(int(size)) != size {
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrTooLarge, path, size)
	}

	data, unmap, err := mapFile(f, int(size))
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &View{path: path, data: data, unmap: unmap}, nil
}

// Path returns the path the view was opened from.
func (v *View) Path() string {
	return v.path
}

// Bytes returns the mapped region. Returns nil once closed.
func (v *View) Bytes() []byte {
	if v == nil || v.closed {
		return nil
	}
	return v.data
}

// Len returns the size of the mapped region in bytes.
func (v *View) Len() int {
	if v == nil || v.closed {
		return 0
	}
	return len(v.data)
}

// ReadAt implements io.ReaderAt.
func (v *View) ReadAt(p []byte, off int64) (int, error) {
	if v == nil || v.closed {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrInvalidOffset
	}
	if off >= int64(len(v.data)) {
		return 0, io.EOF
	}
	n := copy(p, v.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close unmaps the region. It is idempotent.
func (v *View) Close() error {
	if v == nil || v.closed {
		return nil
	}
	v.closed = true
	data := v.data
	v.data = nil
	if v.unmap != nil && data != nil {
		return v.unmap(data)
	}
	return nil
}
