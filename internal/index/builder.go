package index

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"lineidx/internal/format"
)

// OverwritePolicy controls what BuildFile does when the index file exists.
type OverwritePolicy int

const (
	// Overwrite deletes an existing index file and rebuilds it.
	Overwrite OverwritePolicy = iota
	// RejectExisting fails with ErrIndexExists.
	RejectExisting
)

func (p OverwritePolicy) String() string {
	switch p {
	case Overwrite:
		return "overwrite"
	case RejectExisting:
		return "reject-existing"
	default:
		return fmt.Sprintf("OverwritePolicy(%d)", int(p))
	}
}

const (
	readBufferSize  = 64 << 10
	writeBufferSize = 16 << 10
)

// Build scans data once and writes one entry per line start to w, followed
// by a sentinel equal to the number of bytes read. An empty input produces a
// single zero entry. It returns the number of entries written.
//
// The entry for a position is written before the line at that position is
// read; the loop ends when a read consumes no bytes.
func Build(w io.Writer, data io.Reader) (int, error) {
	br := bufio.NewReaderSize(data, readBufferSize)
	bw := bufio.NewWriterSize(w, writeBufferSize)

	var (
		pos     int64
		entries int
		entry   = make([]byte, 0, format.EntrySize)
	)
	for {
		if err := format.CheckOffset(pos); err != nil {
			return entries, fmt.Errorf("line %d: %w", entries, err)
		}
		entry = format.AppendOffset(entry[:0], uint32(pos))
		if _, err := bw.Write(entry); err != nil {
			return entries, &IOError{Op: "write", Err: err}
		}
		entries++

		n, err := readLine(br)
		if err != nil {
			return entries, &IOError{Op: "read", Err: err}
		}
		if n == 0 {
			break
		}
		pos += n
	}

	if err := bw.Flush(); err != nil {
		return entries, &IOError{Op: "write", Err: err}
	}
	return entries, nil
}

// readLine consumes one line including its terminator and returns its
// length. Lines longer than the buffer are consumed in pieces.
func readLine(br *bufio.Reader) (int64, error) {
	var n int64
	for {
		chunk, err := br.ReadSlice('\n')
		n += int64(len(chunk))
		switch {
		case err == nil, err == io.EOF:
			return n, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return n, err
		}
	}
}

// WriteFile builds an index from data into indexPath, honoring policy. A
// failed build leaves whatever was written in place; callers should remove
// the file before using it again.
func WriteFile(indexPath string, data io.Reader, policy OverwritePolicy) (int, error) {
	if err := prepare(indexPath, policy); err != nil {
		return 0, err
	}

	f, err := os.OpenFile(indexPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // G304: index path derived from configured dir
	if err != nil {
		return 0, &IOError{Op: "create", Path: indexPath, Err: err}
	}

	entries, err := Build(f, data)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = &IOError{Op: "close", Path: indexPath, Err: closeErr}
	}
	if err != nil {
		var ioErr *IOError
		if errors.As(err, &ioErr) && ioErr.Path == "" {
			ioErr.Path = indexPath
		}
		return entries, fmt.Errorf("build index %s: %w", indexPath, err)
	}
	return entries, nil
}

// BuildFile indexes the data file at dataPath into indexPath.
func BuildFile(dataPath, indexPath string, policy OverwritePolicy) (int, error) {
	f, err := os.Open(dataPath) //nolint:gosec // G304: data path validated by caller
	if err != nil {
		return 0, &IOError{Op: "open", Path: dataPath, Err: err}
	}
	defer func() { _ = f.Close() }()
	return WriteFile(indexPath, f, policy)
}

func prepare(indexPath string, policy OverwritePolicy) error {
	_, err := os.Stat(indexPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return &IOError{Op: "stat", Path: indexPath, Err: err}
	case policy == RejectExisting:
		return fmt.Errorf("%w: %s", ErrIndexExists, indexPath)
	}
	if err := os.Remove(indexPath); err != nil {
		return &IOError{Op: "remove", Path: indexPath, Err: err}
	}
	return nil
}
