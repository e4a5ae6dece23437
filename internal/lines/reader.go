// Package lines resolves line numbers to line content through a side-car
// offset index.
//
// A Reader owns one mapped index file and one mapped data file. It is not
// safe for concurrent use. Handles open lazily on first use and can also be
// opened explicitly with EnsureIndexOpen and EnsureDataOpen.
//
// Logging:
//   - Logger is dependency-injected via WithLogger
//   - Reader scopes it with component="lines"
//   - Only lifecycle events are logged (build, open); never per line
package lines

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"lineidx/internal/index"
	"lineidx/internal/logging"
	"lineidx/internal/metrics"
	"lineidx/internal/mmap"
)

// Config holds the paths a Reader works with. Paths given here are used as
// is; SetDataPath and SetIndexDir validate them.
type Config struct {
	DataPath string
	IndexDir string
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		r.logger = logging.Default(logger).With("component", "lines")
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(r *Reader) {
		if c != nil {
			r.metrics = c
		}
	}
}

// Reader reads lines from a data file using its offset index.
type Reader struct {
	dataPath string
	indexDir string

	idx  *index.Store
	data *mmap.View

	logger  *slog.Logger
	metrics metrics.Collector
}

// New creates a Reader. No files are opened.
func New(cfg Config, opts ...Option) *Reader {
	r := &Reader{
		dataPath: cfg.DataPath,
		indexDir: cfg.IndexDir,
		logger:   logging.Discard(),
		metrics:  metrics.Noop{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DataPath returns the configured data file path, or "" if unset.
func (r *Reader) DataPath() string { return r.dataPath }

// IndexDir returns the configured index directory, or "" if unset.
func (r *Reader) IndexDir() string { return r.indexDir }

// SetDataPath sets the data file. The path must name an existing regular
// file and is stored in absolute form. Switching to a different file closes
// any open handles.
func (r *Reader) SetDataPath(p string) error {
	info, err := os.Stat(p)
	if err != nil {
		return &PathError{Attr: AttrDataPath, Path: p, Err: err}
	}
	if !info.Mode().IsRegular() {
		return &PathError{Attr: AttrDataPath, Path: p, Err: ErrNotRegularFile}
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return &PathError{Attr: AttrDataPath, Path: p, Err: err}
	}
	if abs != r.dataPath {
		if err := r.Close(); err != nil {
			return err
		}
	}
	r.dataPath = abs
	return nil
}

// SetIndexDir sets the directory holding index files. It must exist.
func (r *Reader) SetIndexDir(p string) error {
	info, err := os.Stat(p)
	if err != nil {
		return &PathError{Attr: AttrIndexPath, Path: p, Err: err}
	}
	if !info.IsDir() {
		return &PathError{Attr: AttrIndexPath, Path: p, Err: ErrNotDirectory}
	}
	if p != r.indexDir {
		if err := r.CloseIndex(); err != nil {
			return err
		}
	}
	r.indexDir = p
	return nil
}

func (r *Reader) requirePaths() error {
	if r.dataPath == "" {
		return &PathNotSetError{Attr: AttrDataPath}
	}
	if r.indexDir == "" {
		return &PathNotSetError{Attr: AttrIndexPath}
	}
	return nil
}

// IndexPath returns the index file location for the configured data file.
func (r *Reader) IndexPath() (string, error) {
	if err := r.requirePaths(); err != nil {
		return "", err
	}
	return index.Path(r.indexDir, r.dataPath), nil
}

// BuildIndex scans the data file and writes its index. With RejectExisting
// an existing index fails with index.ErrIndexExists; with Overwrite it is
// replaced. keepDataOpen leaves the data file mapped for the reads that
// usually follow a build.
func (r *Reader) BuildIndex(policy index.OverwritePolicy, keepDataOpen bool) (int, error) {
	indexPath, err := r.IndexPath()
	if err != nil {
		return 0, err
	}
	if policy == index.RejectExisting {
		if _, err := os.Stat(indexPath); err == nil {
			return 0, fmt.Errorf("%w: %s", index.ErrIndexExists, indexPath)
		}
	}
	// The open store would keep serving the old mapping.
	if err := r.CloseIndex(); err != nil {
		return 0, err
	}
	if err := r.EnsureDataOpen(); err != nil {
		return 0, err
	}
	if !keepDataOpen {
		defer func() { _ = r.CloseData() }()
	}

	start := time.Now()
	entries, err := index.WriteFile(indexPath, bytes.NewReader(r.data.Bytes()), policy)
	elapsed := time.Since(start)
	r.metrics.RecordBuild(entries, elapsed, err)
	if err != nil {
		return entries, err
	}

	r.logger.Info("index built",
		"data", r.dataPath,
		"index", indexPath,
		"entries", entries,
		"duration", elapsed)
	return entries, nil
}

// OpenIndex maps the index file, replacing any open one. When the file is
// missing and createIfMissing is set, the index is built first.
func (r *Reader) OpenIndex(createIfMissing bool) error {
	indexPath, err := r.IndexPath()
	if err != nil {
		return err
	}
	if err := r.CloseIndex(); err != nil {
		return err
	}

	if createIfMissing {
		if _, err := os.Stat(indexPath); errors.Is(err, os.ErrNotExist) {
			if _, err := r.BuildIndex(index.RejectExisting, true); err != nil {
				return err
			}
		}
	}

	store, err := index.Open(indexPath)
	if err != nil {
		return err
	}
	r.idx = store
	r.logger.Debug("index opened", "index", store.Path(), "entries", store.Entries())
	return nil
}

// EnsureIndexOpen opens the index if it is not open yet.
func (r *Reader) EnsureIndexOpen() error {
	if r.idx != nil {
		return nil
	}
	return r.OpenIndex(false)
}

// CloseIndex unmaps the index file. Safe to call when nothing is open.
func (r *Reader) CloseIndex() error {
	if r.idx == nil {
		return nil
	}
	err := r.idx.Close()
	r.idx = nil
	return err
}

// OpenData maps the data file, replacing any open mapping.
func (r *Reader) OpenData() error {
	if r.dataPath == "" {
		return &PathNotSetError{Attr: AttrDataPath}
	}
	if err := r.CloseData(); err != nil {
		return err
	}
	view, err := mmap.Open(r.dataPath)
	if err != nil {
		return &index.IOError{Op: "open", Path: r.dataPath, Err: err}
	}
	r.data = view
	return nil
}

// EnsureDataOpen opens the data file if it is not open yet.
func (r *Reader) EnsureDataOpen() error {
	if r.data != nil {
		return nil
	}
	return r.OpenData()
}

// CloseData unmaps the data file. Safe to call when nothing is open.
func (r *Reader) CloseData() error {
	if r.data == nil {
		return nil
	}
	err := r.data.Close()
	r.data = nil
	return err
}

// Close releases both the index and the data mappings.
func (r *Reader) Close() error {
	return errors.Join(r.CloseIndex(), r.CloseData())
}

// Loaded reports whether an index is currently open.
func (r *Reader) Loaded() bool {
	return r.idx != nil
}

// Entries returns the number of index entries, sentinel included. The
// second result is false when no index is open.
func (r *Reader) Entries() (int, bool) {
	if r.idx == nil {
		return 0, false
	}
	return r.idx.Entries(), true
}

// LineCount returns the number of lines in the data file, which is one less
// than Entries. The second result is false when no index is open.
func (r *Reader) LineCount() (int, bool) {
	n, ok := r.Entries()
	if !ok {
		return 0, false
	}
	return max(n-1, 0), true
}

// OffsetOf returns the data file offset of line, opening the index if
// needed.
func (r *Reader) OffsetOf(line int) (int64, error) {
	if err := r.requirePaths(); err != nil {
		return 0, err
	}
	if err := r.EnsureIndexOpen(); err != nil {
		return 0, err
	}
	off, err := r.idx.OffsetOf(line)
	r.metrics.RecordLookup(err)
	return off, err
}

// LineAt returns line n including its terminator. The returned slice is a
// copy and stays valid after Close.
func (r *Reader) LineAt(n int) ([]byte, error) {
	off, err := r.OffsetOf(n)
	if err != nil {
		return nil, err
	}
	if err := r.EnsureDataOpen(); err != nil {
		return nil, err
	}
	line, _, err := r.readAt(n, off)
	if err != nil {
		return nil, err
	}
	r.metrics.RecordLines(1)
	return bytes.Clone(line), nil
}

// readAt returns the bytes of the line starting at off, terminator
// included, and the offset of the line after it.
func (r *Reader) readAt(n int, off int64) ([]byte, int64, error) {
	data := r.data.Bytes()
	if off >= int64(len(data)) {
		return nil, off, &index.RangeError{Line: n, Pos: off, Path: r.dataPath, Data: true}
	}
	end := int64(len(data))
	if i := bytes.IndexByte(data[off:], '\n'); i >= 0 {
		end = off + int64(i) + 1
	}
	return data[off:end], end, nil
}

// Lines returns a cursor over lines start..end inclusive.
//
// When end equals start the single line is returned with its terminator,
// like LineAt. Longer ranges yield lines with trailing whitespace and the
// terminator stripped. An end before start fails with a *RangeOrderError.
func (r *Reader) Lines(start, end int) *Cursor {
	if end == start {
		return &Cursor{r: r, line: start, remaining: 1}
	}
	if end < start {
		return &Cursor{r: r, err: &RangeOrderError{Start: start, End: end}}
	}
	remaining := end - start + 1
	if remaining <= 0 {
		remaining = math.MaxInt
	}
	return &Cursor{r: r, line: start, remaining: remaining, strip: true}
}

// LinesFrom returns a cursor over at most count lines beginning at start.
// A count of one behaves like Lines(start, start); larger counts strip lines
// like a multi-line range even when fewer lines remain. The count is clamped
// to the lines remaining in the file. A count below one fails with a
// *RangeOrderError.
func (r *Reader) LinesFrom(start, count int) *Cursor {
	switch {
	case count < 1:
		end := start + count - 1
		if end > start {
			end = math.MinInt
		}
		return &Cursor{r: r, err: &RangeOrderError{Start: start, End: end}}
	case count == 1:
		return r.Lines(start, start)
	}

	if err := r.requirePaths(); err != nil {
		return &Cursor{r: r, err: err}
	}
	if err := r.EnsureIndexOpen(); err != nil {
		return &Cursor{r: r, err: err}
	}
	if n, _ := r.LineCount(); start >= 0 && start < n && count > n-start {
		count = n - start
	}
	return &Cursor{r: r, line: start, remaining: count, strip: true}
}
