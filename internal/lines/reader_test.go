package lines

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lineidx/internal/format"
	"lineidx/internal/index"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// writeRandom writes n lines of random length and returns the path and the
// lines without terminators.
func writeRandom(t *testing.T, dir string, n int) (string, []string) {
	t.Helper()
	path := filepath.Join(dir, "random.log")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	r := rand.New(rand.NewPCG(7, 11))
	out := make([]string, 0, n)
	for i := range n {
		line := fmt.Sprintf("%06d:%s", i, strings.Repeat("x", r.IntN(120)))
		out = append(out, line)
		w.WriteString(line + "\n")
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	return path, out
}

func newReader(t *testing.T, dataPath string) *Reader {
	t.Helper()
	r := New(Config{})
	if err := r.SetDataPath(dataPath); err != nil {
		t.Fatalf("SetDataPath: %v", err)
	}
	if err := r.SetIndexDir(t.TempDir()); err != nil {
		t.Fatalf("SetIndexDir: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestBuildIndexConcrete(t *testing.T) {
	dataPath := writeFile(t, t.TempDir(), "small.log", "aaa\nbb\nc\n")
	r := newReader(t, dataPath)

	entries, err := r.BuildIndex(index.Overwrite, false)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if entries != 4 {
		t.Fatalf("entries: want 4, got %d", entries)
	}

	indexPath, _ := r.IndexPath()
	raw, err := os.ReadFile(indexPath)
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	want := []uint32{0, 4, 7, 9}
	if len(raw) != len(want)*format.EntrySize {
		t.Fatalf("index size: want %d, got %d", len(want)*format.EntrySize, len(raw))
	}
	for i, w := range want {
		got, err := format.DecodeOffset(raw[i*format.EntrySize : (i+1)*format.EntrySize])
		if err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
		if got != w {
			t.Errorf("entry %d: want %d, got %d", i, w, got)
		}
	}

	line, err := r.LineAt(1)
	if err != nil {
		t.Fatalf("LineAt(1): %v", err)
	}
	if string(line) != "bb\n" {
		t.Errorf("LineAt(1): want %q, got %q", "bb\n", line)
	}

	got, err := r.Lines(0, 2).Collect()
	if err != nil {
		t.Fatalf("Lines(0, 2): %v", err)
	}
	if len(got) != 3 || string(got[0]) != "aaa" || string(got[1]) != "bb" || string(got[2]) != "c" {
		t.Errorf("Lines(0, 2): got %q", got)
	}

	if n, ok := r.Entries(); !ok || n != 4 {
		t.Errorf("Entries: want 4 true, got %d %v", n, ok)
	}
	if n, ok := r.LineCount(); !ok || n != 3 {
		t.Errorf("LineCount: want 3 true, got %d %v", n, ok)
	}
}

func TestEmptyFile(t *testing.T) {
	dataPath := writeFile(t, t.TempDir(), "empty.log", "")
	r := newReader(t, dataPath)

	entries, err := r.BuildIndex(index.Overwrite, false)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if entries != 1 {
		t.Fatalf("entries: want 1, got %d", entries)
	}
	off, err := r.OffsetOf(0)
	if err != nil || off != 0 {
		t.Fatalf("OffsetOf(0): want 0 nil, got %d %v", off, err)
	}
	if _, err := r.LineAt(0); !errors.Is(err, index.ErrIndexRange) {
		t.Errorf("LineAt(0) on empty file: want ErrIndexRange, got %v", err)
	}
	if n, _ := r.LineCount(); n != 0 {
		t.Errorf("LineCount: want 0, got %d", n)
	}
}

func TestNoTrailingNewline(t *testing.T) {
	dataPath := writeFile(t, t.TempDir(), "tail.log", "one\ntwo")
	r := newReader(t, dataPath)

	line, err := r.LineAt(1)
	if err == nil {
		t.Fatalf("LineAt before build: expected error, got %q", line)
	}
	if _, err := r.BuildIndex(index.Overwrite, true); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	line, err = r.LineAt(1)
	if err != nil {
		t.Fatalf("LineAt(1): %v", err)
	}
	if string(line) != "two" {
		t.Errorf("LineAt(1): want %q, got %q", "two", line)
	}
}

func TestRandomLines(t *testing.T) {
	dataPath, want := writeRandom(t, t.TempDir(), 2000)
	r := newReader(t, dataPath)
	if _, err := r.BuildIndex(index.Overwrite, true); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	rng := rand.New(rand.NewPCG(3, 5))
	for range 200 {
		n := rng.IntN(len(want))
		line, err := r.LineAt(n)
		if err != nil {
			t.Fatalf("LineAt(%d): %v", n, err)
		}
		if string(line) != want[n]+"\n" {
			t.Fatalf("LineAt(%d): want %q, got %q", n, want[n]+"\n", line)
		}
	}

	t.Run("range cardinality", func(t *testing.T) {
		for range 50 {
			start := rng.IntN(len(want) - 1)
			end := start + 1 + rng.IntN(min(100, len(want)-start-1))
			got, err := r.Lines(start, end).Collect()
			if err != nil {
				t.Fatalf("Lines(%d, %d): %v", start, end, err)
			}
			if len(got) != end-start+1 {
				t.Fatalf("Lines(%d, %d): want %d lines, got %d", start, end, end-start+1, len(got))
			}
			for i, g := range got {
				if string(g) != want[start+i] {
					t.Fatalf("line %d: want %q, got %q", start+i, want[start+i], g)
				}
			}
		}
	})

	t.Run("single line keeps terminator", func(t *testing.T) {
		got, err := r.Lines(10, 10).Collect()
		if err != nil {
			t.Fatalf("Lines(10, 10): %v", err)
		}
		if len(got) != 1 || string(got[0]) != want[10]+"\n" {
			t.Errorf("Lines(10, 10): got %q", got)
		}
	})

	t.Run("all", func(t *testing.T) {
		var n int
		for line, err := range r.Lines(0, 9).All() {
			if err != nil {
				t.Fatalf("All: %v", err)
			}
			if string(line) != want[n] {
				t.Fatalf("line %d: want %q, got %q", n, want[n], line)
			}
			n++
		}
		if n != 10 {
			t.Errorf("All: want 10 lines, got %d", n)
		}
	})
}

func TestStripTrailingWhitespace(t *testing.T) {
	dataPath := writeFile(t, t.TempDir(), "ws.log", "a  \t\r\nb\n  c \n")
	r := newReader(t, dataPath)

	got, err := r.Lines(0, 2).Collect()
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	want := []string{"a", "b", "  c"}
	for i := range want {
		if string(got[i]) != want[i] {
			t.Errorf("line %d: want %q, got %q", i, want[i], got[i])
		}
	}
}

func TestLinesRangeOrder(t *testing.T) {
	dataPath := writeFile(t, t.TempDir(), "small.log", "aaa\nbb\nc\n")
	r := newReader(t, dataPath)

	c := r.Lines(5, 2)
	if c.Next() {
		t.Fatal("expected no lines")
	}
	var orderErr *RangeOrderError
	if !errors.As(c.Err(), &orderErr) {
		t.Fatalf("expected RangeOrderError, got %v", c.Err())
	}
	if orderErr.Start != 5 || orderErr.End != 2 {
		t.Errorf("RangeOrderError: got %+v", orderErr)
	}
	if !errors.Is(c.Err(), ErrRangeOrder) {
		t.Error("expected errors.Is ErrRangeOrder")
	}
}

func TestOutOfRange(t *testing.T) {
	dataPath := writeFile(t, t.TempDir(), "small.log", "aaa\nbb\nc\n")
	r := newReader(t, dataPath)
	if _, err := r.BuildIndex(index.Overwrite, false); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	for _, n := range []int{-1, 4, 100, 1 << 62, math.MaxInt} {
		if line, err := r.LineAt(n); !errors.Is(err, index.ErrIndexRange) {
			t.Errorf("LineAt(%d): want ErrIndexRange, got %q %v", n, line, err)
		}
	}
	if got, err := r.Lines(1<<62, 1<<62+1).Collect(); len(got) != 0 || !errors.Is(err, index.ErrIndexRange) {
		t.Errorf("Lines(1<<62, 1<<62+1): want ErrIndexRange, got %q %v", got, err)
	}

	// The sentinel entry resolves, but there is no line behind it.
	off, err := r.OffsetOf(3)
	if err != nil || off != 9 {
		t.Fatalf("OffsetOf(3): want 9 nil, got %d %v", off, err)
	}
	_, err = r.LineAt(3)
	var rangeErr *index.RangeError
	if !errors.As(err, &rangeErr) || !rangeErr.Data {
		t.Errorf("LineAt(3): want data RangeError, got %v", err)
	}
}

func TestPartialRangeThenFailure(t *testing.T) {
	dataPath := writeFile(t, t.TempDir(), "small.log", "aaa\nbb\nc\n")
	r := newReader(t, dataPath)

	got, err := r.Lines(1, 5).Collect()
	if !errors.Is(err, index.ErrIndexRange) {
		t.Fatalf("expected ErrIndexRange, got %v", err)
	}
	if len(got) != 2 || string(got[0]) != "bb" || string(got[1]) != "c" {
		t.Errorf("partial lines: got %q", got)
	}

	got, err = r.Lines(1, math.MaxInt).Collect()
	if !errors.Is(err, index.ErrIndexRange) || len(got) != 2 {
		t.Errorf("Lines(1, MaxInt): want 2 lines and ErrIndexRange, got %q %v", got, err)
	}
}

func TestLinesFrom(t *testing.T) {
	dataPath := writeFile(t, t.TempDir(), "small.log", "aaa\nbb\nc\n")
	r := newReader(t, dataPath)

	got, err := r.LinesFrom(1, 10).Collect()
	if err != nil {
		t.Fatalf("LinesFrom(1, 10): %v", err)
	}
	if len(got) != 2 || string(got[0]) != "bb" || string(got[1]) != "c" {
		t.Errorf("LinesFrom(1, 10): got %q", got)
	}

	got, err = r.LinesFrom(0, 1).Collect()
	if err != nil || len(got) != 1 || string(got[0]) != "aaa\n" {
		t.Errorf("LinesFrom(0, 1): got %q %v", got, err)
	}

	if _, err := r.LinesFrom(0, 0).Collect(); !errors.Is(err, ErrRangeOrder) {
		t.Errorf("LinesFrom(0, 0): want ErrRangeOrder, got %v", err)
	}
	if _, err := r.LinesFrom(7, 2).Collect(); !errors.Is(err, index.ErrIndexRange) {
		t.Errorf("LinesFrom(7, 2): want ErrIndexRange, got %v", err)
	}
	if _, err := r.LinesFrom(0, math.MinInt).Collect(); !errors.Is(err, ErrRangeOrder) {
		t.Errorf("LinesFrom(0, MinInt): want ErrRangeOrder, got %v", err)
	}
}

func TestLinesFromClampKeepsStripping(t *testing.T) {
	dataPath := writeFile(t, t.TempDir(), "small.log", "aaa\nbb  \nc \t\n")
	r := newReader(t, dataPath)

	tests := []struct {
		start, count int
		want         []string
	}{
		{1, 5, []string{"bb", "c"}},
		{2, 5, []string{"c"}},
		{2, 2, []string{"c"}},
		{2, 1, []string{"c \t\n"}},
		{0, math.MaxInt, []string{"aaa", "bb", "c"}},
		{2, math.MaxInt, []string{"c"}},
	}
	for _, tt := range tests {
		got, err := r.LinesFrom(tt.start, tt.count).Collect()
		if err != nil {
			t.Errorf("LinesFrom(%d, %d): %v", tt.start, tt.count, err)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("LinesFrom(%d, %d): want %q, got %q", tt.start, tt.count, tt.want, got)
			continue
		}
		for i := range got {
			if string(got[i]) != tt.want[i] {
				t.Errorf("LinesFrom(%d, %d)[%d]: want %q, got %q", tt.start, tt.count, i, tt.want[i], got[i])
			}
		}
	}
}

func TestPathNotSet(t *testing.T) {
	r := New(Config{})
	defer r.Close()

	checks := map[string]error{}
	_, checks["BuildIndex"] = r.BuildIndex(index.Overwrite, false)
	checks["OpenData"] = r.OpenData()
	checks["OpenIndex"] = r.OpenIndex(true)
	_, checks["OffsetOf"] = r.OffsetOf(0)
	_, checks["LineAt"] = r.LineAt(0)
	_, checks["Lines"] = r.Lines(0, 3).Collect()
	_, checks["LinesFrom"] = r.LinesFrom(0, 3).Collect()

	for name, err := range checks {
		if !errors.Is(err, ErrPathNotSet) {
			t.Errorf("%s: want ErrPathNotSet, got %v", name, err)
		}
	}

	var pathErr *PathNotSetError
	if _, err := r.OffsetOf(0); !errors.As(err, &pathErr) || pathErr.Attr != AttrDataPath {
		t.Errorf("expected data_path attr, got %v", err)
	}

	dataPath := writeFile(t, t.TempDir(), "x.log", "x\n")
	if err := r.SetDataPath(dataPath); err != nil {
		t.Fatalf("SetDataPath: %v", err)
	}
	if _, err := r.OffsetOf(0); !errors.As(err, &pathErr) || pathErr.Attr != AttrIndexPath {
		t.Errorf("expected index_path attr, got %v", err)
	}
}

func TestSetPathsValidation(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{})

	var pathErr *PathError
	if err := r.SetDataPath(filepath.Join(dir, "missing.log")); !errors.As(err, &pathErr) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing data: got %v", err)
	}
	if err := r.SetDataPath(dir); !errors.Is(err, ErrNotRegularFile) {
		t.Errorf("directory as data: got %v", err)
	}
	file := writeFile(t, dir, "f.log", "f\n")
	if err := r.SetIndexDir(file); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("file as index dir: got %v", err)
	}
	if err := r.SetIndexDir(filepath.Join(dir, "nope")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing index dir: got %v", err)
	}

	if err := r.SetDataPath(file); err != nil {
		t.Fatalf("SetDataPath: %v", err)
	}
	if !filepath.IsAbs(r.DataPath()) {
		t.Errorf("DataPath should be absolute, got %q", r.DataPath())
	}
}

func TestOpenIndexCreateIfMissing(t *testing.T) {
	dataPath := writeFile(t, t.TempDir(), "small.log", "aaa\nbb\nc\n")
	r := newReader(t, dataPath)

	if err := r.OpenIndex(false); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("OpenIndex(false) without index: want ErrNotExist, got %v", err)
	}
	if r.Loaded() {
		t.Fatal("index should not be loaded")
	}
	if err := r.OpenIndex(true); err != nil {
		t.Fatalf("OpenIndex(true): %v", err)
	}
	if !r.Loaded() {
		t.Fatal("index should be loaded")
	}
	if n, _ := r.Entries(); n != 4 {
		t.Errorf("Entries: want 4, got %d", n)
	}

	// An existing index is opened, not rebuilt.
	if err := r.OpenIndex(true); err != nil {
		t.Fatalf("second OpenIndex(true): %v", err)
	}
}

func TestBuildIndexRejectExisting(t *testing.T) {
	dataPath := writeFile(t, t.TempDir(), "small.log", "aaa\nbb\nc\n")
	r := newReader(t, dataPath)

	if _, err := r.BuildIndex(index.RejectExisting, false); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if err := r.EnsureIndexOpen(); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := r.BuildIndex(index.RejectExisting, false); !errors.Is(err, index.ErrIndexExists) {
		t.Errorf("second build: want ErrIndexExists, got %v", err)
	}
	if !r.Loaded() {
		t.Error("rejected build unloaded the open index")
	}
	if line, err := r.LineAt(1); err != nil || string(line) != "bb\n" {
		t.Errorf("LineAt(1) after rejected build: got %q %v", line, err)
	}
	if _, err := r.BuildIndex(index.Overwrite, false); err != nil {
		t.Errorf("overwrite build: %v", err)
	}
}

func TestRebuildAfterAppend(t *testing.T) {
	dataPath := writeFile(t, t.TempDir(), "grow.log", "a\n")
	r := newReader(t, dataPath)

	if _, err := r.LineAt(0); err == nil {
		t.Fatal("expected error before build")
	}
	if _, err := r.BuildIndex(index.Overwrite, false); err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := r.LineAt(1); !errors.Is(err, index.ErrIndexRange) {
		t.Fatalf("LineAt(1) before append: got %v", err)
	}

	f, err := os.OpenFile(dataPath, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	f.WriteString("b\n")
	f.Close()

	if err := r.CloseData(); err != nil {
		t.Fatalf("CloseData: %v", err)
	}
	if _, err := r.BuildIndex(index.Overwrite, false); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	line, err := r.LineAt(1)
	if err != nil || !bytes.Equal(line, []byte("b\n")) {
		t.Errorf("LineAt(1) after rebuild: got %q %v", line, err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	dataPath := writeFile(t, t.TempDir(), "small.log", "aaa\n")
	r := newReader(t, dataPath)

	if err := r.Close(); err != nil {
		t.Fatalf("Close on fresh reader: %v", err)
	}
	if _, err := r.LineAt(0); err == nil {
		t.Fatal("expected error without an index")
	}
	if _, err := r.BuildIndex(index.Overwrite, true); err != nil {
		t.Fatalf("build: %v", err)
	}
	line, err := r.LineAt(0)
	if err != nil {
		t.Fatalf("LineAt: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if string(line) != "aaa\n" {
		t.Errorf("line after close: got %q", line)
	}
	if r.Loaded() {
		t.Error("index should be closed")
	}

	// Handles reopen lazily.
	if line, err := r.LineAt(0); err != nil || string(line) != "aaa\n" {
		t.Errorf("LineAt after Close: got %q %v", line, err)
	}
}
