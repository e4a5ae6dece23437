package index

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func decodeAll(t *testing.T, b []byte) []uint32 {
	t.Helper()
	if len(b)%4 != 0 {
		t.Fatalf("index size %d is not a multiple of 4", len(b))
	}
	out := make([]uint32, 0, len(b)/4)
	for i := 0; i < len(b); i += 4 {
		out = append(out, uint32(b[i])<<24|uint32(b[i+1])<<16|uint32(b[i+2])<<8|uint32(b[i+3]))
	}
	return out
}

func TestBuildEntries(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []uint32
	}{
		{"three lines", "aaa\nbb\nc\n", []uint32{0, 4, 7, 9}},
		{"empty", "", []uint32{0}},
		{"no trailing newline", "a\nb", []uint32{0, 2, 3}},
		{"single newline", "\n", []uint32{0, 1}},
		{"empty lines", "x\n\n\ny\n", []uint32{0, 2, 3, 4, 6}},
		{"crlf", "ab\r\ncd\r\n", []uint32{0, 4, 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			n, err := Build(&buf, strings.NewReader(tt.data))
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			got := decodeAll(t, buf.Bytes())
			if n != len(tt.want) {
				t.Errorf("entries: want %d, got %d", len(tt.want), n)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("want %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("want %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestBuildConcreteBytes(t *testing.T) {
	var buf bytes.Buffer
	if _, err := Build(&buf, strings.NewReader("aaa\nbb\nc\n")); err != nil {
		t.Fatalf("build: %v", err)
	}
	want := []byte{0, 0, 0, 0, 0, 0, 0, 4, 0, 0, 0, 7, 0, 0, 0, 9}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("expected % x, got % x", want, buf.Bytes())
	}
}

func TestBuildLongLines(t *testing.T) {
	long := strings.Repeat("x", readBufferSize*3+17)
	data := long + "\nshort\n" + long

	var buf bytes.Buffer
	if _, err := Build(&buf, strings.NewReader(data)); err != nil {
		t.Fatalf("build: %v", err)
	}
	got := decodeAll(t, buf.Bytes())
	first := uint32(len(long) + 1)
	want := []uint32{0, first, first + 6, uint32(len(data))}
	if len(got) != len(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v, got %v", want, got)
		}
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestBuildWriteError(t *testing.T) {
	_, err := Build(failingWriter{}, strings.NewReader("a\n"))
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError, got %v", err)
	}
	if ioErr.Op != "write" {
		t.Errorf("expected write op, got %q", ioErr.Op)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("bad sector") }

func TestBuildReadError(t *testing.T) {
	_, err := Build(&bytes.Buffer{}, failingReader{})
	var ioErr *IOError
	if !errors.As(err, &ioErr) || ioErr.Op != "read" {
		t.Fatalf("expected read IOError, got %v", err)
	}
}

func TestBuildFile(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.log")
	if err := os.WriteFile(dataPath, []byte("aaa\nbb\nc\n"), 0o644); err != nil {
		t.Fatalf("write data: %v", err)
	}
	indexPath := Path(dir, dataPath)

	n, err := BuildFile(dataPath, indexPath, RejectExisting)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if n != 4 {
		t.Fatalf("entries: want 4, got %d", n)
	}
	info, err := os.Stat(indexPath)
	if err != nil {
		t.Fatalf("stat index: %v", err)
	}
	if info.Size() != 16 {
		t.Errorf("index size: want 16, got %d", info.Size())
	}
}

func TestBuildFileRejectExisting(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.log")
	if err := os.WriteFile(dataPath, []byte("a\n"), 0o644); err != nil {
		t.Fatalf("write data: %v", err)
	}
	indexPath := Path(dir, dataPath)

	if _, err := BuildFile(dataPath, indexPath, RejectExisting); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if _, err := BuildFile(dataPath, indexPath, RejectExisting); !errors.Is(err, ErrIndexExists) {
		t.Fatalf("expected ErrIndexExists, got %v", err)
	}
}

func TestBuildFileOverwrite(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.log")
	if err := os.WriteFile(dataPath, []byte("a\n"), 0o644); err != nil {
		t.Fatalf("write data: %v", err)
	}
	indexPath := Path(dir, dataPath)

	if _, err := BuildFile(dataPath, indexPath, Overwrite); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if err := os.WriteFile(dataPath, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("rewrite data: %v", err)
	}
	n, err := BuildFile(dataPath, indexPath, Overwrite)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if n != 4 {
		t.Errorf("entries after rebuild: want 4, got %d", n)
	}
}

func TestBuildFileMissingData(t *testing.T) {
	dir := t.TempDir()
	_, err := BuildFile(filepath.Join(dir, "missing"), filepath.Join(dir, "x.idx"), Overwrite)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not exist, got %v", err)
	}
}

func TestOverwritePolicyString(t *testing.T) {
	if Overwrite.String() != "overwrite" || RejectExisting.String() != "reject-existing" {
		t.Errorf("unexpected names %q %q", Overwrite, RejectExisting)
	}
}
