package index

import (
	"path/filepath"

	"github.com/opencontainers/go-digest"
)

// FileSuffix is appended to the digest to form an index file name.
const FileSuffix = ".idx"

// FileName returns the index file name for a data file path. The name is a
// digest of the path string only: the same path always maps to the same
// name, and changes to the data file's content are not detected.
func FileName(dataPath string) string {
	return digest.SHA256.FromString(dataPath).Encoded() + FileSuffix
}

// Path returns the index file location for dataPath inside dir.
func Path(dir, dataPath string) string {
	return filepath.Join(dir, FileName(dataPath))
}
