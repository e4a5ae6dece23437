// Package home manages the lineidx home directory layout.
//
// Layout:
//
//	<root>/
//	  config.json                      (settings, see internal/config)
//	  instance_id                      (UUIDv7 reported by the HTTP server)
//	  indexes/
//	    <sha256>.idx                   (default index directory)
package home

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Dir represents a lineidx home directory.
type Dir struct {
	root string
}

// New creates a Dir with an explicit root path.
func New(root string) Dir {
	return Dir{root: root}
}

// Default returns a Dir using the platform-appropriate default location:
//   - Linux:   ~/.config/lineidx
//   - macOS:   ~/Library/Application Support/lineidx
//   - Windows: %APPDATA%/lineidx
func Default() (Dir, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return Dir{}, fmt.Errorf("determine config directory: %w", err)
	}
	return Dir{root: filepath.Join(base, "lineidx")}, nil
}

// Root returns the home directory path.
func (d Dir) Root() string {
	return d.root
}

// ConfigPath returns the path to the settings file.
func (d Dir) ConfigPath() string {
	return filepath.Join(d.root, "config.json")
}

// IndexDir returns the default directory for index files.
func (d Dir) IndexDir() string {
	return filepath.Join(d.root, "indexes")
}

// EnsureExists creates the home directory (and parents) if it doesn't exist.
func (d Dir) EnsureExists() error {
	if err := os.MkdirAll(d.root, 0o750); err != nil {
		return fmt.Errorf("create home directory %s: %w", d.root, err)
	}
	return nil
}

// EnsureIndexDir creates the default index directory and returns its path.
func (d Dir) EnsureIndexDir() (string, error) {
	dir := d.IndexDir()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create index directory %s: %w", dir, err)
	}
	return dir, nil
}

// InstanceID reads the persistent instance identity from <root>/instance_id.
// If the file doesn't exist, a new UUIDv7 is generated and written.
func (d Dir) InstanceID() (string, error) {
	return d.readOrCreate("instance_id", func() string {
		return uuid.Must(uuid.NewV7()).String()
	})
}

// readOrCreate reads a single-line value from <root>/<filename>.
// If the file doesn't exist, generate() provides the default which is persisted.
func (d Dir) readOrCreate(filename string, generate func() string) (string, error) {
	p := filepath.Join(d.root, filename)
	data, err := os.ReadFile(p) //nolint:gosec // G304: path is the home dir plus a constant filename
	if err == nil {
		if v := strings.TrimSpace(string(data)); v != "" {
			return v, nil
		}
	}
	if err := d.EnsureExists(); err != nil {
		return "", err
	}
	v := generate()
	if err := os.WriteFile(p, []byte(v+"\n"), 0o640); err != nil { //nolint:gosec // G306: not a secret
		return "", fmt.Errorf("write %s: %w", filename, err)
	}
	return v, nil
}
