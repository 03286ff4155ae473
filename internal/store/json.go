package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caevv/buildtime/internal/history"
	"github.com/spf13/afero"
)

// recordExt is the extension of per-project history files.
const recordExt = ".json"

// FileBackend stores each project's history as a JSON file named
// <project>.json inside a base directory.
type FileBackend struct {
	fs  afero.Fs
	dir string
}

// NewFileBackend creates a file-backed history backend rooted at dir.
// A nil fs means the OS filesystem.
func NewFileBackend(fs afero.Fs, dir string) *FileBackend {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileBackend{fs: fs, dir: dir}
}

// Location returns the file path for project.
func (b *FileBackend) Location(project string) string {
	return filepath.Join(b.dir, project+recordExt)
}

// Load reads and decodes the project's file.
func (b *FileBackend) Load(project string) (*history.Project, error) {
	path := b.Location(project)

	data, err := afero.ReadFile(b.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	p, err := history.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return p, nil
}

// Save encodes p and atomically replaces the file for project.
func (b *FileBackend) Save(project string, p *history.Project) error {
	if err := ValidateProjectName(project); err != nil {
		return fmt.Errorf("%w: %q", err, project)
	}
	data, err := history.Marshal(p)
	if err != nil {
		return err
	}
	return writeFileAtomic(b.fs, b.Location(project), data)
}

// Quarantine renames the project's file to <file>.corrupt-<unix>.
func (b *FileBackend) Quarantine(project string) error {
	path := b.Location(project)
	if _, err := b.fs.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}

	dst := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
	if err := b.fs.Rename(path, dst); err != nil {
		return fmt.Errorf("quarantine %s: %w", path, err)
	}
	return nil
}

// Close is a no-op; no file handles stay open between calls.
func (b *FileBackend) Close() error {
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory, syncs
// it, then renames it over path so readers never observe a partial record.
func writeFileAtomic(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(fs, dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	// Removing after a successful rename fails harmlessly.
	defer fs.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	return nil
}
