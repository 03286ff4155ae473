package store

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// SupportedDrivers lists all available backend drivers.
var SupportedDrivers = []string{"json", "bbolt"}

// boltFileName is the database file used by the bbolt driver inside dir.
const boltFileName = "history.db"

// NewBackend creates a Backend for the specified driver.
// Supported drivers:
//   - "json": one <project>.json file per project under dir (default)
//   - "bbolt": one BoltDB file (dir/history.db) keyed by project name
//
// fs is only used by the json driver; nil means the OS filesystem.
func NewBackend(driver, dir string, fs afero.Fs) (Backend, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))

	if dir == "" {
		return nil, fmt.Errorf("store directory is required")
	}

	switch driver {
	case "json", "":
		return NewFileBackend(fs, dir), nil
	case "bbolt":
		backend, err := NewBoltBackend(filepath.Join(dir, boltFileName))
		if err != nil {
			return nil, err
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s (supported: %v)", driver, SupportedDrivers)
	}
}
