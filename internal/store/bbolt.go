package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caevv/buildtime/internal/history"
	bolt "go.etcd.io/bbolt"
)

const (
	// historiesBucket holds one JSON history document per project name.
	historiesBucket = "histories"
	// quarantineBucket keeps undecodable documents moved aside by Quarantine.
	quarantineBucket = "quarantine"

	// boltLockTimeout bounds how long an operation waits for another process
	// holding the database file lock.
	boltLockTimeout = 5 * time.Second
)

// BoltBackend stores history documents in a single BoltDB file, one key per
// project. The value is the same JSON document the file backend writes.
//
// The database is opened for each operation and closed again, so the file
// lock is only held for the length of one transaction and several buildtime
// processes can share the same file.
type BoltBackend struct {
	path string
}

// NewBoltBackend creates the BoltDB file at path if needed and prepares its
// buckets.
func NewBoltBackend(path string) (*BoltBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory for %s: %w", path, err)
	}

	b := &BoltBackend{path: path}
	err := b.update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(historiesBucket)); err != nil {
			return fmt.Errorf("create histories bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(quarantineBucket)); err != nil {
			return fmt.Errorf("create quarantine bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (b *BoltBackend) open(readOnly bool) (*bolt.DB, error) {
	db, err := bolt.Open(b.path, 0o600, &bolt.Options{Timeout: boltLockTimeout, ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb at %s: %w", b.path, err)
	}
	return db, nil
}

// view runs fn in a read-only transaction under a shared file lock.
func (b *BoltBackend) view(fn func(*bolt.Tx) error) error {
	db, err := b.open(true)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.View(fn)
}

// update runs fn in a read-write transaction under an exclusive file lock.
func (b *BoltBackend) update(fn func(*bolt.Tx) error) error {
	db, err := b.open(false)
	if err != nil {
		return err
	}
	if err := db.Update(fn); err != nil {
		db.Close()
		return err
	}
	return db.Close()
}

// Location returns the database path and key for project.
func (b *BoltBackend) Location(project string) string {
	return fmt.Sprintf("%s#%s/%s", b.path, historiesBucket, project)
}

// Load reads the project's document.
func (b *BoltBackend) Load(project string) (*history.Project, error) {
	var data []byte

	err := b.view(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(historiesBucket)).Get([]byte(project))
		if v == nil {
			return ErrRecordNotFound
		}
		// v is only valid inside the transaction.
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	p, err := history.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", project, err)
	}
	return p, nil
}

// Save writes p under the project key in a single transaction.
func (b *BoltBackend) Save(project string, p *history.Project) error {
	if err := ValidateProjectName(project); err != nil {
		return fmt.Errorf("%w: %q", err, project)
	}
	data, err := history.Marshal(p)
	if err != nil {
		return err
	}

	return b.update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(historiesBucket)).Put([]byte(project), data); err != nil {
			return fmt.Errorf("put history %s: %w", project, err)
		}
		return nil
	})
}

// Quarantine moves the project's document into the quarantine bucket under
// <project>@<unix>.
func (b *BoltBackend) Quarantine(project string) error {
	return b.update(func(tx *bolt.Tx) error {
		histories := tx.Bucket([]byte(historiesBucket))
		v := histories.Get([]byte(project))
		if v == nil {
			return nil
		}

		key := fmt.Sprintf("%s@%d", project, time.Now().Unix())
		if err := tx.Bucket([]byte(quarantineBucket)).Put([]byte(key), append([]byte(nil), v...)); err != nil {
			return fmt.Errorf("put quarantine %s: %w", key, err)
		}
		if err := histories.Delete([]byte(project)); err != nil {
			return fmt.Errorf("delete history %s: %w", project, err)
		}
		return nil
	})
}

// Close is a no-op; the database is not held open between operations.
func (b *BoltBackend) Close() error {
	return nil
}
