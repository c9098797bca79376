// Package history keeps a local record of completed downloads in a bbolt
// file.
package history

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/fruitsalade/filedesk/internal/logging"
	"github.com/fruitsalade/filedesk/internal/saver"
)

const bucketName = "downloads"

// ErrBucketNotFound means the database was not created by Open.
var ErrBucketNotFound = errors.New("history bucket not found")

// Entry describes one saved download.
type Entry struct {
	Name     string    `json:"name"`     // name requested from the service
	Target   string    `json:"target"`   // download target type
	Location string    `json:"location"` // path or key the content was saved under
	Size     int64     `json:"size"`
	SavedAt  time.Time `json:"saved_at"`
}

// Store is an append-only download log.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	// A second filedesk holding the lock should fail fast, not hang.
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add appends e. Keys are the bucket sequence, so iteration order is
// insertion order.
func (s *Store) Add(e Entry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return ErrBucketNotFound
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		val, err := json.Marshal(e)
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, val)
	})
}

// Recent returns up to n entries, newest first. n <= 0 returns everything.
func (s *Store) Recent(n int) ([]Entry, error) {
	out := []Entry{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return ErrBucketNotFound
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if n > 0 && len(out) == n {
				break
			}
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("unmarshal history entry %x: %w", k, err)
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Locator is implemented by savers that report where content ended up.
type Locator interface {
	SaveAs(ctx context.Context, name string, blob saver.Blob) (string, error)
}

// Recorder is a saver.Saver that logs every successful save to Store.
type Recorder struct {
	Saver  saver.Saver
	Store  *Store
	Target string
}

// Save delegates to the wrapped saver and records the result. A failure to
// record is logged; the download itself has already succeeded.
func (r *Recorder) Save(ctx context.Context, name string, blob saver.Blob) error {
	var location string
	var err error
	if l, ok := r.Saver.(Locator); ok {
		location, err = l.SaveAs(ctx, name, blob)
	} else {
		err = r.Saver.Save(ctx, name, blob)
	}
	if err != nil {
		return err
	}

	entry := Entry{
		Name:     name,
		Target:   r.Target,
		Location: location,
		Size:     blob.Size(),
		SavedAt:  time.Now().UTC(),
	}
	if err := r.Store.Add(entry); err != nil {
		logging.Warn("Could not record download", logging.String("name", name), logging.Err(err))
	}
	return nil
}
