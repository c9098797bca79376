package saver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fruitsalade/filedesk/internal/logging"
	"github.com/fruitsalade/filedesk/internal/storage"
)

// maxNameAttempts bounds the "name (n).ext" probe against remote backends,
// where every probe is a round trip.
const maxNameAttempts = 100

// BackendSaver writes blobs into a storage backend such as an S3 bucket or
// an FTP directory.
type BackendSaver struct {
	Backend   storage.Backend
	Overwrite bool

	mu sync.Mutex
}

// Save stores blob under the sanitised name and returns once the backend has
// accepted it.
func (s *BackendSaver) Save(ctx context.Context, name string, blob Blob) error {
	_, err := s.SaveAs(ctx, name, blob)
	return err
}

// SaveAs is Save that also reports the key the blob was stored under.
func (s *BackendSaver) SaveAs(ctx context.Context, name string, blob Blob) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := SafeName(name)
	if !s.Overwrite {
		var err error
		if key, err = s.freeKey(ctx, key); err != nil {
			return "", err
		}
	}

	src, err := blob.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	if err := s.Backend.PutObject(ctx, key, ctxReader{ctx: ctx, r: src}, blob.Size()); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}

	logging.Info("File saved",
		logging.String("name", name),
		logging.String("backend", s.Backend.Type()),
		logging.String("key", key))
	return key, nil
}

// freeKey returns key, or the first "stem (n).ext" the backend does not hold.
func (s *BackendSaver) freeKey(ctx context.Context, key string) (string, error) {
	ext := ""
	if i := strings.LastIndex(key, "."); i > 0 {
		ext = key[i:]
	}
	stem := strings.TrimSuffix(key, ext)

	candidate := key
	for n := 1; n <= maxNameAttempts; n++ {
		_, err := s.Backend.StatObject(ctx, candidate)
		if errors.Is(err, storage.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("check %s: %w", candidate, err)
		}
		candidate = fmt.Sprintf("%s (%d)%s", stem, n, ext)
	}
	return "", fmt.Errorf("no free name for %s after %d attempts", key, maxNameAttempts)
}
