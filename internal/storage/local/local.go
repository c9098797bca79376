// Package local provides a local filesystem storage backend.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fruitsalade/filedesk/internal/logging"
	"github.com/fruitsalade/filedesk/internal/metrics"
	"github.com/fruitsalade/filedesk/internal/storage/object"
)

// Config holds local filesystem backend settings.
type Config struct {
	RootPath   string `json:"root_path"`
	CreateDirs bool   `json:"create_dirs"`
}

// LocalBackend stores each object as a regular file directly under a root
// directory.
type LocalBackend struct {
	rootPath string
}

// New creates a new local filesystem backend.
func New(cfg Config) (*LocalBackend, error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("root_path is required")
	}

	info, err := os.Stat(cfg.RootPath)
	switch {
	case err == nil && !info.IsDir():
		return nil, fmt.Errorf("root path %s is not a directory", cfg.RootPath)
	case os.IsNotExist(err) && cfg.CreateDirs:
		if err := os.MkdirAll(cfg.RootPath, 0755); err != nil {
			return nil, fmt.Errorf("create root path %s: %w", cfg.RootPath, err)
		}
	case err != nil:
		return nil, fmt.Errorf("stat root path %s: %w", cfg.RootPath, err)
	}

	return &LocalBackend{rootPath: cfg.RootPath}, nil
}

// NewFromJSON creates a LocalBackend from raw JSON config.
func NewFromJSON(raw json.RawMessage) (*LocalBackend, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse local config: %w", err)
	}
	return New(cfg)
}

// Root returns the backend's root directory.
func (b *LocalBackend) Root() string { return b.rootPath }

// fullPath maps a key to a path directly under the root. Keys that would
// escape the root are rejected.
func (b *LocalBackend) fullPath(key string) (string, error) {
	if key == "" || key == "." || key == ".." || filepath.Base(key) != key {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(b.rootPath, key), nil
}

func record(op string, start time.Time, err error) {
	metrics.RecordStorageOperation("local", op, time.Since(start), err == nil)
}

func notFound(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", key, object.ErrNotFound)
	}
	return err
}

// PutObject writes content to the local filesystem atomically.
func (b *LocalBackend) PutObject(_ context.Context, key string, body io.Reader, size int64) (err error) {
	start := time.Now()
	defer func() { record("put_object", start, err) }()

	path, err := b.fullPath(key)
	if err != nil {
		return err
	}

	// Write to temp file then rename for atomicity
	tmp, err := os.CreateTemp(b.rootPath, object.TempPrefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, body)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if size >= 0 && n != size {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: wrote %d bytes, expected %d", key, n, size)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp to %s: %w", key, err)
	}

	logging.Debug("local put object", logging.String("key", key), logging.Int64("size", n))
	return nil
}

// StatObject returns information about a file.
func (b *LocalBackend) StatObject(_ context.Context, key string) (_ object.Info, err error) {
	start := time.Now()
	defer func() { record("stat_object", start, err) }()

	path, err := b.fullPath(key)
	if err != nil {
		return object.Info{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return object.Info{}, notFound(key, fmt.Errorf("stat %s: %w", key, err))
	}
	if !info.Mode().IsRegular() {
		return object.Info{}, fmt.Errorf("%s: %w", key, object.ErrNotFound)
	}
	return object.Info{Key: key, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Type returns "local".
func (b *LocalBackend) Type() string { return "local" }

// Close is a no-op for local backends.
func (b *LocalBackend) Close() error { return nil }
