// Package saver stages downloaded content locally and persists it under a
// user-facing name.
package saver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fruitsalade/filedesk/internal/logging"
	"github.com/fruitsalade/filedesk/internal/storage/object"
)

// ErrReleased is returned when a blob is opened after Release.
var ErrReleased = errors.New("blob already released")

// Blob is a temporary local copy of downloaded content.
type Blob interface {
	// Open returns a fresh reader over the content.
	Open() (io.ReadCloser, error)
	// Size is the number of staged bytes.
	Size() int64
	// Release frees the temporary object. It is safe to call more than once.
	Release() error
}

// Stager turns a content stream into a Blob.
type Stager interface {
	Stage(ctx context.Context, r io.Reader) (Blob, error)
}

// Saver persists a named blob somewhere the user can reach it.
type Saver interface {
	Save(ctx context.Context, name string, blob Blob) error
}

// ctxReader stops copying once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// TempFileStager spools content to a file in Dir (os.TempDir when empty).
type TempFileStager struct {
	Dir string
}

// Stage copies r into a new temp file.
func (s TempFileStager) Stage(ctx context.Context, r io.Reader) (Blob, error) {
	f, err := os.CreateTemp(s.Dir, "filedesk-*.part")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	n, err := io.Copy(f, ctxReader{ctx: ctx, r: r})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("stage content: %w", err)
	}

	logging.Debug("Content staged", logging.String("path", f.Name()), logging.Int64("size", n))
	return &fileBlob{path: f.Name(), size: n}, nil
}

type fileBlob struct {
	path string
	size int64

	mu       sync.Mutex
	released bool
}

func (b *fileBlob) Open() (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil, ErrReleased
	}
	return os.Open(b.path)
}

func (b *fileBlob) Size() int64 { return b.size }

func (b *fileBlob) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil
	}
	b.released = true
	if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove staged file: %w", err)
	}
	return nil
}

// MemoryStager keeps content in memory.
type MemoryStager struct{}

// Stage reads r fully into memory.
func (MemoryStager) Stage(ctx context.Context, r io.Reader) (Blob, error) {
	data, err := io.ReadAll(ctxReader{ctx: ctx, r: r})
	if err != nil {
		return nil, fmt.Errorf("stage content: %w", err)
	}
	return &memBlob{data: data}, nil
}

type memBlob struct {
	mu   sync.Mutex
	data []byte
}

func (b *memBlob) Open() (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return nil, ErrReleased
	}
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

func (b *memBlob) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.data))
}

func (b *memBlob) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = nil
	return nil
}

// DirSaver writes blobs into a downloads directory.
type DirSaver struct {
	Dir string
	// Overwrite replaces an existing file instead of picking "name (n).ext".
	Overwrite bool

	mu sync.Mutex
}

// SafeName reduces name to a base name usable in a single directory, the
// way browsers treat suggested download names.
func SafeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.ReplaceAll(name, "\x00", "")
	name = filepath.Base(filepath.FromSlash(name))
	name = strings.TrimSpace(name)
	switch name {
	case "", ".", "..", string(filepath.Separator):
		return "download"
	}
	return name
}

// Save copies blob to Dir under the sanitised name and returns nil once the
// file is in place.
func (s *DirSaver) Save(ctx context.Context, name string, blob Blob) error {
	_, err := s.SaveAs(ctx, name, blob)
	return err
}

// SaveAs is Save that also reports the final path.
func (s *DirSaver) SaveAs(ctx context.Context, name string, blob Blob) (string, error) {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	src, err := blob.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dir, object.TempPrefix+"*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, ctxReader{ctx: ctx, r: src}); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	// Serialise name selection and rename so concurrent saves of the same
	// name pick distinct targets.
	s.mu.Lock()
	defer s.mu.Unlock()

	target := filepath.Join(dir, SafeName(name))
	if !s.Overwrite {
		target = uniquePath(target)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}

	logging.Info("File saved", logging.String("name", name), logging.String("path", target))
	return target, nil
}

// uniquePath returns p, or "base (n).ext" for the first n that is free.
func uniquePath(p string) string {
	if _, err := os.Lstat(p); os.IsNotExist(err) {
		return p
	}
	ext := filepath.Ext(p)
	stem := strings.TrimSuffix(p, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// WriterSaver streams blobs to W, for example stdout.
type WriterSaver struct {
	W io.Writer
}

// Save copies the blob content to W. The name is ignored.
func (s WriterSaver) Save(ctx context.Context, name string, blob Blob) error {
	src, err := blob.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	if _, err := io.Copy(s.W, ctxReader{ctx: ctx, r: src}); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
