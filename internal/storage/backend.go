// Package storage defines the Backend interface for download destinations.
package storage

import (
	"context"
	"io"

	"github.com/fruitsalade/filedesk/internal/storage/object"
)

// ErrNotFound is returned (possibly wrapped) when an object does not exist.
var ErrNotFound = object.ErrNotFound

// ObjectInfo describes a stored object.
type ObjectInfo = object.Info

// Backend is a place downloaded files can be written to. Keys are flat file
// names; backends do not interpret separators.
type Backend interface {
	// PutObject stores content under the given key, replacing any existing object.
	PutObject(ctx context.Context, key string, body io.Reader, size int64) error

	// StatObject returns information about an object, or ErrNotFound.
	StatObject(ctx context.Context, key string) (ObjectInfo, error)

	// Type returns the backend type identifier ("local", "s3", "ftp", "smb").
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}
