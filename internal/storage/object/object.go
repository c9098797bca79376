// Package object holds the types shared by storage backends.
package object

import (
	"errors"
	"time"
)

// ErrNotFound is returned (possibly wrapped) when an object does not exist.
var ErrNotFound = errors.New("object not found")

// Info describes a stored object.
type Info struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// TempPrefix starts the names of in-flight uploads.
const TempPrefix = ".filedesk-"
