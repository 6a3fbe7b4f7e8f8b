// Package store abstracts the binary document store that holds source
// PDFs and their split pages. Objects are addressed by slash-separated
// names so that the filesystem and GCS backends agree on layout.
package store

import (
	"context"
	"errors"
)

// ErrNotExist is returned by Read when the named object is absent.
var ErrNotExist = errors.New("store: object does not exist")

// BlobStore is the minimal contract the splitter and resolver need from
// a document store. Implementations must be safe for concurrent use.
type BlobStore interface {
	// Read returns the full content of the named object, or ErrNotExist.
	Read(ctx context.Context, name string) ([]byte, error)

	// Write stores an object. Split-page artifacts are immutable once
	// written; backends may treat a write to an existing object as a
	// no-op rather than an overwrite.
	Write(ctx context.Context, name string, data []byte) error

	// Exists reports whether the named object is present.
	Exists(ctx context.Context, name string) (bool, error)

	// List returns the names of all objects under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
