// Package storage persists print documents in a path-keyed blob store.
package storage

import (
	"context"
	"errors"
)

// Errors returned by Store implementations.
var (
	ErrObjectExists   = errors.New("object already exists")
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidPath    = errors.New("invalid object path")
)

// ContentTypePDF is the content type recorded for print documents.
const ContentTypePDF = "application/pdf"

// Store writes and removes blobs by path within one bucket.
type Store interface {
	// Put writes data at path. It never overwrites: an existing object
	// yields ErrObjectExists.
	Put(ctx context.Context, path string, data []byte, contentType string) error
	// Delete removes the object at path.
	Delete(ctx context.Context, path string) error
	// Ping checks that the backing bucket is reachable.
	Ping(ctx context.Context) error
}
