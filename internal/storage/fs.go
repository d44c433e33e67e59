package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"

	"github.com/spf13/afero"
)

// FSStore keeps blobs as files under {root}/{bucket} on an afero filesystem.
type FSStore struct {
	fs     afero.Fs
	bucket string
}

// NewFSStore roots the store at dir on the OS filesystem.
func NewFSStore(dir, bucket string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return NewFSStoreOn(afero.NewBasePathFs(afero.NewOsFs(), dir), bucket)
}

// NewFSStoreOn uses an arbitrary afero filesystem, e.g. afero.NewMemMapFs in tests.
func NewFSStoreOn(fsys afero.Fs, bucket string) (*FSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("%w: empty bucket", ErrInvalidPath)
	}
	if err := fsys.MkdirAll(bucket, 0o750); err != nil {
		return nil, fmt.Errorf("create bucket directory: %w", err)
	}
	return &FSStore{fs: fsys, bucket: bucket}, nil
}

// Put writes data at path, failing with ErrObjectExists if a file is already there.
// contentType is implied by the extension on a filesystem.
func (s *FSStore) Put(ctx context.Context, objectPath string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := cleanPath(objectPath)
	if err != nil {
		return err
	}
	full := path.Join(s.bucket, p)

	if err := s.fs.MkdirAll(path.Dir(full), 0o750); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}

	f, err := s.fs.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrObjectExists
		}
		return fmt.Errorf("open object: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(full)
		return fmt.Errorf("write object: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close object: %w", err)
	}

	return nil
}

// Delete removes the file at path.
func (s *FSStore) Delete(ctx context.Context, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := cleanPath(objectPath)
	if err != nil {
		return err
	}

	if err := s.fs.Remove(path.Join(s.bucket, p)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// Ping checks that the bucket directory exists.
func (s *FSStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := s.fs.Stat(s.bucket)
	if err != nil {
		return fmt.Errorf("stat bucket: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("bucket %q is not a directory", s.bucket)
	}
	return nil
}

// ReadFile returns the stored bytes at path.
func (s *FSStore) ReadFile(objectPath string) ([]byte, error) {
	p, err := cleanPath(objectPath)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, path.Join(s.bucket, p))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	return data, err
}
