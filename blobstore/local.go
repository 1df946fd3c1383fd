package blobstore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/hupe1980/tflplan/internal/fs"
	"github.com/hupe1980/tflplan/internal/mmap"
)

// LocalOptions configures a LocalStore.
type LocalOptions struct {
	// FileSystem performs the writes of Put. Default: fs.Default.
	FileSystem fs.FileSystem
	// Perm is the mode of files written by Put. Default: 0644.
	Perm os.FileMode
}

// LocalStore implements Store on the local file system. Blobs are mapped
// read-only; Put writes through a synced temporary file and a rename.
type LocalStore struct {
	root string
	opts LocalOptions
}

// NewLocalStore creates a LocalStore that resolves names relative to root.
// An empty root uses names as given.
func NewLocalStore(root string, optFns ...func(*LocalOptions)) *LocalStore {
	opts := LocalOptions{
		FileSystem: fs.Default,
		Perm:       0o644,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &LocalStore{root: root, opts: opts}
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Open maps a blob for reading.
func (s *LocalStore) Open(ctx context.Context, name string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := mmap.Open(s.path(name))
	if err != nil {
		return nil, err
	}
	if m.Size() > MaxBlobSize {
		_ = m.Close()
		return nil, ErrTooLarge
	}
	_ = m.Advise(mmap.AccessWillNeed)
	return &localBlob{m: m}, nil
}

// Put atomically replaces a blob.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fs.WriteFile(s.opts.FileSystem, s.path(name), data, s.opts.Perm)
}

type localBlob struct {
	m *mmap.Mapping
}

func (b *localBlob) ReadAt(p []byte, off int64) (int, error) { return b.m.ReadAt(p, off) }
func (b *localBlob) Close() error                            { return b.m.Close() }
func (b *localBlob) Size() int64                             { return int64(b.m.Size()) }
func (b *localBlob) Bytes() ([]byte, error)                  { return b.m.Bytes(), nil }
