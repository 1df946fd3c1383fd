package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error that satisfies errors.Is(err, ErrNotFound).
var ErrNotFound = os.ErrNotExist

// ErrTooLarge is returned for blobs that exceed the descriptor size limit.
var ErrTooLarge = errors.New("blobstore: blob too large")

// ErrCorrupt is returned for stored content that cannot be decoded, such as
// a damaged compression frame.
var ErrCorrupt = errors.New("blobstore: corrupt blob")

// MaxBlobSize is the largest blob ReadAll accepts. Descriptors use 32-bit
// signed offsets and cannot be larger.
const MaxBlobSize = 1<<31 - 1

// Store reads and writes whole blobs.
type Store interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Put replaces a blob with data. Readers never observe a partial blob.
	Put(ctx context.Context, name string, data []byte) error
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.ReaderAt
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
}

// Mappable is an optional interface for Blobs whose content is already in
// memory.
type Mappable interface {
	// Bytes returns the content. The slice is valid until the Blob is
	// closed and must not be modified.
	Bytes() ([]byte, error)
}

// View calls fn with the content of a blob. Mapped blobs are passed without
// copying; fn must not retain the slice.
func View(ctx context.Context, s Store, name string, fn func(data []byte) error) error {
	blob, err := s.Open(ctx, name)
	if err != nil {
		return err
	}
	defer blob.Close()

	if m, ok := blob.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return err
		}
		return fn(data)
	}
	data, err := readBlob(blob)
	if err != nil {
		return err
	}
	return fn(data)
}

// ReadAll returns a copy of the content of a blob.
func ReadAll(ctx context.Context, s Store, name string) ([]byte, error) {
	var out []byte
	err := View(ctx, s, name, func(data []byte) error {
		out = make([]byte, len(data))
		copy(out, data)
		return nil
	})
	return out, err
}

// readBlob reads a blob with a single ReadAt, which remote stores serve with
// one ranged request.
func readBlob(blob Blob) ([]byte, error) {
	size := blob.Size()
	if size < 0 || size > MaxBlobSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	data := make([]byte, size)
	if size == 0 {
		return data, nil
	}
	n, err := blob.ReadAt(data, 0)
	if n == len(data) && errors.Is(err, io.EOF) {
		err = nil
	}
	if err != nil {
		return nil, err
	}
	if n < len(data) {
		return nil, io.ErrUnexpectedEOF
	}
	return data, nil
}
