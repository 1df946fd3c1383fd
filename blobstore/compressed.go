package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression names a blob compression format.
type Compression int

const (
	// CompressionNone stores blobs as they are.
	CompressionNone Compression = iota
	// CompressionZstd stores zstd frames (".zst").
	CompressionZstd
	// CompressionLZ4 stores LZ4 frames (".lz4").
	CompressionLZ4
)

// CompressionFor returns the compression implied by a blob name's suffix.
func CompressionFor(name string) Compression {
	switch {
	case strings.HasSuffix(name, ".zst"):
		return CompressionZstd
	case strings.HasSuffix(name, ".lz4"):
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxBlobSize), zstd.WithDecoderConcurrency(1))
	return dec
}

// CompressedStore wraps a Store and transparently compresses blobs whose
// names end in ".zst" or ".lz4". Other names pass through unchanged.
type CompressedStore struct {
	inner Store
}

// NewCompressedStore wraps inner.
func NewCompressedStore(inner Store) *CompressedStore {
	return &CompressedStore{inner: inner}
}

// Open returns the decompressed content of a blob. Frames that fail to
// decode are reported as ErrCorrupt.
func (s *CompressedStore) Open(ctx context.Context, name string) (Blob, error) {
	c := CompressionFor(name)
	if c == CompressionNone {
		return s.inner.Open(ctx, name)
	}

	var data []byte
	err := View(ctx, s.inner, name, func(raw []byte) error {
		out, err := Decompress(c, raw)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		data = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: %s: %w", name, err)
	}
	return &memoryBlob{data: data}, nil
}

// Put compresses data according to the name and stores it.
func (s *CompressedStore) Put(ctx context.Context, name string, data []byte) error {
	out, err := Compress(CompressionFor(name), data)
	if err != nil {
		return fmt.Errorf("blobstore: %s: %w", name, err)
	}
	return s.inner.Put(ctx, name, out)
}

// Compress encodes data as one frame of format c.
func Compress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		enc := getZstdEncoder()
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if err := w.Apply(lz4.ChecksumOption(true), lz4.SizeOption(uint64(len(data)))); err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown compression %d", c)
	}
}

// Decompress decodes one frame of format c. Output larger than MaxBlobSize
// is rejected.
func Decompress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, err
		}
		return out, nil
	case CompressionLZ4:
		r := lz4.NewReader(bytes.NewReader(data))
		out, err := io.ReadAll(io.LimitReader(r, MaxBlobSize+1))
		if err != nil {
			return nil, err
		}
		if len(out) > MaxBlobSize {
			return nil, ErrTooLarge
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown compression %d", c)
	}
}
