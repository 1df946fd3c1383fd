// Package blobstore reads and writes model files as whole blobs.
//
// A Store resolves names to Blobs. The planner loads a descriptor with View
// or ReadAll and writes the rewritten descriptor back with Put, which never
// exposes a partially written blob.
//
// # Implementations
//
//   - LocalStore: local files, mapped read-only, written via temp file and rename
//   - MemoryStore: in-memory, for tests
//   - CompressedStore: zstd or LZ4 framing selected by the ".zst" or ".lz4" suffix
//   - s3.Store: Amazon S3 with a single ranged read and multipart upload
//   - minio.Store: any S3-compatible server through the MinIO client
package blobstore
