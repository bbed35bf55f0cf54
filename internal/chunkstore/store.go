// Package chunkstore stores individual chunk blobs keyed by upload id and
// chunk index. The engine ships two backends: a local filesystem store and
// an S3-compatible one for deployments without a shared disk.
package chunkstore

import "context"

// DeleteResult reports the outcome of a best-effort bulk deletion.
// Successful + Failed always equals the number of chunks attempted.
type DeleteResult struct {
	Successful int
	Failed     int
}

// Store is the chunk blob backend. Get returns common.ErrNotFound for a
// missing chunk; whether that is fatal is the caller's call.
type Store interface {
	// Put writes the chunk and returns its hex sha256 checksum, creating
	// any parent location as needed.
	Put(ctx context.Context, uploadID string, index int, data []byte) (string, error)

	// Get returns the chunk contents, or common.ErrNotFound.
	Get(ctx context.Context, uploadID string, index int) ([]byte, error)

	// DeleteAll removes every chunk of the upload, best effort, then the
	// per-upload location itself once the individual deletions succeed.
	DeleteAll(ctx context.Context, uploadID string, totalChunks int) (DeleteResult, error)
}
