package models

// Chunk is the metadata row for one stored chunk blob. Indices for a given
// upload form the contiguous range [0, TotalChunks).
type Chunk struct {
	UploadID    string
	Index       int
	SizeBytes   int64
	Checksum    string
	StoragePath string
}
