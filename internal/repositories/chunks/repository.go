package chunks

import (
	"context"

	"github.com/clipvault/clipvault/internal/models"
)

// Repository tracks chunk metadata rows. Rows reference their session by
// upload_id with a foreign key, so they are always deleted before the
// session row.
type Repository interface {
	// Create records a stored chunk. Re-uploading the same index
	// overwrites the previous record.
	Create(ctx context.Context, chunk *models.Chunk) error

	// Progress reports how many chunks and bytes have arrived.
	Progress(ctx context.Context, uploadID string) (*models.SessionProgress, error)

	DeleteByUploadID(ctx context.Context, uploadID string) error
}
