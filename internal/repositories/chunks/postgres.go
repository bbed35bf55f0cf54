package chunks

import (
	"context"
	"fmt"

	"github.com/clipvault/clipvault/internal/dbx"
	"github.com/clipvault/clipvault/internal/models"
)

// PostgresRepository implements Repository over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Chunk) error {
	query := `
		INSERT INTO chunks (upload_id, chunk_index, size_bytes, checksum, storage_path)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (upload_id, chunk_index)
		DO UPDATE SET
			size_bytes = EXCLUDED.size_bytes,
			checksum = EXCLUDED.checksum,
			storage_path = EXCLUDED.storage_path
	`
	_, err := r.db.ExecContext(ctx, query, c.UploadID, c.Index, c.SizeBytes, c.Checksum, c.StoragePath)
	if err != nil {
		return fmt.Errorf("failed to record chunk: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Progress(ctx context.Context, uploadID string) (*models.SessionProgress, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(size_bytes), 0)
		FROM chunks WHERE upload_id=$1
	`
	p := &models.SessionProgress{UploadID: uploadID}
	if err := r.db.QueryRowContext(ctx, query, uploadID).Scan(&p.ChunksReceived, &p.BytesReceived); err != nil {
		return nil, fmt.Errorf("failed to select chunk progress: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) DeleteByUploadID(ctx context.Context, uploadID string) error {
	query := `DELETE FROM chunks WHERE upload_id=$1`
	if _, err := r.db.ExecContext(ctx, query, uploadID); err != nil {
		return fmt.Errorf("failed to delete chunk rows: %w", err)
	}
	return nil
}
