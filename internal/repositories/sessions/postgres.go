package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clipvault/clipvault/internal/common"
	"github.com/clipvault/clipvault/internal/dbx"
	"github.com/clipvault/clipvault/internal/models"
)

// PostgresRepository implements Repository over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.UploadSession) error {
	query := `
		INSERT INTO upload_sessions (upload_id, total_chunks, bytes_expected, status, created_at, last_activity, expiration_time)
		VALUES ($1, $2, $3, $4, now(), now(), $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.UploadID, s.TotalChunks, s.BytesExpected, models.StatusUploading, s.ExpirationTime)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, uploadID string) (*models.UploadSession, error) {
	query := `
		SELECT upload_id, total_chunks, bytes_expected, status, created_at, last_activity, expiration_time
		FROM upload_sessions WHERE upload_id=$1
	`
	s := &models.UploadSession{}
	err := r.db.QueryRowContext(ctx, query, uploadID).Scan(
		&s.UploadID, &s.TotalChunks, &s.BytesExpected, &s.Status,
		&s.CreatedAt, &s.LastActivity, &s.ExpirationTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select session: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) TouchActivity(ctx context.Context, uploadID string) error {
	query := `UPDATE upload_sessions SET last_activity=now() WHERE upload_id=$1`
	res, err := r.db.ExecContext(ctx, query, uploadID)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return oneRowOrNotFound(res)
}

func (r *PostgresRepository) BeginAssembly(ctx context.Context, uploadID string) error {
	query := `
		UPDATE upload_sessions SET status=$1, last_activity=now()
		WHERE upload_id=$2 AND status=$3
	`
	res, err := r.db.ExecContext(ctx, query, models.StatusAssembling, uploadID, models.StatusUploading)
	if err != nil {
		return fmt.Errorf("failed to begin assembly: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		// Either the session is gone or another caller won the swap.
		if _, err := r.Get(ctx, uploadID); err != nil {
			return err
		}
		return common.ErrAssemblyConflict
	}
	return nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, uploadID string, status models.SessionStatus) error {
	query := `UPDATE upload_sessions SET status=$1, last_activity=now() WHERE upload_id=$2`
	res, err := r.db.ExecContext(ctx, query, status, uploadID)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	return oneRowOrNotFound(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, uploadID string) error {
	query := `DELETE FROM upload_sessions WHERE upload_id=$1`
	if _, err := r.db.ExecContext(ctx, query, uploadID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SelectReapable(ctx context.Context, now time.Time, staleAfter time.Duration) ([]*models.UploadSession, error) {
	query := `
		SELECT upload_id, total_chunks, bytes_expected, status, created_at, last_activity, expiration_time
		FROM upload_sessions
		WHERE expiration_time < $1 OR status IN ($2, $3) OR (status = $4 AND last_activity < $5)
	`
	rows, err := r.db.QueryContext(ctx, query,
		now, models.StatusCompleted, models.StatusAborted,
		models.StatusUploading, now.Add(-staleAfter))
	if err != nil {
		return nil, fmt.Errorf("failed to select reapable sessions: %w", err)
	}
	defer rows.Close()

	var result []*models.UploadSession
	for rows.Next() {
		var s models.UploadSession
		if err := rows.Scan(&s.UploadID, &s.TotalChunks, &s.BytesExpected, &s.Status,
			&s.CreatedAt, &s.LastActivity, &s.ExpirationTime); err != nil {
			return nil, err
		}
		result = append(result, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func oneRowOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
