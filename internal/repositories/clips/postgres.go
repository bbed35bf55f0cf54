package clips

import (
	"context"
	"fmt"
	"time"

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

func (r *PostgresRepository) Create(ctx context.Context, c *models.Clip) error {
	query := `
		INSERT INTO clips (clip_id, file_path, filesize, expiration_time, is_expired, one_time, access_code_hash, created_at, access_count)
		VALUES ($1, $2, $3, $4, false, $5, $6, now(), 0)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		c.ClipID, c.FilePath, c.Filesize, c.ExpirationTime, c.OneTime, c.AccessCodeHash).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to create clip: %w", err)
	}
	return nil
}

func (r *PostgresRepository) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE clips SET is_expired=true, expired_at=$1
		WHERE expiration_time < $1 AND is_expired=false
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark expired clips: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) SelectMarkedBefore(ctx context.Context, cutoff time.Time) ([]*models.Clip, error) {
	query := `
		SELECT id, clip_id, file_path, filesize
		FROM clips WHERE is_expired=true AND expired_at < $1
	`
	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to select expired clips: %w", err)
	}
	defer rows.Close()

	var result []*models.Clip
	for rows.Next() {
		var c models.Clip
		if err := rows.Scan(&c.ID, &c.ClipID, &c.FilePath, &c.Filesize); err != nil {
			return nil, err
		}
		result = append(result, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM clips WHERE id=$1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete clip: %w", err)
	}
	return nil
}

// LivePaths returns the file paths of every clip row still present,
// soft-marked ones included: a marked clip keeps protecting its file
// through the grace window until the hard delete removes the row.
func (r *PostgresRepository) LivePaths(ctx context.Context) (map[string]struct{}, error) {
	query := `SELECT file_path FROM clips WHERE file_path IS NOT NULL`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select live clip paths: %w", err)
	}
	defer rows.Close()

	paths := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths[p] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}

func (r *PostgresRepository) SequenceValue(ctx context.Context) (int64, error) {
	var v int64
	if err := r.db.QueryRowContext(ctx, `SELECT last_value FROM clips_id_seq`).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read clip sequence: %w", err)
	}
	return v, nil
}

func (r *PostgresRepository) RestartSequence(ctx context.Context) error {
	// Restart above max(id)+1000 so rows created while the guard ran
	// cannot collide with the new range.
	query := `SELECT setval('clips_id_seq', (SELECT COALESCE(MAX(id), 0) + 1000 FROM clips))`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to restart clip sequence: %w", err)
	}
	return nil
}
