package clips

import (
	"context"
	"time"

	"github.com/clipvault/clipvault/internal/models"
)

// Repository manages clip records. Creation belongs to the completion
// collaborator; everything else serves the cleanup sweep.
type Repository interface {
	Create(ctx context.Context, clip *models.Clip) error

	// MarkExpired soft-marks every clip whose expiration has passed and
	// returns how many rows it touched. The soft mark keeps a client
	// mid-download from racing a hard delete.
	MarkExpired(ctx context.Context, now time.Time) (int64, error)

	// SelectMarkedBefore returns clips that became expired before cutoff
	// and are ready for the hard delete.
	SelectMarkedBefore(ctx context.Context, cutoff time.Time) ([]*models.Clip, error)

	Delete(ctx context.Context, id int64) error

	// LivePaths returns the file paths referenced by existing clip rows,
	// the reference set for the orphan sweep. Soft-marked clips count:
	// their files stay protected through the grace window.
	LivePaths(ctx context.Context) (map[string]struct{}, error)

	// SequenceValue reports the clip table's id sequence position.
	SequenceValue(ctx context.Context) (int64, error)

	// RestartSequence moves the id sequence above max(id)+1000.
	RestartSequence(ctx context.Context) error
}
