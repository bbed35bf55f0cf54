package sessions

import (
	"context"
	"time"

	"github.com/clipvault/clipvault/internal/models"
)

// Repository is the source of truth for upload sessions. All mutations go
// here first; the cache layer is only ever a read-through accelerator.
type Repository interface {
	Create(ctx context.Context, session *models.UploadSession) error

	// Get returns the session or common.ErrNotFound.
	Get(ctx context.Context, uploadID string) (*models.UploadSession, error)

	// TouchActivity bumps last_activity to now.
	TouchActivity(ctx context.Context, uploadID string) error

	// BeginAssembly performs the compare-and-swap transition
	// uploading -> assembling. A caller losing the race gets
	// common.ErrAssemblyConflict, which keeps concurrent completion
	// requests for the same upload single-flight.
	BeginAssembly(ctx context.Context, uploadID string) error

	UpdateStatus(ctx context.Context, uploadID string, status models.SessionStatus) error

	Delete(ctx context.Context, uploadID string) error

	// SelectReapable returns sessions whose expiration has passed,
	// sessions left in a terminal status by a failed cleanup, and
	// sessions stuck in uploading longer than staleAfter.
	SelectReapable(ctx context.Context, now time.Time, staleAfter time.Duration) ([]*models.UploadSession, error)
}
