// Package cache is the optional read-through accelerator for active upload
// sessions. It is strictly fail-open: no method ever returns an error, a
// broken or absent backend only means every lookup is a miss and every
// write a no-op. Correctness always comes from the repository.
package cache

import (
	"context"
	"time"

	"github.com/clipvault/clipvault/internal/models"
)

// SessionCache accelerates session lookups. Misses and backend failures
// are indistinguishable on purpose: a nil/false result just sends the
// caller to the repository.
type SessionCache interface {
	// GetSession returns the cached session, or nil.
	GetSession(ctx context.Context, uploadID string) *models.UploadSession

	// SetSession stores the session with the configured TTL and reports
	// whether the write took effect.
	SetSession(ctx context.Context, session *models.UploadSession) bool

	// GetProgress returns the cached progress counter, or nil.
	GetProgress(ctx context.Context, uploadID string) *models.SessionProgress

	// SetProgress stores the progress counter with the configured TTL.
	SetProgress(ctx context.Context, progress *models.SessionProgress) bool

	// Expire refreshes the TTL on both keys of the upload.
	Expire(ctx context.Context, uploadID string, ttl time.Duration) bool

	// Invalidate drops both keys of the upload.
	Invalidate(ctx context.Context, uploadID string) bool
}

// Noop is the disabled cache: every read misses, every write is a no-op.
type Noop struct{}

func (Noop) GetSession(context.Context, string) *models.UploadSession    { return nil }
func (Noop) SetSession(context.Context, *models.UploadSession) bool      { return false }
func (Noop) GetProgress(context.Context, string) *models.SessionProgress { return nil }
func (Noop) SetProgress(context.Context, *models.SessionProgress) bool   { return false }
func (Noop) Expire(context.Context, string, time.Duration) bool          { return false }
func (Noop) Invalidate(context.Context, string) bool                     { return false }
