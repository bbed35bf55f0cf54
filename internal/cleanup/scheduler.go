// Package cleanup runs the periodic compensation sweep. The filesystem and
// the database share no transaction, so a crash can strand state on either
// side; each tick reconciles both directions and guards the clip id
// sequence. Per-item errors are logged and never stop a pass.
package cleanup

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/clipvault/clipvault/internal/cache"
	"github.com/clipvault/clipvault/internal/chunkstore"
	"github.com/clipvault/clipvault/internal/dbx"
	"github.com/clipvault/clipvault/internal/logging"
	"github.com/clipvault/clipvault/internal/repositories/repomanager"
)

const (
	// DefaultInterval between sweeps.
	DefaultInterval = 60 * time.Second

	// DefaultGrace is how long a clip stays soft-marked before the hard
	// delete, protecting clients mid-download.
	DefaultGrace = 5 * time.Minute

	// DefaultStaleAfter reaps sessions stuck in uploading.
	DefaultStaleAfter = 24 * time.Hour

	// DefaultSequenceHighWater triggers the clip id sequence restart.
	DefaultSequenceHighWater = 2_000_000_000

	// orphanMinAge keeps freshly assembled artifacts out of the orphan
	// sweep while their clip row is still being created.
	orphanMinAge = time.Hour
)

// Scheduler owns the sweep loop and its four responsibilities: two-phase
// clip expiry, session reaping, orphan file removal, and the sequence
// guard.
type Scheduler struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	store    chunkstore.Store
	cache    cache.SessionCache
	basePath string
	log      logging.Logger

	Interval          time.Duration
	Grace             time.Duration
	StaleAfter        time.Duration
	SequenceHighWater int64

	now func() time.Time
}

func NewScheduler(db *sql.DB, repos repomanager.RepositoryManager, store chunkstore.Store,
	sessionCache cache.SessionCache, basePath string, log logging.Logger) *Scheduler {
	return &Scheduler{
		db:                db,
		repos:             repos,
		store:             store,
		cache:             sessionCache,
		basePath:          basePath,
		log:               log,
		Interval:          DefaultInterval,
		Grace:             DefaultGrace,
		StaleAfter:        DefaultStaleAfter,
		SequenceHighWater: DefaultSequenceHighWater,
		now:               time.Now,
	}
}

// Run sweeps on a fixed interval until the context is cancelled. There is
// no external trigger; the timer is the only driver.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.log.Info(ctx, "cleanup scheduler started", "interval", s.Interval)

	for {
		select {
		case <-ctx.Done():
			s.log.Info(ctx, "cleanup scheduler stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one full pass. Every phase runs every tick, regardless of
// what the previous phases hit.
func (s *Scheduler) Sweep(ctx context.Context) {
	s.expireClips(ctx)
	s.reapSessions(ctx)
	s.sweepOrphans(ctx)
	s.guardSequence(ctx)
}

// expireClips is the two-phase clip expiry: soft-mark first, hard-delete
// (row, then backing file) only after the grace window.
func (s *Scheduler) expireClips(ctx context.Context) {
	repo := s.repos.Clips(s.db)
	now := s.now()

	marked, err := repo.MarkExpired(ctx, now)
	if err != nil {
		s.log.Error(ctx, "clip expiry mark failed", "error", err)
	} else if marked > 0 {
		s.log.Info(ctx, "clips marked expired", "count", marked)
	}

	ready, err := repo.SelectMarkedBefore(ctx, now.Add(-s.Grace))
	if err != nil {
		s.log.Error(ctx, "expired clip select failed", "error", err)
		return
	}

	for _, clip := range ready {
		if err := repo.Delete(ctx, clip.ID); err != nil {
			s.log.Error(ctx, "clip delete failed", "clip_id", clip.ClipID, "error", err)
			continue
		}
		if clip.FilePath.Valid {
			if out := SafeDelete(clip.FilePath.String); !out.Success {
				s.log.Warn(ctx, "clip file not removed",
					"clip_id", clip.ClipID, "path", clip.FilePath.String,
					"reason", out.Reason, "error", out.Err)
			}
		}
	}
}

// reapSessions removes expired and abandoned upload sessions: chunk files,
// then chunk rows and the session row in one transaction, then the cache
// entry.
func (s *Scheduler) reapSessions(ctx context.Context) {
	sessions, err := s.repos.Sessions(s.db).SelectReapable(ctx, s.now(), s.StaleAfter)
	if err != nil {
		s.log.Error(ctx, "reapable session select failed", "error", err)
		return
	}

	for _, session := range sessions {
		res, err := s.store.DeleteAll(ctx, session.UploadID, session.TotalChunks)
		if err != nil {
			s.log.Warn(ctx, "chunk set delete failed", "upload_id", session.UploadID, "error", err)
		} else if res.Failed > 0 {
			s.log.Warn(ctx, "chunk set partially deleted",
				"upload_id", session.UploadID, "deleted", res.Successful, "failed", res.Failed)
		}

		// Chunk rows first: they hold the foreign key to the session.
		err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			if err := s.repos.Chunks(tx).DeleteByUploadID(ctx, session.UploadID); err != nil {
				return err
			}
			return s.repos.Sessions(tx).Delete(ctx, session.UploadID)
		})
		if err != nil {
			s.log.Error(ctx, "session row delete failed", "upload_id", session.UploadID, "error", err)
			continue
		}

		s.cache.Invalidate(ctx, session.UploadID)
		s.log.Info(ctx, "session reaped", "upload_id", session.UploadID, "status", session.Status)
	}
}

// sweepOrphans deletes artifact files no live clip references. Files
// younger than orphanMinAge are skipped: their clip row may still be on
// its way.
func (s *Scheduler) sweepOrphans(ctx context.Context) {
	live, err := s.repos.Clips(s.db).LivePaths(ctx)
	if err != nil {
		s.log.Error(ctx, "live path select failed", "error", err)
		return
	}

	dir := filepath.Join(s.basePath, "files")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Error(ctx, "artifact directory unreadable", "dir", dir, "error", err)
		}
		return
	}

	cutoff := s.now().Add(-orphanMinAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if _, ok := live[path]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if out := SafeDelete(path); !out.Success {
			s.log.Warn(ctx, "orphan file not removed", "path", path, "reason", out.Reason, "error", out.Err)
		} else {
			s.log.Info(ctx, "orphan file removed", "path", path)
		}
	}
}

// guardSequence restarts the clip id sequence once it passes the high-water
// mark. Checked every tick, acted on rarely.
func (s *Scheduler) guardSequence(ctx context.Context) {
	repo := s.repos.Clips(s.db)

	v, err := repo.SequenceValue(ctx)
	if err != nil {
		s.log.Error(ctx, "sequence check failed", "error", err)
		return
	}
	if v <= s.SequenceHighWater {
		return
	}

	if err := repo.RestartSequence(ctx); err != nil {
		s.log.Error(ctx, "sequence restart failed", "error", err)
		return
	}
	s.log.Warn(ctx, "clip id sequence restarted", "previous_value", v)
}
