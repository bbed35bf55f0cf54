// Package services implements the engine's boundary operations on top of
// the repositories, the chunk store, the cache, and the assembler.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clipvault/clipvault/internal/assembler"
	"github.com/clipvault/clipvault/internal/cache"
	"github.com/clipvault/clipvault/internal/chunkstore"
	"github.com/clipvault/clipvault/internal/common"
	"github.com/clipvault/clipvault/internal/dbx"
	"github.com/clipvault/clipvault/internal/logging"
	"github.com/clipvault/clipvault/internal/models"
	"github.com/clipvault/clipvault/internal/repositories/repomanager"
)

// UploadService is the concrete form of the external contracts: initiate,
// chunk ingestion, completion, abort. The repository is always written
// first; the cache is updated opportunistically and trusted for nothing.
type UploadService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	store  chunkstore.Store
	cache  cache.SessionCache
	engine *assembler.Engine
	log    logging.Logger

	// ExpireAfter is the lifetime of a fresh session.
	ExpireAfter time.Duration
}

func NewUploadService(db *sql.DB, repos repomanager.RepositoryManager, store chunkstore.Store,
	sessionCache cache.SessionCache, engine *assembler.Engine, log logging.Logger) *UploadService {
	return &UploadService{
		db:          db,
		repos:       repos,
		store:       store,
		cache:       sessionCache,
		engine:      engine,
		log:         log,
		ExpireAfter: 24 * time.Hour,
	}
}

// Initiate creates the session record for a declared upload.
func (s *UploadService) Initiate(ctx context.Context, uploadID string, totalChunks int, bytesExpected int64) (*models.UploadSession, error) {
	if uploadID == "" {
		return nil, common.NewInvalidParameters("upload id is required")
	}
	if totalChunks <= 0 {
		return nil, common.NewInvalidParameters("total chunk count must be positive")
	}
	if bytesExpected <= 0 {
		return nil, common.NewInvalidParameters("expected byte size must be positive")
	}

	session := &models.UploadSession{
		UploadID:       uploadID,
		TotalChunks:    totalChunks,
		BytesExpected:  bytesExpected,
		Status:         models.StatusUploading,
		ExpirationTime: time.Now().Add(s.ExpireAfter),
	}
	if err := s.repos.Sessions(s.db).Create(ctx, session); err != nil {
		return nil, err
	}

	s.cache.SetSession(ctx, session)

	s.log.Info(ctx, "upload initiated",
		"upload_id", uploadID, "total_chunks", totalChunks, "bytes_expected", bytesExpected)
	return session, nil
}

// GetSession looks the session up read-through: cache first, repository on
// a miss, opportunistic refill.
func (s *UploadService) GetSession(ctx context.Context, uploadID string) (*models.UploadSession, error) {
	if cached := s.cache.GetSession(ctx, uploadID); cached != nil {
		return cached, nil
	}

	session, err := s.repos.Sessions(s.db).Get(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	s.cache.SetSession(ctx, session)
	return session, nil
}

// StoreChunk persists one chunk blob plus its metadata row and bumps the
// session's activity. The returned checksum lets the caller verify what
// was stored.
func (s *UploadService) StoreChunk(ctx context.Context, uploadID string, index int, data []byte) (string, error) {
	if uploadID == "" {
		return "", common.NewInvalidParameters("upload id is required")
	}
	if len(data) == 0 {
		return "", common.NewInvalidParameters("chunk payload is empty")
	}

	session, err := s.GetSession(ctx, uploadID)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= session.TotalChunks {
		return "", common.NewInvalidParameters(
			fmt.Sprintf("chunk index %d outside [0, %d)", index, session.TotalChunks))
	}

	checksum, err := s.store.Put(ctx, uploadID, index, data)
	if err != nil {
		return "", err
	}

	chunk := &models.Chunk{
		UploadID:    uploadID,
		Index:       index,
		SizeBytes:   int64(len(data)),
		Checksum:    checksum,
		StoragePath: fmt.Sprintf("chunks/%s/chunk_%d", uploadID, index),
	}
	if err := s.repos.Chunks(s.db).Create(ctx, chunk); err != nil {
		return "", err
	}
	if err := s.repos.Sessions(s.db).TouchActivity(ctx, uploadID); err != nil {
		s.log.Warn(ctx, "activity bump failed", "upload_id", uploadID, "error", err)
	}

	if progress, err := s.repos.Chunks(s.db).Progress(ctx, uploadID); err == nil {
		s.cache.SetProgress(ctx, progress)
	}

	return checksum, nil
}

// Complete runs the assembly. The compare-and-swap status transition makes
// concurrent completion calls for one upload single-flight: exactly one
// proceeds, the rest get ErrAssemblyConflict.
func (s *UploadService) Complete(ctx context.Context, uploadID string) (*assembler.Result, error) {
	repo := s.repos.Sessions(s.db)

	session, err := repo.Get(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	if err := repo.BeginAssembly(ctx, uploadID); err != nil {
		return nil, err
	}

	result, err := s.engine.Assemble(ctx, uploadID, session)
	if err != nil {
		var mismatch *common.SizeMismatchError
		if errors.As(err, &mismatch) {
			// Left in assembling deliberately for investigation.
			return nil, err
		}
		// A missing chunk is retryable: back to uploading so the client
		// can re-send it and complete again.
		if revertErr := repo.UpdateStatus(ctx, uploadID, models.StatusUploading); revertErr != nil {
			s.log.Error(ctx, "status revert failed", "upload_id", uploadID, "error", revertErr)
		}
		return nil, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Chunks(tx).DeleteByUploadID(ctx, uploadID); err != nil {
			return err
		}
		return s.repos.Sessions(tx).Delete(ctx, uploadID)
	})
	if err != nil {
		// The artifact exists; stranded rows are the sweep's problem.
		// Marking the session completed keeps it out of assembling and
		// flags it reapable.
		s.log.Error(ctx, "session rows not deleted after assembly", "upload_id", uploadID, "error", err)
		if markErr := repo.UpdateStatus(ctx, uploadID, models.StatusCompleted); markErr != nil {
			s.log.Error(ctx, "completed mark failed", "upload_id", uploadID, "error", markErr)
		}
	}

	s.cache.Invalidate(ctx, uploadID)
	return result, nil
}

// Abort cancels an upload: best-effort chunk deletion, then the rows, then
// the cache entry. An assembly already running is not interrupted.
func (s *UploadService) Abort(ctx context.Context, uploadID string) error {
	session, err := s.repos.Sessions(s.db).Get(ctx, uploadID)
	if err != nil {
		return err
	}

	// Mark first: if the cleanup below dies halfway the row reads aborted,
	// not uploading, and the sweep reaps it on the next tick.
	if err := s.repos.Sessions(s.db).UpdateStatus(ctx, uploadID, models.StatusAborted); err != nil {
		return err
	}

	if res, err := s.store.DeleteAll(ctx, uploadID, session.TotalChunks); err != nil {
		s.log.Warn(ctx, "chunk set delete failed on abort", "upload_id", uploadID, "error", err)
	} else if res.Failed > 0 {
		s.log.Warn(ctx, "chunk set partially deleted on abort",
			"upload_id", uploadID, "deleted", res.Successful, "failed", res.Failed)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Chunks(tx).DeleteByUploadID(ctx, uploadID); err != nil {
			return err
		}
		return s.repos.Sessions(tx).Delete(ctx, uploadID)
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx, uploadID)
	s.log.Info(ctx, "upload aborted", "upload_id", uploadID)
	return nil
}
