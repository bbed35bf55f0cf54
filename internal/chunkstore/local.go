package chunkstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/clipvault/clipvault/internal/common"
	"github.com/clipvault/clipvault/internal/limiter"
	"github.com/clipvault/clipvault/internal/logging"
)

// deleteBound caps concurrent chunk deletions per store.
const deleteBound = 10

// LocalStore keeps chunks on the local filesystem at
// {basePath}/chunks/{uploadID}/chunk_{index}.
type LocalStore struct {
	basePath string
	del      *limiter.Limiter
	log      logging.Logger
}

func NewLocalStore(basePath string, log logging.Logger) *LocalStore {
	return &LocalStore{basePath: basePath, del: limiter.New(deleteBound), log: log}
}

// ChunkPath returns the on-disk location for one chunk.
func (s *LocalStore) ChunkPath(uploadID string, index int) string {
	return filepath.Join(s.UploadDir(uploadID), fmt.Sprintf("chunk_%d", index))
}

// UploadDir returns the per-upload chunk directory.
func (s *LocalStore) UploadDir(uploadID string) string {
	return filepath.Join(s.basePath, "chunks", uploadID)
}

func (s *LocalStore) Put(ctx context.Context, uploadID string, index int, data []byte) (string, error) {
	dir := s.UploadDir(uploadID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	path := s.ChunkPath(uploadID, index)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("write chunk %s[%d]: %w", uploadID, index, err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (s *LocalStore) Get(ctx context.Context, uploadID string, index int) ([]byte, error) {
	data, err := os.ReadFile(s.ChunkPath(uploadID, index))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("read chunk %s[%d]: %w", uploadID, index, err)
	}
	return data, nil
}

func (s *LocalStore) DeleteAll(ctx context.Context, uploadID string, totalChunks int) (DeleteResult, error) {
	var successful, failed int64
	var wg sync.WaitGroup

	for i := 0; i < totalChunks; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			_ = s.del.Run(func() error {
				err := os.Remove(s.ChunkPath(uploadID, i))
				if err != nil && !errors.Is(err, fs.ErrNotExist) {
					s.log.Warn(ctx, "chunk delete failed", "upload_id", uploadID, "index", i, "error", err)
					atomic.AddInt64(&failed, 1)
					return err
				}
				atomic.AddInt64(&successful, 1)
				return nil
			})
		}()
	}
	wg.Wait()

	res := DeleteResult{Successful: int(successful), Failed: int(failed)}

	// The directory removal is best effort: a straggler file left by a
	// failed deletion keeps it in place for the cleanup sweep.
	if err := os.Remove(s.UploadDir(uploadID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn(ctx, "chunk directory not removed", "upload_id", uploadID, "error", err)
	}

	return res, nil
}
