// Package assembler turns a complete chunk set into one artifact file.
// Reads fan out through a bounded limiter, the gathered pieces are ordered
// by index, and only a fully verified byte sequence ever reaches disk.
package assembler

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/clipvault/clipvault/internal/chunkstore"
	"github.com/clipvault/clipvault/internal/common"
	"github.com/clipvault/clipvault/internal/limiter"
	"github.com/clipvault/clipvault/internal/logging"
	"github.com/clipvault/clipvault/internal/models"
)

// readBound caps concurrent chunk reads during the gather phase.
const readBound = 5

// Result reports where the assembled artifact landed and its measured size.
// The measured size, not the declared one, is authoritative.
type Result struct {
	FilePath string
	FileSize int64
}

// Engine assembles uploads. It does not serialize concurrent calls for the
// same upload id; the sessions repository's compare-and-swap transition is
// the single-flight guard, so callers go through that first.
type Engine struct {
	store    chunkstore.Store
	basePath string
	reads    *limiter.Limiter
	log      logging.Logger
}

func New(store chunkstore.Store, basePath string, log logging.Logger) *Engine {
	return &Engine{
		store:    store,
		basePath: basePath,
		reads:    limiter.New(readBound),
		log:      log,
	}
}

type indexedChunk struct {
	index int
	data  []byte
}

// Assemble reads every declared chunk, concatenates them in index order,
// writes the artifact under {basePath}/files, and then deletes the chunk
// set best effort. On any read failure no output file is created. A
// measured size that disagrees with the session's declared size aborts
// with SizeMismatchError before anything is written.
func (e *Engine) Assemble(ctx context.Context, uploadID string, session *models.UploadSession) (*Result, error) {
	if uploadID == "" {
		return nil, common.NewInvalidParameters("upload id is required")
	}
	if session == nil {
		return nil, common.NewInvalidParameters("session is required")
	}
	if session.TotalChunks <= 0 {
		return nil, common.NewInvalidParameters("total chunk count is required")
	}
	if session.BytesExpected <= 0 {
		// Without a declared size the measured one cannot be verified.
		return nil, common.NewInvalidParameters("expected byte size is required")
	}

	gathered, err := e.gather(ctx, uploadID, session.TotalChunks)
	if err != nil {
		return nil, err
	}

	// Completion order of the parallel reads is non-deterministic, so the
	// sort is a correctness requirement, not a nicety.
	sort.Slice(gathered, func(i, j int) bool { return gathered[i].index < gathered[j].index })

	var buf bytes.Buffer
	for _, c := range gathered {
		buf.Write(c.data)
	}
	measured := int64(buf.Len())

	if measured != session.BytesExpected {
		// The session stays in assembling for investigation; a
		// wrong-sized artifact is never silently accepted.
		return nil, &common.SizeMismatchError{
			UploadID: uploadID,
			Declared: session.BytesExpected,
			Measured: measured,
		}
	}

	path, err := e.writeArtifact(uploadID, buf.Bytes())
	if err != nil {
		return nil, err
	}

	// Chunk deletion only after a successful write. Failures are logged
	// per chunk and left for the cleanup sweep.
	res, _ := e.store.DeleteAll(ctx, uploadID, session.TotalChunks)
	if res.Failed > 0 {
		e.log.Warn(ctx, "some chunks not deleted after assembly",
			"upload_id", uploadID, "deleted", res.Successful, "failed", res.Failed)
	}

	e.log.Info(ctx, "upload assembled",
		"upload_id", uploadID, "path", path, "size", measured)

	return &Result{FilePath: path, FileSize: measured}, nil
}

// gather reads all chunks through the limiter and fails fast on the lowest
// missing index.
func (e *Engine) gather(ctx context.Context, uploadID string, totalChunks int) ([]indexedChunk, error) {
	var (
		mu       sync.Mutex
		gathered []indexedChunk
		failures = make([]error, totalChunks)
		wg       sync.WaitGroup
	)

	for i := 0; i < totalChunks; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			_ = e.reads.Run(func() error {
				data, err := e.store.Get(ctx, uploadID, i)
				if err != nil {
					failures[i] = err
					return err
				}
				mu.Lock()
				gathered = append(gathered, indexedChunk{index: i, data: data})
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	// A missing chunk and an unreadable chunk are equally fatal; the
	// error carries the lowest affected index for a targeted re-upload.
	for i, err := range failures {
		if err != nil {
			return nil, &common.ChunkMissingError{UploadID: uploadID, Index: i, Err: err}
		}
	}

	return gathered, nil
}

// writeArtifact persists the assembled bytes under {basePath}/files with a
// uuid-derived name, creating the directory first.
func (e *Engine) writeArtifact(uploadID string, data []byte) (string, error) {
	dir := filepath.Join(e.basePath, "files")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	path := filepath.Join(dir, uuid.New().String())
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("write artifact for upload %s: %w", uploadID, err)
	}
	return path, nil
}
