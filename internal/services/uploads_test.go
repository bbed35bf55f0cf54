package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/clipvault/clipvault/internal/assembler"
	"github.com/clipvault/clipvault/internal/cache"
	"github.com/clipvault/clipvault/internal/chunkstore"
	"github.com/clipvault/clipvault/internal/common"
	"github.com/clipvault/clipvault/internal/logging"
	"github.com/clipvault/clipvault/internal/repositories/repomanager"
)

func newService(t *testing.T, sessionCache cache.SessionCache) (*UploadService, sqlmock.Sqlmock, *chunkstore.LocalStore) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	base := t.TempDir()
	log := logging.NewJSONLogger(os.Stderr)
	store := chunkstore.NewLocalStore(base, log)
	engine := assembler.New(store, base, log)

	svc := NewUploadService(db, repomanager.NewPostgresRepositoryManager(), store, sessionCache, engine, log)
	return svc, mock, store
}

func sessionRow(uploadID string, total int, bytesExpected int64, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"upload_id", "total_chunks", "bytes_expected", "status",
		"created_at", "last_activity", "expiration_time",
	}).AddRow(uploadID, total, bytesExpected, status, now, now, now.Add(time.Hour))
}

func TestInitiate_Validations(t *testing.T) {
	svc, _, _ := newService(t, cache.Noop{})
	ctx := context.Background()

	var invalid *common.InvalidParametersError

	_, err := svc.Initiate(ctx, "", 3, 10)
	require.ErrorAs(t, err, &invalid)

	_, err = svc.Initiate(ctx, "u1", 0, 10)
	require.ErrorAs(t, err, &invalid)

	_, err = svc.Initiate(ctx, "u1", 3, 0)
	require.ErrorAs(t, err, &invalid)
}

func TestInitiate_SucceedsWithUnreachableCache(t *testing.T) {
	unreachable := cache.NewRedisCache(redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	}), time.Minute, logging.NewJSONLogger(os.Stderr))

	svc, mock, _ := newService(t, unreachable)

	mock.ExpectExec(`INSERT INTO upload_sessions`).
		WithArgs("u1", 3, int64(10), "uploading", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	session, err := svc.Initiate(context.Background(), "u1", 3, 10)
	require.NoError(t, err, "a dead cache must not block session creation")
	require.Equal(t, 3, session.TotalChunks)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreChunk_RecordsRowAndReturnsChecksum(t *testing.T) {
	svc, mock, store := newService(t, cache.Noop{})
	ctx := context.Background()

	data := []byte("hello chunk")
	sum := sha256.Sum256(data)

	mock.ExpectQuery(`SELECT .* FROM upload_sessions WHERE upload_id=\$1`).
		WithArgs("u1").WillReturnRows(sessionRow("u1", 3, 100, "uploading"))
	mock.ExpectExec(`INSERT INTO chunks`).
		WithArgs("u1", 1, int64(len(data)), hex.EncodeToString(sum[:]), "chunks/u1/chunk_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE upload_sessions SET last_activity=now\(\)`).
		WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\), COALESCE\(SUM\(size_bytes\), 0\)`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count", "sum"}).AddRow(1, len(data)))

	checksum, err := svc.StoreChunk(ctx, "u1", 1, data)
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(sum[:]), checksum)
	require.NoError(t, mock.ExpectationsWereMet())

	stored, err := store.Get(ctx, "u1", 1)
	require.NoError(t, err)
	require.Equal(t, data, stored)
}

func TestStoreChunk_IndexOutOfRange(t *testing.T) {
	svc, mock, _ := newService(t, cache.Noop{})

	mock.ExpectQuery(`SELECT .* FROM upload_sessions WHERE upload_id=\$1`).
		WithArgs("u1").WillReturnRows(sessionRow("u1", 3, 100, "uploading"))

	var invalid *common.InvalidParametersError
	_, err := svc.StoreChunk(context.Background(), "u1", 3, []byte("x"))
	require.ErrorAs(t, err, &invalid)
}

func TestComplete_AssemblesAndCleansUp(t *testing.T) {
	svc, mock, store := newService(t, cache.Noop{})
	ctx := context.Background()

	parts := [][]byte{[]byte("aa"), []byte("bb"), []byte("cc")}
	for i, p := range parts {
		_, err := store.Put(ctx, "u1", i, p)
		require.NoError(t, err)
	}

	mock.ExpectQuery(`SELECT .* FROM upload_sessions WHERE upload_id=\$1`).
		WithArgs("u1").WillReturnRows(sessionRow("u1", 3, 6, "uploading"))
	mock.ExpectExec(`UPDATE upload_sessions SET status=\$1, last_activity=now\(\)\s+WHERE upload_id=\$2 AND status=\$3`).
		WithArgs("assembling", "u1", "uploading").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM chunks WHERE upload_id=\$1`).
		WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM upload_sessions WHERE upload_id=\$1`).
		WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := svc.Complete(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(6), result.FileSize)

	assembled, err := os.ReadFile(result.FilePath)
	require.NoError(t, err)
	require.Equal(t, []byte("aabbcc"), assembled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComplete_SecondCallerLosesTheSwap(t *testing.T) {
	svc, mock, _ := newService(t, cache.Noop{})

	mock.ExpectQuery(`SELECT .* FROM upload_sessions WHERE upload_id=\$1`).
		WithArgs("u1").WillReturnRows(sessionRow("u1", 3, 6, "assembling"))
	mock.ExpectExec(`UPDATE upload_sessions SET status=\$1, last_activity=now\(\)\s+WHERE upload_id=\$2 AND status=\$3`).
		WithArgs("assembling", "u1", "uploading").
		WillReturnResult(sqlmock.NewResult(0, 0))
	// The swap touched nothing, so the repo checks the session still exists.
	mock.ExpectQuery(`SELECT .* FROM upload_sessions WHERE upload_id=\$1`).
		WithArgs("u1").WillReturnRows(sessionRow("u1", 3, 6, "assembling"))

	_, err := svc.Complete(context.Background(), "u1")
	require.ErrorIs(t, err, common.ErrAssemblyConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComplete_MissingChunkRevertsToUploading(t *testing.T) {
	svc, mock, store := newService(t, cache.Noop{})
	ctx := context.Background()

	// Only chunk 0 of 2 present.
	_, err := store.Put(ctx, "u1", 0, []byte("aa"))
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .* FROM upload_sessions WHERE upload_id=\$1`).
		WithArgs("u1").WillReturnRows(sessionRow("u1", 2, 4, "uploading"))
	mock.ExpectExec(`UPDATE upload_sessions SET status=\$1, last_activity=now\(\)\s+WHERE upload_id=\$2 AND status=\$3`).
		WithArgs("assembling", "u1", "uploading").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE upload_sessions SET status=\$1, last_activity=now\(\) WHERE upload_id=\$2`).
		WithArgs("uploading", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err = svc.Complete(ctx, "u1")

	var missing *common.ChunkMissingError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, 1, missing.Index)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComplete_RowDeletionFailureMarksCompleted(t *testing.T) {
	svc, mock, store := newService(t, cache.Noop{})
	ctx := context.Background()

	_, err := store.Put(ctx, "u1", 0, []byte("aabbcc"))
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .* FROM upload_sessions WHERE upload_id=\$1`).
		WithArgs("u1").WillReturnRows(sessionRow("u1", 1, 6, "uploading"))
	mock.ExpectExec(`UPDATE upload_sessions SET status=\$1, last_activity=now\(\)\s+WHERE upload_id=\$2 AND status=\$3`).
		WithArgs("assembling", "u1", "uploading").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM chunks WHERE upload_id=\$1`).
		WithArgs("u1").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()
	// The stranded row gets the terminal marker so the sweep reaps it.
	mock.ExpectExec(`UPDATE upload_sessions SET status=\$1, last_activity=now\(\) WHERE upload_id=\$2`).
		WithArgs("completed", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := svc.Complete(ctx, "u1")
	require.NoError(t, err, "the artifact exists; stranded rows must not fail the call")
	require.Equal(t, int64(6), result.FileSize)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAbort_DeletesChunksAndRows(t *testing.T) {
	svc, mock, store := newService(t, cache.Noop{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := store.Put(ctx, "u1", i, []byte("x"))
		require.NoError(t, err)
	}

	mock.ExpectQuery(`SELECT .* FROM upload_sessions WHERE upload_id=\$1`).
		WithArgs("u1").WillReturnRows(sessionRow("u1", 2, 2, "uploading"))
	mock.ExpectExec(`UPDATE upload_sessions SET status=\$1, last_activity=now\(\) WHERE upload_id=\$2`).
		WithArgs("aborted", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM chunks WHERE upload_id=\$1`).
		WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM upload_sessions WHERE upload_id=\$1`).
		WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.Abort(ctx, "u1"))
	require.NoError(t, mock.ExpectationsWereMet())

	_, err := store.Get(ctx, "u1", 0)
	require.ErrorIs(t, err, common.ErrNotFound)
}
