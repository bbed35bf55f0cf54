package chunkstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clipvault/clipvault/internal/common"
	"github.com/clipvault/clipvault/internal/logging"
)

func newLocalStore(t *testing.T) (*LocalStore, string) {
	t.Helper()
	base := t.TempDir()
	return NewLocalStore(base, logging.NewJSONLogger(os.Stderr)), base
}

func TestLocalStore_PutGetRoundTrip(t *testing.T) {
	s, base := newLocalStore(t)
	ctx := context.Background()

	data := []byte("chunk payload")
	sum, err := s.Put(ctx, "u1", 0, data)
	require.NoError(t, err)

	want := sha256.Sum256(data)
	require.Equal(t, hex.EncodeToString(want[:]), sum)

	got, err := s.Get(ctx, "u1", 0)
	require.NoError(t, err)
	require.Equal(t, data, got)

	_, err = os.Stat(filepath.Join(base, "chunks", "u1", "chunk_0"))
	require.NoError(t, err, "chunk must live at chunks/{uploadID}/chunk_{index}")
}

func TestLocalStore_GetMissingChunk(t *testing.T) {
	s, _ := newLocalStore(t)

	_, err := s.Get(context.Background(), "nope", 3)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestLocalStore_DeleteAll_CountsSumToTotal(t *testing.T) {
	s, base := newLocalStore(t)
	ctx := context.Background()

	const total = 7
	for i := 0; i < total; i++ {
		_, err := s.Put(ctx, "u1", i, []byte(fmt.Sprintf("part %d", i)))
		require.NoError(t, err)
	}

	res, err := s.DeleteAll(ctx, "u1", total)
	require.NoError(t, err)
	require.Equal(t, total, res.Successful+res.Failed)
	require.Equal(t, total, res.Successful)

	_, err = os.Stat(filepath.Join(base, "chunks", "u1"))
	require.True(t, os.IsNotExist(err), "upload directory should be gone")
}

func TestLocalStore_DeleteAll_MissingChunksCountAsSuccess(t *testing.T) {
	s, _ := newLocalStore(t)
	ctx := context.Background()

	// Only 2 of 5 chunks exist; deleting the absent ones is still success.
	for _, i := range []int{1, 3} {
		_, err := s.Put(ctx, "u1", i, []byte("x"))
		require.NoError(t, err)
	}

	res, err := s.DeleteAll(ctx, "u1", 5)
	require.NoError(t, err)
	require.Equal(t, 5, res.Successful)
	require.Equal(t, 0, res.Failed)
}
