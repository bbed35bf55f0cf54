package clips

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/clipvault/clipvault/internal/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestCreate_ReturnsGeneratedID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO clips`).
		WithArgs("c1", sqlmock.AnyArg(), int64(42), sqlmock.AnyArg(), false, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(17)))

	clip := &models.Clip{
		ClipID:         "c1",
		FilePath:       sql.NullString{String: "/data/files/abc", Valid: true},
		Filesize:       42,
		ExpirationTime: time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), clip))
	require.Equal(t, int64(17), clip.ID)
}

func TestMarkExpired_ReportsRowCount(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	mock.ExpectExec(`UPDATE clips SET is_expired=true, expired_at=\$1\s+WHERE expiration_time < \$1 AND is_expired=false`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.MarkExpired(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
}

func TestSelectMarkedBefore_ScansNullPaths(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	cutoff := time.Now().Add(-5 * time.Minute)
	mock.ExpectQuery(`SELECT .* FROM clips WHERE is_expired=true AND expired_at < \$1`).
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"id", "clip_id", "file_path", "filesize"}).
			AddRow(int64(1), "c1", "/data/files/a", int64(10)).
			AddRow(int64(2), "c2", nil, int64(0)))

	got, err := repo.SelectMarkedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.True(t, got[0].FilePath.Valid)
	require.False(t, got[1].FilePath.Valid)
}

func TestLivePaths_BuildsSet(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT file_path FROM clips WHERE file_path IS NOT NULL$`).
		WillReturnRows(sqlmock.NewRows([]string{"file_path"}).
			AddRow("/data/files/a").
			AddRow("/data/files/b"))

	paths, err := repo.LivePaths(context.Background())
	require.NoError(t, err)
	require.Len(t, paths, 2)
	require.Contains(t, paths, "/data/files/a")
}

func TestRestartSequence(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`SELECT setval\('clips_id_seq', \(SELECT COALESCE\(MAX\(id\), 0\) \+ 1000 FROM clips\)\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RestartSequence(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
