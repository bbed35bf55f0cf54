package repomanager

import (
	"context"
	"database/sql"

	"github.com/clipvault/clipvault/internal/dbx"
	"github.com/clipvault/clipvault/internal/repositories/chunks"
	"github.com/clipvault/clipvault/internal/repositories/clips"
	"github.com/clipvault/clipvault/internal/repositories/sessions"
)

// RepositoryManager vends repository implementations bound to a DBTX and
// owns schema migrations. Handing repositories a DBTX rather than *sql.DB
// lets callers run several of them inside one transaction.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Sessions(db dbx.DBTX) sessions.Repository
	Chunks(db dbx.DBTX) chunks.Repository
	Clips(db dbx.DBTX) clips.Repository
}
