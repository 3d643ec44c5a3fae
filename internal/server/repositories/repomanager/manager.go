package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/cuesync/internal/dbx"
	"github.com/dmitrijs2005/cuesync/internal/models"
	"github.com/dmitrijs2005/cuesync/internal/server/repositories/records"
	"github.com/dmitrijs2005/cuesync/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DB handle or an open
// transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	// Records returns the repository for kind, or nil for an unknown kind.
	Records(kind models.Kind, db dbx.DBTX) records.Repository
}
