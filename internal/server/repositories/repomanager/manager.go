package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/voicedrop/internal/dbx"
	"github.com/dmitrijs2005/voicedrop/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX and owns schema migration.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
}
