package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/accesslog"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/files"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/folders"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/usage"
)

// RepositoryManager vends repositories bound to a DBTX so that one
// transaction can span several of them.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Files(db dbx.DBTX) files.Repository
	Folders(db dbx.DBTX) folders.Repository
	Usage(db dbx.DBTX) usage.Repository
	AccessLog(db dbx.DBTX) accesslog.Repository
}
