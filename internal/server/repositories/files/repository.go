// Package files persists FileRecords in PostgreSQL.
package files

import (
	"context"

	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

// Filter narrows List. Empty fields do not filter.
type Filter struct {
	FolderID *string
	Tag      string
	Search   string
}

// Query is a validated search: Text matches original name or any tag,
// every Metadata entry must match its key by substring.
type Query struct {
	Text     string
	Metadata map[string]string
}

type Repository interface {
	Create(ctx context.Context, file *models.File) error
	Get(ctx context.Context, id string) (*models.File, error)
	GetForUpdate(ctx context.Context, id string) (*models.File, error)
	Update(ctx context.Context, file *models.File) error
	Delete(ctx context.Context, id string) error
	FindByChecksum(ctx context.Context, ownerID, checksum string) ([]*models.File, error)
	List(ctx context.Context, ownerID string, filter Filter) ([]*models.File, error)
	Search(ctx context.Context, ownerID string, q Query) ([]*models.File, error)
	CountInFolder(ctx context.Context, folderID string) (int, error)
}
