// Package folders persists the folder hierarchy in PostgreSQL.
package folders

import (
	"context"

	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, folder *models.Folder) error
	Get(ctx context.Context, id string) (*models.Folder, error)
	GetForUpdate(ctx context.Context, id string) (*models.Folder, error)
	Update(ctx context.Context, folder *models.Folder) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, ownerID string, parentID *string) ([]*models.Folder, error)
	CountChildren(ctx context.Context, id string) (int, error)
	RewritePaths(ctx context.Context, ownerID, oldPrefix, newPrefix string) (int64, error)
	Search(ctx context.Context, ownerID, text string) ([]*models.Folder, error)
}
