// Package accesslog persists FileAccess events.
package accesslog

import (
	"context"

	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

type Repository interface {
	Record(ctx context.Context, ev *models.FileAccess) error
	ListByFile(ctx context.Context, fileID string, limit int) ([]*models.FileAccess, error)
}
