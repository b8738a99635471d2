// Package usage persists per-user storage totals.
package usage

import (
	"context"

	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

type Repository interface {
	Credit(ctx context.Context, userID string, bytes int64) error
	Debit(ctx context.Context, userID string, bytes int64) error
	Get(ctx context.Context, userID string) (*models.Usage, error)
}
