// Package quota keeps each user's storage total in step with the blobs
// attributed to their live file heads. Credits and debits run on the
// caller's transaction so they commit or roll back with the record change
// they accompany.
package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/repomanager"
)

type Ledger struct {
	repos  repomanager.RepositoryManager
	logger logging.Logger
}

func NewLedger(repos repomanager.RepositoryManager, l logging.Logger) *Ledger {
	return &Ledger{repos: repos, logger: l.With("module", "quota")}
}

// Credit adds bytes for a newly stored blob.
func (l *Ledger) Credit(ctx context.Context, tx dbx.DBTX, userID string, bytes int64) error {
	if bytes < 0 {
		return fmt.Errorf("%w: negative credit %d", common.ErrorIncorrectMetadata, bytes)
	}
	if err := l.repos.Usage(tx).Credit(ctx, userID, bytes); err != nil {
		return fmt.Errorf("credit usage: %w", err)
	}
	return nil
}

// Debit removes bytes for a deleted file. A debit larger than the recorded
// total fails with common.ErrQuotaInconsistent and leaves the total as is.
func (l *Ledger) Debit(ctx context.Context, tx dbx.DBTX, userID string, bytes int64) error {
	if bytes < 0 {
		return fmt.Errorf("%w: negative debit %d", common.ErrorIncorrectMetadata, bytes)
	}
	err := l.repos.Usage(tx).Debit(ctx, userID, bytes)
	if errors.Is(err, common.ErrQuotaInconsistent) {
		l.logger.Error(ctx, "debit exceeds recorded usage", "user_id", userID, "bytes", bytes)
		return err
	}
	if err != nil {
		return fmt.Errorf("debit usage: %w", err)
	}
	return nil
}

// Usage returns userID's current total.
func (l *Ledger) Usage(ctx context.Context, db dbx.DBTX, userID string) (*models.Usage, error) {
	return l.repos.Usage(db).Get(ctx, userID)
}
