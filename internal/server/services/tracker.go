package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/repomanager"
)

const defaultHistoryLimit = 50

// AccessTracker records who touched which file. Download and edit paths
// call Track themselves after the operation succeeded. A nil tracker
// records nothing.
type AccessTracker struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger

	now   func() time.Time
	newID func() string
}

func NewAccessTracker(db *sql.DB, repos repomanager.RepositoryManager, l logging.Logger) *AccessTracker {
	return &AccessTracker{
		db:     db,
		repos:  repos,
		logger: l.With("module", "tracker"),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Track stores one event. A failed write is logged and never reaches the
// caller.
func (t *AccessTracker) Track(ctx context.Context, fileID, userID string, kind models.AccessType) {
	if t == nil {
		return
	}
	ev := &models.FileAccess{
		ID:         t.newID(),
		FileID:     fileID,
		UserID:     userID,
		AccessType: kind,
		Timestamp:  t.now(),
	}
	if err := t.repos.AccessLog(t.db).Record(ctx, ev); err != nil {
		t.logger.Warn(ctx, "access event not recorded", "file_id", fileID, "type", kind, "error", err)
	}
}

// History returns up to limit events for fileID, newest first.
func (t *AccessTracker) History(ctx context.Context, fileID string, limit int) ([]*models.FileAccess, error) {
	if t == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return t.repos.AccessLog(t.db).ListByFile(ctx, fileID, limit)
}
