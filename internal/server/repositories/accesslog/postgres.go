package accesslog

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Record(ctx context.Context, ev *models.FileAccess) error {
	query := `INSERT INTO file_access (id, file_id, user_id, access_type, accessed_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, ev.ID, ev.FileID, ev.UserID, string(ev.AccessType), ev.Timestamp); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListByFile returns the latest limit events for fileID, newest first.
func (r *PostgresRepository) ListByFile(ctx context.Context, fileID string, limit int) ([]*models.FileAccess, error) {
	query := `SELECT id, file_id, user_id, access_type, accessed_at FROM file_access
		WHERE file_id = $1 ORDER BY accessed_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, fileID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select file access: %w", err)
	}
	defer rows.Close()

	var result []*models.FileAccess
	for rows.Next() {
		var (
			ev models.FileAccess
			at string
		)
		if err := rows.Scan(&ev.ID, &ev.FileID, &ev.UserID, &at, &ev.Timestamp); err != nil {
			return nil, err
		}
		ev.AccessType = models.AccessType(at)
		result = append(result, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
