package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

// PostgresRepository implements the usage ledger over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Credit adds bytes to userID's total, creating the row on first use.
func (r *PostgresRepository) Credit(ctx context.Context, userID string, bytes int64) error {
	query := `INSERT INTO usage (user_id, used_bytes, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET
			used_bytes = usage.used_bytes + EXCLUDED.used_bytes,
			updated_at = now()`
	if _, err := r.db.ExecContext(ctx, query, userID, bytes); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Debit subtracts bytes from userID's total. It fails with
// common.ErrQuotaInconsistent when the total is missing or smaller than bytes.
func (r *PostgresRepository) Debit(ctx context.Context, userID string, bytes int64) error {
	query := `UPDATE usage SET used_bytes = used_bytes - $2, updated_at = now()
		WHERE user_id = $1 AND used_bytes >= $2`
	res, err := r.db.ExecContext(ctx, query, userID, bytes)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return common.ErrQuotaInconsistent
	}
	return nil
}

// Get returns userID's total; a user with no row has used zero bytes.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.Usage, error) {
	u := &models.Usage{UserID: userID}
	err := r.db.QueryRowContext(ctx, `SELECT used_bytes, updated_at FROM usage WHERE user_id = $1`, userID).
		Scan(&u.UsedBytes, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select usage: %w", err)
	}
	return u, nil
}
