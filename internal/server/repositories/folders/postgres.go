package folders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

const columns = `id, owner_id, parent_id, name, path, access_level, shared_with, created_at`

// PostgresRepository implements folder storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFolder(s scanner) (*models.Folder, error) {
	var (
		f        models.Folder
		parentID sql.NullString
		level    string
		shared   []byte
	)
	if err := s.Scan(&f.ID, &f.OwnerID, &parentID, &f.Name, &f.Path, &level, &shared, &f.CreatedAt); err != nil {
		return nil, err
	}
	if parentID.Valid {
		f.ParentID = &parentID.String
	}
	f.AccessLevel = models.AccessLevel(level)
	if len(shared) > 0 {
		if err := json.Unmarshal(shared, &f.SharedWith); err != nil {
			return nil, fmt.Errorf("shared_with: %w", err)
		}
	}
	return &f, nil
}

func encodeGrants(g []models.ShareGrant) (string, error) {
	if len(g) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("encode shared_with: %w", err)
	}
	return string(b), nil
}

func (r *PostgresRepository) Create(ctx context.Context, f *models.Folder) error {
	shared, err := encodeGrants(f.SharedWith)
	if err != nil {
		return err
	}
	query := `INSERT INTO folders (` + columns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query,
		f.ID, f.OwnerID, f.ParentID, f.Name, f.Path, string(f.AccessLevel), shared, f.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) get(ctx context.Context, id string, lock bool) (*models.Folder, error) {
	query := `SELECT ` + columns + ` FROM folders WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	f, err := scanFolder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select folder: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Folder, error) {
	return r.get(ctx, id, false)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.Folder, error) {
	return r.get(ctx, id, true)
}

// Update writes name, path, access level and share list.
func (r *PostgresRepository) Update(ctx context.Context, f *models.Folder) error {
	shared, err := encodeGrants(f.SharedWith)
	if err != nil {
		return err
	}
	query := `UPDATE folders SET name = $2, path = $3, access_level = $4, shared_with = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, f.ID, f.Name, f.Path, string(f.AccessLevel), shared)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// List returns ownerID's folders directly under parentID (nil = root), newest first.
func (r *PostgresRepository) List(ctx context.Context, ownerID string, parentID *string) ([]*models.Folder, error) {
	query := `SELECT ` + columns + ` FROM folders
		WHERE owner_id = $1 AND parent_id IS NOT DISTINCT FROM $2
		ORDER BY created_at DESC`
	return r.selectFolders(ctx, query, ownerID, parentID)
}

// CountChildren counts child folders of id.
func (r *PostgresRepository) CountChildren(ctx context.Context, id string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM folders WHERE parent_id = $1`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count folders: %w", err)
	}
	return n, nil
}

// RewritePaths replaces oldPrefix with newPrefix in the path of every
// strict descendant owned by ownerID and returns the number rewritten.
func (r *PostgresRepository) RewritePaths(ctx context.Context, ownerID, oldPrefix, newPrefix string) (int64, error) {
	query := `UPDATE folders SET path = $3 || substr(path, $4)
		WHERE owner_id = $1 AND path LIKE $5 AND path <> $2`
	res, err := r.db.ExecContext(ctx, query,
		ownerID, oldPrefix, newPrefix, len([]rune(oldPrefix))+1, prefixPattern(oldPrefix))
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// Search returns ownerID's folders whose name contains text.
func (r *PostgresRepository) Search(ctx context.Context, ownerID, text string) ([]*models.Folder, error) {
	query := `SELECT ` + columns + ` FROM folders
		WHERE owner_id = $1 AND name ILIKE $2
		ORDER BY created_at DESC`
	return r.selectFolders(ctx, query, ownerID, "%"+likeEscaper.Replace(text)+"%")
}

func (r *PostgresRepository) selectFolders(ctx context.Context, query string, args ...any) ([]*models.Folder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select folders: %w", err)
	}
	defer rows.Close()

	var result []*models.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func prefixPattern(s string) string {
	return likeEscaper.Replace(s) + "%"
}
