package files

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

const columns = `id, owner_id, folder_id, name, original_name, media_type, size, storage_path,
	previous_versions, access_level, shared_with, metadata, tags, checksum, created_at, updated_at, version`

// PostgresRepository implements file storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*models.File, error) {
	var (
		f                                models.File
		folderID                         sql.NullString
		versions, shared, metadata, tags []byte
		level                            string
	)
	err := s.Scan(&f.ID, &f.OwnerID, &folderID, &f.Name, &f.OriginalName, &f.MediaType, &f.Size, &f.StoragePath,
		&versions, &level, &shared, &metadata, &tags, &f.Checksum, &f.CreatedAt, &f.UpdatedAt, &f.Version)
	if err != nil {
		return nil, err
	}
	if folderID.Valid {
		f.FolderID = &folderID.String
	}
	f.AccessLevel = models.AccessLevel(level)
	if err := unmarshalJSON(versions, &f.PreviousVersions); err != nil {
		return nil, fmt.Errorf("previous_versions: %w", err)
	}
	if err := unmarshalJSON(shared, &f.SharedWith); err != nil {
		return nil, fmt.Errorf("shared_with: %w", err)
	}
	if err := unmarshalJSON(metadata, &f.Metadata); err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	if err := unmarshalJSON(tags, &f.Tags); err != nil {
		return nil, fmt.Errorf("tags: %w", err)
	}
	return &f, nil
}

func unmarshalJSON(b []byte, v any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}

// jsonArgs encodes the JSONB columns of f in column order.
func jsonArgs(f *models.File) (versions, shared, metadata, tags string, err error) {
	enc := func(v any, empty string) (string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		if string(b) == "null" {
			return empty, nil
		}
		return string(b), nil
	}
	if versions, err = enc(f.PreviousVersions, "[]"); err != nil {
		return
	}
	if shared, err = enc(f.SharedWith, "[]"); err != nil {
		return
	}
	if metadata, err = enc(f.Metadata, "{}"); err != nil {
		return
	}
	tags, err = enc(f.Tags, "[]")
	return
}

// Create inserts a new file row.
func (r *PostgresRepository) Create(ctx context.Context, f *models.File) error {
	versions, shared, metadata, tags, err := jsonArgs(f)
	if err != nil {
		return fmt.Errorf("encode file: %w", err)
	}
	query := `INSERT INTO files (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err = r.db.ExecContext(ctx, query,
		f.ID, f.OwnerID, f.FolderID, f.Name, f.OriginalName, f.MediaType, f.Size, f.StoragePath,
		versions, string(f.AccessLevel), shared, metadata, tags, f.Checksum, f.CreatedAt, f.UpdatedAt, f.Version)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) get(ctx context.Context, id string, lock bool) (*models.File, error) {
	query := `SELECT ` + columns + ` FROM files WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	f, err := scanFile(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return f, nil
}

// Get returns the file with id or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.File, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate is Get with a row lock held until the enclosing transaction ends.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.File, error) {
	return r.get(ctx, id, true)
}

// Update writes every mutable column of f. Exactly one row must be affected.
func (r *PostgresRepository) Update(ctx context.Context, f *models.File) error {
	versions, shared, metadata, tags, err := jsonArgs(f)
	if err != nil {
		return fmt.Errorf("encode file: %w", err)
	}
	query := `UPDATE files SET
			folder_id = $2, name = $3, original_name = $4, media_type = $5, size = $6, storage_path = $7,
			previous_versions = $8, access_level = $9, shared_with = $10, metadata = $11, tags = $12,
			checksum = $13, updated_at = $14, version = $15
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		f.ID, f.FolderID, f.Name, f.OriginalName, f.MediaType, f.Size, f.StoragePath,
		versions, string(f.AccessLevel), shared, metadata, tags, f.Checksum, f.UpdatedAt, f.Version)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

// Delete removes the file row.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
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

// FindByChecksum returns ownerID's files with the given checksum, oldest first.
func (r *PostgresRepository) FindByChecksum(ctx context.Context, ownerID, checksum string) ([]*models.File, error) {
	query := `SELECT ` + columns + ` FROM files
		WHERE owner_id = $1 AND checksum = $2
		ORDER BY created_at ASC, id ASC`
	return r.selectFiles(ctx, query, ownerID, checksum)
}

// List returns ownerID's files, newest first. Search matches original name
// or metadata description case-insensitively; Tag requires an exact tag.
func (r *PostgresRepository) List(ctx context.Context, ownerID string, filter Filter) ([]*models.File, error) {
	var (
		sb   strings.Builder
		args = []any{ownerID}
	)
	sb.WriteString(`SELECT ` + columns + ` FROM files WHERE owner_id = $1`)

	if filter.FolderID != nil {
		args = append(args, *filter.FolderID)
		fmt.Fprintf(&sb, ` AND folder_id = $%d`, len(args))
	}
	if filter.Search != "" {
		args = append(args, containsPattern(filter.Search))
		fmt.Fprintf(&sb, ` AND (original_name ILIKE $%d OR metadata->>'description' ILIKE $%d)`, len(args), len(args))
	}
	if filter.Tag != "" {
		args = append(args, filter.Tag)
		fmt.Fprintf(&sb, ` AND tags ? $%d`, len(args))
	}
	sb.WriteString(` ORDER BY created_at DESC`)

	return r.selectFiles(ctx, sb.String(), args...)
}

// Search returns ownerID's files matching q. Metadata keys are bound as
// parameters; callers are responsible for restricting them to a known set.
func (r *PostgresRepository) Search(ctx context.Context, ownerID string, q Query) ([]*models.File, error) {
	var (
		sb   strings.Builder
		args = []any{ownerID, containsPattern(q.Text)}
	)
	sb.WriteString(`SELECT ` + columns + ` FROM files WHERE owner_id = $1
		AND (original_name ILIKE $2 OR EXISTS (SELECT 1 FROM jsonb_array_elements_text(tags) AS t(tag) WHERE t.tag ILIKE $2))`)

	keys := make([]string, 0, len(q.Metadata))
	for k := range q.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, k, containsPattern(q.Metadata[k]))
		fmt.Fprintf(&sb, ` AND metadata->>$%d ILIKE $%d`, len(args)-1, len(args))
	}
	sb.WriteString(` ORDER BY created_at DESC`)

	return r.selectFiles(ctx, sb.String(), args...)
}

// CountInFolder returns how many files reference folderID.
func (r *PostgresRepository) CountInFolder(ctx context.Context, folderID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM files WHERE folder_id = $1`, folderID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) selectFiles(ctx context.Context, query string, args ...any) ([]*models.File, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		f, err := scanFile(rows)
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

// containsPattern builds an ILIKE pattern matching s anywhere, literally.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
