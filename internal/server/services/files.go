package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"maps"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/server/access"
	"github.com/dmitrijs2005/filekeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/filekeeper/internal/server/config"
	"github.com/dmitrijs2005/filekeeper/internal/server/dedup"
	"github.com/dmitrijs2005/filekeeper/internal/server/hasher"
	"github.com/dmitrijs2005/filekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/dmitrijs2005/filekeeper/internal/server/quota"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/files"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filekeeper/internal/server/versions"
)

const defaultMediaType = "application/octet-stream"

// UploadRequest is a new file arriving from OwnerID. Name defaults to
// OriginalName; AccessLevel defaults to private.
type UploadRequest struct {
	OwnerID      string
	FolderID     *string
	Name         string
	OriginalName string
	MediaType    string
	AccessLevel  models.AccessLevel
	Tags         []string
	Metadata     map[string]string
	Body         io.Reader
}

func (r UploadRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OwnerID, validation.Required),
		validation.Field(&r.FolderID, idRules...),
		validation.Field(&r.OriginalName, validation.Required, validation.Length(1, maxFileNameLen)),
		validation.Field(&r.Name, validation.Length(0, maxFileNameLen)),
		validation.Field(&r.AccessLevel, accessLevelRule),
		validation.Field(&r.Tags, tagRules...),
		validation.Field(&r.Metadata, metadataKeysRule),
	)
}

// UploadMeta describes the bytes of a new version. Empty fields keep the
// current values.
type UploadMeta struct {
	OriginalName string
	MediaType    string
}

// MetadataPatch changes descriptive fields of a file. Nil fields are left
// alone. Metadata is merged into the existing map and an empty value
// removes its key. A non-nil Tags replaces the tag list.
type MetadataPatch struct {
	Name        *string
	AccessLevel *models.AccessLevel
	Tags        []string
	Metadata    map[string]string
}

func (p MetadataPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.NilOrNotEmpty, validation.Length(1, maxFileNameLen)),
		validation.Field(&p.AccessLevel, accessLevelRule),
		validation.Field(&p.Tags, tagRules...),
		validation.Field(&p.Metadata, metadataKeysRule),
	)
}

// ListFilter narrows List. Zero fields do not filter.
type ListFilter struct {
	FolderID *string
	Tag      string
	Search   string
}

type FileService struct {
	db         *sql.DB
	repos      repomanager.RepositoryManager
	blobs      blobstore.Store
	hasher     *hasher.Hasher
	ledger     *quota.Ledger
	tracker    *AccessTracker
	metrics    *metrics.Metrics
	logger     logging.Logger
	searchable map[string]struct{}
	presignTTL time.Duration

	now   func() time.Time
	newID func() string
}

func NewFileService(db *sql.DB, repos repomanager.RepositoryManager, blobs blobstore.Store, h *hasher.Hasher,
	ledger *quota.Ledger, tracker *AccessTracker, m *metrics.Metrics, cfg *config.Config, l logging.Logger) *FileService {

	searchable := make(map[string]struct{}, len(cfg.SearchableMetadata))
	for _, k := range cfg.SearchableMetadata {
		searchable[k] = struct{}{}
	}

	return &FileService{
		db:         db,
		repos:      repos,
		blobs:      blobs,
		hasher:     h,
		ledger:     ledger,
		tracker:    tracker,
		metrics:    m,
		logger:     l.With("module", "files"),
		searchable: searchable,
		presignTTL: cfg.PresignTTL,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// Upload stores a new file for req.OwnerID, or returns the owner's existing
// record when the same bytes are already stored where dedup allows reuse.
// The second result reports reuse.
func (s *FileService) Upload(ctx context.Context, req UploadRequest) (*models.File, bool, error) {
	if err := invalid(req.Validate()); err != nil {
		return nil, false, err
	}
	if req.Body == nil {
		return nil, false, fmt.Errorf("%w: body is required", common.ErrorIncorrectMetadata)
	}

	spool, err := s.hasher.Hash(ctx, req.Body)
	if err != nil {
		s.metrics.Upload(metrics.UploadFailed)
		return nil, false, err
	}
	defer s.removeSpool(ctx, spool)

	var (
		result *models.File
		reused bool
		stored string
	)

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if req.FolderID != nil {
			if err := s.requireOwnedFolder(ctx, tx, *req.FolderID, req.OwnerID); err != nil {
				return err
			}
		}

		if err := dbx.AdvisoryXactLock(ctx, tx, dbx.LockKey("upload", req.OwnerID, spool.Checksum)); err != nil {
			return err
		}

		res, err := dedup.Resolve(ctx, s.repos.Files(tx), spool.Checksum, req.OwnerID, req.FolderID)
		if err != nil {
			return err
		}
		if res.Duplicate() {
			result, reused = res.Reuse, true
			return nil
		}

		now := s.now()
		mediaType := req.MediaType
		if mediaType == "" {
			mediaType = defaultMediaType
		}
		path := blobstore.NewStoragePath(req.OwnerID, req.FolderID, now)
		if err := s.putSpool(ctx, path, spool, mediaType); err != nil {
			return err
		}
		stored = path

		name := req.Name
		if name == "" {
			name = req.OriginalName
		}
		level := req.AccessLevel
		if level == "" {
			level = models.AccessPrivate
		}

		f := &models.File{
			ID:           s.newID(),
			OwnerID:      req.OwnerID,
			FolderID:     req.FolderID,
			Name:         name,
			OriginalName: req.OriginalName,
			MediaType:    mediaType,
			Size:         spool.Size,
			StoragePath:  path,
			AccessLevel:  level,
			Metadata:     req.Metadata,
			Tags:         req.Tags,
			Checksum:     spool.Checksum,
			CreatedAt:    now,
			UpdatedAt:    now,
			Version:      1,
		}
		if err := s.repos.Files(tx).Create(ctx, f); err != nil {
			return err
		}
		if err := s.ledger.Credit(ctx, tx, req.OwnerID, spool.Size); err != nil {
			return err
		}
		result = f
		return nil
	})
	if err != nil {
		if stored != "" {
			s.discardBlob(ctx, stored)
		}
		s.metrics.Upload(metrics.UploadFailed)
		s.logger.Error(ctx, "upload failed", "owner_id", req.OwnerID, "error", err)
		return nil, false, err
	}

	if reused {
		s.metrics.Upload(metrics.UploadDeduplicated)
		s.logger.Info(ctx, "upload deduplicated", "file_id", result.ID, "owner_id", req.OwnerID)
		return result, true, nil
	}

	s.metrics.Upload(metrics.UploadCreated)
	s.metrics.Credited(result.Size)
	s.logger.Info(ctx, "file stored", "file_id", result.ID, "owner_id", req.OwnerID, "size", result.Size)
	return result, false, nil
}

// UploadNewVersion replaces the head of fileID with the bytes read from r
// and archives the previous head. The owner and write grantees may do this;
// the owner's quota is credited with the new bytes.
func (s *FileService) UploadNewVersion(ctx context.Context, fileID, requesterID string, r io.Reader, meta UploadMeta) (*models.File, error) {
	if err := validateID("file_id", fileID); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: body is required", common.ErrorIncorrectMetadata)
	}
	if err := invalid(validation.Validate(meta.OriginalName, validation.Length(0, maxFileNameLen))); err != nil {
		return nil, err
	}

	spool, err := s.hasher.Hash(ctx, r)
	if err != nil {
		s.metrics.Upload(metrics.UploadFailed)
		return nil, err
	}
	defer s.removeSpool(ctx, spool)

	var (
		result *models.File
		stored string
	)

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		f, err := s.repos.Files(tx).GetForUpdate(ctx, fileID)
		if err != nil {
			return err
		}
		if !access.CanAccess(requesterID, f, models.PermissionWrite) {
			return common.ErrorUnauthorized
		}

		if err := dbx.AdvisoryXactLock(ctx, tx, dbx.LockKey("upload", f.OwnerID, spool.Checksum)); err != nil {
			return err
		}

		now := s.now()
		if meta.MediaType != "" {
			f.MediaType = meta.MediaType
		}
		if meta.OriginalName != "" {
			f.OriginalName = meta.OriginalName
		}

		path := blobstore.NewStoragePath(f.OwnerID, f.FolderID, now)
		if err := s.putSpool(ctx, path, spool, f.MediaType); err != nil {
			return err
		}
		stored = path

		versions.AppendVersion(f, versions.Head{StoragePath: path, Size: spool.Size, Checksum: spool.Checksum}, now)
		if err := versions.Check(f); err != nil {
			return err
		}
		if err := s.repos.Files(tx).Update(ctx, f); err != nil {
			return err
		}
		if err := s.ledger.Credit(ctx, tx, f.OwnerID, spool.Size); err != nil {
			return err
		}
		result = f
		return nil
	})
	if err != nil {
		if stored != "" {
			s.discardBlob(ctx, stored)
		}
		s.metrics.Upload(metrics.UploadFailed)
		s.logger.Error(ctx, "new version failed", "file_id", fileID, "error", err)
		return nil, err
	}

	s.metrics.Upload(metrics.UploadNewVersion)
	s.metrics.Credited(result.Size)
	s.tracker.Track(ctx, result.ID, requesterID, models.AccessEdit)
	s.logger.Info(ctx, "new version stored", "file_id", result.ID, "version", result.Version)
	return result, nil
}

// Revert promotes archived version n of fileID to head. The target blob
// must still exist. Usage is not changed.
func (s *FileService) Revert(ctx context.Context, fileID, ownerID string, n int) (*models.File, error) {
	if err := validateID("file_id", fileID); err != nil {
		return nil, err
	}
	var result *models.File

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		f, err := s.repos.Files(tx).GetForUpdate(ctx, fileID)
		if err != nil {
			return err
		}
		if err := access.RequireOwner(ownerID, f); err != nil {
			return err
		}

		target, err := versions.Locate(f, n)
		if err != nil {
			return err
		}
		ok, err := s.blobs.Exists(ctx, target.StoragePath)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: version %d at %s", common.ErrBlobMissing, n, target.StoragePath)
		}

		if _, err := versions.Revert(f, n, s.now()); err != nil {
			return err
		}
		if err := versions.Check(f); err != nil {
			return err
		}
		if err := s.repos.Files(tx).Update(ctx, f); err != nil {
			return err
		}
		result = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "file reverted", "file_id", fileID, "to_version", n, "version", result.Version)
	return result, nil
}

// UpdateMetadata applies patch to fileID. Write grantees may edit names,
// tags and metadata; only the owner may change the access level.
func (s *FileService) UpdateMetadata(ctx context.Context, fileID, requesterID string, patch MetadataPatch) (*models.File, error) {
	if err := validateID("file_id", fileID); err != nil {
		return nil, err
	}
	if err := invalid(patch.Validate()); err != nil {
		return nil, err
	}

	var result *models.File

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		f, err := s.repos.Files(tx).GetForUpdate(ctx, fileID)
		if err != nil {
			return err
		}
		if !access.CanAccess(requesterID, f, models.PermissionWrite) {
			return common.ErrorUnauthorized
		}

		if patch.Name != nil {
			f.Name = *patch.Name
		}
		if patch.AccessLevel != nil {
			if err := access.RequireOwner(requesterID, f); err != nil {
				return err
			}
			f.AccessLevel = *patch.AccessLevel
		}
		if patch.Tags != nil {
			f.Tags = patch.Tags
		}
		if len(patch.Metadata) > 0 {
			merged := maps.Clone(f.Metadata)
			if merged == nil {
				merged = make(map[string]string, len(patch.Metadata))
			}
			for k, v := range patch.Metadata {
				if v == "" {
					delete(merged, k)
					continue
				}
				merged[k] = v
			}
			f.Metadata = merged
		}
		f.UpdatedAt = s.now()

		if err := s.repos.Files(tx).Update(ctx, f); err != nil {
			return err
		}
		result = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.tracker.Track(ctx, fileID, requesterID, models.AccessEdit)
	return result, nil
}

// Delete removes fileID and debits the owner by the head size. Blobs of the
// head and every archived version are removed after commit; failures there
// are logged and leave orphans behind.
func (s *FileService) Delete(ctx context.Context, fileID, ownerID string) error {
	if err := validateID("file_id", fileID); err != nil {
		return err
	}
	var deleted *models.File

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		f, err := s.repos.Files(tx).GetForUpdate(ctx, fileID)
		if err != nil {
			return err
		}
		if err := access.RequireOwner(ownerID, f); err != nil {
			return err
		}
		if err := s.repos.Files(tx).Delete(ctx, f.ID); err != nil {
			return err
		}
		if err := s.ledger.Debit(ctx, tx, f.OwnerID, f.Size); err != nil {
			return err
		}
		deleted = f
		return nil
	})
	if err != nil {
		return err
	}
	s.metrics.Debited(deleted.Size)

	res, err := blobstore.DeleteAll(context.WithoutCancel(ctx), s.blobs, s.logger, deleted.Paths())
	s.metrics.BlobDeletes(res.Removed, res.Missing, res.Failed)
	if err != nil {
		s.logger.Warn(ctx, "file deleted with orphaned blobs", "file_id", fileID, "failed", res.Failed)
	}

	s.logger.Info(ctx, "file deleted", "file_id", fileID, "versions", len(deleted.PreviousVersions)+1)
	return nil
}

// ShareFile grants granteeID perm on fileID and marks the file shared.
func (s *FileService) ShareFile(ctx context.Context, fileID, ownerID, granteeID string, perm models.Permission) (*models.File, error) {
	if err := validateID("file_id", fileID); err != nil {
		return nil, err
	}
	if err := validateShare(granteeID, perm); err != nil {
		return nil, err
	}

	var result *models.File

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		f, err := s.repos.Files(tx).GetForUpdate(ctx, fileID)
		if err != nil {
			return err
		}
		if err := access.RequireOwner(ownerID, f); err != nil {
			return err
		}
		if err := access.Grant(f, granteeID, perm); err != nil {
			return err
		}
		f.UpdatedAt = s.now()
		if err := s.repos.Files(tx).Update(ctx, f); err != nil {
			return err
		}
		result = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "file shared", "file_id", fileID, "grantee_id", granteeID, "permission", perm)
	return result, nil
}

// Get returns fileID if requesterID may read it.
func (s *FileService) Get(ctx context.Context, fileID, requesterID string) (*models.File, error) {
	if err := validateID("file_id", fileID); err != nil {
		return nil, err
	}
	f, err := s.repos.Files(s.db).Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, s.db, f, requesterID); err != nil {
		return nil, err
	}
	return f, nil
}

// Download opens the head bytes of fileID for requesterID and records the
// access. The caller closes the reader.
func (s *FileService) Download(ctx context.Context, fileID, requesterID string) (*models.File, io.ReadCloser, error) {
	f, err := s.Get(ctx, fileID, requesterID)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.blobs.Get(ctx, f.StoragePath)
	if err != nil {
		if errors.Is(err, common.ErrBlobMissing) {
			s.logger.Error(ctx, "head blob missing", "file_id", f.ID, "path", f.StoragePath)
		}
		return nil, nil, err
	}

	s.metrics.Download()
	s.tracker.Track(ctx, f.ID, requesterID, models.AccessDownload)
	return f, rc, nil
}

// DownloadURL returns a presigned link to the head bytes of fileID when
// the blob backend can issue one.
func (s *FileService) DownloadURL(ctx context.Context, fileID, requesterID string) (*models.DownloadLink, error) {
	p, ok := s.blobs.(blobstore.Presigner)
	if !ok {
		return nil, fmt.Errorf("%w: presigned links", common.ErrNotSupported)
	}

	f, err := s.Get(ctx, fileID, requesterID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	url, err := p.PresignGet(ctx, f.StoragePath, s.presignTTL)
	if err != nil {
		return nil, err
	}

	s.tracker.Track(ctx, f.ID, requesterID, models.AccessDownload)
	return &models.DownloadLink{FileID: f.ID, URL: url, ExpiresAt: now.Add(s.presignTTL)}, nil
}

// List returns ownerID's files, newest first. A nil filter.FolderID does
// not restrict by folder: files in every folder are returned along with the
// root-level ones, unlike ListFolders which stays at one level.
func (s *FileService) List(ctx context.Context, ownerID string, filter ListFilter) ([]*models.File, error) {
	if err := validateOptionalID("folder_id", filter.FolderID); err != nil {
		return nil, err
	}
	return s.repos.Files(s.db).List(ctx, ownerID, files.Filter{
		FolderID: filter.FolderID,
		Tag:      filter.Tag,
		Search:   filter.Search,
	})
}

// Usage returns ownerID's stored byte total.
func (s *FileService) Usage(ctx context.Context, ownerID string) (*models.Usage, error) {
	return s.ledger.Usage(ctx, s.db, ownerID)
}

// AccessHistory returns the latest access events for fileID. Owner only.
func (s *FileService) AccessHistory(ctx context.Context, fileID, ownerID string, limit int) ([]*models.FileAccess, error) {
	if err := validateID("file_id", fileID); err != nil {
		return nil, err
	}
	f, err := s.repos.Files(s.db).Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireOwner(ownerID, f); err != nil {
		return nil, err
	}
	return s.tracker.History(ctx, fileID, limit)
}

// authorizeRead allows direct access to f or read access inherited from
// the folder holding it.
func (s *FileService) authorizeRead(ctx context.Context, db dbx.DBTX, f *models.File, requesterID string) error {
	if access.CanAccess(requesterID, f, models.PermissionRead) {
		return nil
	}
	if f.FolderID == nil {
		return common.ErrorUnauthorized
	}

	folder, err := s.repos.Folders(db).Get(ctx, *f.FolderID)
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrorUnauthorized
	}
	if err != nil {
		return err
	}
	if !access.CanRead(requesterID, f, folder) {
		return common.ErrorUnauthorized
	}
	return nil
}

func (s *FileService) requireOwnedFolder(ctx context.Context, tx dbx.DBTX, folderID, ownerID string) error {
	folder, err := s.repos.Folders(tx).Get(ctx, folderID)
	if err != nil {
		return fmt.Errorf("folder %s: %w", folderID, err)
	}
	return access.RequireOwner(ownerID, folder)
}

func (s *FileService) putSpool(ctx context.Context, path string, spool *hasher.Spool, contentType string) error {
	rc, err := spool.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return s.blobs.Put(ctx, path, rc, spool.Size, contentType)
}

// discardBlob removes a blob written by a transaction that did not commit.
func (s *FileService) discardBlob(ctx context.Context, path string) {
	if _, err := s.blobs.Delete(context.WithoutCancel(ctx), path); err != nil {
		s.logger.Error(ctx, "compensating blob delete failed", "path", path, "error", err)
	}
}

func (s *FileService) removeSpool(ctx context.Context, spool *hasher.Spool) {
	if err := spool.Remove(); err != nil {
		s.logger.Warn(ctx, "spool cleanup failed", "error", err)
	}
}
