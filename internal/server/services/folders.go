package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/server/access"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/repomanager"
)

// FolderPatch renames a folder or changes its access level. Nil fields are
// left alone.
type FolderPatch struct {
	Name        *string
	AccessLevel *models.AccessLevel
}

type FolderService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger

	now   func() time.Time
	newID func() string
}

func NewFolderService(db *sql.DB, repos repomanager.RepositoryManager, l logging.Logger) *FolderService {
	return &FolderService{
		db:     db,
		repos:  repos,
		logger: l.With("module", "folders"),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

func validateFolderName(name string) error {
	return invalid(validation.Errors{
		"name": validation.Validate(name, validation.Required, validation.Length(1, maxFolderNameLen), noSlash),
	}.Filter())
}

// childPath builds a materialized path. Root-level folders have parent
// path "/".
func childPath(parentPath, name string) string {
	return parentPath + name + "/"
}

// CreateFolder makes name under parentID, or at the root when parentID is
// nil. The parent must exist and belong to ownerID.
func (s *FolderService) CreateFolder(ctx context.Context, ownerID, name string, parentID *string, level models.AccessLevel) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if err := validateFolderName(name); err != nil {
		return nil, err
	}
	if err := validateOptionalID("parent_id", parentID); err != nil {
		return nil, err
	}
	if err := invalid(validation.Validate(level, accessLevelRule)); err != nil {
		return nil, err
	}
	if level == "" {
		level = models.AccessPrivate
	}

	var result *models.Folder

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		parentPath := "/"
		if parentID != nil {
			parent, err := s.repos.Folders(tx).Get(ctx, *parentID)
			if errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("%w: %s", common.ErrParentNotFound, *parentID)
			}
			if err != nil {
				return err
			}
			if err := access.RequireOwner(ownerID, parent); err != nil {
				return err
			}
			parentPath = parent.Path
		}

		f := &models.Folder{
			ID:          s.newID(),
			OwnerID:     ownerID,
			ParentID:    parentID,
			Name:        name,
			Path:        childPath(parentPath, name),
			AccessLevel: level,
			CreatedAt:   s.now(),
		}
		if err := s.repos.Folders(tx).Create(ctx, f); err != nil {
			return err
		}
		result = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "folder created", "folder_id", result.ID, "path", result.Path)
	return result, nil
}

// GetFolder returns folderID if requesterID may read it.
func (s *FolderService) GetFolder(ctx context.Context, folderID, requesterID string) (*models.Folder, error) {
	if err := validateID("folder_id", folderID); err != nil {
		return nil, err
	}
	f, err := s.repos.Folders(s.db).Get(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if !access.CanAccess(requesterID, f, models.PermissionRead) {
		return nil, common.ErrorUnauthorized
	}
	return f, nil
}

// ListFolders returns ownerID's folders directly under parentID, or the
// root-level ones when parentID is nil.
func (s *FolderService) ListFolders(ctx context.Context, ownerID string, parentID *string) ([]*models.Folder, error) {
	if err := validateOptionalID("parent_id", parentID); err != nil {
		return nil, err
	}
	return s.repos.Folders(s.db).List(ctx, ownerID, parentID)
}

// UpdateFolder applies patch. A rename rewrites the stored path of the
// folder and of every folder below it in one transaction.
func (s *FolderService) UpdateFolder(ctx context.Context, folderID, ownerID string, patch FolderPatch) (*models.Folder, error) {
	if err := validateID("folder_id", folderID); err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if err := validateFolderName(name); err != nil {
			return nil, err
		}
		patch.Name = &name
	}
	if patch.AccessLevel != nil {
		if err := invalid(validation.Validate(*patch.AccessLevel, validation.Required, accessLevelRule)); err != nil {
			return nil, err
		}
	}

	var result *models.Folder

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		f, err := s.repos.Folders(tx).GetForUpdate(ctx, folderID)
		if err != nil {
			return err
		}
		if err := access.RequireOwner(ownerID, f); err != nil {
			return err
		}

		if patch.Name != nil && *patch.Name != f.Name {
			oldPath := f.Path
			newPath := childPath(strings.TrimSuffix(oldPath, f.Name+"/"), *patch.Name)
			n, err := s.repos.Folders(tx).RewritePaths(ctx, ownerID, oldPath, newPath)
			if err != nil {
				return err
			}
			s.logger.Debug(ctx, "descendant paths rewritten", "folder_id", f.ID, "count", n)
			f.Name = *patch.Name
			f.Path = newPath
		}
		if patch.AccessLevel != nil {
			f.AccessLevel = *patch.AccessLevel
		}

		if err := s.repos.Folders(tx).Update(ctx, f); err != nil {
			return err
		}
		result = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ShareFolder grants granteeID perm on folderID and marks it shared. Files
// directly inside the folder become readable to the grantee.
func (s *FolderService) ShareFolder(ctx context.Context, folderID, ownerID, granteeID string, perm models.Permission) (*models.Folder, error) {
	if err := validateID("folder_id", folderID); err != nil {
		return nil, err
	}
	if err := validateShare(granteeID, perm); err != nil {
		return nil, err
	}

	var result *models.Folder

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		f, err := s.repos.Folders(tx).GetForUpdate(ctx, folderID)
		if err != nil {
			return err
		}
		if err := access.RequireOwner(ownerID, f); err != nil {
			return err
		}
		if err := access.Grant(f, granteeID, perm); err != nil {
			return err
		}
		if err := s.repos.Folders(tx).Update(ctx, f); err != nil {
			return err
		}
		result = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "folder shared", "folder_id", folderID, "grantee_id", granteeID, "permission", perm)
	return result, nil
}

// DeleteFolder removes an empty folder. Any child folder or file blocks
// the delete with common.ErrFolderNotEmpty; nothing is cascaded.
func (s *FolderService) DeleteFolder(ctx context.Context, folderID, ownerID string) error {
	if err := validateID("folder_id", folderID); err != nil {
		return err
	}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		f, err := s.repos.Folders(tx).GetForUpdate(ctx, folderID)
		if err != nil {
			return err
		}
		if err := access.RequireOwner(ownerID, f); err != nil {
			return err
		}

		children, err := s.repos.Folders(tx).CountChildren(ctx, f.ID)
		if err != nil {
			return err
		}
		contained, err := s.repos.Files(tx).CountInFolder(ctx, f.ID)
		if err != nil {
			return err
		}
		if children > 0 || contained > 0 {
			return fmt.Errorf("%w: %d folders, %d files", common.ErrFolderNotEmpty, children, contained)
		}

		return s.repos.Folders(tx).Delete(ctx, f.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "folder deleted", "folder_id", folderID)
	return nil
}
