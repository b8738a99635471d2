package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/files"
)

// Search scopes.
const (
	SearchAll     = ""
	SearchFiles   = "files"
	SearchFolders = "folders"
)

// SearchQuery looks for Query in file names, tags and folder names.
// Metadata filters only accept keys from the configured searchable set.
type SearchQuery struct {
	Query    string
	Type     string
	Metadata map[string]string
}

type SearchResult struct {
	Files   []*models.File
	Folders []*models.Folder
}

func (s *FileService) validateSearch(q SearchQuery) error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Query, validation.Required),
		validation.Field(&q.Type, validation.In(SearchFiles, SearchFolders)),
		validation.Field(&q.Metadata, validation.By(func(value interface{}) error {
			m, _ := value.(map[string]string)
			var unknown []string
			for k := range m {
				if _, ok := s.searchable[k]; !ok {
					unknown = append(unknown, k)
				}
			}
			if len(unknown) == 0 {
				return nil
			}
			slices.Sort(unknown)
			return errors.New("not searchable: " + strings.Join(unknown, ", "))
		})),
	)
}

// Search runs q over ownerID's files and folders.
func (s *FileService) Search(ctx context.Context, ownerID string, q SearchQuery) (*SearchResult, error) {
	q.Query = strings.TrimSpace(q.Query)
	if err := invalid(s.validateSearch(q)); err != nil {
		return nil, err
	}

	res := &SearchResult{}
	if q.Type == SearchAll || q.Type == SearchFiles {
		found, err := s.repos.Files(s.db).Search(ctx, ownerID, files.Query{Text: q.Query, Metadata: q.Metadata})
		if err != nil {
			return nil, fmt.Errorf("search files: %w", err)
		}
		res.Files = found
	}
	// Metadata filters only apply to files.
	if (q.Type == SearchAll && len(q.Metadata) == 0) || q.Type == SearchFolders {
		found, err := s.repos.Folders(s.db).Search(ctx, ownerID, q.Query)
		if err != nil {
			return nil, fmt.Errorf("search folders: %w", err)
		}
		res.Folders = found
	}
	return res, nil
}
