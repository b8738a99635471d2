package grpc

import (
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/dmitrijs2005/filekeeper/internal/server/services"
)

// Wire messages of the filekeeper.FileKeeper service. Storage paths never
// leave the server.

type Empty struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type ShareGrant struct {
	UserID     string `json:"user_id"`
	Permission string `json:"permission"`
}

type VersionInfo struct {
	Version   int       `json:"version"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
}

type File struct {
	ID               string            `json:"id"`
	OwnerID          string            `json:"owner_id"`
	FolderID         *string           `json:"folder_id,omitempty"`
	Name             string            `json:"name"`
	OriginalName     string            `json:"original_name"`
	MediaType        string            `json:"media_type"`
	Size             int64             `json:"size"`
	Checksum         string            `json:"checksum"`
	Version          int               `json:"version"`
	PreviousVersions []VersionInfo     `json:"previous_versions,omitempty"`
	AccessLevel      string            `json:"access_level"`
	SharedWith       []ShareGrant      `json:"shared_with,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

type Folder struct {
	ID          string       `json:"id"`
	OwnerID     string       `json:"owner_id"`
	ParentID    *string      `json:"parent_id,omitempty"`
	Name        string       `json:"name"`
	Path        string       `json:"path"`
	AccessLevel string       `json:"access_level"`
	SharedWith  []ShareGrant `json:"shared_with,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// UploadHeader travels in the first UploadChunk only.
type UploadHeader struct {
	FolderID     *string           `json:"folder_id,omitempty"`
	Name         string            `json:"name,omitempty"`
	OriginalName string            `json:"original_name"`
	MediaType    string            `json:"media_type,omitempty"`
	AccessLevel  string            `json:"access_level,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type UploadChunk struct {
	Header *UploadHeader `json:"header,omitempty"`
	Data   []byte        `json:"data,omitempty"`
}

type UploadResponse struct {
	File         *File `json:"file"`
	Deduplicated bool  `json:"deduplicated"`
}

// VersionHeader travels in the first VersionChunk only.
type VersionHeader struct {
	FileID       string `json:"file_id"`
	OriginalName string `json:"original_name,omitempty"`
	MediaType    string `json:"media_type,omitempty"`
}

type VersionChunk struct {
	Header *VersionHeader `json:"header,omitempty"`
	Data   []byte         `json:"data,omitempty"`
}

// DownloadChunk carries the file description in the first message and
// content in every message.
type DownloadChunk struct {
	File *File  `json:"file,omitempty"`
	Data []byte `json:"data,omitempty"`
}

type FileRequest struct {
	FileID string `json:"file_id"`
}

type FileResponse struct {
	File *File `json:"file"`
}

type RevertRequest struct {
	FileID  string `json:"file_id"`
	Version int    `json:"version"`
}

type UpdateMetadataRequest struct {
	FileID      string            `json:"file_id"`
	Name        *string           `json:"name,omitempty"`
	AccessLevel *string           `json:"access_level,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type ShareRequest struct {
	ID         string `json:"id"`
	GranteeID  string `json:"grantee_id"`
	Permission string `json:"permission"`
}

type ListFilesRequest struct {
	FolderID *string `json:"folder_id,omitempty"`
	Tag      string  `json:"tag,omitempty"`
	Search   string  `json:"search,omitempty"`
}

type FilesResponse struct {
	Files []*File `json:"files"`
}

type SearchRequest struct {
	Query    string            `json:"query"`
	Type     string            `json:"type,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type SearchResponse struct {
	Files   []*File   `json:"files"`
	Folders []*Folder `json:"folders"`
}

type UsageResponse struct {
	UserID    string    `json:"user_id"`
	UsedBytes int64     `json:"used_bytes"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DownloadURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AccessHistoryRequest struct {
	FileID string `json:"file_id"`
	Limit  int    `json:"limit,omitempty"`
}

type AccessEvent struct {
	UserID     string    `json:"user_id"`
	AccessType string    `json:"access_type"`
	Timestamp  time.Time `json:"timestamp"`
}

type AccessHistoryResponse struct {
	Events []AccessEvent `json:"events"`
}

type CreateFolderRequest struct {
	Name        string  `json:"name"`
	ParentID    *string `json:"parent_id,omitempty"`
	AccessLevel string  `json:"access_level,omitempty"`
}

type FolderRequest struct {
	FolderID string `json:"folder_id"`
}

type FolderResponse struct {
	Folder *Folder `json:"folder"`
}

type UpdateFolderRequest struct {
	FolderID    string  `json:"folder_id"`
	Name        *string `json:"name,omitempty"`
	AccessLevel *string `json:"access_level,omitempty"`
}

type ListFoldersRequest struct {
	ParentID *string `json:"parent_id,omitempty"`
}

type FoldersResponse struct {
	Folders []*Folder `json:"folders"`
}

func grantsToWire(grants []models.ShareGrant) []ShareGrant {
	if len(grants) == 0 {
		return nil
	}
	out := make([]ShareGrant, 0, len(grants))
	for _, g := range grants {
		out = append(out, ShareGrant{UserID: g.UserID, Permission: string(g.Permission)})
	}
	return out
}

func fileToWire(f *models.File) *File {
	if f == nil {
		return nil
	}
	w := &File{
		ID:           f.ID,
		OwnerID:      f.OwnerID,
		FolderID:     f.FolderID,
		Name:         f.Name,
		OriginalName: f.OriginalName,
		MediaType:    f.MediaType,
		Size:         f.Size,
		Checksum:     f.Checksum,
		Version:      f.Version,
		AccessLevel:  string(f.AccessLevel),
		SharedWith:   grantsToWire(f.SharedWith),
		Metadata:     f.Metadata,
		Tags:         f.Tags,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
	for _, pv := range f.PreviousVersions {
		w.PreviousVersions = append(w.PreviousVersions, VersionInfo{
			Version:   pv.Version,
			Size:      pv.Size,
			Checksum:  pv.Checksum,
			CreatedAt: pv.CreatedAt,
		})
	}
	return w
}

func filesToWire(files []*models.File) []*File {
	out := make([]*File, 0, len(files))
	for _, f := range files {
		out = append(out, fileToWire(f))
	}
	return out
}

func folderToWire(f *models.Folder) *Folder {
	if f == nil {
		return nil
	}
	return &Folder{
		ID:          f.ID,
		OwnerID:     f.OwnerID,
		ParentID:    f.ParentID,
		Name:        f.Name,
		Path:        f.Path,
		AccessLevel: string(f.AccessLevel),
		SharedWith:  grantsToWire(f.SharedWith),
		CreatedAt:   f.CreatedAt,
	}
}

func foldersToWire(folders []*models.Folder) []*Folder {
	out := make([]*Folder, 0, len(folders))
	for _, f := range folders {
		out = append(out, folderToWire(f))
	}
	return out
}

func levelPtr(s *string) *models.AccessLevel {
	if s == nil {
		return nil
	}
	l := models.AccessLevel(*s)
	return &l
}

func (r *UpdateMetadataRequest) patch() services.MetadataPatch {
	return services.MetadataPatch{
		Name:        r.Name,
		AccessLevel: levelPtr(r.AccessLevel),
		Tags:        r.Tags,
		Metadata:    r.Metadata,
	}
}
