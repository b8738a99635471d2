// Package models defines server-side data models persisted in the database.
package models

import "time"

// File is one logical file owned by exactly one user. Size, StoragePath and
// Checksum describe the current head; PreviousVersions holds archived heads.
//
// Version always equals len(PreviousVersions)+1.
type File struct {
	ID           string
	OwnerID      string
	FolderID     *string
	Name         string
	OriginalName string
	MediaType    string
	Size         int64
	StoragePath  string

	PreviousVersions []PriorVersion

	AccessLevel AccessLevel
	SharedWith  []ShareGrant
	Metadata    map[string]string
	Tags        []string
	Checksum    string

	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int
}

// PriorVersion is an archived head. It is never mutated after creation.
type PriorVersion struct {
	StoragePath string    `json:"storage_path"`
	Version     int       `json:"version"`
	Size        int64     `json:"size"`
	Checksum    string    `json:"checksum"`
	CreatedAt   time.Time `json:"created_at"`
}

// Paths returns the head path followed by every prior version path.
func (f *File) Paths() []string {
	out := make([]string, 0, len(f.PreviousVersions)+1)
	out = append(out, f.StoragePath)
	for _, pv := range f.PreviousVersions {
		out = append(out, pv.StoragePath)
	}
	return out
}

func (f *File) Owner() string                 { return f.OwnerID }
func (f *File) Level() AccessLevel            { return f.AccessLevel }
func (f *File) Grants() []ShareGrant          { return f.SharedWith }
func (f *File) SetLevel(l AccessLevel)        { f.AccessLevel = l }
func (f *File) SetGrants(grants []ShareGrant) { f.SharedWith = grants }

// DownloadLink is a short-lived presigned link to a file's head bytes.
type DownloadLink struct {
	FileID    string
	URL       string
	ExpiresAt time.Time
}
