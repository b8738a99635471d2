package models

import "time"

// Usage is a user's running total of bytes attributed to live file heads.
type Usage struct {
	UserID    string
	UsedBytes int64
	UpdatedAt time.Time
}

// AccessType classifies a FileAccess event.
type AccessType string

const (
	AccessView     AccessType = "view"
	AccessDownload AccessType = "download"
	AccessEdit     AccessType = "edit"
)

// FileAccess records one access to a file.
type FileAccess struct {
	ID         string
	FileID     string
	UserID     string
	AccessType AccessType
	Timestamp  time.Time
}
