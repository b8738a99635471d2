package models

import "time"

// Folder is a node in a per-user tree. Path is materialized:
// "/" + Name + "/" at the root, parent.Path + Name + "/" below it.
type Folder struct {
	ID          string
	OwnerID     string
	ParentID    *string
	Name        string
	Path        string
	AccessLevel AccessLevel
	SharedWith  []ShareGrant
	CreatedAt   time.Time
}

func (f *Folder) Owner() string                 { return f.OwnerID }
func (f *Folder) Level() AccessLevel            { return f.AccessLevel }
func (f *Folder) Grants() []ShareGrant          { return f.SharedWith }
func (f *Folder) SetLevel(l AccessLevel)        { f.AccessLevel = l }
func (f *Folder) SetGrants(grants []ShareGrant) { f.SharedWith = grants }
