package models

// AccessLevel is the visibility of a file or folder.
type AccessLevel string

const (
	AccessPrivate AccessLevel = "private"
	AccessPublic  AccessLevel = "public"
	AccessShared  AccessLevel = "shared"
)

// Valid reports whether a is one of the known levels.
func (a AccessLevel) Valid() bool {
	switch a {
	case AccessPrivate, AccessPublic, AccessShared:
		return true
	}
	return false
}

// Permission is what a share grant allows.
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
)

// Valid reports whether p is read or write.
func (p Permission) Valid() bool {
	return p == PermissionRead || p == PermissionWrite
}

// Allows reports whether holding p satisfies a request for want.
// Write implies read; read never implies write.
func (p Permission) Allows(want Permission) bool {
	switch p {
	case PermissionWrite:
		return want == PermissionRead || want == PermissionWrite
	case PermissionRead:
		return want == PermissionRead
	}
	return false
}

// ShareGrant authorizes a non-owner to access a resource.
type ShareGrant struct {
	UserID     string     `json:"user_id"`
	Permission Permission `json:"permission"`
}
