// Package access evaluates ownership, visibility and share grants.
package access

import (
	"fmt"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

// Resource is anything with an owner, a visibility and a share list.
type Resource interface {
	Owner() string
	Level() models.AccessLevel
	Grants() []models.ShareGrant
}

// Shareable is a Resource whose share list can be changed.
type Shareable interface {
	Resource
	SetLevel(models.AccessLevel)
	SetGrants([]models.ShareGrant)
}

// CanAccess applies, in order: owner always; private denies; public allows
// read only; shared needs a grant that covers want.
func CanAccess(requesterID string, r Resource, want models.Permission) bool {
	if requesterID != "" && requesterID == r.Owner() {
		return true
	}
	switch r.Level() {
	case models.AccessPublic:
		return want == models.PermissionRead
	case models.AccessShared:
		for _, g := range r.Grants() {
			if g.UserID == requesterID {
				return g.Permission.Allows(want)
			}
		}
	}
	return false
}

// CanRead allows reading a file when the file itself or, if given, the
// folder directly containing it grants read access.
func CanRead(requesterID string, file Resource, folder Resource) bool {
	if CanAccess(requesterID, file, models.PermissionRead) {
		return true
	}
	return folder != nil && CanAccess(requesterID, folder, models.PermissionRead)
}

// RequireOwner fails with common.ErrorUnauthorized for anyone but the owner.
func RequireOwner(requesterID string, r Resource) error {
	if requesterID == "" || requesterID != r.Owner() {
		return common.ErrorUnauthorized
	}
	return nil
}

// Grant adds a share for granteeID and flips the resource to shared.
// A second grant to the same user fails with common.ErrAlreadyShared;
// existing grants are never upgraded in place.
func Grant(r Shareable, granteeID string, perm models.Permission) error {
	if granteeID == "" {
		return fmt.Errorf("%w: grantee is required", common.ErrorIncorrectMetadata)
	}
	if !perm.Valid() {
		return fmt.Errorf("%w: unknown permission %q", common.ErrorIncorrectMetadata, perm)
	}
	if granteeID == r.Owner() {
		return fmt.Errorf("%w: cannot share with the owner", common.ErrorIncorrectMetadata)
	}
	for _, g := range r.Grants() {
		if g.UserID == granteeID {
			return common.ErrAlreadyShared
		}
	}

	grants := append(append([]models.ShareGrant(nil), r.Grants()...), models.ShareGrant{UserID: granteeID, Permission: perm})
	r.SetGrants(grants)
	r.SetLevel(models.AccessShared)
	return nil
}
