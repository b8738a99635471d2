package services

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

const (
	maxFolderNameLen = 100
	maxFileNameLen   = 255
	maxTagLen        = 64
)

// invalid turns an ozzo validation error into common.ErrorIncorrectMetadata
// so callers only need errors.Is.
func invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", common.ErrorIncorrectMetadata, err)
}

// idRules accept a record id. An optional id may be nil but never blank.
var idRules = []validation.Rule{validation.NilOrNotEmpty, is.UUID}

// validateID requires a well-formed UUID.
func validateID(field string, id string) error {
	return invalid(validation.Errors{
		field: validation.Validate(id, validation.Required, is.UUID),
	}.Filter())
}

func validateOptionalID(field string, id *string) error {
	return invalid(validation.Errors{
		field: validation.Validate(id, idRules...),
	}.Filter())
}

var accessLevelRule = validation.In(models.AccessPrivate, models.AccessPublic, models.AccessShared).
	Error("must be private, public or shared")

var permissionRule = validation.In(models.PermissionRead, models.PermissionWrite).
	Error("must be read or write")

var noSlash = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if strings.Contains(s, "/") {
		return errors.New("must not contain '/'")
	}
	return nil
})

var tagRules = []validation.Rule{
	validation.Each(validation.Required, validation.Length(1, maxTagLen)),
}

var metadataKeysRule = validation.By(func(value interface{}) error {
	m, _ := value.(map[string]string)
	for k := range m {
		if strings.TrimSpace(k) == "" {
			return errors.New("keys must not be blank")
		}
	}
	return nil
})

func validateShare(granteeID string, perm models.Permission) error {
	return invalid(validation.Errors{
		"grantee_id": validation.Validate(granteeID, validation.Required),
		"permission": validation.Validate(perm, validation.Required, permissionRule),
	}.Filter())
}
