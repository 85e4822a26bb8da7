package auth

import (
	"github.com/sakif/comparathor/internal/apperror"
	"github.com/sakif/comparathor/internal/model"
)

// CanMutate reports whether caller may update or delete a resource owned by
// ownerID: the owner always may, an admin may touch anything.
//
// An empty ownerID never matches, so an unowned resource is admin-only.
func CanMutate(ownerID string, caller *model.User) bool {
	if caller == nil {
		return false
	}
	if caller.Role == model.RoleAdmin {
		return true
	}
	return ownerID != "" && caller.ID == ownerID
}

// AuthorizeMutate is CanMutate as an error: nil when allowed, an
// apperror.Forbidden otherwise. It performs no I/O.
func AuthorizeMutate(ownerID string, caller *model.User) error {
	if !CanMutate(ownerID, caller) {
		return apperror.Forbidden("only the owner or an administrator can modify this resource")
	}
	return nil
}
