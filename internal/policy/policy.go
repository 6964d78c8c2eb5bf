// Package policy holds the access-control decisions for notes and tenants.
// Every rule checks tenant isolation first, so a foreign tenant is refused
// regardless of role.
package policy

import (
	"github.com/and161185/tenant-notes/internal/errs"
	"github.com/and161185/tenant-notes/internal/model"
	"github.com/gofrs/uuid/v5"
)

// CanReadNote allows any member of the note's tenant.
func CanReadNote(id model.Identity, n *model.Note) error {
	if n.TenantID != id.TenantID {
		return errs.New(errs.ErrForbidden, "You do not have access to this note")
	}
	return nil
}

// CanModifyNote allows admins of the note's tenant and the note's owner.
func CanModifyNote(id model.Identity, n *model.Note) error {
	if err := CanReadNote(id, n); err != nil {
		return err
	}
	if !id.IsAdmin() && n.OwnerID != id.UserID {
		return errs.New(errs.ErrForbidden, "You are not allowed to modify this note")
	}
	return nil
}

// CanAdministerTenant allows admins of that tenant only.
func CanAdministerTenant(id model.Identity, tenantID uuid.UUID) error {
	if id.TenantID != tenantID {
		return errs.New(errs.ErrForbidden, "You do not belong to this tenant")
	}
	if !id.IsAdmin() {
		return errs.New(errs.ErrForbidden, "Only admins can manage the tenant")
	}
	return nil
}

// CanViewTenant allows any member of the tenant.
func CanViewTenant(id model.Identity, tenantID uuid.UUID) error {
	if id.TenantID != tenantID {
		return errs.New(errs.ErrForbidden, "You do not belong to this tenant")
	}
	return nil
}
