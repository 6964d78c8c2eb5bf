// Package tenant maps a user's email to the organization that owns it.
package tenant

import (
	"context"
	"errors"
	"strings"

	"github.com/and161185/tenant-notes/internal/errs"
	"github.com/and161185/tenant-notes/internal/model"
	"github.com/and161185/tenant-notes/internal/repository"
)

// DeriveSlug returns the second-to-last label of the email's domain
// (user@mail.acme.com -> acme), lowercased.
func DeriveSlug(email string) (string, error) {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return "", errs.ErrUnresolvedTenant
	}
	labels := strings.Split(strings.ToLower(email[at+1:]), ".")
	if len(labels) < 2 {
		return "", errs.ErrUnresolvedTenant
	}
	slug := labels[len(labels)-2]
	if slug == "" {
		return "", errs.ErrUnresolvedTenant
	}
	return slug, nil
}

// Resolver finds the tenant an email belongs to.
type Resolver struct {
	tenants repository.TenantRepository
}

// NewResolver constructs a Resolver.
func NewResolver(tenants repository.TenantRepository) *Resolver {
	return &Resolver{tenants: tenants}
}

// Resolve looks the email's slug up among known tenants.
func (r *Resolver) Resolve(ctx context.Context, email string) (*model.Tenant, error) {
	slug, err := DeriveSlug(email)
	if err != nil {
		return nil, err
	}
	t, err := r.tenants.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrUnresolvedTenant
		}
		return nil, err
	}
	return t, nil
}
