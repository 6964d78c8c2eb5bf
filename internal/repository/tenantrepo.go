package repository

import (
	"context"

	"github.com/and161185/tenant-notes/internal/model"
	"github.com/gofrs/uuid/v5"
)

// TenantRepository provides read access to tenants and the plan transition.
type TenantRepository interface {
	// GetByID loads a tenant by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
	// GetBySlug loads a tenant by its organization slug.
	GetBySlug(ctx context.Context, slug string) (*model.Tenant, error)
	// UpgradeToPro switches a free tenant to pro. It reports false when the tenant was already pro.
	UpgradeToPro(ctx context.Context, id uuid.UUID) (bool, error)
}
