package service

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/tenant-notes/internal/model"
	"github.com/and161185/tenant-notes/internal/policy"
	"github.com/and161185/tenant-notes/internal/quota"
)

// TenantService defines tenant plan operations.
type TenantService interface {
	// UpgradePlan moves the tenant to pro. Admins of that tenant only.
	UpgradePlan(ctx context.Context, id model.Identity, tenantID uuid.UUID) (model.UpgradeResult, error)
	// Usage reports the tenant's quota position. Members only.
	Usage(ctx context.Context, id model.Identity, tenantID uuid.UUID) (model.Usage, error)
}

type TenantServiceImpl struct {
	quota *quota.Engine
}

// NewTenantService constructs TenantService.
func NewTenantService(q *quota.Engine) *TenantServiceImpl {
	return &TenantServiceImpl{quota: q}
}

func (s *TenantServiceImpl) UpgradePlan(ctx context.Context, id model.Identity, tenantID uuid.UUID) (model.UpgradeResult, error) {
	if err := policy.CanAdministerTenant(id, tenantID); err != nil {
		return model.UpgradeResult{}, err
	}
	return s.quota.Upgrade(ctx, tenantID)
}

func (s *TenantServiceImpl) Usage(ctx context.Context, id model.Identity, tenantID uuid.UUID) (model.Usage, error) {
	if err := policy.CanViewTenant(id, tenantID); err != nil {
		return model.Usage{}, err
	}
	return s.quota.TenantUsage(ctx, tenantID)
}
