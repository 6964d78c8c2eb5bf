package postgres

import (
	"context"
	"errors"

	"github.com/and161185/tenant-notes/internal/errs"
	"github.com/and161185/tenant-notes/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

const (
	selectTenantSQL = `
SELECT id, name, COALESCE(slug, ''), plan, notes_used, last_updated
FROM tenants`

	tenantByIDSQL   = selectTenantSQL + ` WHERE id=$1`
	tenantBySlugSQL = selectTenantSQL + ` WHERE slug=$1`

	// lockTenantSQL serializes quota operations per tenant.
	lockTenantSQL = selectTenantSQL + ` WHERE id=$1 FOR UPDATE`

	upgradeTenantSQL = `
UPDATE tenants SET plan='pro', last_updated=now()
WHERE id=$1 AND plan='free'`
)

// TenantRepo implements TenantRepository using PostgreSQL.
type TenantRepo struct{ db *DB }

// NewTenantRepo constructs a tenant repository.
func NewTenantRepo(db *DB) *TenantRepo { return &TenantRepo{db: db} }

// GetByID selects a tenant by ID.
func (r *TenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	return scanTenant(r.db.Pool.QueryRow(ctx, tenantByIDSQL, id))
}

// GetBySlug selects a tenant by slug.
func (r *TenantRepo) GetBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	return scanTenant(r.db.Pool.QueryRow(ctx, tenantBySlugSQL, slug))
}

// UpgradeToPro moves a free tenant to pro. Returns false if it was already pro.
func (r *TenantRepo) UpgradeToPro(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, upgradeTenantSQL, id)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	// Either missing or already pro.
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func scanTenant(row pgx.Row) (*model.Tenant, error) {
	var (
		t    model.Tenant
		plan string
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &plan, &t.NotesUsed, &t.LastUpdated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	t.Plan = model.Plan(plan)
	return &t, nil
}
