// Package quota enforces the per-tenant note cap of the free plan.
package quota

import (
	"context"
	"fmt"

	"github.com/and161185/tenant-notes/internal/errs"
	"github.com/and161185/tenant-notes/internal/model"
	"github.com/and161185/tenant-notes/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// FreePlanLimit is the number of notes a free tenant may hold.
const FreePlanLimit = 3

// CheckLimit reports whether the tenant has hit its plan cap.
func CheckLimit(t *model.Tenant) bool {
	return t.Plan == model.PlanFree && t.NotesUsed >= FreePlanLimit
}

// Usage summarizes a tenant's position against its plan.
func Usage(t *model.Tenant) model.Usage {
	if t.Plan != model.PlanFree {
		return model.Usage{Plan: t.Plan, NotesUsed: t.NotesUsed, Limit: -1, Remaining: -1}
	}
	return model.Usage{
		Plan:      t.Plan,
		NotesUsed: t.NotesUsed,
		Limit:     FreePlanLimit,
		Remaining: max(0, FreePlanLimit-t.NotesUsed),
	}
}

// Engine couples note creation and deletion with the tenant counter.
type Engine struct {
	tenants repository.TenantRepository
	notes   repository.NoteRepository
	log     *zap.Logger
}

// NewEngine constructs a quota engine.
func NewEngine(tenants repository.TenantRepository, notes repository.NoteRepository, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{tenants: tenants, notes: notes, log: log}
}

// createGuard refuses at the cap and meters free tenants only.
func (e *Engine) createGuard(t *model.Tenant) (bool, error) {
	if CheckLimit(t) {
		e.log.Info("quota exceeded", zap.String("tenant", t.ID.String()), zap.Int("notes_used", t.NotesUsed))
		return false, errs.New(errs.ErrQuotaExceeded,
			"Free plan limit reached. Upgrade to Pro to create more notes")
	}
	return t.Plan == model.PlanFree, nil
}

func deleteGuard(t *model.Tenant) (bool, error) { return t.Plan == model.PlanFree, nil }

// CreateNoteGuarded stores n unless its tenant is at the cap. The cap check,
// the insert and the counter increment commit atomically.
func (e *Engine) CreateNoteGuarded(ctx context.Context, n *model.Note) (*model.Note, model.Usage, error) {
	t, err := e.notes.CreateGuarded(ctx, n, e.createGuard)
	if err != nil {
		return nil, model.Usage{}, fmt.Errorf("create note: %w", err)
	}
	return n, Usage(t), nil
}

// DeleteNoteGuarded removes the note and, for free tenants, decrements the
// counter without going below zero.
func (e *Engine) DeleteNoteGuarded(ctx context.Context, tenantID, noteID uuid.UUID) (model.Usage, error) {
	t, err := e.notes.DeleteGuarded(ctx, tenantID, noteID, deleteGuard)
	if err != nil {
		return model.Usage{}, fmt.Errorf("delete note: %w", err)
	}
	return Usage(t), nil
}

// Upgrade moves the tenant to pro. Upgrading a pro tenant is not an error;
// the result says so and nothing changes.
func (e *Engine) Upgrade(ctx context.Context, tenantID uuid.UUID) (model.UpgradeResult, error) {
	changed, err := e.tenants.UpgradeToPro(ctx, tenantID)
	if err != nil {
		return model.UpgradeResult{}, fmt.Errorf("upgrade tenant: %w", err)
	}
	t, err := e.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return model.UpgradeResult{}, fmt.Errorf("load tenant: %w", err)
	}
	if changed {
		e.log.Info("tenant upgraded", zap.String("tenant", t.ID.String()))
	}
	return model.UpgradeResult{TenantName: t.Name, Plan: t.Plan, AlreadyPro: !changed}, nil
}

// TenantUsage reports the current usage of a tenant.
func (e *Engine) TenantUsage(ctx context.Context, tenantID uuid.UUID) (model.Usage, error) {
	t, err := e.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return model.Usage{}, fmt.Errorf("load tenant: %w", err)
	}
	return Usage(t), nil
}
