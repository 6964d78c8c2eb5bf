package repository

import (
	"context"

	"github.com/and161185/tenant-notes/internal/model"
	"github.com/gofrs/uuid/v5"
)

// QuotaGuard inspects the locked tenant row. Returning an error aborts the
// operation; metered reports whether the tenant's notes_used counter must move.
type QuotaGuard func(t *model.Tenant) (metered bool, err error)

// NoteRepository provides tenant-scoped note storage. CreateGuarded and
// DeleteGuarded run under a row lock on the tenant so that the guard decision,
// the note change and the counter change commit together.
type NoteRepository interface {
	// CreateGuarded locks the tenant, consults guard, inserts the note and
	// increments notes_used when metered. It returns the tenant as of commit.
	CreateGuarded(ctx context.Context, n *model.Note, guard QuotaGuard) (*model.Tenant, error)

	// DeleteGuarded locks the tenant, deletes the note and decrements notes_used
	// (floored at 0) when metered.
	DeleteGuarded(ctx context.Context, tenantID, noteID uuid.UUID, guard QuotaGuard) (*model.Tenant, error)

	// Get returns a single note by ID regardless of tenant; callers apply the policy.
	Get(ctx context.Context, noteID uuid.UUID) (*model.Note, error)

	// Update replaces title and content of a note in the given tenant.
	Update(ctx context.Context, tenantID, noteID uuid.UUID, title, content string) (*model.Note, error)

	// ListByTenant returns a page of the tenant's notes, oldest first, and the total count.
	ListByTenant(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]model.Note, int, error)
}
