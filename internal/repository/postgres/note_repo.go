package postgres

import (
	"context"
	"errors"

	"github.com/and161185/tenant-notes/internal/errs"
	"github.com/and161185/tenant-notes/internal/model"
	"github.com/and161185/tenant-notes/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

const (
	insertNoteSQL = `
INSERT INTO notes (id, title, content, tenant_id, owner_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at, updated_at`

	deleteNoteSQL = `DELETE FROM notes WHERE id=$1 AND tenant_id=$2`

	incNotesUsedSQL = `
UPDATE tenants SET notes_used = notes_used + 1, last_updated = now()
WHERE id=$1
RETURNING notes_used, last_updated`

	decNotesUsedSQL = `
UPDATE tenants SET notes_used = GREATEST(notes_used - 1, 0), last_updated = now()
WHERE id=$1
RETURNING notes_used, last_updated`

	selectNoteSQL = `
SELECT id, title, content, tenant_id, owner_id, created_at, updated_at
FROM notes`

	noteByIDSQL = selectNoteSQL + ` WHERE id=$1`

	updateNoteSQL = `
UPDATE notes SET title=$3, content=$4, updated_at=now()
WHERE id=$1 AND tenant_id=$2
RETURNING id, title, content, tenant_id, owner_id, created_at, updated_at`

	countNotesSQL = `SELECT COUNT(*) FROM notes WHERE tenant_id=$1`

	listNotesSQL = selectNoteSQL + `
WHERE tenant_id=$1
ORDER BY created_at ASC, id ASC
OFFSET $2 LIMIT $3`
)

// NoteRepo implements NoteRepository using PostgreSQL.
type NoteRepo struct{ db *DB }

// NewNoteRepo constructs a note repository.
func NewNoteRepo(db *DB) *NoteRepo { return &NoteRepo{db: db} }

var _ repository.NoteRepository = (*NoteRepo)(nil)

// CreateGuarded inserts a note while holding the tenant row lock.
func (r *NoteRepo) CreateGuarded(ctx context.Context, n *model.Note, guard repository.QuotaGuard) (*model.Tenant, error) {
	var out *model.Tenant
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		t, err := scanTenant(tx.QueryRow(ctx, lockTenantSQL, n.TenantID))
		if err != nil {
			return err
		}
		metered, err := guard(t)
		if err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, insertNoteSQL, n.ID, n.Title, n.Content, n.TenantID, n.OwnerID).
			Scan(&n.CreatedAt, &n.UpdatedAt); err != nil {
			return err
		}
		if metered {
			if err := tx.QueryRow(ctx, incNotesUsedSQL, t.ID).Scan(&t.NotesUsed, &t.LastUpdated); err != nil {
				return err
			}
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteGuarded removes a note while holding the tenant row lock.
func (r *NoteRepo) DeleteGuarded(ctx context.Context, tenantID, noteID uuid.UUID, guard repository.QuotaGuard) (*model.Tenant, error) {
	var out *model.Tenant
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		t, err := scanTenant(tx.QueryRow(ctx, lockTenantSQL, tenantID))
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, deleteNoteSQL, noteID, tenantID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errs.ErrNotFound
		}
		metered, err := guard(t)
		if err != nil {
			return err
		}
		if metered {
			if err := tx.QueryRow(ctx, decNotesUsedSQL, t.ID).Scan(&t.NotesUsed, &t.LastUpdated); err != nil {
				return err
			}
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a single note by id.
func (r *NoteRepo) Get(ctx context.Context, noteID uuid.UUID) (*model.Note, error) {
	return scanNote(r.db.Pool.QueryRow(ctx, noteByIDSQL, noteID))
}

// Update rewrites title and content of a tenant's note.
func (r *NoteRepo) Update(ctx context.Context, tenantID, noteID uuid.UUID, title, content string) (*model.Note, error) {
	return scanNote(r.db.Pool.QueryRow(ctx, updateNoteSQL, noteID, tenantID, title, content))
}

// ListByTenant returns one page of notes and the tenant's total.
func (r *NoteRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]model.Note, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, countNotesSQL, tenantID).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []model.Note{}, 0, nil
	}

	rows, err := r.db.Pool.Query(ctx, listNotesSQL, tenantID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Note, 0, limit)
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.TenantID, &n.OwnerID, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

func scanNote(row pgx.Row) (*model.Note, error) {
	var n model.Note
	if err := row.Scan(&n.ID, &n.Title, &n.Content, &n.TenantID, &n.OwnerID, &n.CreatedAt, &n.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}
