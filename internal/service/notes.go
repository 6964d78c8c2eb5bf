package service

import (
	"context"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/tenant-notes/internal/errs"
	"github.com/and161185/tenant-notes/internal/model"
	"github.com/and161185/tenant-notes/internal/policy"
	"github.com/and161185/tenant-notes/internal/quota"
	"github.com/and161185/tenant-notes/internal/repository"
)

// Pagination defaults for note listings.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// NoteService defines tenant-scoped note operations.
type NoteService interface {
	// Create stores a note owned by the caller, subject to the tenant quota.
	Create(ctx context.Context, id model.Identity, title, content string) (*model.Note, model.Usage, error)
	// Update replaces title and content of a note the caller may modify.
	Update(ctx context.Context, id model.Identity, noteID uuid.UUID, title, content string) (*model.Note, error)
	// Delete removes a note the caller may modify and releases its quota slot.
	Delete(ctx context.Context, id model.Identity, noteID uuid.UUID) (*model.Note, model.Usage, error)
	// List returns one page of the caller's tenant notes.
	List(ctx context.Context, id model.Identity, page, limit int) (model.NotePage, error)
	// Get returns a single note of the caller's tenant.
	Get(ctx context.Context, id model.Identity, noteID uuid.UUID) (*model.Note, error)
}

type NoteServiceImpl struct {
	notes repository.NoteRepository
	quota *quota.Engine
}

// NewNoteService constructs NoteService.
func NewNoteService(notes repository.NoteRepository, q *quota.Engine) *NoteServiceImpl {
	return &NoteServiceImpl{notes: notes, quota: q}
}

func cleanNote(title, content string) (string, string, error) {
	title, content = strings.TrimSpace(title), strings.TrimSpace(content)
	var missing []string
	if title == "" {
		missing = append(missing, "title is required")
	}
	if content == "" {
		missing = append(missing, "content is required")
	}
	if len(missing) > 0 {
		return "", "", errs.Validation("Title and content are required", missing...)
	}
	return title, content, nil
}

// Create validates input and stores the note in the caller's tenant.
func (s *NoteServiceImpl) Create(ctx context.Context, id model.Identity, title, content string) (*model.Note, model.Usage, error) {
	title, content, err := cleanNote(title, content)
	if err != nil {
		return nil, model.Usage{}, err
	}
	nid, err := uuid.NewV4()
	if err != nil {
		return nil, model.Usage{}, err
	}
	n := &model.Note{
		ID:       nid,
		Title:    title,
		Content:  content,
		TenantID: id.TenantID,
		OwnerID:  id.UserID,
	}
	return s.quota.CreateNoteGuarded(ctx, n)
}

// Update checks the policy against the stored note before writing.
func (s *NoteServiceImpl) Update(ctx context.Context, id model.Identity, noteID uuid.UUID, title, content string) (*model.Note, error) {
	title, content, err := cleanNote(title, content)
	if err != nil {
		return nil, err
	}
	n, err := s.notes.Get(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanModifyNote(id, n); err != nil {
		return nil, err
	}
	return s.notes.Update(ctx, n.TenantID, noteID, title, content)
}

// Delete checks the policy, then deletes through the quota engine.
func (s *NoteServiceImpl) Delete(ctx context.Context, id model.Identity, noteID uuid.UUID) (*model.Note, model.Usage, error) {
	n, err := s.notes.Get(ctx, noteID)
	if err != nil {
		return nil, model.Usage{}, err
	}
	if err := policy.CanModifyNote(id, n); err != nil {
		return nil, model.Usage{}, err
	}
	usage, err := s.quota.DeleteNoteGuarded(ctx, id.TenantID, noteID)
	if err != nil {
		return nil, model.Usage{}, err
	}
	return n, usage, nil
}

// List pages through the caller's tenant notes, oldest first. An empty tenant
// yields page 0 of 0; asking past the last page is a validation error.
func (s *NoteServiceImpl) List(ctx context.Context, id model.Identity, page, limit int) (model.NotePage, error) {
	if page <= 0 {
		page = DefaultPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	notes, total, err := s.notes.ListByTenant(ctx, id.TenantID, (page-1)*limit, limit)
	if err != nil {
		return model.NotePage{}, err
	}
	if total == 0 {
		return model.NotePage{Notes: []model.Note{}}, nil
	}
	totalPages := (total + limit - 1) / limit
	if page > totalPages {
		return model.NotePage{}, errs.Validation("No more pages available")
	}
	return model.NotePage{Notes: notes, Total: total, TotalPages: totalPages, CurrentPage: page}, nil
}

// Get returns the note if it belongs to the caller's tenant.
func (s *NoteServiceImpl) Get(ctx context.Context, id model.Identity, noteID uuid.UUID) (*model.Note, error) {
	n, err := s.notes.Get(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanReadNote(id, n); err != nil {
		return nil, err
	}
	return n, nil
}
