package httpserver

import (
	"time"

	"github.com/and161185/tenant-notes/internal/model"
)

type userDTO struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	TenantID  string    `json:"tenantId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toUser(u model.User) userDTO {
	return userDTO{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		TenantID:  u.TenantID.String(),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type tenantDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
	Plan string `json:"plan"`
}

func toTenant(t model.Tenant) tenantDTO {
	return tenantDTO{ID: t.ID.String(), Name: t.Name, Slug: t.Slug, Plan: string(t.Plan)}
}

type noteDTO struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	TenantID  string    `json:"tenantId"`
	OwnerID   string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toNote(n *model.Note) noteDTO {
	return noteDTO{
		ID:        n.ID.String(),
		Title:     n.Title,
		Content:   n.Content,
		TenantID:  n.TenantID.String(),
		OwnerID:   n.OwnerID.String(),
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

type usageDTO struct {
	Plan      string `json:"plan"`
	NotesUsed int    `json:"notesUsed"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}

func toUsage(u model.Usage) usageDTO {
	return usageDTO{Plan: string(u.Plan), NotesUsed: u.NotesUsed, Limit: u.Limit, Remaining: u.Remaining}
}

type pageDTO struct {
	Notes       []noteDTO `json:"notes"`
	Total       int       `json:"totalNotes"`
	TotalPages  int       `json:"totalPages"`
	CurrentPage int       `json:"currentPage"`
}

func toPage(p model.NotePage) pageDTO {
	out := pageDTO{
		Notes:       make([]noteDTO, 0, len(p.Notes)),
		Total:       p.Total,
		TotalPages:  p.TotalPages,
		CurrentPage: p.CurrentPage,
	}
	for i := range p.Notes {
		out.Notes = append(out.Notes, toNote(&p.Notes[i]))
	}
	return out
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type noteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}
