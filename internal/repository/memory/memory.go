// Package memory is an in-process implementation of the repository interfaces.
// Guarded note operations are serialized the same way the PostgreSQL
// implementation serializes them with a tenant row lock.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/and161185/tenant-notes/internal/errs"
	"github.com/and161185/tenant-notes/internal/model"
	"github.com/and161185/tenant-notes/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// Store holds users, tenants and notes behind a single mutex.
type Store struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*model.User
	tenants map[uuid.UUID]*model.Tenant
	notes   map[uuid.UUID]*model.Note
	seq     map[uuid.UUID]int64
	next    int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:   map[uuid.UUID]*model.User{},
		tenants: map[uuid.UUID]*model.Tenant{},
		notes:   map[uuid.UUID]*model.Note{},
		seq:     map[uuid.UUID]int64{},
	}
}

// PutTenant inserts or replaces a tenant.
func (s *Store) PutTenant(t model.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = &t
}

// Users returns the user repository view.
func (s *Store) Users() *Users { return &Users{s: s} }

// Tenants returns the tenant repository view.
func (s *Store) Tenants() *Tenants { return &Tenants{s: s} }

// Notes returns the note repository view.
func (s *Store) Notes() *Notes { return &Notes{s: s} }

// CountNotes returns the true number of notes stored for a tenant.
func (s *Store) CountNotes(tenantID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, note := range s.notes {
		if note.TenantID == tenantID {
			n++
		}
	}
	return n
}

// Users implements repository.UserRepository.
type Users struct{ s *Store }

var _ repository.UserRepository = (*Users)(nil)

func (u *Users) Create(_ context.Context, user *model.User) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[user.TenantID]; !ok {
		return fmt.Errorf("tenant %s: %w", user.TenantID, errs.ErrNotFound)
	}
	for _, x := range s.users {
		if x.Email == user.Email || x.Username == user.Username {
			return errs.New(errs.ErrAlreadyExists, "User with this credentials already exists")
		}
	}
	cp := *user
	now := time.Now().UTC()
	cp.CreatedAt, cp.UpdatedAt = now, now
	s.users[cp.ID] = &cp
	user.CreatedAt, user.UpdatedAt = now, now
	return nil
}

func (u *Users) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	x, ok := u.s.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return copyUser(x), nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (*model.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, x := range u.s.users {
		if x.Email == email {
			return copyUser(x), nil
		}
	}
	return nil, errs.ErrNotFound
}

func (u *Users) ExistsByEmailOrUsername(_ context.Context, email, username string) (bool, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, x := range u.s.users {
		if x.Email == email || x.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (u *Users) SetRefreshToken(_ context.Context, id uuid.UUID, token *string) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	x, ok := u.s.users[id]
	if !ok {
		return errs.ErrUserNotFound
	}
	if token == nil {
		x.RefreshToken = nil
	} else {
		v := *token
		x.RefreshToken = &v
	}
	x.UpdatedAt = time.Now().UTC()
	return nil
}

func copyUser(x *model.User) *model.User {
	c := *x
	if x.RefreshToken != nil {
		v := *x.RefreshToken
		c.RefreshToken = &v
	}
	return &c
}

// Tenants implements repository.TenantRepository.
type Tenants struct{ s *Store }

var _ repository.TenantRepository = (*Tenants)(nil)

func (t *Tenants) GetByID(_ context.Context, id uuid.UUID) (*model.Tenant, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	x, ok := t.s.tenants[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *x
	return &c, nil
}

func (t *Tenants) GetBySlug(_ context.Context, slug string) (*model.Tenant, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, x := range t.s.tenants {
		if x.Slug != "" && x.Slug == slug {
			c := *x
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (t *Tenants) UpgradeToPro(_ context.Context, id uuid.UUID) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	x, ok := t.s.tenants[id]
	if !ok {
		return false, errs.ErrNotFound
	}
	if x.Plan == model.PlanPro {
		return false, nil
	}
	x.Plan = model.PlanPro
	x.LastUpdated = time.Now().UTC()
	return true, nil
}

// Notes implements repository.NoteRepository.
type Notes struct{ s *Store }

var _ repository.NoteRepository = (*Notes)(nil)

func (n *Notes) CreateGuarded(_ context.Context, note *model.Note, guard repository.QuotaGuard) (*model.Tenant, error) {
	s := n.s
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[note.TenantID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	snapshot := *t
	metered, err := guard(&snapshot)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	note.CreatedAt, note.UpdatedAt = now, now
	cp := *note
	s.notes[cp.ID] = &cp
	s.next++
	s.seq[cp.ID] = s.next
	if metered {
		t.NotesUsed++
		t.LastUpdated = now
	}
	out := *t
	return &out, nil
}

func (n *Notes) DeleteGuarded(_ context.Context, tenantID, noteID uuid.UUID, guard repository.QuotaGuard) (*model.Tenant, error) {
	s := n.s
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	note, ok := s.notes[noteID]
	if !ok || note.TenantID != tenantID {
		return nil, errs.ErrNotFound
	}
	snapshot := *t
	metered, err := guard(&snapshot)
	if err != nil {
		return nil, err
	}
	delete(s.notes, noteID)
	delete(s.seq, noteID)
	if metered {
		if t.NotesUsed > 0 {
			t.NotesUsed--
		}
		t.LastUpdated = time.Now().UTC()
	}
	out := *t
	return &out, nil
}

func (n *Notes) Get(_ context.Context, noteID uuid.UUID) (*model.Note, error) {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	x, ok := n.s.notes[noteID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *x
	return &c, nil
}

func (n *Notes) Update(_ context.Context, tenantID, noteID uuid.UUID, title, content string) (*model.Note, error) {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	x, ok := n.s.notes[noteID]
	if !ok || x.TenantID != tenantID {
		return nil, errs.ErrNotFound
	}
	x.Title, x.Content = title, content
	x.UpdatedAt = time.Now().UTC()
	c := *x
	return &c, nil
}

func (n *Notes) ListByTenant(_ context.Context, tenantID uuid.UUID, offset, limit int) ([]model.Note, int, error) {
	s := n.s
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]model.Note, 0)
	for _, x := range s.notes {
		if x.TenantID == tenantID {
			all = append(all, *x)
		}
	}
	sort.Slice(all, func(i, j int) bool { return s.seq[all[i].ID] < s.seq[all[j].ID] })
	total := len(all)
	if offset >= total {
		return []model.Note{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}
