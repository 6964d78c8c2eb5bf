package service

import (
	"context"
	"errors"
	"testing"

	"github.com/and161185/tenant-notes/internal/errs"
	"github.com/and161185/tenant-notes/internal/model"
	"github.com/gofrs/uuid/v5"
)

func (f *fixture) member(t *testing.T, name, email string) model.Identity {
	t.Helper()
	u, _, err := f.auth.Register(context.Background(), name, email, "pw")
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return model.IdentityOf(&u)
}

func TestNotes_CreateValidatesAndTrims(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	alice := f.member(t, "alice", "alice@acme.test")

	_, _, err := f.notes.Create(ctx, alice, "  ", "body")
	var e *errs.Error
	if !errors.As(err, &e) || !errors.Is(err, errs.ErrValidation) || len(e.Details) != 1 {
		t.Fatalf("want validation error with details, got %v", err)
	}

	n, usage, err := f.notes.Create(ctx, alice, "  hello ", " world ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if n.Title != "hello" || n.Content != "world" || n.OwnerID != alice.UserID || n.TenantID != f.acme.ID {
		t.Fatalf("bad note: %+v", n)
	}
	if usage.NotesUsed != 1 || usage.Remaining != 2 {
		t.Fatalf("usage: %+v", usage)
	}
}

func TestNotes_QuotaAndUpgrade(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	admin := f.member(t, "boss", "admin@acme.test")

	var first *model.Note
	for i := 0; i < 3; i++ {
		n, _, err := f.notes.Create(ctx, admin, "t", "c")
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if first == nil {
			first = n
		}
	}
	if _, _, err := f.notes.Create(ctx, admin, "t", "c"); !errors.Is(err, errs.ErrQuotaExceeded) {
		t.Fatalf("want ErrQuotaExceeded, got %v", err)
	}

	_, usage, err := f.notes.Delete(ctx, admin, first.ID)
	if err != nil || usage.NotesUsed != 2 || usage.Remaining != 1 {
		t.Fatalf("delete: %+v %v", usage, err)
	}
	if _, usage, err = f.notes.Create(ctx, admin, "t", "c"); err != nil || usage.Remaining != 0 {
		t.Fatalf("recreate: %+v %v", usage, err)
	}

	res, err := f.tenant.UpgradePlan(ctx, admin, f.acme.ID)
	if err != nil || res.AlreadyPro || res.Plan != model.PlanPro {
		t.Fatalf("upgrade: %+v %v", res, err)
	}
	if _, _, err := f.notes.Create(ctx, admin, "t", "c"); err != nil {
		t.Fatalf("pro create: %v", err)
	}
}

func TestNotes_Policy(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	alice := f.member(t, "alice", "alice@acme.test")
	bob := f.member(t, "bob", "bob@acme.test")
	admin := f.member(t, "boss", "admin@acme.test")
	gina := f.member(t, "gina", "gina@globex.test")

	n, _, err := f.notes.Create(ctx, alice, "mine", "c")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.notes.Get(ctx, bob, n.ID); err != nil {
		t.Fatalf("tenant peer may read: %v", err)
	}
	if _, err := f.notes.Get(ctx, gina, n.ID); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("foreign read: %v", err)
	}
	if _, err := f.notes.Update(ctx, bob, n.ID, "x", "y"); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("peer update: %v", err)
	}
	if _, _, err := f.notes.Delete(ctx, gina, n.ID); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("foreign delete: %v", err)
	}

	up, err := f.notes.Update(ctx, alice, n.ID, "new", "body")
	if err != nil || up.Title != "new" {
		t.Fatalf("owner update: %+v %v", up, err)
	}
	if _, err := f.notes.Update(ctx, admin, n.ID, "admin", "edit"); err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if _, err := f.notes.Update(ctx, alice, uuid.Must(uuid.NewV4()), "a", "b"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("missing update: %v", err)
	}
	if _, _, err := f.notes.Delete(ctx, admin, n.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

func TestNotes_ListPagination(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	admin := f.member(t, "boss", "admin@acme.test")
	gina := f.member(t, "gina", "gina@globex.test")

	empty, err := f.notes.List(ctx, admin, 0, 0)
	if err != nil || empty.TotalPages != 0 || empty.CurrentPage != 0 || len(empty.Notes) != 0 || empty.Notes == nil {
		t.Fatalf("empty list: %+v %v", empty, err)
	}

	if _, err := f.tenant.UpgradePlan(ctx, admin, f.acme.ID); err != nil {
		t.Fatal(err)
	}
	for _, title := range []string{"a", "b", "c", "d", "e"} {
		if _, _, err := f.notes.Create(ctx, admin, title, "c"); err != nil {
			t.Fatal(err)
		}
	}
	if _, _, err := f.notes.Create(ctx, gina, "other", "c"); err != nil {
		t.Fatal(err)
	}

	p, err := f.notes.List(ctx, admin, 2, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if p.Total != 5 || p.TotalPages != 3 || p.CurrentPage != 2 || len(p.Notes) != 2 || p.Notes[0].Title != "c" {
		t.Fatalf("page 2: %+v", p)
	}

	p, err = f.notes.List(ctx, admin, 0, 0)
	if err != nil || p.CurrentPage != 1 || len(p.Notes) != 5 {
		t.Fatalf("defaults: %+v %v", p, err)
	}

	if _, err := f.notes.List(ctx, admin, 4, 2); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("past last page: %v", err)
	}

	g, err := f.notes.List(ctx, gina, 1, 10)
	if err != nil || g.Total != 1 || g.Notes[0].Title != "other" {
		t.Fatalf("tenant scoping: %+v %v", g, err)
	}
}
