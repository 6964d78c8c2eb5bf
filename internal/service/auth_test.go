package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/and161185/tenant-notes/internal/errs"
	"github.com/and161185/tenant-notes/internal/limiter"
	"github.com/and161185/tenant-notes/internal/model"
	"github.com/and161185/tenant-notes/internal/quota"
	"github.com/and161185/tenant-notes/internal/repository/memory"
	"github.com/and161185/tenant-notes/internal/token"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap/zaptest"
)

// plainHasher keeps tests fast; production uses argon2id.
type plainHasher struct{}

func (plainHasher) Hash(p string) ([]byte, error)  { return []byte("h:" + p), nil }
func (plainHasher) Verify(p string, d []byte) bool { return string(d) == "h:"+p }

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

type fixture struct {
	store  *memory.Store
	acme   model.Tenant
	globex model.Tenant
	lim    *fakeLimiter
	auth   *AuthServiceImpl
	notes  *NoteServiceImpl
	tenant *TenantServiceImpl
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	acme := model.Tenant{ID: uuid.Must(uuid.NewV4()), Name: "Acme", Slug: "acme", Plan: model.PlanFree}
	globex := model.Tenant{ID: uuid.Must(uuid.NewV4()), Name: "Globex", Slug: "globex", Plan: model.PlanFree}
	st.PutTenant(acme)
	st.PutTenant(globex)

	log := zaptest.NewLogger(t)
	iss := token.NewIssuer(st.Users(), token.Config{
		AccessSecret:  []byte("a-secret"),
		RefreshSecret: []byte("r-secret"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	lim := &fakeLimiter{allowOK: true}
	q := quota.NewEngine(st.Tenants(), st.Notes(), log)
	return &fixture{
		store:  st,
		acme:   acme,
		globex: globex,
		lim:    lim,
		auth: NewAuthService(AuthDeps{
			Users:       st.Users(),
			Tenants:     st.Tenants(),
			Issuer:      iss,
			Hasher:      plainHasher{},
			Limiter:     lim,
			AdminEmails: []string{"Admin@Acme.test"},
			Logger:      log,
		}),
		notes:  NewNoteService(st.Notes(), q),
		tenant: NewTenantService(q),
	}
}

func TestAuth_Register_Basics(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, _, err := f.auth.Register(ctx, "", "a@acme.test", "pw"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation error on empty username, got %v", err)
	}
	if _, _, err := f.auth.Register(ctx, "a", "not-an-email", "pw"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want validation error on bad email, got %v", err)
	}
	for _, e := range []string{"Bob <bob@acme.test>", "<bob@acme.test>", "bob@acme.test (Bob)"} {
		if _, _, err := f.auth.Register(ctx, "bob", e, "pw"); !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("want validation error for %q, got %v", e, err)
		}
	}
	if taken, _ := f.store.Users().ExistsByEmailOrUsername(ctx, "bob@acme.test", "bob"); taken {
		t.Fatalf("rejected email forms must not persist a user")
	}
	if _, _, err := f.auth.Register(ctx, "bob", "bob@acme.test", "pw"); err != nil {
		t.Fatalf("Register bare address: %v", err)
	}
	if _, _, err := f.auth.Register(ctx, "bob2", " BOB@acme.test ", "pw"); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("same mailbox must conflict, got %v", err)
	}

	u, tok, err := f.auth.Register(ctx, "alice", "alice@acme.test", "pw")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.TenantID != f.acme.ID || u.Role != model.RoleUser {
		t.Fatalf("bad user: %+v", u)
	}
	stored, _ := f.store.Users().GetByID(ctx, u.ID)
	if stored.RefreshToken == nil || *stored.RefreshToken != tok.RefreshToken {
		t.Fatalf("refresh token not stored")
	}
	if string(stored.PasswordHash) == "pw" {
		t.Fatalf("password stored in plaintext")
	}

	if _, _, err := f.auth.Register(ctx, "alice", "other@acme.test", "pw"); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists on duplicate username, got %v", err)
	}

	admin, _, err := f.auth.Register(ctx, "boss", "admin@acme.test", "pw")
	if err != nil || admin.Role != model.RoleAdmin {
		t.Fatalf("admin email must get admin role: %+v %v", admin, err)
	}
}

func TestAuth_Register_UnresolvedTenantPersistsNothing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.auth.Register(ctx, "mallory", "mallory@initech.com", "pw")
	if !errors.Is(err, errs.ErrUnresolvedTenant) {
		t.Fatalf("want ErrUnresolvedTenant, got %v", err)
	}
	if taken, _ := f.store.Users().ExistsByEmailOrUsername(ctx, "mallory@initech.com", "mallory"); taken {
		t.Fatalf("user must not be persisted")
	}
}

func TestAuth_Login_RateLimiterAndCreds(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	u, _, err := f.auth.Register(ctx, "alice", "alice@acme.test", "correct")
	if err != nil {
		t.Fatal(err)
	}

	f.lim.allowErr = errors.New("lim-err")
	if _, _, err := f.auth.Login(ctx, "alice@acme.test", "correct", "1.2.3.4"); err == nil {
		t.Fatalf("want limiter error propagate")
	}
	f.lim.allowErr = nil

	f.lim.allowOK = false
	if _, _, err := f.auth.Login(ctx, "alice@acme.test", "correct", "1.2.3.4"); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	f.lim.allowOK = true

	if _, _, err := f.auth.Login(ctx, "nobody@acme.test", "x", ""); !errors.Is(err, errs.ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials on missing user, got %v", err)
	}

	f.lim.failBlocked = true
	if _, _, err := f.auth.Login(ctx, "alice@acme.test", "wrong", ""); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited on blocked after failure, got %v", err)
	}
	f.lim.failBlocked = false

	if _, _, err := f.auth.Login(ctx, "alice@acme.test", "wrong", ""); !errors.Is(err, errs.ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials on wrong password, got %v", err)
	}

	got, tok, err := f.auth.Login(ctx, "ALICE@acme.test", "correct", "127.0.0.1")
	if err != nil {
		t.Fatalf("Login success: %v", err)
	}
	if got.ID != u.ID || tok.AccessToken == "" || tok.AccessExpiresAt.Before(time.Now()) {
		t.Fatalf("bad login result: %+v %+v", got, tok)
	}
	if f.lim.successCalls == 0 {
		t.Fatalf("expected Success() to be called")
	}
}

func TestAuth_Refresh_RotationAndMismatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	_, first, err := f.auth.Register(ctx, "alice", "alice@acme.test", "pw")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.auth.Refresh(ctx, ""); !errors.Is(err, errs.ErrUnauthenticated) {
		t.Fatalf("empty: %v", err)
	}
	if _, err := f.auth.Refresh(ctx, "garbage"); !errors.Is(err, errs.ErrInvalidToken) {
		t.Fatalf("garbage: %v", err)
	}
	if _, err := f.auth.Refresh(ctx, first.AccessToken); !errors.Is(err, errs.ErrInvalidToken) {
		t.Fatalf("access token used as refresh: %v", err)
	}

	second, err := f.auth.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatalf("refresh token must rotate")
	}

	// superseded token
	if _, err := f.auth.Refresh(ctx, first.RefreshToken); !errors.Is(err, errs.ErrTokenMismatch) {
		t.Fatalf("want ErrTokenMismatch for superseded token, got %v", err)
	}

	// a new login also supersedes
	_, third, err := f.auth.Login(ctx, "alice@acme.test", "pw", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.auth.Refresh(ctx, second.RefreshToken); !errors.Is(err, errs.ErrTokenMismatch) {
		t.Fatalf("want ErrTokenMismatch after re-login, got %v", err)
	}
	if _, err := f.auth.Refresh(ctx, third.RefreshToken); err != nil {
		t.Fatalf("latest token must work: %v", err)
	}
}

func TestAuth_LogoutThenReuse(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	u, tok, err := f.auth.Register(ctx, "alice", "alice@acme.test", "pw")
	if err != nil {
		t.Fatal(err)
	}

	if err := f.auth.Logout(ctx, model.IdentityOf(&u)); err != nil {
		t.Fatalf("logout: %v", err)
	}
	stored, _ := f.store.Users().GetByID(ctx, u.ID)
	if stored.RefreshToken != nil {
		t.Fatalf("refresh token must be cleared")
	}
	if _, err := f.auth.Refresh(ctx, tok.RefreshToken); !errors.Is(err, errs.ErrTokenMismatch) {
		t.Fatalf("want ErrTokenMismatch after logout, got %v", err)
	}
	if err := f.auth.Logout(ctx, model.Identity{UserID: uuid.Must(uuid.NewV4())}); !errors.Is(err, errs.ErrUserNotFound) {
		t.Fatalf("logout unknown user: %v", err)
	}
}

func TestAuth_Authenticate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	u, tok, err := f.auth.Register(ctx, "boss", "admin@acme.test", "pw")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.auth.Authenticate(ctx, ""); !errors.Is(err, errs.ErrUnauthenticated) {
		t.Fatalf("empty: %v", err)
	}
	if _, err := f.auth.Authenticate(ctx, tok.RefreshToken); !errors.Is(err, errs.ErrInvalidToken) {
		t.Fatalf("refresh as access: %v", err)
	}

	id, err := f.auth.Authenticate(ctx, tok.AccessToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	want := model.Identity{UserID: u.ID, TenantID: f.acme.ID, Role: model.RoleAdmin, Username: "boss"}
	if id != want {
		t.Fatalf("identity: got %+v want %+v", id, want)
	}

	// logout does not revoke the access token; it stays valid until expiry
	_ = f.auth.Logout(ctx, id)
	if _, err := f.auth.Authenticate(ctx, tok.AccessToken); err != nil {
		t.Fatalf("access token after logout: %v", err)
	}
}

func TestAuth_Me(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	u, _, err := f.auth.Register(ctx, "gina", "gina@globex.test", "pw")
	if err != nil {
		t.Fatal(err)
	}
	gotU, gotT, err := f.auth.Me(ctx, model.IdentityOf(&u))
	if err != nil || gotU.ID != u.ID || gotT.Name != "Globex" {
		t.Fatalf("me: %+v %+v %v", gotU, gotT, err)
	}
	if _, _, err := f.auth.Me(ctx, model.Identity{UserID: uuid.Must(uuid.NewV4())}); !errors.Is(err, errs.ErrUserNotFound) {
		t.Fatalf("me unknown: %v", err)
	}
}
