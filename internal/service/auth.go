// Package service contains application services for authentication, notes and tenants.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	pkgcrypto "github.com/and161185/tenant-notes/internal/crypto"
	"github.com/and161185/tenant-notes/internal/errs"
	"github.com/and161185/tenant-notes/internal/limiter"
	"github.com/and161185/tenant-notes/internal/model"
	"github.com/and161185/tenant-notes/internal/repository"
	"github.com/and161185/tenant-notes/internal/tenant"
	"github.com/and161185/tenant-notes/internal/token"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// AuthService defines registration, session and identity operations.
type AuthService interface {
	// Register creates a user in the tenant derived from the email and opens a session.
	Register(ctx context.Context, username, email, password string) (model.User, model.Tokens, error)
	// Login applies rate-limiting, checks the password and opens a session.
	Login(ctx context.Context, email, password, ip string) (model.User, model.Tokens, error)
	// Refresh exchanges the current refresh token for a new pair.
	Refresh(ctx context.Context, refreshToken string) (model.Tokens, error)
	// Logout invalidates the stored refresh token.
	Logout(ctx context.Context, id model.Identity) error
	// Authenticate verifies an access token and resolves the caller.
	Authenticate(ctx context.Context, accessToken string) (model.Identity, error)
	// Me returns the caller's user record and tenant.
	Me(ctx context.Context, id model.Identity) (model.User, model.Tenant, error)
}

// AuthDeps collects AuthService collaborators.
type AuthDeps struct {
	Users       repository.UserRepository
	Tenants     repository.TenantRepository
	Issuer      *token.Issuer
	Hasher      pkgcrypto.Hasher
	Limiter     limiter.Limiter
	AdminEmails []string
	Logger      *zap.Logger
}

type AuthServiceImpl struct {
	users    repository.UserRepository
	tenants  repository.TenantRepository
	resolver *tenant.Resolver
	issuer   *token.Issuer
	hasher   pkgcrypto.Hasher
	lim      limiter.Limiter
	admins   map[string]struct{}
	log      *zap.Logger
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(d AuthDeps) *AuthServiceImpl {
	if d.Hasher == nil {
		d.Hasher = pkgcrypto.Argon2{}
	}
	if d.Limiter == nil {
		d.Limiter = limiter.Nop{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	admins := make(map[string]struct{}, len(d.AdminEmails))
	for _, e := range d.AdminEmails {
		if e = normalizeEmail(e); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &AuthServiceImpl{
		users:    d.Users,
		tenants:  d.Tenants,
		resolver: tenant.NewResolver(d.Tenants),
		issuer:   d.Issuer,
		hasher:   d.Hasher,
		lim:      d.Limiter,
		admins:   admins,
		log:      d.Logger,
	}
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Register validates input, resolves the tenant before anything is written,
// stores the user and issues the first credential pair.
func (s *AuthServiceImpl) Register(ctx context.Context, username, email, password string) (model.User, model.Tokens, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if username == "" || email == "" || password == "" {
		return model.User{}, model.Tokens{}, errs.Validation("All fields are required")
	}
	// bare addr-spec only; display names and angle brackets would bypass uniqueness
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return model.User{}, model.Tokens{}, errs.Validation("Invalid email address")
	}

	taken, err := s.users.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return model.User{}, model.Tokens{}, err
	}
	if taken {
		return model.User{}, model.Tokens{}, errs.New(errs.ErrAlreadyExists, "User with this credentials already exists")
	}

	t, err := s.resolver.Resolve(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrUnresolvedTenant) {
			s.log.Info("registration rejected: unresolved tenant", zap.String("email", email))
		}
		return model.User{}, model.Tokens{}, err
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return model.User{}, model.Tokens{}, fmt.Errorf("hash password: %w", err)
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return model.User{}, model.Tokens{}, err
	}
	role := model.RoleUser
	if _, ok := s.admins[email]; ok {
		role = model.RoleAdmin
	}
	u := &model.User{
		ID:           uid,
		Username:     username,
		Email:        email,
		PasswordHash: digest,
		Role:         role,
		TenantID:     t.ID,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return model.User{}, model.Tokens{}, err
	}

	tok, err := s.issuer.Issue(ctx, u.ID)
	if err != nil {
		return model.User{}, model.Tokens{}, err
	}
	s.log.Info("user registered", zap.String("user", u.ID.String()), zap.String("tenant", t.ID.String()))
	return *u, tok, nil
}

// Login authenticates with rate limiting by (email, ip).
func (s *AuthServiceImpl) Login(ctx context.Context, email, password, ip string) (model.User, model.Tokens, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return model.User{}, model.Tokens{}, errs.Validation("All fields are required")
	}
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.User{}, model.Tokens{}, err
	}
	if !allowed {
		return model.User{}, model.Tokens{}, errs.New(errs.ErrRateLimited, "Too many failed login attempts, try again later")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.User{}, model.Tokens{}, err
	}
	if err != nil || !s.hasher.Verify(password, u.PasswordHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			s.log.Warn("login blocked", zap.String("email", email))
			return model.User{}, model.Tokens{}, errs.New(errs.ErrRateLimited, "Too many failed login attempts, try again later")
		}
		// same answer for unknown email and wrong password
		return model.User{}, model.Tokens{}, errs.New(errs.ErrInvalidCredentials, "Invalid email or password")
	}

	_ = s.lim.Success(ctx, email, ipHash)

	tok, err := s.issuer.Issue(ctx, u.ID)
	if err != nil {
		return model.User{}, model.Tokens{}, err
	}
	return *u, tok, nil
}

// Refresh rotates the pair. Only the most recently issued refresh token is
// accepted; anything else, including a token presented after logout, is a mismatch.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (model.Tokens, error) {
	if refreshToken == "" {
		return model.Tokens{}, errs.New(errs.ErrUnauthenticated, "No refresh token provided")
	}
	_, uid, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return model.Tokens{}, errs.New(errs.ErrInvalidToken, "Invalid or expired refresh token")
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Tokens{}, errs.New(errs.ErrUnauthenticated, "Invalid refresh token")
		}
		return model.Tokens{}, err
	}
	if u.RefreshToken == nil || *u.RefreshToken != refreshToken {
		s.log.Warn("refresh token mismatch", zap.String("user", u.ID.String()))
		return model.Tokens{}, errs.New(errs.ErrTokenMismatch, "Refresh token mismatch")
	}
	tok, err := s.issuer.Issue(ctx, u.ID)
	if err != nil {
		if errors.Is(err, errs.ErrUserNotFound) {
			return model.Tokens{}, errs.New(errs.ErrUnauthenticated, "Invalid refresh token")
		}
		return model.Tokens{}, err
	}
	return tok, nil
}

// Logout clears the stored refresh token.
func (s *AuthServiceImpl) Logout(ctx context.Context, id model.Identity) error {
	if err := s.users.SetRefreshToken(ctx, id.UserID, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Authenticate verifies the access token and loads its user. The identity is
// built from the stored record, not from claims, so role changes apply at once.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, accessToken string) (model.Identity, error) {
	if accessToken == "" {
		return model.Identity{}, errs.New(errs.ErrUnauthenticated, "Unauthorized request")
	}
	_, uid, err := s.issuer.ParseAccess(accessToken)
	if err != nil {
		return model.Identity{}, errs.New(errs.ErrInvalidToken, "Invalid access token")
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Identity{}, errs.New(errs.ErrUnauthenticated, "Invalid access token")
		}
		return model.Identity{}, err
	}
	return model.IdentityOf(u), nil
}

// Me returns the caller's user and tenant records.
func (s *AuthServiceImpl) Me(ctx context.Context, id model.Identity) (model.User, model.Tenant, error) {
	u, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.User{}, model.Tenant{}, errs.New(errs.ErrUserNotFound, "User not found")
		}
		return model.User{}, model.Tenant{}, err
	}
	t, err := s.tenants.GetByID(ctx, u.TenantID)
	if err != nil {
		return model.User{}, model.Tenant{}, fmt.Errorf("load tenant: %w", err)
	}
	return *u, *t, nil
}
