// Package token issues and verifies the access/refresh credential pair.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/tenant-notes/internal/errs"
	"github.com/and161185/tenant-notes/internal/model"
	"github.com/and161185/tenant-notes/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims are carried by the short-lived access token.
type AccessClaims struct {
	UserID   string     `json:"id"`
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
	TenantID string     `json:"tenantId"`
	jwt.RegisteredClaims
}

// RefreshClaims are carried by the long-lived refresh token.
type RefreshClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// Config holds signing material and lifetimes. Secrets must differ.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Production    bool
}

// Issuer mints credential pairs and records the refresh token on the user.
type Issuer struct {
	users repository.UserRepository
	cfg   Config
	now   func() time.Time
}

// NewIssuer constructs an Issuer.
func NewIssuer(users repository.UserRepository, cfg Config) *Issuer {
	return &Issuer{users: users, cfg: cfg, now: time.Now}
}

// CookiePolicy returns the flags credential cookies must carry.
func (i *Issuer) CookiePolicy() model.CookiePolicy {
	return model.CookiePolicy{HTTPOnly: true, Secure: i.cfg.Production, SameSite: "strict"}
}

// Issue signs a fresh pair for userID and overwrites the stored refresh token,
// which invalidates any previously issued refresh token. Concurrent calls for
// the same user race; the last write wins.
func (i *Issuer) Issue(ctx context.Context, userID uuid.UUID) (model.Tokens, error) {
	u, err := i.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Tokens{}, errs.ErrUserNotFound
		}
		return model.Tokens{}, fmt.Errorf("load user: %w", err)
	}

	now := i.now()
	accessExp := now.Add(i.cfg.AccessTTL)
	refreshExp := now.Add(i.cfg.RefreshTTL)

	access, err := sign(AccessClaims{
		UserID:           u.ID.String(),
		Username:         u.Username,
		Role:             u.Role,
		TenantID:         u.TenantID.String(),
		RegisteredClaims: registered(now, accessExp),
	}, i.cfg.AccessSecret)
	if err != nil {
		return model.Tokens{}, fmt.Errorf("sign access: %w", err)
	}
	refresh, err := sign(RefreshClaims{
		UserID:           u.ID.String(),
		RegisteredClaims: registered(now, refreshExp),
	}, i.cfg.RefreshSecret)
	if err != nil {
		return model.Tokens{}, fmt.Errorf("sign refresh: %w", err)
	}

	if err := i.users.SetRefreshToken(ctx, u.ID, &refresh); err != nil {
		return model.Tokens{}, err
	}

	return model.Tokens{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		Cookie:           i.CookiePolicy(),
	}, nil
}

// ParseAccess verifies an access token and returns its claims.
func (i *Issuer) ParseAccess(raw string) (*AccessClaims, uuid.UUID, error) {
	var c AccessClaims
	id, err := i.parse(raw, &c, i.cfg.AccessSecret, func() string { return c.UserID })
	if err != nil {
		return nil, uuid.Nil, err
	}
	return &c, id, nil
}

// ParseRefresh verifies a refresh token and returns its claims.
func (i *Issuer) ParseRefresh(raw string) (*RefreshClaims, uuid.UUID, error) {
	var c RefreshClaims
	id, err := i.parse(raw, &c, i.cfg.RefreshSecret, func() string { return c.UserID })
	if err != nil {
		return nil, uuid.Nil, err
	}
	return &c, id, nil
}

func (i *Issuer) parse(raw string, claims jwt.Claims, secret []byte, subject func() string) (uuid.UUID, error) {
	tok, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !tok.Valid {
		return uuid.Nil, errs.ErrInvalidToken
	}
	id, err := uuid.FromString(subject())
	if err != nil {
		return uuid.Nil, errs.ErrInvalidToken
	}
	return id, nil
}

func registered(now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.Must(uuid.NewV4()).String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

func sign(claims jwt.Claims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
