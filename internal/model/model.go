// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role is a user's role inside its tenant.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Plan is a tenant subscription tier.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// User represents an account stored on the server. The password is never stored in plaintext.
type User struct {
	ID           uuid.UUID // PK
	Username     string    // unique
	Email        string    // unique
	PasswordHash []byte    // argon2id digest (salt || key)
	Role         Role
	TenantID     uuid.UUID // FK -> tenants.id
	RefreshToken *string   // current valid refresh token; nil after logout
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the authenticated caller, resolved once per request.
type Identity struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Role     Role
	Username string
}

// IsAdmin reports whether the identity has the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// IdentityOf derives an Identity from a loaded user record.
func IdentityOf(u *User) Identity {
	return Identity{UserID: u.ID, TenantID: u.TenantID, Role: u.Role, Username: u.Username}
}

// Tenant is an organization isolating its users and notes.
type Tenant struct {
	ID          uuid.UUID
	Name        string // unique
	Slug        string // empty when unset; otherwise one of the known organizations
	Plan        Plan
	NotesUsed   int // maintained by quota operations only, never negative
	LastUpdated time.Time
}

// Note is a tenant-scoped document owned by a user.
type Note struct {
	ID        uuid.UUID
	Title     string
	Content   string
	TenantID  uuid.UUID // immutable
	OwnerID   uuid.UUID // immutable
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NotePage is one page of a tenant's notes.
type NotePage struct {
	Notes       []Note
	Total       int
	TotalPages  int
	CurrentPage int
}

// CookiePolicy describes how credential cookies must be set.
type CookiePolicy struct {
	HTTPOnly bool
	Secure   bool
	SameSite string // always "strict"
}

// Tokens collects an issued access/refresh pair.
type Tokens struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	Cookie           CookiePolicy
}

// Usage reports a tenant's quota position. Remaining is -1 for unlimited plans.
type Usage struct {
	Plan      Plan
	NotesUsed int
	Limit     int
	Remaining int
}

// UpgradeResult reports the outcome of a plan upgrade.
type UpgradeResult struct {
	TenantName string
	Plan       Plan
	AlreadyPro bool
}
