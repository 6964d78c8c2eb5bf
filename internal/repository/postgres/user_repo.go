package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/tenant-notes/internal/errs"
	"github.com/and161185/tenant-notes/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

const (
	insertUserSQL = `
INSERT INTO users (id, username, email, password_hash, role, tenant_id)
VALUES ($1, $2, $3, $4, $5, $6)`

	selectUserSQL = `
SELECT id, username, email, password_hash, role, tenant_id, refresh_token, created_at, updated_at
FROM users`

	userByIDSQL    = selectUserSQL + ` WHERE id=$1`
	userByEmailSQL = selectUserSQL + ` WHERE email=$1`

	userExistsSQL = `SELECT EXISTS (SELECT 1 FROM users WHERE email=$1 OR username=$2)`

	setRefreshTokenSQL = `UPDATE users SET refresh_token=$2, updated_at=now() WHERE id=$1`
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	_, err := r.db.Pool.Exec(ctx, insertUserSQL,
		u.ID, u.Username, u.Email, u.PasswordHash, string(u.Role), u.TenantID)
	switch {
	case isUniqueViolation(err):
		return errs.New(errs.ErrAlreadyExists, "User with this credentials already exists")
	case isForeignKeyViolation(err):
		return fmt.Errorf("tenant %s: %w", u.TenantID, errs.ErrNotFound)
	}
	return err
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.scanOne(r.db.Pool.QueryRow(ctx, userByIDSQL, id))
}

// GetByEmail selects a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.scanOne(r.db.Pool.QueryRow(ctx, userByEmailSQL, email))
}

// ExistsByEmailOrUsername reports whether email or username is taken.
func (r *UserRepo) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, userExistsSQL, email, username).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// SetRefreshToken overwrites refresh_token; a nil token stores NULL.
func (r *UserRepo) SetRefreshToken(ctx context.Context, id uuid.UUID, token *string) error {
	tag, err := r.db.Pool.Exec(ctx, setRefreshTokenSQL, id, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) scanOne(row pgx.Row) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.TenantID,
		&u.RefreshToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}
