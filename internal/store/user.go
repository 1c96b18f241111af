package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/identra/apiserver/types"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PasswordHasher derives a one-way hash for a password. The hashing step
// runs inside Create so a user row can never be persisted with a raw
// password.
type PasswordHasher interface {
	Hash(rawPassword string) (string, error)
}

// NewUser carries the fields required to create a user.
type NewUser struct {
	FullName string
	Username string
	Email    string
	Password string
}

// UserRepository handles persistence for users.
type UserRepository struct {
	db     *sql.DB
	hasher PasswordHasher
}

func NewUserRepository(db *sql.DB, hasher PasswordHasher) *UserRepository {
	return &UserRepository{db: db, hasher: hasher}
}

const userColumns = `id, username, email, fullname, password_hash, refresh_token, created_at, updated_at`

func scanUser(row *sql.Row) (types.User, error) {
	var user types.User
	var refreshToken sql.NullString
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&refreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	user.RefreshToken = refreshToken.String
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByLogin looks a user up by username or email. The identifier is
// lower-cased before matching, mirroring how values are stored.
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE username = $1 OR email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, strings.ToLower(login)))
}

// Create persists a new user. The password is hashed here, before the
// row is written. A duplicate username or email yields ErrConflict.
func (r *UserRepository) Create(ctx context.Context, nu NewUser) (types.User, error) {
	hash, err := r.hasher.Hash(nu.Password)
	if err != nil {
		return types.User{}, err
	}

	now := time.Now()
	user := types.User{
		ID:           uuid.NewString(),
		Username:     strings.ToLower(nu.Username),
		Email:        strings.ToLower(nu.Email),
		FullName:     nu.FullName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	const query = `
		INSERT INTO users (id, username, email, fullname, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Username,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return types.User{}, ErrConflict
		}
		return types.User{}, err
	}
	return user, nil
}

// UpdatePassword hashes the new password and persists it.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, rawPassword string) error {
	hash, err := r.hasher.Hash(rawPassword)
	if err != nil {
		return err
	}

	const query = `
		UPDATE users
		SET password_hash = $1,
			updated_at = $2
		WHERE id = $3`
	return r.execOnUser(ctx, query, hash, time.Now(), id)
}

// SetRefreshToken stores the latest refresh token for the user,
// replacing any previously stored value.
func (r *UserRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	const query = `
		UPDATE users
		SET refresh_token = $1,
			updated_at = $2
		WHERE id = $3`
	return r.execOnUser(ctx, query, token, time.Now(), id)
}

// ClearRefreshToken removes the stored refresh token for the user.
func (r *UserRepository) ClearRefreshToken(ctx context.Context, id string) error {
	const query = `
		UPDATE users
		SET refresh_token = NULL,
			updated_at = $1
		WHERE id = $2`
	return r.execOnUser(ctx, query, time.Now(), id)
}

func (r *UserRepository) execOnUser(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
