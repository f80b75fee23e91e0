// Package repository provides PostgreSQL persistence for users, communication
// logs and the access audit trail.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/atinyakov/commlog/internal/models"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

// PostgresUserRepository stores user accounts and their session tokens.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresUserRepository creates a PostgresUserRepository with the given database connection.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

const userColumns = `id, username, COALESCE(email, ''), password_hash, role, firstname, lastname, COALESCE(token, ''), created_at`

// Create inserts u and fills in its CreatedAt. A duplicate username or email
// yields models.ErrConflict.
func (r *PostgresUserRepository) Create(ctx context.Context, u *models.User) error {
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, firstname, lastname, token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, u.ID, u.Username, nullString(u.Email), u.PasswordHash, string(u.Role), u.FirstName, u.LastName, nullString(u.Token)).
		Scan(&u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByUsername returns the user with the given username or models.ErrNotFound.
func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// GetByID returns the user with the given id or models.ErrNotFound.
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByToken returns the user whose stored session token equals token.
func (r *PostgresUserRepository) GetByToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, models.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE token = $1`, token)
}

// SetToken replaces the stored session token of a user in a single statement,
// so concurrent logins leave exactly the last written token. An empty token
// clears it.
func (r *PostgresUserRepository) SetToken(ctx context.Context, userID, token string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET token = $1 WHERE id = $2`, nullString(token), userID)
	if err != nil {
		return fmt.Errorf("set token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set token: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var (
		u    models.User
		role string
	)
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.FirstName, &u.LastName, &u.Token, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	u.Role = models.Role(role)
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
