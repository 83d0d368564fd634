package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new user and returns it.
func (r *Repository) Create(ctx context.Context, email, passwordHash, displayName, role string) (*User, error) {
	u := &User{Email: email, DisplayName: displayName, Role: role}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, display_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, email, passwordHash, displayName, role).Scan(&u.ID)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByEmail returns the user and password hash for login. Returns nil, "",
// nil when the email is unknown.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, string, error) {
	var u User
	var passwordHash string
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, display_name, role, password_hash
		FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.DisplayName, &u.Role, &passwordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return &u, passwordHash, nil
}
