package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserNotFound indicates the user id or email does not resolve.
var ErrUserNotFound = errors.New("auth: user not found")

// User is the account entity owning a basket and orders.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone"`
	City         string    `json:"city"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserStore abstracts user persistence for the auth service.
type UserStore interface {
	CreateUser(ctx context.Context, name, email, passwordHash string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
}

// PGUserStore implements UserStore on a pgx pool.
type PGUserStore struct {
	Pool *pgxpool.Pool
}

const userColumns = `id, name, email, password_hash, phone, city, created_at`

// CreateUser inserts a user row. Duplicate emails surface as a pgconn unique
// violation for the caller to classify.
func (s PGUserStore) CreateUser(ctx context.Context, name, email, passwordHash string) (User, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns, name, email, passwordHash)
	return scanUser(row)
}

// GetUserByEmail loads a user by normalised email.
func (s PGUserStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return user, err
}

// GetUserByID loads a user by id.
func (s PGUserStore) GetUserByID(ctx context.Context, id string) (User, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return user, err
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &u.City, &u.CreatedAt); err != nil {
		return User{}, err
	}
	return u, nil
}
