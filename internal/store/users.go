package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ismail-jr/studymate-backend/internal/model/user"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// UserStore persists accounts.
type UserStore struct {
	db *DB
}

// NewUserStore wires a user store onto an opened database.
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

// Create inserts a new account and returns it with the assigned id.
func (s *UserStore) Create(ctx context.Context, name, email, passwordHash string) (user.User, error) {
	u := user.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     strings.ToLower(email),
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, passwordHash, u.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return user.User{}, ErrEmailTaken
		}
		return user.User{}, storeErr("create user", err)
	}

	return u, nil
}

// FindByEmail returns the full record, including the password hash, for
// credential checks.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (user.Record, error) {
	var rec user.Record
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?`,
		strings.ToLower(email)).
		Scan(&rec.ID, &rec.Name, &rec.Email, &rec.PasswordHash, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return user.Record{}, ErrUserNotFound
	}
	if err != nil {
		return user.Record{}, storeErr("find user by email", err)
	}
	return rec, nil
}

// FindByID returns the public account data.
func (s *UserStore) FindByID(ctx context.Context, id string) (user.User, error) {
	var u user.User
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, ErrUserNotFound
	}
	if err != nil {
		return user.User{}, storeErr("find user by id", err)
	}
	return u, nil
}
