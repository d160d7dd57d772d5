package auth

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ismail-jr/studymate-backend/internal/model/user"
	"github.com/ismail-jr/studymate-backend/internal/store"
)

// Service issues and resolves bearer tokens for email/password accounts.
// Tokens live in memory; restarting the process signs everyone out.
type Service struct {
	users    *store.UserStore
	tokenTTL time.Duration
	now      func() time.Time

	mu     sync.RWMutex
	tokens map[string]tokenEntry
}

type tokenEntry struct {
	userID    string
	expiresAt time.Time
}

// NewService builds the auth service.
func NewService(users *store.UserStore, tokenTTL time.Duration) *Service {
	return &Service{
		users:    users,
		tokenTTL: tokenTTL,
		now:      time.Now,
		tokens:   make(map[string]tokenEntry),
	}
}

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, name, email, password string) (user.User, string, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" || email == "" || !strings.Contains(email, "@") {
		return user.User{}, "", authErr(KindInvalidInput, errors.New("name and a valid email are required"))
	}
	if len(password) < 6 {
		return user.User{}, "", authErr(KindInvalidInput, errors.New("password must be at least 6 characters"))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, "", authErr(KindInternal, err)
	}

	u, err := s.users.Create(ctx, name, email, string(hash))
	if errors.Is(err, store.ErrEmailTaken) {
		return user.User{}, "", authErr(KindEmailTaken, err)
	}
	if err != nil {
		return user.User{}, "", authErr(KindInternal, err)
	}

	token := s.issueToken(u.ID)
	log.Printf("[auth] registered user=%s", u.ID)
	return u, token, nil
}

// Login checks credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (user.User, string, error) {
	rec, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrUserNotFound) {
		return user.User{}, "", authErr(KindInvalidCredentials, err)
	}
	if err != nil {
		return user.User{}, "", authErr(KindInternal, err)
	}

	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)) != nil {
		return user.User{}, "", authErr(KindInvalidCredentials, errors.New("password mismatch"))
	}

	token := s.issueToken(rec.ID)
	log.Printf("[auth] login user=%s", rec.ID)
	return rec.User, token, nil
}

// Logout revokes a token and returns the user it belonged to, so callers can
// tear down the chat session behind it. Revoking an unknown token is a no-op.
func (s *Service) Logout(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tokens[token]
	if !ok {
		return "", false
	}
	delete(s.tokens, token)
	return entry.userID, true
}

// Resolve maps a bearer token to its user id.
func (s *Service) Resolve(ctx context.Context, token string) (user.User, error) {
	s.mu.RLock()
	entry, ok := s.tokens[token]
	s.mu.RUnlock()

	if !ok {
		return user.User{}, authErr(KindTokenInvalid, nil)
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.tokens, token)
		s.mu.Unlock()
		return user.User{}, authErr(KindTokenExpired, nil)
	}

	u, err := s.users.FindByID(ctx, entry.userID)
	if errors.Is(err, store.ErrUserNotFound) {
		return user.User{}, authErr(KindTokenInvalid, err)
	}
	if err != nil {
		return user.User{}, authErr(KindInternal, err)
	}
	return u, nil
}

func (s *Service) issueToken(userID string) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = tokenEntry{userID: userID, expiresAt: s.now().Add(s.tokenTTL)}
	s.mu.Unlock()
	return token
}
