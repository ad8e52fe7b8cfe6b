package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"converse/internal/auth"
	usermodel "converse/internal/model/user"
	"converse/internal/store"
)

var (
	ErrEmailTaken         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotFound           = errors.New("user not found")
)

// Service implements registration, login and the user search backing the
// chat-creation UI.
type Service struct {
	users  *store.UserStore
	tokens *auth.TokenManager
	log    *slog.Logger
}

func NewService(users *store.UserStore, tokens *auth.TokenManager, log *slog.Logger) *Service {
	return &Service{users: users, tokens: tokens, log: log}
}

// Register creates a new account. Emails are normalized to lower case and
// must be unique.
func (s *Service) Register(_ context.Context, name, email, password string) (usermodel.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return usermodel.User{}, fmt.Errorf("hash password: %w", err)
	}

	u := usermodel.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(u); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return usermodel.User{}, ErrEmailTaken
		}
		return usermodel.User{}, fmt.Errorf("store user: %w", err)
	}

	s.log.Info("user registered", "user", u.ID, "email", u.Email)
	return u, nil
}

// Login checks the credentials and issues a bearer token. Unknown emails
// and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(_ context.Context, email, password string) (usermodel.User, string, error) {
	u, err := s.users.GetByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return usermodel.User{}, "", ErrInvalidCredentials
		}
		return usermodel.User{}, "", fmt.Errorf("load user: %w", err)
	}
	if !auth.CheckPassword(password, u.PasswordHash) {
		return usermodel.User{}, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return usermodel.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return u, token, nil
}

// Get returns the user for the given id.
func (s *Service) Get(_ context.Context, id string) (usermodel.User, error) {
	u, err := s.users.GetByID(id)
	if errors.Is(err, store.ErrNotFound) {
		return usermodel.User{}, ErrNotFound
	}
	return u, err
}

// Search matches name or email case-insensitively, excluding the caller.
func (s *Service) Search(_ context.Context, callerID, query string) ([]usermodel.Summary, error) {
	users, err := s.users.Search(query, callerID)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	summaries := make([]usermodel.Summary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, u.Summary())
	}
	return summaries, nil
}
