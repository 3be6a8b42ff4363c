package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"protonmc/internal/auth"
	"protonmc/internal/model"
	"protonmc/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("incorrect username and password")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidUsername    = errors.New("username must be 3-32 characters without spaces")
	ErrInvalidLevel       = errors.New("permission level must be between 0 and 5")
	ErrPasswordRequired   = errors.New("password is required")
)

// DefaultAdminUser is created by setup when the users table is empty.
const DefaultAdminUser = "admin"

// LoginResult is returned after a successful login.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthService authenticates panel users and manages their accounts.
type AuthService interface {
	// Login verifies the credentials and issues a token.
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	// Authenticate resolves a bearer token to its user.
	Authenticate(ctx context.Context, token string) (*model.User, error)
	// Logout revokes the token.
	Logout(ctx context.Context, token string) error

	CreateUser(ctx context.Context, username, password string, level int) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	DeleteUser(ctx context.Context, username string) error
	SetPassword(ctx context.Context, username, password string) error
	SetPermissions(ctx context.Context, username string, level int) error
	// EnsureAdmin creates the default administrator when no users exist.
	// It reports whether a user was created.
	EnsureAdmin(ctx context.Context, password string) (bool, error)
}

type authService struct {
	users  repository.UserRepository
	tokens *auth.TokenManager
	now    func() time.Time
}

// NewAuthService constructs an AuthService. tokens may be nil for CLI use,
// in which case Login, Authenticate and Logout fail.
func NewAuthService(users repository.UserRepository, tokens *auth.TokenManager) AuthService {
	return &authService{users: users, tokens: tokens, now: time.Now}
}

var errNoTokens = errors.New("token manager not configured")

func (s *authService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if s.tokens == nil {
		return nil, errNoTokens
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	ok, err := auth.VerifyPassword(password, u.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	token, exp, err := s.tokens.Issue(u.Username)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &LoginResult{Token: token, ExpiresAt: exp}, nil
}

func (s *authService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if s.tokens == nil {
		return nil, errNoTokens
	}
	if token == "" {
		return nil, auth.ErrMissingToken
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	u, err := s.users.FindByUsername(ctx, claims.User)
	if err != nil {
		if isNoRows(err) {
			// the account was deleted after the token was issued
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}
	return u, nil
}

func (s *authService) Logout(_ context.Context, token string) error {
	if s.tokens == nil {
		return errNoTokens
	}
	if token == "" {
		return auth.ErrMissingToken
	}
	return s.tokens.Revoke(token)
}

func validUsername(name string) bool {
	if len(name) < 3 || len(name) > 32 {
		return false
	}
	return !strings.ContainsAny(name, " \t\r\n/\\")
}

func (s *authService) CreateUser(ctx context.Context, username, password string, level int) (*model.User, error) {
	username = strings.TrimSpace(username)
	if !validUsername(username) {
		return nil, ErrInvalidUsername
	}
	if level < 0 || level > auth.MaxLevel {
		return nil, ErrInvalidLevel
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return nil, ErrUserExists
	} else if !isNoRows(err) {
		return nil, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{
		Username:     username,
		PasswordHash: hash,
		Permissions:  level,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *authService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

func (s *authService) DeleteUser(ctx context.Context, username string) error {
	if _, err := s.users.FindByUsername(ctx, username); err != nil {
		if isNoRows(err) {
			return ErrUserNotFound
		}
		return err
	}
	return s.users.Delete(ctx, username)
}

func (s *authService) SetPassword(ctx context.Context, username, password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, username, hash); err != nil {
		if isNoRows(err) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

func (s *authService) SetPermissions(ctx context.Context, username string, level int) error {
	if level < 0 || level > auth.MaxLevel {
		return ErrInvalidLevel
	}
	if err := s.users.UpdatePermissions(ctx, username, level); err != nil {
		if isNoRows(err) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

func (s *authService) EnsureAdmin(ctx context.Context, password string) (bool, error) {
	n, err := s.users.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.CreateUser(ctx, DefaultAdminUser, password, auth.MaxLevel); err != nil {
		return false, err
	}
	return true, nil
}
