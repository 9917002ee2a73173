package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/storage"

	"github.com/google/uuid"
)

const (
	minNameLength     = 2
	minPasswordLength = 6
)

var (
	ErrNameTooShort     = core.Invalid(fmt.Sprintf("Name must be at least %d characters", minNameLength))
	ErrInvalidEmail     = core.Invalid("Invalid email")
	ErrPasswordTooShort = core.Invalid(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	ErrMissingPassword  = core.Invalid("Email and password are required")
	ErrSubjectNotFound  = core.Unauthorized("User not found")
)

type SignupInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate applies the signup rules and normalizes the input in place.
func (in *SignupInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = core.NormalizeEmail(in.Email)

	if utf8.RuneCountInString(in.Name) < minNameLength {
		return ErrNameTooShort
	}
	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Address != in.Email || !strings.Contains(in.Email, "@") {
		return ErrInvalidEmail
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// Session is returned by signup and login.
type Session struct {
	Token string     `json:"token"`
	User  *core.User `json:"user"`
}

type AuthService struct {
	users  storage.UserRepository
	hasher *auth.Hasher
	tokens *auth.Tokens
	now    func() time.Time
}

func NewAuthService(users storage.UserRepository, hasher *auth.Hasher, tokens *auth.Tokens) *AuthService {
	return &AuthService{users: users, hasher: hasher, tokens: tokens, now: time.Now}
}

// Register creates an account with the given initial categories without
// issuing a token. Used by signup and the command line tools.
func (s *AuthService) Register(ctx context.Context, in SignupInput, categories []string) (*core.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	u := &core.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Categories:   append([]string{}, categories...),
		Budgets:      []core.Budget{},
		Alerts:       []core.Alert{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	u.PasswordHash = ""
	return u, nil
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	u, err := s.Register(ctx, in, nil)
	if err != nil {
		return nil, err
	}
	return s.session(u)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrMissingPassword
	}
	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return nil, auth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := s.hasher.Check(u.PasswordHash, password); err != nil {
		return nil, err
	}

	full, err := s.users.GetUserByID(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	full.PasswordHash = ""
	return s.session(full)
}

// Authenticate resolves a bearer token to its user, without the password hash.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*core.User, error) {
	id, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetUserByID(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrSubjectNotFound
	}
	if err != nil {
		return nil, err
	}
	u.PasswordHash = ""
	return u, nil
}

// Me reloads the current user so that lists changed during the request are
// reflected.
func (s *AuthService) Me(ctx context.Context, userID string) (*core.User, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = ""
	return u, nil
}

func (s *AuthService) session(u *core.User) (*Session, error) {
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: u}, nil
}
