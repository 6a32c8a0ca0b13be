package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type AuthStore interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	AddUser(ctx context.Context, u *User) error
	UpdateUserProfile(ctx context.Context, id, name, email string) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

type TokenSigner func(uid string, role Role, email string, ttl time.Duration) (string, error)

const minPasswordLen = 6

type AuthService struct {
	store     AuthStore
	now       func() time.Time
	idGen     func() string
	signToken TokenSigner
	tokenTTL  time.Duration
}

type AuthResult struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

type Registration struct {
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	Password     string       `json:"password"`
	Role         Role         `json:"role"`
	Demographics Demographics `json:"demographics,omitempty"`
}

func NewAuthService(store AuthStore, signer TokenSigner, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &AuthService{
		store:     store,
		now:       func() time.Time { return time.Now().UTC() },
		idGen:     uuid.NewString,
		signToken: signer,
		tokenTTL:  ttl,
	}
}

// Register creates a SURVEYOR or PARTICIPANT account. Demographics are kept for participants only.
func (s *AuthService) Register(ctx context.Context, in Registration) (*AuthResult, error) {
	if in.Role != RoleSurveyor && in.Role != RoleParticipant {
		return nil, NewInvalidError("role must be SURVEYOR or PARTICIPANT")
	}
	demographics := in.Demographics
	if in.Role != RoleParticipant {
		demographics = nil
	}
	u, err := s.createUser(ctx, in.Name, in.Email, in.Password, in.Role, demographics)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// CreateAdmin provisions an ADMIN account. It is not reachable over HTTP.
func (s *AuthService) CreateAdmin(ctx context.Context, name, email, password string) (*User, error) {
	return s.createUser(ctx, name, email, password, RoleAdmin, nil)
}

func (s *AuthService) createUser(ctx context.Context, name, email, password string, role Role, d Demographics) (*User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" {
		return nil, NewInvalidError("Name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, NewInvalidError("Invalid email")
	}
	if len(password) < minPasswordLen {
		return nil, NewInvalidError("Minimum 6 characters required")
	}
	existing, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, storeError("Failed to register", err)
	}
	if existing != nil {
		return nil, NewConflictError("Email already in use!")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, NewInternalError("Failed to register", err)
	}
	u := &User{
		ID:           s.idGen(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Demographics: d,
		CreatedAt:    s.now(),
	}
	if err := s.store.AddUser(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return nil, NewConflictError("Email already in use!")
		}
		return nil, storeError("Failed to register", err)
	}
	return u, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, NewInvalidError("email/password required")
	}
	u, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, storeError("Failed to sign in", err)
	}
	if u == nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, NewUnauthorizedError("invalid credentials")
	}
	return s.issue(u)
}

func (s *AuthService) ChangePassword(ctx context.Context, actor Actor, current, next string) error {
	u, err := s.currentUser(ctx, actor)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return NewInvalidError("Incorrect current password")
	}
	if len(next) < minPasswordLen {
		return NewInvalidError("Minimum 6 characters required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return NewInternalError("Failed to change password", err)
	}
	if err := s.store.UpdatePasswordHash(ctx, u.ID, string(hash)); err != nil {
		return storeError("Failed to change password", err)
	}
	return nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, actor Actor, name, email string) (*User, error) {
	u, err := s.currentUser(ctx, actor)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" {
		return nil, NewInvalidError("Name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, NewInvalidError("Invalid email")
	}
	if email != u.Email {
		other, err := s.store.FindUserByEmail(ctx, email)
		if err != nil {
			return nil, storeError("Failed to update profile", err)
		}
		if other != nil {
			return nil, NewConflictError("Email already in use!")
		}
	}
	if err := s.store.UpdateUserProfile(ctx, u.ID, name, email); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return nil, NewConflictError("Email already in use!")
		}
		return nil, storeError("Failed to update profile", err)
	}
	u.Name, u.Email = name, email
	return u, nil
}

func (s *AuthService) Me(ctx context.Context, actor Actor) (*User, error) {
	return s.currentUser(ctx, actor)
}

func (s *AuthService) currentUser(ctx context.Context, actor Actor) (*User, error) {
	if !actor.Authenticated() {
		return nil, NewUnauthorizedError("Unauthorized")
	}
	u, err := s.store.GetUser(ctx, actor.ID)
	if err != nil {
		return nil, storeError("Failed to load profile", err)
	}
	if u == nil {
		return nil, NewUnauthorizedError("Unauthorized")
	}
	return u, nil
}

func (s *AuthService) issue(u *User) (*AuthResult, error) {
	if s.signToken == nil {
		return nil, NewInternalError("token signer not configured", nil)
	}
	token, err := s.signToken(u.ID, u.Role, u.Email, s.tokenTTL)
	if err != nil {
		return nil, NewInternalError("Failed to issue token", err)
	}
	return &AuthResult{Token: token, UserID: u.ID, Role: u.Role}, nil
}

func (s *AuthService) TokenTTL() time.Duration {
	return s.tokenTTL
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
