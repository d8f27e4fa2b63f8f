package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sprintdesk/apiserver/internal/store"
	"github.com/sprintdesk/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepo is the persistence surface the auth and user services need.
type UserRepo interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context, offset, limit int) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateProfile(ctx context.Context, id int, patch types.UserPatch) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// dummyHash is a bcrypt hash of a throwaway string. Authenticate
// compares against it when the username does not exist so lookup
// misses cost the same as password mismatches.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// TokenClaims is the JWT payload carried by access tokens.
type TokenClaims struct {
	UserID int `json:"user_id"`
	jwt.RegisteredClaims
}

// AuthService covers registration, credential checks, and token
// issuance/verification.
type AuthService struct {
	users    UserRepo
	secret   []byte
	tokenTTL time.Duration
}

func NewAuthService(users UserRepo, secret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		users:    users,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}
}

// RegisterInput is the payload for creating an account. Role is not
// part of it: every registration produces a regular user.
type RegisterInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

func (in RegisterInput) validate() error {
	if strings.TrimSpace(in.Username) == "" {
		return invalidf("username is required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return invalidf("email is required")
	}
	if !strings.Contains(in.Email, "@") {
		return invalidf("email is not valid")
	}
	if len(in.Password) < 8 {
		return invalidf("password must be at least 8 characters")
	}
	return nil
}

// Register creates a new account with a bcrypt-hashed password.
// Duplicate usernames and emails surface as store.ErrConflict.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	if err := in.validate(); err != nil {
		return types.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, fmt.Errorf("hashing password: %w", err)
	}

	user := types.User{
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.TrimSpace(in.Email),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		Role:         types.RoleUser,
		PasswordHash: string(hash),
	}
	return s.users.Create(ctx, user)
}

// Authenticate verifies a username/password pair. Every failure path
// returns ErrInvalidCredentials and runs one bcrypt comparison.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// IssueToken signs a short-lived HS256 access token for the user.
func (s *AuthService) IssueToken(user types.User) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ParseToken validates a signed token and returns the user ID it was
// issued for. Expired, malformed, or foreign-signed tokens all fail.
func (s *AuthService) ParseToken(tokenString string) (int, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil {
		return 0, err
	}
	claims, ok := token.Claims.(*TokenClaims)
	if !ok || claims.UserID == 0 {
		return 0, errors.New("token carries no user")
	}
	return claims.UserID, nil
}

// UserByID loads the account behind a validated token. A deleted
// account invalidates its outstanding tokens.
func (s *AuthService) UserByID(ctx context.Context, id int) (types.User, error) {
	return s.users.GetByID(ctx, id)
}
