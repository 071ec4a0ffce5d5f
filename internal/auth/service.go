// Package auth issues and verifies access tokens and resolves them to users.
// WebSocket handshakes and the REST middleware both go through
// AuthService.ResolveToken so the failure taxonomy (missing, expired,
// invalid, unknown user) is identical on every surface.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tripmate-io/tripmate/internal/db"
	"github.com/tripmate-io/tripmate/internal/repositories"
)

// Token is an issued access token.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// AuthService is the entry point for all authentication operations.
type AuthService struct {
	users      repositories.UserRepository
	jwtManager *JWTManager
}

// NewAuthService creates an AuthService.
func NewAuthService(users repositories.UserRepository, jwtManager *JWTManager) *AuthService {
	return &AuthService{users: users, jwtManager: jwtManager}
}

// Login authenticates a user via email and password and issues an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Token, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// Same error as a wrong password to avoid user enumeration.
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: fetching user by email: %w", err)
	}

	if !VerifyPassword(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}

	// Best effort: a failed stamp must not fail the login.
	_ = s.users.UpdateLastLogin(ctx, user.ID, time.Now().UTC())

	return token, nil
}

// IssueToken signs an access token for user without checking credentials.
// Used after Login and by the CLI token command.
func (s *AuthService) IssueToken(user *db.User) (*Token, error) {
	raw, expiresAt, err := s.jwtManager.GenerateAccessToken(user.ID.String(), user.Email)
	if err != nil {
		return nil, err
	}
	return &Token{AccessToken: raw, ExpiresAt: expiresAt}, nil
}

// ResolveToken verifies raw and loads the user it names.
//
// Errors: ErrTokenMissing, ErrTokenExpired, ErrTokenInvalid, ErrUserNotFound
// (also returned for disabled accounts, which must not connect), or a wrapped
// repository error.
func (s *AuthService) ResolveToken(ctx context.Context, raw string) (*db.User, error) {
	claims, err := s.jwtManager.ValidateAccessToken(raw)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("auth: fetching token subject: %w", err)
	}
	if !user.IsActive {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ValidateAccessToken parses and verifies a JWT access token without a
// database lookup.
func (s *AuthService) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.jwtManager.ValidateAccessToken(tokenString)
}

// JWTManager exposes the underlying JWTManager.
func (s *AuthService) JWTManager() *JWTManager {
	return s.jwtManager
}
