package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tripmate-io/tripmate/internal/db"
	"github.com/tripmate-io/tripmate/internal/repositories"
)

func newTestService(t *testing.T) (*AuthService, repositories.UserRepository) {
	t.Helper()

	database, err := db.New(db.Config{
		Driver:   "sqlite",
		DSN:      ":memory:",
		Logger:   zap.NewNop(),
		LogLevel: gormlogger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })

	m, err := NewJWTManagerGenerated("tripmate")
	require.NoError(t, err)

	users := repositories.NewUserRepository(database)
	return NewAuthService(users, m), users
}

func TestPasswordHashing(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("s3cret")
	req.NoError(err)
	req.True(VerifyPassword("s3cret", hash))
	req.False(VerifyPassword("wrong", hash))
	req.False(VerifyPassword("s3cret", "not-a-hash"))
	req.False(VerifyPassword("s3cret", ""))

	again, err := HashPassword("s3cret")
	req.NoError(err)
	req.NotEqual(hash, again)
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	s, users := newTestService(t)

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	ada := &db.User{Email: "ada@example.com", DisplayName: "Ada", Password: hash, IsActive: true}
	require.NoError(t, users.Create(ctx, ada))

	t.Run("should issue a token resolving back to the user", func(t *testing.T) {
		req := require.New(t)
		tok, err := s.Login(ctx, "ada@example.com", "correct horse")
		req.NoError(err)
		req.NotEmpty(tok.AccessToken)

		user, err := s.ResolveToken(ctx, tok.AccessToken)
		req.NoError(err)
		req.Equal(ada.ID, user.ID)

		stored, err := users.GetByID(ctx, ada.ID)
		req.NoError(err)
		req.NotNil(stored.LastLoginAt)
	})

	t.Run("should not reveal whether the email exists", func(t *testing.T) {
		req := require.New(t)
		_, err := s.Login(ctx, "ada@example.com", "wrong")
		req.ErrorIs(err, ErrInvalidCredentials)
		_, err = s.Login(ctx, "nobody@example.com", "correct horse")
		req.ErrorIs(err, ErrInvalidCredentials)
	})
}

func TestAuthService_ResolveToken(t *testing.T) {
	ctx := context.Background()
	s, users := newTestService(t)

	t.Run("should report a missing token", func(t *testing.T) {
		_, err := s.ResolveToken(ctx, "")
		require.ErrorIs(t, err, ErrTokenMissing)
	})

	t.Run("should report an unknown subject", func(t *testing.T) {
		ghost := &db.User{Email: "ghost@example.com"}
		ghost.ID = uuid.New()
		tok, err := s.IssueToken(ghost)
		require.NoError(t, err)

		_, err = s.ResolveToken(ctx, tok.AccessToken)
		require.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("should treat a disabled account as not found", func(t *testing.T) {
		req := require.New(t)
		u := &db.User{Email: "off@example.com", DisplayName: "Off", IsActive: true}
		req.NoError(users.Create(ctx, u))
		tok, err := s.IssueToken(u)
		req.NoError(err)

		req.NoError(users.SetActive(ctx, u.ID, false))
		_, err = s.ResolveToken(ctx, tok.AccessToken)
		req.ErrorIs(err, ErrUserNotFound)
	})
}
