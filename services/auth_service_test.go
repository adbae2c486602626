package services_test

import (
	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/repositories"
	"chat-relay/services"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	issuer := auth.NewTokenIssuer("secret", 24*time.Hour)
	svc := services.NewAuthService(mockRepo, issuer, logs.GetLoggerFromLevel(slog.LevelDebug))

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)

		// Expect CreateUser to be called with a hashed password, not the plain one
		mockRepo.EXPECT().
			CreateUser("alice", gomock.Not("password1")).
			Return(nil).
			Times(1)

		token, err := svc.Register("alice", "password1")

		req.NoError(err)
		claims, err := issuer.Validate(token.String())
		req.NoError(err)
		req.Equal("alice", claims.Username)
	})

	t.Run("should fail when password rules are not met", func(t *testing.T) {
		req := require.New(t)

		// Repository should never be called
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Times(0)

		token, err := svc.Register("alice", "short")

		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(token)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			CreateUser("alice", gomock.Any()).
			Return(errors.ErrUserAlreadyExists).
			Times(1)

		_, err := svc.Register("alice", "password1")

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	issuer := auth.NewTokenIssuer("secret", 24*time.Hour)
	svc := services.NewAuthService(mockRepo, issuer, logs.GetLoggerFromLevel(slog.LevelDebug))

	hashedPassword, err := auth.HashPassword("password1")
	require.NoError(t, err)
	storedUser := repositories.User{Username: "alice", PasswordHash: hashedPassword}

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().GetUser("alice").Return(storedUser, nil).Times(1)

		token, err := svc.Login("alice", "password1")

		req.NoError(err)
		claims, err := issuer.Validate(string(token))
		req.NoError(err)
		req.Equal("alice", claims.Username)
	})

	t.Run("should return invalid credentials when password does not match", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().GetUser("alice").Return(storedUser, nil).Times(1)

		_, err := svc.Login("alice", "password2")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials when user is not found", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().GetUser("ghost").Return(repositories.User{}, errors.ErrUserNotFound).Times(1)

		_, err := svc.Login("ghost", "password1")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should hide storage failures behind invalid credentials", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().GetUser("alice").Return(repositories.User{}, fmt.Errorf("io error")).Times(1)

		_, err := svc.Login("alice", "password1")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}
