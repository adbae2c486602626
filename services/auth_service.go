//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/repositories"
	stdErrors "errors"
	"fmt"
	"log/slog"
)

type IAuthService interface {
	Register(username, password string) (Token, error)
	Login(username, password string) (Token, error)
}

type AuthService struct {
	userRepository repositories.IUserRepository
	issuer         *auth.TokenIssuer
	log            *slog.Logger
}

type Token string

func (t Token) String() string {
	return string(t)
}

func NewAuthService(repo repositories.IUserRepository, issuer *auth.TokenIssuer, log *slog.Logger) *AuthService {
	return &AuthService{userRepository: repo, issuer: issuer, log: log}
}

func (s *AuthService) Register(username, password string) (Token, error) {
	// 1. Business rules first, before any expensive hashing
	if err := auth.ValidateRegister(auth.RegisterRequest{Username: username, Password: password}); err != nil {
		return "", err
	}

	// 2. The repository never sees plain passwords
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	// 3. ErrUserAlreadyExists propagates when the username is taken
	if err := s.userRepository.CreateUser(username, hashedPassword); err != nil {
		return "", err
	}
	s.log.Info("User registered", "username", username)

	token, err := s.issuer.Generate(username)
	if err != nil {
		return "", err
	}
	return Token(token), nil
}

func (s *AuthService) Login(username, password string) (Token, error) {
	user, err := s.userRepository.GetUser(username)
	if err != nil {
		if !stdErrors.Is(err, errors.ErrUserNotFound) {
			s.log.Error("User lookup failed", "username", username, "error", err)
		}
		// Same answer for unknown users and wrong passwords
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.issuer.Generate(user.Username)
	if err != nil {
		return "", err
	}
	return Token(token), nil
}
