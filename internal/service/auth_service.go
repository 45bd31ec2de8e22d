package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"clearfocus/internal/auth"
	"clearfocus/internal/model"
	"clearfocus/internal/repository"
)

const (
	minPasswordLen = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72
)

// Session is what signup and login hand back to the client.
type Session struct {
	Token  string `json:"token"`
	UserID uint   `json:"user_id"`
}

type AuthService struct {
	users  *repository.UserRepository
	tokens *auth.Tokens
	log    *zap.Logger
}

func NewAuthService(users *repository.UserRepository, tokens *auth.Tokens, log *zap.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, log: log.Named("auth")}
}

func (s *AuthService) Signup(ctx context.Context, email, password string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}
	if len(password) < minPasswordLen {
		return Session{}, invalidf("password must be at least %d characters", minPasswordLen)
	}
	if len(password) > maxPasswordBytes {
		return Session{}, invalidf("password must be at most %d bytes", maxPasswordBytes)
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return Session{}, invalidf("email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, fmt.Errorf("find user: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return Session{}, err
	}
	user, err := s.users.CreateWithEmail(ctx, email, hash)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return Session{}, invalidf("email already registered")
	}
	if err != nil {
		return Session{}, err
	}
	s.log.Info("user signed up", zap.Uint("user_id", user.ID))
	return s.session(user.ID)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, ErrUnauthorized
	}
	if err != nil {
		return Session{}, fmt.Errorf("find user: %w", err)
	}
	if user.PasswordHash == "" {
		return Session{}, ErrUnauthorized
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return Session{}, ErrUnauthorized
		}
		return Session{}, fmt.Errorf("check password: %w", err)
	}
	return s.session(user.ID)
}

// Me loads the account behind a verified token.
func (s *AuthService) Me(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

func (s *AuthService) session(userID uint) (Session, error) {
	token, err := s.tokens.Issue(userID)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, UserID: userID}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", invalidf("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalidf("email %q is not valid", raw)
	}
	return email, nil
}
