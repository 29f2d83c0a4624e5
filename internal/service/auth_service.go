package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/velora-im/velora-chat-api/internal/dto"
	"github.com/velora-im/velora-chat-api/internal/middleware"
	"github.com/velora-im/velora-chat-api/internal/models"
	"github.com/velora-im/velora-chat-api/internal/repository"
)

// Authentication outcomes. ErrInvalidCredentials is deliberately unified: it
// never reveals whether the email or the password was wrong.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPendingApproval    = errors.New("registration pending approval")
	ErrRejected           = errors.New("registration rejected")
)

const sessionTokenTTL = 24 * time.Hour

// AuthService handles registration and login.
type AuthService interface {
	Register(ctx context.Context, payload dto.RegisterRequest) (dto.RegistrationResponse, error)
	Login(ctx context.Context, payload dto.LoginRequest) (dto.LoginResponse, error)
	StatusByNickname(ctx context.Context, nickname string) (string, error)
}

type authService struct {
	repo      repository.UserRepository
	validator *validator.Validate
	jwtSecret string
	logger    zerolog.Logger
}

// NewAuthService constructs the authentication service.
func NewAuthService(repo repository.UserRepository, validate *validator.Validate, jwtSecret string, logger zerolog.Logger) AuthService {
	return &authService{
		repo:      repo,
		validator: validate,
		jwtSecret: jwtSecret,
		logger:    logger.With().Str("component", "auth_service").Logger(),
	}
}

// Register creates a pending registration. Uniqueness collisions surface as
// the distinguishable duplicate-kind errors from the repository.
func (s *authService) Register(ctx context.Context, payload dto.RegisterRequest) (dto.RegistrationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RegistrationResponse{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
	if err != nil {
		return dto.RegistrationResponse{}, err
	}

	user := models.User{
		Nickname:     strings.TrimSpace(payload.Nickname),
		Email:        strings.ToLower(strings.TrimSpace(payload.Email)),
		PasswordHash: string(hash),
		Status:       models.UserStatusPending,
	}

	if err := s.repo.Create(ctx, &user); err != nil {
		return dto.RegistrationResponse{}, err
	}

	s.logger.Info().Str("nickname", user.Nickname).Msg("registration created")

	return dto.NewRegistrationResponse(user), nil
}

// Login authenticates a user. Pending and rejected accounts never reach the
// chat view; their terminal states are reported as distinct errors.
func (s *authService) Login(ctx context.Context, payload dto.LoginRequest) (dto.LoginResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.LoginResponse{}, err
	}

	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(payload.Email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.LoginResponse{}, ErrInvalidCredentials
		}
		return dto.LoginResponse{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.Password)) != nil {
		return dto.LoginResponse{}, ErrInvalidCredentials
	}

	switch user.Status {
	case models.UserStatusApproved:
	case models.UserStatusPending:
		return dto.LoginResponse{}, ErrPendingApproval
	default:
		return dto.LoginResponse{}, ErrRejected
	}

	token, err := middleware.IssueToken(s.jwtSecret, user.Nickname, user.Status, user.IsAdmin, sessionTokenTTL)
	if err != nil {
		return dto.LoginResponse{}, err
	}

	return dto.LoginResponse{
		Nickname: user.Nickname,
		IsAdmin:  user.IsAdmin,
		Token:    token,
	}, nil
}

// StatusByNickname reports the current registration status for a nickname.
// Session resume uses this to re-validate the locally cached nickname instead
// of trusting it as a credential.
func (s *authService) StatusByNickname(ctx context.Context, nickname string) (string, error) {
	user, err := s.repo.GetByNickname(ctx, strings.TrimSpace(nickname))
	if err != nil {
		return "", err
	}
	return user.Status, nil
}
