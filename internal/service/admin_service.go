package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/velora-im/velora-chat-api/internal/dto"
	"github.com/velora-im/velora-chat-api/internal/models"
	"github.com/velora-im/velora-chat-api/internal/observability"
	"github.com/velora-im/velora-chat-api/internal/repository"
)

// ErrRegistrationNotFound indicates the registration record does not exist.
var ErrRegistrationNotFound = errors.New("registration not found")

// AdminService drives the registration review workflow.
type AdminService interface {
	ListRegistrations(ctx context.Context) ([]dto.RegistrationResponse, error)
	Decide(ctx context.Context, id uint, payload dto.RegistrationDecisionRequest, actor string) ([]dto.RegistrationResponse, error)
	AuditTrail(ctx context.Context, limit int) ([]dto.NotificationLogResponse, error)
}

type adminService struct {
	users         repository.UserRepository
	notifications repository.NotificationRepository
	validator     *validator.Validate
	logger        zerolog.Logger
}

// NewAdminService constructs the admin service.
func NewAdminService(users repository.UserRepository, notifications repository.NotificationRepository, validate *validator.Validate, logger zerolog.Logger) AdminService {
	return &adminService{
		users:         users,
		notifications: notifications,
		validator:     validate,
		logger:        logger.With().Str("component", "admin_service").Logger(),
	}
}

func (s *adminService) ListRegistrations(ctx context.Context) ([]dto.RegistrationResponse, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewRegistrationResponseSlice(users), nil
}

// Decide applies a status transition and returns the freshly reloaded list.
// Reversal of a prior decision (approved <-> rejected) is permitted; the
// workflow is deliberately lenient for low-frequency admin use.
func (s *adminService) Decide(ctx context.Context, id uint, payload dto.RegistrationDecisionRequest, actor string) ([]dto.RegistrationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, err
	}

	user, err := s.users.UpdateStatus(ctx, id, payload.Status)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}

	if err := s.notifications.Append(ctx, &models.NotificationLog{
		Type:   models.NotificationTypeChat,
		Target: user.Nickname,
		Body:   fmt.Sprintf("registration %s by %s", payload.Status, actor),
	}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to append decision audit entry")
	}

	observability.RegistrationDecisions().WithLabelValues(payload.Status).Inc()
	s.logger.Info().Str("nickname", user.Nickname).Str("status", payload.Status).Str("actor", actor).Msg("registration decision applied")

	return s.ListRegistrations(ctx)
}

func (s *adminService) AuditTrail(ctx context.Context, limit int) ([]dto.NotificationLogResponse, error) {
	entries, err := s.notifications.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	return dto.NewNotificationLogResponseSlice(entries), nil
}
