package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/velora-im/velora-chat-api/internal/dto"
	"github.com/velora-im/velora-chat-api/internal/middleware"
	"github.com/velora-im/velora-chat-api/internal/models"
	"github.com/velora-im/velora-chat-api/internal/repository"
	"github.com/velora-im/velora-chat-api/internal/service"
	"github.com/velora-im/velora-chat-api/internal/session"
	"github.com/velora-im/velora-chat-api/internal/utils"
)

// AuthHandler wires registration, login, and session resume endpoints.
type AuthHandler struct {
	auth      service.AuthService
	documents service.DocumentService
	logger    zerolog.Logger
}

// NewAuthHandler creates an auth handler instance.
func NewAuthHandler(auth service.AuthService, documents service.DocumentService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:      auth,
		documents: documents,
		logger:    logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register binds auth routes under the provided router group.
func (h *AuthHandler) Register(router fiber.Router) {
	router.Post("/register", h.register)
	router.Post("/login", h.login)
	router.Get("/resume/:nickname", h.resume)
	router.Post("/register/:id/documents", h.attachDocument)
}

func (h *AuthHandler) register(c *fiber.Ctx) error {
	var payload dto.RegisterRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	registration, err := h.auth.Register(h.requestCtx(c), payload)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return utils.SendError(c, fiber.StatusConflict, "email already registered")
		case errors.Is(err, repository.ErrDuplicateNickname):
			return utils.SendError(c, fiber.StatusConflict, "nickname already taken")
		default:
			var validation validator.ValidationErrors
			if errors.As(err, &validation) {
				return utils.SendError(c, fiber.StatusBadRequest, validation.Error())
			}
			h.logger.Error().Err(err).Msg("registration failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "registration failed")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "registration submitted for review", registration)
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.auth.Login(h.requestCtx(c), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, service.ErrPendingApproval):
			return utils.SendError(c, fiber.StatusForbidden, "registration pending approval")
		case errors.Is(err, service.ErrRejected):
			return utils.SendError(c, fiber.StatusForbidden, "registration rejected")
		default:
			var validation validator.ValidationErrors
			if errors.As(err, &validation) {
				return utils.SendError(c, fiber.StatusBadRequest, validation.Error())
			}
			h.logger.Error().Err(err).Msg("login failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "login failed")
		}
	}

	return utils.SendSuccess(c, "login successful", response)
}

// resume re-validates a locally cached nickname against current account
// status. The cached nickname is a convenience shortcut, never a credential.
func (h *AuthHandler) resume(c *fiber.Ctx) error {
	nickname := c.Params("nickname")

	view, err := session.ValidateResume(h.requestCtx(c), h.auth, nickname, models.UserStatusApproved)
	if err != nil {
		// Unknown nicknames route to login without detail.
		return utils.SendSuccess(c, "session resume", fiber.Map{"view": string(session.ViewLogin)})
	}

	return utils.SendSuccess(c, "session resume", fiber.Map{"view": string(view)})
}

func (h *AuthHandler) attachDocument(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid registration id")
	}

	file, err := c.FormFile("document")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "document file required")
	}

	reader, err := file.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read document")
	}
	defer reader.Close()

	doc, err := h.documents.Attach(h.requestCtx(c), uint(id), file.Filename, reader)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedDocument) {
			return utils.SendError(c, fiber.StatusUnsupportedMediaType, "unsupported document type")
		}
		h.logger.Error().Err(err).Msg("document upload failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "document upload failed")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "document attached", doc)
}

func (h *AuthHandler) requestCtx(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}
