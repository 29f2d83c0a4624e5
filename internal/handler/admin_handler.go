package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/velora-im/velora-chat-api/internal/dto"
	"github.com/velora-im/velora-chat-api/internal/middleware"
	"github.com/velora-im/velora-chat-api/internal/service"
	"github.com/velora-im/velora-chat-api/internal/utils"
)

// AdminHandler wires the registration review and broadcast endpoints.
type AdminHandler struct {
	admin     service.AdminService
	broadcast service.BroadcastService
	logger    zerolog.Logger
}

// NewAdminHandler creates an admin handler instance.
func NewAdminHandler(admin service.AdminService, broadcast service.BroadcastService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:     admin,
		broadcast: broadcast,
		logger:    logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register binds admin routes under the provided router group.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Get("/registrations", h.listRegistrations)
	router.Patch("/registrations/:id", h.decide)
	router.Get("/audit", h.auditTrail)
	router.Post("/broadcast/chat", h.broadcastChat)
	router.Post("/broadcast/email", h.queueEmails)
}

func (h *AdminHandler) listRegistrations(c *fiber.Ctx) error {
	registrations, err := h.admin.ListRegistrations(h.requestCtx(c))
	if err != nil {
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}
	return utils.SendSuccess(c, "registration list", registrations)
}

func (h *AdminHandler) decide(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid registration id")
	}

	var payload dto.RegistrationDecisionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	actor, _ := c.Locals("nickname").(string)
	registrations, err := h.admin.Decide(h.requestCtx(c), uint(id), payload, actor)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRegistrationNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "registration not found")
		default:
			var validation validator.ValidationErrors
			if errors.As(err, &validation) {
				return utils.SendError(c, fiber.StatusBadRequest, validation.Error())
			}
			h.logger.Error().Err(err).Msg("registration decision failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "registration decision failed")
		}
	}

	return utils.SendSuccess(c, "registration updated", registrations)
}

func (h *AdminHandler) auditTrail(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	entries, err := h.admin.AuditTrail(h.requestCtx(c), limit)
	if err != nil {
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}
	return utils.SendSuccess(c, "audit trail", entries)
}

func (h *AdminHandler) broadcastChat(c *fiber.Ctx) error {
	var payload dto.BroadcastChatRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.broadcast.BroadcastChat(h.requestCtx(c), payload)
	if err != nil {
		var validation validator.ValidationErrors
		if errors.As(err, &validation) {
			return utils.SendError(c, fiber.StatusBadRequest, validation.Error())
		}
		if len(result.Delivered) > 0 || len(result.Failed) > 0 {
			// Partial fan-out failure: report what happened, never swallow it.
			return utils.SendSuccessWithStatus(c, fiber.StatusMultiStatus, "broadcast partially delivered", result)
		}
		h.logger.Error().Err(err).Msg("broadcast failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "broadcast failed")
	}

	return utils.SendSuccess(c, "broadcast delivered", result)
}

func (h *AdminHandler) queueEmails(c *fiber.Ctx) error {
	var payload dto.BroadcastEmailRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	queued, err := h.broadcast.QueueEmails(h.requestCtx(c), payload)
	if err != nil {
		var validation validator.ValidationErrors
		if errors.As(err, &validation) {
			return utils.SendError(c, fiber.StatusBadRequest, validation.Error())
		}
		if len(queued) > 0 {
			return utils.SendSuccessWithStatus(c, fiber.StatusMultiStatus, "emails partially queued", queued)
		}
		h.logger.Error().Err(err).Msg("email queue failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "email queue failed")
	}

	return utils.SendSuccess(c, "emails queued", queued)
}

func (h *AdminHandler) requestCtx(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}
