package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/velora-im/velora-chat-api/internal/dto"
	"github.com/velora-im/velora-chat-api/internal/service"
	"github.com/velora-im/velora-chat-api/internal/utils"
)

// EmbedHandler serves the widget bootstrap endpoint used by host pages.
type EmbedHandler struct {
	embed  service.EmbedService
	logger zerolog.Logger
}

// NewEmbedHandler creates an embed handler instance.
func NewEmbedHandler(embed service.EmbedService, logger zerolog.Logger) *EmbedHandler {
	return &EmbedHandler{
		embed:  embed,
		logger: logger.With().Str("component", "embed_handler").Logger(),
	}
}

// Register binds the embed routes under the provided router group.
func (h *EmbedHandler) Register(router fiber.Router) {
	router.Post("/bootstrap", h.bootstrap)
}

func (h *EmbedHandler) bootstrap(c *fiber.Ctx) error {
	var payload dto.EmbedBootstrapRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	embedded := c.QueryBool("embedded", false)
	persistedNickname := c.Query("nickname")

	response, err := h.embed.Bootstrap(payload, embedded, persistedNickname)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	return utils.SendSuccess(c, "widget bootstrap", response)
}
