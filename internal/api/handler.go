package api

import (
	"errors"

	"github.com/asiradnan/SoulSpeak/internal/service"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Handlers struct {
	svc *service.ChatService
	log *zap.Logger
}

func NewHandlers(svc *service.ChatService, log *zap.Logger) *Handlers {
	return &Handlers{svc: svc, log: log}
}

type createChatReq struct {
	ParticipantID string `json:"participantId"`
}

type sendMessageReq struct {
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
}

type markReadReq struct {
	ChatID string `json:"chatId"`
}

func (h *Handlers) createChat(c *fiber.Ctx) error {
	var req createChatReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	userID := c.Locals("user_id").(string)
	conv, created, err := h.svc.CreateOrGetConversation(c.Context(), userID, req.ParticipantID)
	if err != nil {
		return h.fail(c, err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(conv)
}

func (h *Handlers) sendMessage(c *fiber.Ctx) error {
	var req sendMessageReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	userID := c.Locals("user_id").(string)
	conv, err := h.svc.SendMessage(c.Context(), userID, req.ChatID, req.Content)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(conv)
}

func (h *Handlers) getChats(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	convs, err := h.svc.ListForUser(c.Context(), userID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(convs)
}

func (h *Handlers) markRead(c *fiber.Ctx) error {
	var req markReadReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	userID := c.Locals("user_id").(string)
	conv, err := h.svc.MarkMessagesRead(c.Context(), userID, req.ChatID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(conv)
}

// fail maps the service error taxonomy onto HTTP statuses. Forbidden replies
// never include conversation contents, internal errors never include causes.
func (h *Handlers) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errors.Is(err, service.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	default:
		h.log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
