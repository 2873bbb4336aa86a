package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tubesum/backend/internal/domain"
)

type AgentCardHandler struct {
	card domain.AgentCard
}

func NewAgentCardHandler(card domain.AgentCard) *AgentCardHandler {
	return &AgentCardHandler{card: card}
}

func (h *AgentCardHandler) GetCard(c *fiber.Ctx) error {
	return c.JSON(h.card)
}
