package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ezelpc/aurontek-routing/internal/domain"
	"github.com/ezelpc/aurontek-routing/internal/service"
	apperrors "github.com/ezelpc/aurontek-routing/pkg/util"
)

// RoutingHandler exposes the manual classification and assignment endpoints
// used by operators and by the admin frontend. Neither endpoint writes to
// the peer services; the broker pipeline owns persistence.
type RoutingHandler struct {
	routing *service.RoutingService
}

// NewRoutingHandler returns a new handler instance.
func NewRoutingHandler(routing *service.RoutingService) *RoutingHandler {
	return &RoutingHandler{routing: routing}
}

// Classify classifies the posted ticket payload against the catalog.
func (h *RoutingHandler) Classify(c *fiber.Ctx) error {
	var ticket domain.Ticket
	if err := c.BodyParser(&ticket); err != nil {
		return apperrors.NewValidationError("invalid ticket payload", nil)
	}

	rec, hit := h.routing.ClassifyTicket(&ticket)
	return c.JSON(fiber.Map{
		"success":        true,
		"catalogHit":     hit,
		"classification": rec,
	})
}

// Assign returns the best-fit agent for the posted ticket payload without
// persisting the assignment.
func (h *RoutingHandler) Assign(c *fiber.Ctx) error {
	var ticket domain.Ticket
	if err := c.BodyParser(&ticket); err != nil {
		return apperrors.NewValidationError("invalid ticket payload", nil)
	}

	selection, err := h.routing.SuggestAgent(c.UserContext(), &ticket)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"agent": fiber.Map{
			"id":     selection.Agent.ID(),
			"nombre": selection.Agent.Nombre,
		},
		"score":        selection.Score,
		"metrics":      selection.Metrics,
		"usedFallback": selection.UsedFallback,
		"evaluated":    selection.Evaluated,
	})
}
