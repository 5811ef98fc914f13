package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/quickdesk/support-service/internal/api/dto"
	"github.com/quickdesk/support-service/internal/auth"
	"github.com/quickdesk/support-service/internal/domain"
	"github.com/quickdesk/support-service/internal/service"
	apperrors "github.com/quickdesk/support-service/pkg/util"
)

// TicketsHandler manages ticket endpoints for both roles; the service layer
// applies the per-role access rules.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	tickets, err := h.service.List(c.UserContext(), principal.Caller())
	if err != nil {
		return err
	}

	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, enrichedTicketResponse(&tickets[i]))
	}
	return c.JSON(items)
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	ticket, err := h.service.Get(c.UserContext(), principal.Caller(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(enrichedTicketResponse(ticket))
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}

	input := service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	}
	ticket, err := h.service.Create(c.UserContext(), principal.Caller(), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(ticketResponse(ticket, nil))
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}

	input := service.TicketUpdateInput{
		Status:          req.Status,
		AssignedAgentID: req.AssignedAgentID,
	}
	ticket, err := h.service.Update(c.UserContext(), principal.Caller(), c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(enrichedTicketResponse(ticket))
}

func enrichedTicketResponse(ticket *service.EnrichedTicket) dto.TicketResponse {
	var agent *dto.AgentRefResponse
	if ticket.AssignedAgent != nil {
		agent = &dto.AgentRefResponse{
			ID:       ticket.AssignedAgent.ID,
			FullName: ticket.AssignedAgent.FullName,
		}
	}
	return ticketResponse(&ticket.Ticket, agent)
}

func ticketResponse(ticket *domain.Ticket, agent *dto.AgentRefResponse) dto.TicketResponse {
	return dto.TicketResponse{
		ID:              ticket.ID,
		CustomerID:      ticket.CustomerID,
		Title:           ticket.Title,
		Description:     ticket.Description,
		Status:          ticket.Status,
		Priority:        ticket.Priority,
		AssignedAgentID: ticket.AssignedAgentID,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
		AssignedAgent:   agent,
	}
}
