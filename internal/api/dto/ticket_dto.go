package dto

import (
	"time"

	"github.com/quickdesk/support-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// UpdateTicketRequest payload. Nil fields were absent from the request body.
type UpdateTicketRequest struct {
	Status          *domain.TicketStatus `json:"status"`
	AssignedAgentID *string              `json:"assigned_agent_id"`
}

// AgentRefResponse is the denormalized assignee identity.
type AgentRefResponse struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
}

// TicketResponse carries all stored fields plus the assigned agent, which is
// always present and null when unassigned.
type TicketResponse struct {
	ID              string                `json:"id"`
	CustomerID      string                `json:"customer_id"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	AssignedAgentID *string               `json:"assigned_agent_id"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	AssignedAgent   *AgentRefResponse     `json:"assigned_agent"`
}
