package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
)

// ValidStatus reports whether s is one of the known states. All states are
// mutually reachable; there is no transition graph.
func ValidStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved:
		return true
	}
	return false
}

// TicketPriority enumerates urgency, fixed at creation.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// ValidPriority reports whether p is one of the known priorities.
func ValidPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// Ticket is the aggregate for customer support requests.
type Ticket struct {
	ID              string
	CustomerID      string
	Title           string
	Description     string
	Status          TicketStatus
	Priority        TicketPriority
	AssignedAgentID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AgentRef is the denormalized assignee view attached to API responses.
type AgentRef struct {
	ID       string
	FullName string
}
