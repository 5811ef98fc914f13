package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quickdesk/support-service/internal/domain"
	"github.com/quickdesk/support-service/internal/events"
	"github.com/quickdesk/support-service/internal/repository"
	apperrors "github.com/quickdesk/support-service/pkg/util"
)

// TicketService applies the access and assignment rules on every ticket
// read and write. Callers arrive as explicit values; there is no ambient
// session state at this layer.
type TicketService struct {
	tickets    repository.TicketRepository
	profiles   repository.ProfileRepository
	dispatcher events.Dispatcher
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	ProfileRepo repository.ProfileRepository
	Dispatcher  events.Dispatcher
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
}

// TicketUpdateInput carries the agent-editable fields. Nil means the field
// was absent from the request.
type TicketUpdateInput struct {
	Status          *domain.TicketStatus
	AssignedAgentID *string
}

// EnrichedTicket is a ticket with the assignee's display identity attached.
type EnrichedTicket struct {
	domain.Ticket
	AssignedAgent *domain.AgentRef
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		profiles:   deps.ProfileRepo,
		dispatcher: deps.Dispatcher,
	}
}

// List returns tickets visible to the caller, newest first. Customers see
// only their own tickets; agents see everything.
func (s *TicketService) List(ctx context.Context, caller domain.Caller) ([]EnrichedTicket, error) {
	filter := repository.TicketFilter{}
	if !caller.IsAgent() {
		customerID := caller.ID
		filter.CustomerID = &customerID
	}

	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	return s.enrichAll(ctx, tickets)
}

// Get fetches a single ticket. Customers may only read their own tickets;
// agents may read any ticket regardless of assignment.
func (s *TicketService) Get(ctx context.Context, caller domain.Caller, ticketID string) (*EnrichedTicket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket")
		}
		return nil, apperrors.NewStoreError(err)
	}

	if !caller.IsAgent() && ticket.CustomerID != caller.ID {
		return nil, apperrors.NewForbidden("forbidden")
	}

	return s.enrichOne(ctx, ticket)
}

// Create inserts a new ticket for the calling customer. Agents cannot file
// tickets.
func (s *TicketService) Create(ctx context.Context, caller domain.Caller, input TicketCreateInput) (*domain.Ticket, error) {
	if caller.Role != domain.RoleCustomer {
		return nil, apperrors.NewForbidden("only customers can create tickets")
	}

	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewBadRequest("title and description are required")
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !domain.ValidPriority(priority) {
		return nil, apperrors.NewBadRequest("invalid priority")
	}

	ticket := &domain.Ticket{
		CustomerID:  caller.ID,
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.NewStoreError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.Actor{ID: caller.ID, Role: caller.Role},
		Payload: events.TicketCreatedPayload{
			CustomerID: ticket.CustomerID,
			Priority:   ticket.Priority,
			Title:      ticket.Title,
		},
	})
	return ticket, nil
}

// Update applies a partial update as a single store call. Only agents may
// update, including the ticket's own customer being refused. Any agent may
// assign or reassign any ticket to any agent id; the last write wins and the
// assignee id is accepted without an existence check.
func (s *TicketService) Update(ctx context.Context, caller domain.Caller, ticketID string, input TicketUpdateInput) (*EnrichedTicket, error) {
	if !caller.IsAgent() {
		return nil, apperrors.NewForbidden("only support agents can update tickets")
	}

	patch := repository.TicketPatch{
		Status:          input.Status,
		AssignedAgentID: input.AssignedAgentID,
	}
	if patch.IsEmpty() {
		return nil, apperrors.NewBadRequest("status or assigned_agent_id required")
	}
	if patch.Status != nil && !domain.ValidStatus(*patch.Status) {
		return nil, apperrors.NewBadRequest("invalid status")
	}

	ticket, err := s.tickets.UpdateFields(ctx, ticketID, patch)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}

	if patch.Status != nil {
		s.publish(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticket.ID,
			Actor:    events.Actor{ID: caller.ID, Role: caller.Role},
			Payload:  events.TicketStatusChangedPayload{NewStatus: ticket.Status},
		})
	}
	if patch.AssignedAgentID != nil {
		s.publish(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: ticket.ID,
			Actor:    events.Actor{ID: caller.ID, Role: caller.Role},
			Payload:  events.TicketAssignedPayload{AgentID: *patch.AssignedAgentID},
		})
	}

	return s.enrichOne(ctx, ticket)
}

// enrichAll attaches assignee identities across a listing with one batched
// profile lookup.
func (s *TicketService) enrichAll(ctx context.Context, tickets []domain.Ticket) ([]EnrichedTicket, error) {
	seen := map[string]struct{}{}
	var agentIDs []string
	for i := range tickets {
		if tickets[i].AssignedAgentID == nil {
			continue
		}
		id := *tickets[i].AssignedAgentID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		agentIDs = append(agentIDs, id)
	}

	agents := map[string]domain.AgentRef{}
	if len(agentIDs) > 0 {
		profiles, err := s.profiles.ListByIDs(ctx, agentIDs)
		if err != nil {
			return nil, apperrors.NewStoreError(err)
		}
		for _, profile := range profiles {
			agents[profile.ID] = domain.AgentRef{ID: profile.ID, FullName: profile.FullName}
		}
	}

	result := make([]EnrichedTicket, 0, len(tickets))
	for _, ticket := range tickets {
		enriched := EnrichedTicket{Ticket: ticket}
		if ticket.AssignedAgentID != nil {
			if ref, ok := agents[*ticket.AssignedAgentID]; ok {
				agent := ref
				enriched.AssignedAgent = &agent
			}
		}
		result = append(result, enriched)
	}
	return result, nil
}

// enrichOne attaches the assignee identity with a single profile lookup. An
// assignee id without a profile row yields a null agent, not an error.
func (s *TicketService) enrichOne(ctx context.Context, ticket *domain.Ticket) (*EnrichedTicket, error) {
	enriched := &EnrichedTicket{Ticket: *ticket}
	if ticket.AssignedAgentID == nil {
		return enriched, nil
	}

	profile, err := s.profiles.GetByID(ctx, *ticket.AssignedAgentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return enriched, nil
		}
		return nil, apperrors.NewStoreError(err)
	}
	enriched.AssignedAgent = &domain.AgentRef{ID: profile.ID, FullName: profile.FullName}
	return enriched, nil
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
