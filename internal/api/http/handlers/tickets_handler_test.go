package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	httptransport "github.com/quickdesk/support-service/internal/api/http"
	"github.com/quickdesk/support-service/internal/api/http/handlers"
	"github.com/quickdesk/support-service/internal/auth"
	"github.com/quickdesk/support-service/internal/domain"
	"github.com/quickdesk/support-service/internal/observability"
	"github.com/quickdesk/support-service/internal/repository"
	"github.com/quickdesk/support-service/internal/service"
)

type memTicketRepo struct {
	seq     int
	base    time.Time
	tickets map[string]domain.Ticket
}

func (m *memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	m.seq++
	ticket.ID = fmt.Sprintf("ticket-%d", m.seq)
	ticket.CreatedAt = m.base.Add(time.Duration(m.seq) * time.Minute)
	ticket.UpdatedAt = ticket.CreatedAt
	m.tickets[ticket.ID] = *ticket
	return nil
}

func (m *memTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := m.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (m *memTicketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for _, ticket := range m.tickets {
		if filter.CustomerID != nil && ticket.CustomerID != *filter.CustomerID {
			continue
		}
		result = append(result, ticket)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *memTicketRepo) UpdateFields(_ context.Context, id string, patch repository.TicketPatch) (*domain.Ticket, error) {
	ticket, ok := m.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if patch.Status != nil {
		ticket.Status = *patch.Status
	}
	if patch.AssignedAgentID != nil {
		agentID := *patch.AssignedAgentID
		ticket.AssignedAgentID = &agentID
	}
	ticket.UpdatedAt = ticket.UpdatedAt.Add(time.Minute)
	m.tickets[id] = ticket
	return &ticket, nil
}

type memProfileRepo struct {
	seq      int
	profiles map[string]domain.Profile
}

func (m *memProfileRepo) Create(_ context.Context, profile *domain.Profile) error {
	m.seq++
	profile.ID = fmt.Sprintf("profile-%d", m.seq)
	m.profiles[profile.ID] = *profile
	return nil
}

func (m *memProfileRepo) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	profile, ok := m.profiles[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &profile, nil
}

func (m *memProfileRepo) GetByEmail(_ context.Context, email string) (*domain.Profile, error) {
	for _, profile := range m.profiles {
		if profile.Email == email {
			p := profile
			return &p, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memProfileRepo) ListByIDs(_ context.Context, ids []string) ([]domain.Profile, error) {
	var result []domain.Profile
	for _, id := range ids {
		if profile, ok := m.profiles[id]; ok {
			result = append(result, profile)
		}
	}
	return result, nil
}

type testEnv struct {
	app      *fiber.App
	tokens   *auth.TokenManager
	profiles *memProfileRepo
	tickets  *memTicketRepo
	metrics  *observability.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tickets := &memTicketRepo{
		base:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		tickets: make(map[string]domain.Ticket),
	}
	profiles := &memProfileRepo{profiles: make(map[string]domain.Profile)}

	tokens := auth.NewTokenManager("test-secret", 5)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  tickets,
		ProfileRepo: profiles,
	})

	app := fiber.New()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	httptransport.RegisterMiddlewares(app, logger, metrics, time.Second)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler("test", "dev", nil, nil),
		Auth:           handlers.NewAuthHandler(nil),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, profiles),
	})

	return &testEnv{app: app, tokens: tokens, profiles: profiles, tickets: tickets, metrics: metrics}
}

func (e *testEnv) addProfile(t *testing.T, fullName string, role domain.Role) (domain.Caller, string) {
	t.Helper()
	profile := &domain.Profile{FullName: fullName, Email: fullName + "@example.com", Role: role}
	if err := e.profiles.Create(context.Background(), profile); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	token, _, err := e.tokens.GenerateToken(profile.ID, profile.Role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return domain.Caller{ID: profile.ID, Role: profile.Role}, token
}

func (e *testEnv) request(t *testing.T, method, path, token, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, payload
}

type ticketBody struct {
	ID              string  `json:"id"`
	CustomerID      string  `json:"customer_id"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Status          string  `json:"status"`
	Priority        string  `json:"priority"`
	AssignedAgentID *string `json:"assigned_agent_id"`
	AssignedAgent   *struct {
		ID       string `json:"id"`
		FullName string `json:"full_name"`
	} `json:"assigned_agent"`
}

func decodeTicket(t *testing.T, payload []byte) ticketBody {
	t.Helper()
	var body ticketBody
	if err := json.Unmarshal(payload, &body); err != nil {
		t.Fatalf("decode ticket: %v (%s)", err, payload)
	}
	return body
}

func errorMessage(t *testing.T, payload []byte) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, payload)
	}
	return body.Error
}

func TestTicketsRequireSession(t *testing.T) {
	env := newTestEnv(t)

	status, payload := env.request(t, "GET", "/tickets", "", "")
	if status != 401 {
		t.Fatalf("expected 401, got %d", status)
	}
	if errorMessage(t, payload) == "" {
		t.Fatal("expected an error message body")
	}

	if status, _ := env.request(t, "GET", "/tickets", "garbage", ""); status != 401 {
		t.Fatalf("expected 401 for a malformed header, got %d", status)
	}
}

func TestTicketsMissingProfileIs404(t *testing.T) {
	env := newTestEnv(t)
	token, _, err := env.tokens.GenerateToken("profile-ghost", domain.RoleCustomer)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	status, payload := env.request(t, "GET", "/tickets", token, "")
	if status != 404 {
		t.Fatalf("expected 404 for a session without a profile, got %d", status)
	}
	if msg := errorMessage(t, payload); msg != "profile not found" {
		t.Fatalf("unexpected error message: %q", msg)
	}
}

func TestCreateTicketEndpoint(t *testing.T) {
	env := newTestEnv(t)
	customer, customerToken := env.addProfile(t, "Ada Customer", domain.RoleCustomer)
	_, agentToken := env.addProfile(t, "Grace Agent", domain.RoleSupportAgent)

	status, payload := env.request(t, "POST", "/tickets", customerToken,
		`{"title":"A","description":"B","priority":"high"}`)
	if status != 201 {
		t.Fatalf("expected 201, got %d (%s)", status, payload)
	}
	ticket := decodeTicket(t, payload)
	if ticket.Status != "open" || ticket.Priority != "high" || ticket.CustomerID != customer.ID {
		t.Fatalf("unexpected ticket: %+v", ticket)
	}
	if ticket.AssignedAgent != nil {
		t.Fatal("expected null assigned_agent")
	}

	if status, _ := env.request(t, "POST", "/tickets", customerToken, `{"title":"","description":"B"}`); status != 400 {
		t.Fatalf("expected 400 for empty title, got %d", status)
	}
	if status, _ := env.request(t, "POST", "/tickets", agentToken, `{"title":"A","description":"B"}`); status != 403 {
		t.Fatalf("expected 403 for an agent, got %d", status)
	}
}

func TestGetTicketEndpoint(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.addProfile(t, "Ada Owner", domain.RoleCustomer)
	_, otherToken := env.addProfile(t, "Eve Other", domain.RoleCustomer)
	_, agentToken := env.addProfile(t, "Grace Agent", domain.RoleSupportAgent)

	status, payload := env.request(t, "POST", "/tickets", ownerToken, `{"title":"A","description":"B"}`)
	if status != 201 {
		t.Fatalf("create failed: %d", status)
	}
	id := decodeTicket(t, payload).ID

	if status, _ := env.request(t, "GET", "/tickets/"+id, ownerToken, ""); status != 200 {
		t.Fatalf("owner read: expected 200, got %d", status)
	}
	if status, _ := env.request(t, "GET", "/tickets/"+id, otherToken, ""); status != 403 {
		t.Fatalf("foreign read: expected 403, got %d", status)
	}
	if status, _ := env.request(t, "GET", "/tickets/"+id, agentToken, ""); status != 200 {
		t.Fatalf("agent read: expected 200, got %d", status)
	}
	if status, _ := env.request(t, "GET", "/tickets/ticket-missing", agentToken, ""); status != 404 {
		t.Fatalf("missing ticket: expected 404, got %d", status)
	}
}

func TestUpdateTicketEndpoint(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.addProfile(t, "Ada Owner", domain.RoleCustomer)
	agent, agentToken := env.addProfile(t, "Grace Agent", domain.RoleSupportAgent)

	status, payload := env.request(t, "POST", "/tickets", ownerToken, `{"title":"A","description":"B"}`)
	if status != 201 {
		t.Fatalf("create failed: %d", status)
	}
	id := decodeTicket(t, payload).ID

	if status, _ := env.request(t, "PATCH", "/tickets/"+id, ownerToken, `{"status":"resolved"}`); status != 403 {
		t.Fatalf("customer update: expected 403, got %d", status)
	}
	if status, _ := env.request(t, "PATCH", "/tickets/"+id, agentToken, `{}`); status != 400 {
		t.Fatalf("empty patch: expected 400, got %d", status)
	}
	if status, _ := env.request(t, "PATCH", "/tickets/"+id, agentToken, `{"status":"escalated"}`); status != 400 {
		t.Fatalf("bad status: expected 400, got %d", status)
	}

	status, payload = env.request(t, "PATCH", "/tickets/"+id, agentToken,
		fmt.Sprintf(`{"status":"in_progress","assigned_agent_id":%q}`, agent.ID))
	if status != 200 {
		t.Fatalf("expected 200, got %d (%s)", status, payload)
	}
	ticket := decodeTicket(t, payload)
	if ticket.Status != "in_progress" {
		t.Fatalf("expected in_progress, got %q", ticket.Status)
	}
	if ticket.AssignedAgent == nil || ticket.AssignedAgent.FullName != "Grace Agent" {
		t.Fatalf("expected enriched assignee, got %+v", ticket.AssignedAgent)
	}
}

func TestListTicketsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	customer1, token1 := env.addProfile(t, "Ada Customer", domain.RoleCustomer)
	_, token2 := env.addProfile(t, "Eve Customer", domain.RoleCustomer)
	_, agentToken := env.addProfile(t, "Grace Agent", domain.RoleSupportAgent)

	for i, token := range []string{token1, token2, token1} {
		body := fmt.Sprintf(`{"title":"t%d","description":"d"}`, i)
		if status, _ := env.request(t, "POST", "/tickets", token, body); status != 201 {
			t.Fatalf("create %d failed: %d", i, status)
		}
	}

	status, payload := env.request(t, "GET", "/tickets", token1, "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var own []ticketBody
	if err := json.Unmarshal(payload, &own); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(own) != 2 {
		t.Fatalf("expected 2 tickets, got %d", len(own))
	}
	for _, ticket := range own {
		if ticket.CustomerID != customer1.ID {
			t.Fatalf("foreign ticket in customer listing: %+v", ticket)
		}
	}

	status, payload = env.request(t, "GET", "/tickets", agentToken, "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var all []ticketBody
	if err := json.Unmarshal(payload, &all); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 tickets, got %d", len(all))
	}
	if all[0].Title != "t2" {
		t.Fatalf("expected newest first, got %q", all[0].Title)
	}
}

func TestRequestCountersRecorded(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.addProfile(t, "Ada Customer", domain.RoleCustomer)

	for i := 0; i < 3; i++ {
		if status, _ := env.request(t, "GET", "/tickets", token, ""); status != 200 {
			t.Fatalf("expected 200, got %d", status)
		}
	}

	if got := env.metrics.RequestCount("/tickets", "GET", 200); got != 3 {
		t.Fatalf("expected 3 recorded requests, got %d", got)
	}
}
