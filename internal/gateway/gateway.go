package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/ezelpc/aurontek-routing/internal/catalog"
	"github.com/ezelpc/aurontek-routing/internal/config"
	"github.com/ezelpc/aurontek-routing/internal/domain"
	apperrors "github.com/ezelpc/aurontek-routing/pkg/util"
)

const (
	serviceUsuarios = "usuarios-svc"
	serviceTickets  = "tickets-svc"

	// The tickets endpoint filters by caller role; the engine requests a high
	// page limit and filters locally instead of trusting the peer's query.
	ticketPageLimit = "1000"
)

// Client is the typed gateway over the two peer HTTP APIs. Reads use the
// shorter timeout, writes the longer one; every call carries the service
// bearer credential and the caller identity header.
type Client struct {
	usuariosURL string
	ticketsURL  string
	token       string
	serviceName string
	readClient  *http.Client
	writeClient *http.Client
	logger      *zap.Logger
}

// New builds the gateway. A missing service token is a deployment
// misconfiguration surfaced here, at startup, not per call.
func New(cfg config.PeersConfig, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.ServiceToken) == "" {
		return nil, errors.New("gateway: SERVICE_TOKEN is not configured")
	}
	return &Client{
		usuariosURL: strings.TrimRight(cfg.UsuariosURL, "/"),
		ticketsURL:  strings.TrimRight(cfg.TicketsURL, "/"),
		token:       cfg.ServiceToken,
		serviceName: cfg.ServiceName,
		readClient:  &http.Client{Timeout: cfg.ReadTimeout()},
		writeClient: &http.Client{Timeout: cfg.WriteTimeout()},
		logger:      logger,
	}, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Service-Name", c.serviceName)
	req.Header.Set("Content-Type", "application/json")
}

// ListEligibleAgents returns the company's active agents whose role is in
// the support allow-list and whose skill set contains attentionGroup.
func (c *Client) ListEligibleAgents(ctx context.Context, attentionGroup, empresaID string) ([]domain.Agent, error) {
	query := url.Values{}
	query.Set("empresaId", empresaID)
	query.Set("activo", "true")

	endpoint := fmt.Sprintf("%s/usuarios?%s", c.usuariosURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailable(serviceUsuarios, err)
	}
	c.setHeaders(req)

	resp, err := c.readClient.Do(req)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailable(serviceUsuarios, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewUpstreamUnavailable(serviceUsuarios,
			fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailable(serviceUsuarios, err)
	}

	all, err := c.decodeAgentList(body)
	if err != nil {
		return nil, err
	}

	eligible := make([]domain.Agent, 0, len(all))
	for _, agent := range all {
		if agent.IsSupportRole() && agent.HasAttentionGroup(attentionGroup) {
			eligible = append(eligible, agent)
		}
	}
	c.logger.Info("eligible agents fetched",
		zap.String("attention_group", attentionGroup),
		zap.String("empresa_id", empresaID),
		zap.Int("eligible", len(eligible)),
		zap.Int("total", len(all)))
	return eligible, nil
}

// decodeAgentList accepts the directory's response as either a bare list or
// a single level of wrapping ({"data": [...]} or {"usuarios": [...]}), and
// rejects anything deeper as malformed.
func (c *Client) decodeAgentList(body []byte) ([]domain.Agent, error) {
	var agents []domain.Agent
	if err := json.Unmarshal(body, &agents); err == nil {
		return agents, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, apperrors.NewUpstreamMalformed(serviceUsuarios, "not a list or object")
	}
	for _, key := range []string{"data", "usuarios"} {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &agents); err == nil {
			return agents, nil
		}
	}

	keys := make([]string, 0, len(envelope))
	for k := range envelope {
		keys = append(keys, k)
	}
	shape := "object with keys " + strings.Join(keys, ",")
	c.logger.Error("unexpected agent directory response shape", zap.String("shape", shape))
	return nil, apperrors.NewUpstreamMalformed(serviceUsuarios, shape)
}

// ListAgentTickets returns the agent's tickets in the given states. The peer
// is queried per company and the agent/state filtering happens locally.
func (c *Client) ListAgentTickets(ctx context.Context, agentID, empresaID string, states []domain.TicketStatus) ([]domain.Ticket, error) {
	query := url.Values{}
	query.Set("empresaId", empresaID)
	query.Set("limite", ticketPageLimit)

	endpoint := fmt.Sprintf("%s/tickets?%s", c.ticketsURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailable(serviceTickets, err)
	}
	c.setHeaders(req)

	resp, err := c.readClient.Do(req)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailable(serviceTickets, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewUpstreamUnavailable(serviceTickets,
			fmt.Errorf("status %d", resp.StatusCode))
	}

	var envelope struct {
		Data []domain.Ticket `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, apperrors.NewUpstreamMalformed(serviceTickets, "undecodable ticket envelope")
	}

	filtered := make([]domain.Ticket, 0, len(envelope.Data))
	for _, t := range envelope.Data {
		if t.AssignedTo(agentID) && t.InStatus(states) {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

// UpdateClassification pushes the classification record to the ticket store.
// Callers treat failures as non-fatal and continue the routing pipeline.
func (c *Client) UpdateClassification(ctx context.Context, ticketID string, rec catalog.ClassificationRecord) error {
	endpoint := fmt.Sprintf("%s/tickets/%s/clasificacion", c.ticketsURL, ticketID)
	return c.write(ctx, http.MethodPatch, endpoint, rec)
}

// AssignAgent persists the assignment. A failure here forks the routing
// outcome into the suggestion path; it is never fatal.
func (c *Client) AssignAgent(ctx context.Context, ticketID, agentID string) error {
	endpoint := fmt.Sprintf("%s/tickets/%s/asignar-ia", c.ticketsURL, ticketID)
	return c.write(ctx, http.MethodPut, endpoint, map[string]string{"agenteId": agentID})
}

func (c *Client) write(ctx context.Context, method, endpoint string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewUpstreamUnavailable(serviceTickets, err)
	}
	c.setHeaders(req)

	resp, err := c.writeClient.Do(req)
	if err != nil {
		return apperrors.NewUpstreamUnavailable(serviceTickets, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.NewUpstreamRejected(serviceTickets, resp.StatusCode)
	}
	return nil
}
