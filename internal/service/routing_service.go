package service

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ezelpc/aurontek-routing/internal/catalog"
	"github.com/ezelpc/aurontek-routing/internal/classifier"
	"github.com/ezelpc/aurontek-routing/internal/domain"
	"github.com/ezelpc/aurontek-routing/internal/events"
	"github.com/ezelpc/aurontek-routing/internal/observability"
	"github.com/ezelpc/aurontek-routing/internal/scorer"
)

// TicketStore covers the two write operations against tickets-svc.
type TicketStore interface {
	UpdateClassification(ctx context.Context, ticketID string, rec catalog.ClassificationRecord) error
	AssignAgent(ctx context.Context, ticketID, agentID string) error
}

// AgentSelector finds the best-fit agent for a classified ticket.
type AgentSelector interface {
	PickAgent(ctx context.Context, ticket *domain.Ticket) (*scorer.Selection, error)
}

// EventPublisher emits routing outcomes back onto the exchange.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// DuplicateMarker remembers recently routed ticket ids (best effort).
type DuplicateMarker interface {
	MarkRouted(ctx context.Context, ticketID string, ttl time.Duration) (bool, error)
}

// RoutingService is the orchestrator: one strictly sequential pipeline per
// inbound ticket-created event. Non-fatal partial failures never skip steps;
// they degrade exactly as each step documents.
type RoutingService struct {
	classifier *classifier.Classifier
	store      TicketStore
	selector   AgentSelector
	publisher  EventPublisher
	dedup      DuplicateMarker
	dedupTTL   time.Duration
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// RoutingDependencies bundles collaborators.
type RoutingDependencies struct {
	Classifier *classifier.Classifier
	Store      TicketStore
	Selector   AgentSelector
	Publisher  EventPublisher
	Dedup      DuplicateMarker
	DedupTTL   time.Duration
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewRoutingService creates the orchestrator.
func NewRoutingService(deps RoutingDependencies) *RoutingService {
	return &RoutingService{
		classifier: deps.Classifier,
		store:      deps.Store,
		selector:   deps.Selector,
		publisher:  deps.Publisher,
		dedup:      deps.Dedup,
		dedupTTL:   deps.DedupTTL,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}
}

// ProcessTicketCreated handles one ticket.created event body. It never lets
// a failure escape: anything unexpected becomes a ticket.error event, so the
// consumer never mistakes a business failure for a transport fault.
func (s *RoutingService) ProcessTicketCreated(ctx context.Context, body []byte) {
	var evt events.TicketCreatedEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		s.metrics.Inc(observability.MetricPoisonMessages)
		s.logger.Error("undecodable ticket.created payload", zap.Error(err))
		return
	}

	ticket := evt.Ticket
	ticketID := ticket.TicketID()
	if ticketID == "" {
		// Producer bug, not a transient fault: nothing to retry or route.
		s.logger.Error("ticket.created event without ticket id",
			zap.String("titulo", ticket.Titulo))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in routing pipeline",
				zap.String("ticket_id", ticketID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			s.publishError(ctx, ticketID, fmt.Sprintf("panic: %v", r))
		}
	}()

	if s.dedup != nil {
		first, err := s.dedup.MarkRouted(ctx, ticketID, s.dedupTTL)
		if err != nil {
			s.logger.Debug("duplicate marker unavailable, routing anyway", zap.Error(err))
		} else if !first {
			s.metrics.Inc(observability.MetricDuplicatesSuppressed)
			s.logger.Warn("duplicate delivery suppressed", zap.String("ticket_id", ticketID))
			return
		}
	}

	s.logger.Info("routing ticket",
		zap.String("ticket_id", ticketID),
		zap.String("titulo", ticket.Titulo),
		zap.String("empresa_id", ticket.EmpresaID),
		zap.String("servicio", ticket.ServicioNombre))

	s.route(ctx, &ticket, ticketID)
}

func (s *RoutingService) route(ctx context.Context, ticket *domain.Ticket, ticketID string) {
	rec, _ := s.classifier.Classify(ticket)

	// Best effort: an assignment without a synced classification beats none.
	if err := s.store.UpdateClassification(ctx, ticketID, rec); err != nil {
		s.logger.Warn("classification push failed, continuing",
			zap.String("ticket_id", ticketID),
			zap.Error(err))
	}

	applyClassification(ticket, rec)

	selection, err := s.selector.PickAgent(ctx, ticket)
	if err != nil {
		s.logger.Warn("no agent selected",
			zap.String("ticket_id", ticketID),
			zap.Error(err))
		s.publishError(ctx, ticketID, err.Error())
		return
	}

	agentID := selection.Agent.ID()
	if err := s.store.AssignAgent(ctx, ticketID, agentID); err != nil {
		// Human-in-the-loop fork: the write-back failed, so a dispatcher
		// gets the suggestion instead of the ticket staying unrouted.
		s.logger.Warn("assignment write rejected, publishing suggestion",
			zap.String("ticket_id", ticketID),
			zap.String("agent_id", agentID),
			zap.Error(err))
		s.metrics.Inc(observability.MetricSuggestionsPublished)
		_ = s.publisher.Publish(ctx, events.RoutingKeySuggestion, events.AssignmentSuggestedEvent{
			EventID:          uuid.NewString(),
			TicketID:         ticketID,
			AgenteIDSugerido: agentID,
			AgenteNombre:     selection.Agent.Nombre,
			Clasificacion:    rec,
		})
		return
	}

	s.metrics.Inc(observability.MetricAssignmentsPersisted)
	_ = s.publisher.Publish(ctx, events.RoutingKeyTicketProcessed, events.TicketProcessedEvent{
		EventID:       uuid.NewString(),
		TicketID:      ticketID,
		AgenteID:      agentID,
		AgenteNombre:  selection.Agent.Nombre,
		Clasificacion: rec,
		Timestamp:     time.Now().UTC(),
	})

	s.logger.Info("ticket routed",
		zap.String("ticket_id", ticketID),
		zap.String("agent", selection.Agent.Nombre),
		zap.Float64("score", selection.Score),
		zap.Bool("used_fallback", selection.UsedFallback),
		zap.Int("evaluated", selection.Evaluated))
}

func (s *RoutingService) publishError(ctx context.Context, ticketID, message string) {
	s.metrics.Inc(observability.MetricErrorsPublished)
	_ = s.publisher.Publish(ctx, events.RoutingKeyTicketError, events.TicketErrorEvent{
		EventID:   uuid.NewString(),
		TicketID:  ticketID,
		Error:     message,
		Timestamp: time.Now().UTC(),
	})
}

// applyClassification merges the classification into the local ticket view
// so scoring sees the resolved attention group and priority.
func applyClassification(ticket *domain.Ticket, rec catalog.ClassificationRecord) {
	ticket.GrupoAtencion = rec.GrupoAtencion
	ticket.Prioridad = rec.Prioridad
}

// ClassifyTicket resolves a classification without touching any peer
// service. Backs the manual classification endpoint.
func (s *RoutingService) ClassifyTicket(ticket *domain.Ticket) (catalog.ClassificationRecord, bool) {
	return s.classifier.Classify(ticket)
}

// SuggestAgent classifies the ticket locally and returns the best candidate
// without persisting anything. Backs the manual assignment endpoint.
func (s *RoutingService) SuggestAgent(ctx context.Context, ticket *domain.Ticket) (*scorer.Selection, error) {
	if ticket.GrupoAtencion == "" {
		rec, _ := s.classifier.Classify(ticket)
		applyClassification(ticket, rec)
	}
	return s.selector.PickAgent(ctx, ticket)
}
