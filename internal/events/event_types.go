package events

import (
	"time"

	"github.com/ezelpc/aurontek-routing/internal/catalog"
	"github.com/ezelpc/aurontek-routing/internal/domain"
)

// Routing keys on the tickets topic exchange.
const (
	RoutingKeyTicketCreated   = "ticket.created"
	RoutingKeyTicketProcessed = "ticket.procesado"
	RoutingKeySuggestion      = "ticket.sugerencia_asignacion"
	RoutingKeyTicketError     = "ticket.error"
)

// TicketCreatedEvent is the inbound payload consumed from ticket.created.
type TicketCreatedEvent struct {
	Ticket domain.Ticket `json:"ticket"`
}

// TicketProcessedEvent announces a successful automatic assignment.
type TicketProcessedEvent struct {
	EventID       string                       `json:"eventId,omitempty"`
	TicketID      string                       `json:"ticketId"`
	AgenteID      string                       `json:"agenteId"`
	AgenteNombre  string                       `json:"agenteNombre"`
	Clasificacion catalog.ClassificationRecord `json:"clasificacion"`
	Timestamp     time.Time                    `json:"timestamp"`
}

// AssignmentSuggestedEvent is the human-in-the-loop fallback published when
// the assignment write-back fails: a dispatcher assigns the suggested agent
// manually.
type AssignmentSuggestedEvent struct {
	EventID          string                       `json:"eventId,omitempty"`
	TicketID         string                       `json:"ticketId"`
	AgenteIDSugerido string                       `json:"agenteIdSugerido"`
	AgenteNombre     string                       `json:"agenteNombre"`
	Clasificacion    catalog.ClassificationRecord `json:"clasificacion"`
}

// TicketErrorEvent reports a routing failure for a ticket.
type TicketErrorEvent struct {
	EventID   string    `json:"eventId,omitempty"`
	TicketID  string    `json:"ticketId"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}
