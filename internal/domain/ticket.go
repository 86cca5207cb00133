package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// TicketStatus enumerates lifecycle states used on the peer wire contract.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "abierto"
	TicketStatusInProgress TicketStatus = "en_proceso"
	TicketStatusWaiting    TicketStatus = "en_espera"
	TicketStatusResolved   TicketStatus = "resuelto"
	TicketStatusClosed     TicketStatus = "cerrado"
)

// ActiveStatuses are the states that count toward an agent's workload.
func ActiveStatuses() []TicketStatus {
	return []TicketStatus{TicketStatusOpen, TicketStatusInProgress, TicketStatusWaiting}
}

// AllStatuses covers the full lifecycle, including terminal states.
func AllStatuses() []TicketStatus {
	return []TicketStatus{
		TicketStatusOpen, TicketStatusInProgress, TicketStatusWaiting,
		TicketStatusResolved, TicketStatusClosed,
	}
}

// TicketPriority enumerates SLA urgency on the wire.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "baja"
	TicketPriorityMedium   TicketPriority = "media"
	TicketPriorityHigh     TicketPriority = "alta"
	TicketPriorityCritical TicketPriority = "critica"
)

// FlexTime tolerates the timestamp variants peers emit: RFC3339 with or
// without fractional seconds, empty strings, and null. Anything unparsable
// decodes to the zero time rather than failing the whole payload.
type FlexTime struct {
	time.Time
}

var flexLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (t *FlexTime) UnmarshalJSON(b []byte) error {
	t.Time = time.Time{}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	if raw == "" {
		return nil
	}
	for _, layout := range flexLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return nil
}

func (t FlexTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// AgentRef decodes the assigned-agent field, which tickets-svc emits either
// as a bare id string or as an embedded document carrying "_id".
type AgentRef struct {
	ID string
}

func (r *AgentRef) UnmarshalJSON(b []byte) error {
	r.ID = ""
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &r.ID)
	}
	var embedded struct {
		MongoID string `json:"_id"`
		AltID   string `json:"id"`
	}
	if err := json.Unmarshal(b, &embedded); err != nil {
		return nil
	}
	if embedded.MongoID != "" {
		r.ID = embedded.MongoID
	} else {
		r.ID = embedded.AltID
	}
	return nil
}

func (r AgentRef) MarshalJSON() ([]byte, error) {
	if r.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.ID)
}

// Ticket is the engine's read view of a ticket owned by tickets-svc.
// The engine never persists tickets; it only classifies and routes them.
type Ticket struct {
	ID              string         `json:"id"`
	MongoID         string         `json:"_id,omitempty"`
	Titulo          string         `json:"titulo"`
	EmpresaID       string         `json:"empresaId"`
	ServicioNombre  string         `json:"servicioNombre"`
	Estado          TicketStatus   `json:"estado,omitempty"`
	Prioridad       TicketPriority `json:"prioridad,omitempty"`
	GrupoAtencion   string         `json:"grupo_atencion,omitempty"`
	AgenteAsignado  AgentRef       `json:"agenteAsignado,omitempty"`
	FechaAsignacion FlexTime       `json:"fechaAsignacion,omitempty"`
	CreatedAt       FlexTime       `json:"createdAt,omitempty"`
	UpdatedAt       FlexTime       `json:"updatedAt,omitempty"`
}

// TicketID resolves the document identifier regardless of which key the
// producer used.
func (t *Ticket) TicketID() string {
	if t.ID != "" {
		return t.ID
	}
	return t.MongoID
}

// AssignedTo reports whether the ticket is assigned to the given agent.
func (t *Ticket) AssignedTo(agentID string) bool {
	return agentID != "" && t.AgenteAsignado.ID == agentID
}

// InStatus reports whether the ticket's state is one of the given states.
func (t *Ticket) InStatus(states []TicketStatus) bool {
	for _, s := range states {
		if t.Estado == s {
			return true
		}
	}
	return false
}

// Closed reports whether the ticket reached a terminal state.
func (t *Ticket) Closed() bool {
	return t.Estado == TicketStatusResolved || t.Estado == TicketStatusClosed
}

// AssignmentTime returns the assignment timestamp, falling back to creation
// time when the peer never recorded one.
func (t *Ticket) AssignmentTime() time.Time {
	if !t.FechaAsignacion.IsZero() {
		return t.FechaAsignacion.Time
	}
	return t.CreatedAt.Time
}
