package classifier

import (
	"go.uber.org/zap"

	"github.com/ezelpc/aurontek-routing/internal/catalog"
	"github.com/ezelpc/aurontek-routing/internal/domain"
	"github.com/ezelpc/aurontek-routing/internal/observability"
)

// Classifier resolves a ticket's service name against the static catalog.
// An absent or unknown service name is a valid input, never an error: such
// tickets receive the fixed default classification.
type Classifier struct {
	logger  *zap.Logger
	metrics *observability.Metrics
}

// New creates the classifier.
func New(logger *zap.Logger, metrics *observability.Metrics) *Classifier {
	return &Classifier{logger: logger, metrics: metrics}
}

// Classify returns the classification for the ticket and whether the service
// name was found in the catalog.
func (c *Classifier) Classify(ticket *domain.Ticket) (catalog.ClassificationRecord, bool) {
	if rec, ok := catalog.Lookup(ticket.ServicioNombre); ok {
		c.metrics.Inc(observability.MetricClassifierHits)
		c.logger.Info("ticket classified from catalog",
			zap.String("ticket_id", ticket.TicketID()),
			zap.String("service", ticket.ServicioNombre),
			zap.String("attention_group", rec.GrupoAtencion))
		return rec, true
	}

	c.metrics.Inc(observability.MetricClassifierFallbacks)
	c.logger.Warn("service not in catalog, using default classification",
		zap.String("ticket_id", ticket.TicketID()),
		zap.String("service", ticket.ServicioNombre))
	return catalog.Default(), false
}
