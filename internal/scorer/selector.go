package scorer

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ezelpc/aurontek-routing/internal/catalog"
	"github.com/ezelpc/aurontek-routing/internal/domain"
	"github.com/ezelpc/aurontek-routing/internal/observability"
	apperrors "github.com/ezelpc/aurontek-routing/pkg/util"
)

// TicketSource provides the directory and ticket reads needed for scoring.
type TicketSource interface {
	ListEligibleAgents(ctx context.Context, attentionGroup, empresaID string) ([]domain.Agent, error)
	ListAgentTickets(ctx context.Context, agentID, empresaID string, states []domain.TicketStatus) ([]domain.Ticket, error)
}

// Selection is the outcome of one best-agent search.
type Selection struct {
	Agent          domain.Agent
	Score          float64
	Metrics        domain.AgentMetrics
	AttentionGroup string
	Evaluated      int
	UsedFallback   bool
}

// Selector scores every eligible candidate for a ticket and picks the best
// one, with a single fallback pass against the front-desk group when the
// required group has no eligible agent. It never assigns an unqualified
// agent silently.
type Selector struct {
	source        TicketSource
	stagnantAfter time.Duration
	logger        *zap.Logger
	metrics       *observability.Metrics
}

// NewSelector creates the selector.
func NewSelector(source TicketSource, stagnantAfter time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Selector {
	if stagnantAfter <= 0 {
		stagnantAfter = DefaultStagnantAfter
	}
	return &Selector{source: source, stagnantAfter: stagnantAfter, logger: logger, metrics: metrics}
}

// PickAgent finds the best-fit agent for the ticket's attention group.
func (s *Selector) PickAgent(ctx context.Context, ticket *domain.Ticket) (*Selection, error) {
	if ticket.EmpresaID == "" {
		return nil, apperrors.NewValidationError("ticket has no empresaId", map[string]any{"ticket_id": ticket.TicketID()})
	}
	group := ticket.GrupoAtencion
	if group == "" {
		return nil, apperrors.NewValidationError("ticket has no attention group", map[string]any{"ticket_id": ticket.TicketID()})
	}

	best, evaluated := s.pickFromGroup(ctx, ticket, group)
	if best != nil {
		return best, nil
	}

	if group != catalog.DefaultAttentionGroup {
		s.logger.Warn("no eligible agent in required group, trying front desk",
			zap.String("ticket_id", ticket.TicketID()),
			zap.String("attention_group", group))
		best, fallbackEvaluated := s.pickFromGroup(ctx, ticket, catalog.DefaultAttentionGroup)
		evaluated += fallbackEvaluated
		if best != nil {
			best.UsedFallback = true
			best.Evaluated = evaluated
			return best, nil
		}
	}

	return nil, apperrors.NewNoEligibleAgent(group, evaluated)
}

// pickFromGroup runs one scoring pass over the group's candidates. Directory
// failures degrade to an empty candidate list and ticket-read failures
// degrade to zero workload, so routing keeps progressing on partial
// information instead of stalling.
func (s *Selector) pickFromGroup(ctx context.Context, ticket *domain.Ticket, group string) (*Selection, int) {
	candidates, err := s.source.ListEligibleAgents(ctx, group, ticket.EmpresaID)
	if err != nil {
		s.logger.Warn("agent directory unavailable, treating group as empty",
			zap.String("attention_group", group),
			zap.Error(err))
		return nil, 0
	}

	// One clock snapshot for the whole pass: every candidate's ages and
	// velocities are measured against the same instant.
	now := time.Now()

	var best *Selection
	for i := range candidates {
		agent := candidates[i]

		tickets, err := s.source.ListAgentTickets(ctx, agent.ID(), ticket.EmpresaID, domain.AllStatuses())
		if err != nil {
			// Zero workload is the documented safe default for scoring.
			s.metrics.Inc(observability.MetricDegradedTicketReads)
			s.logger.Warn("ticket read degraded to zero workload",
				zap.String("agent_id", agent.ID()),
				zap.Error(err))
			tickets = nil
		}

		m := ComputeMetrics(now, tickets, s.stagnantAfter)
		score := Score(&agent, group, m)

		s.logger.Info("candidate scored",
			zap.String("ticket_id", ticket.TicketID()),
			zap.String("agent", agent.Nombre),
			zap.Int("active", m.ActiveCount),
			zap.Float64("weighted", m.ActiveWeighted),
			zap.Float64("avg_age_days", m.AvgTicketAgeDays),
			zap.Int("stagnant", m.StagnantCount),
			zap.Float64("velocity", m.ResolutionVelocity),
			zap.Float64("efficiency", m.EfficiencyRatio),
			zap.Float64("gaming_penalty", m.GamingPenalty),
			zap.Float64("score", score))

		if math.IsInf(score, -1) {
			continue
		}
		// Strictly greater: ties resolve to the first-seen candidate.
		if best == nil || score > best.Score {
			best = &Selection{
				Agent:          agent,
				Score:          score,
				Metrics:        m,
				AttentionGroup: group,
				Evaluated:      len(candidates),
			}
		}
	}
	return best, len(candidates)
}
