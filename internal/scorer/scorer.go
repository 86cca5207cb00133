package scorer

import (
	"math"
	"strings"
	"time"

	"github.com/ezelpc/aurontek-routing/internal/domain"
)

// Scoring weights. These encode the product decision that raw ticket count
// dominates, then gaming behavior, then secondary quality signals. They are
// design constants, not runtime tunables.
const (
	baseScore        = 10000.0
	countWeight      = 150.0
	loadWeight       = 50.0
	velocityWeight   = 100.0
	efficiencyWeight = 200.0

	agedPenaltyThresholdDays = 3.0
	agedPenaltyWeight        = 50.0
	stagnantPenaltyWeight    = 100.0
	velocityFloor            = 0.5
	velocityPenaltyWeight    = 200.0
	efficiencyFloor          = 0.7
	efficiencyPenaltyWeight  = 300.0

	velocityWindowDays   = 7
	efficiencyWindowDays = 30
)

// DefaultStagnantAfter is the staleness window for active tickets.
const DefaultStagnantAfter = 48 * time.Hour

// priorityWeight maps a ticket's priority to its workload weight. Unknown or
// missing priorities weigh as medium.
func priorityWeight(p domain.TicketPriority) float64 {
	switch strings.ToLower(string(p)) {
	case "critica", "crítica":
		return 3
	case "alta":
		return 2
	case "media":
		return 1
	case "baja":
		return 0.5
	default:
		return 1
	}
}

// ComputeMetrics derives the agent's workload snapshot from its tickets
// across all lifecycle states. The caller captures now once per scoring pass
// so every candidate is measured against the same clock.
func ComputeMetrics(now time.Time, tickets []domain.Ticket, stagnantAfter time.Duration) domain.AgentMetrics {
	if stagnantAfter <= 0 {
		stagnantAfter = DefaultStagnantAfter
	}

	var (
		active     []*domain.Ticket
		assigned30 int
		closed30   int
		closed7    int
	)
	since30 := now.AddDate(0, 0, -efficiencyWindowDays)
	since7 := now.AddDate(0, 0, -velocityWindowDays)

	for i := range tickets {
		t := &tickets[i]
		if t.InStatus(domain.ActiveStatuses()) {
			active = append(active, t)
		}
		if t.CreatedAt.IsZero() || t.CreatedAt.Before(since30) {
			continue
		}
		assigned30++
		if t.Closed() {
			closed30++
			if !t.CreatedAt.Before(since7) {
				closed7++
			}
		}
	}

	m := domain.AgentMetrics{ActiveCount: len(active)}

	var ageSum float64
	for _, t := range active {
		m.ActiveWeighted += priorityWeight(t.Prioridad)
		ageSum += ticketAgeDays(now, t)
		if isStagnant(now, t, stagnantAfter) {
			m.StagnantCount++
		}
	}
	if len(active) > 0 {
		m.AvgTicketAgeDays = ageSum / float64(len(active))
	}

	m.ResolutionVelocity = float64(closed7) / float64(velocityWindowDays)
	if assigned30 > 0 {
		m.EfficiencyRatio = float64(closed30) / float64(assigned30)
	} else {
		m.EfficiencyRatio = 1.0
	}
	m.GamingPenalty = gamingPenalty(m)
	return m
}

// ticketAgeDays measures days since assignment (or creation when the peer
// never recorded an assignment time). Missing timestamps count as zero.
func ticketAgeDays(now time.Time, t *domain.Ticket) float64 {
	ref := t.AssignmentTime()
	if ref.IsZero() {
		return 0
	}
	return now.Sub(ref).Seconds() / 86400
}

func isStagnant(now time.Time, t *domain.Ticket, window time.Duration) bool {
	if t.UpdatedAt.IsZero() {
		return false
	}
	return now.Sub(t.UpdatedAt.Time) > window
}

// gamingPenalty quantifies ticket-parking behavior: old active tickets,
// stagnant tickets, low throughput and low close ratio all raise the penalty.
func gamingPenalty(m domain.AgentMetrics) float64 {
	penalty := 0.0
	if m.AvgTicketAgeDays > agedPenaltyThresholdDays {
		over := m.AvgTicketAgeDays - agedPenaltyThresholdDays
		penalty += over * over * agedPenaltyWeight
	}
	penalty += float64(m.StagnantCount) * stagnantPenaltyWeight
	if m.ResolutionVelocity < velocityFloor {
		penalty += (velocityFloor - m.ResolutionVelocity) * velocityPenaltyWeight
	}
	if m.EfficiencyRatio < efficiencyFloor {
		penalty += (efficiencyFloor - m.EfficiencyRatio) * efficiencyPenaltyWeight
	}
	return penalty
}

// Score computes the assignment fitness of one candidate. Agents lacking the
// required attention group score negative infinity instead of being removed
// from the candidate list, so callers can still report how many were
// evaluated.
func Score(agent *domain.Agent, requiredGroup string, m domain.AgentMetrics) float64 {
	if !agent.HasAttentionGroup(requiredGroup) {
		return math.Inf(-1)
	}
	return baseScore -
		float64(m.ActiveCount)*countWeight -
		m.ActiveWeighted*loadWeight -
		m.GamingPenalty +
		m.ResolutionVelocity*velocityWeight +
		m.EfficiencyRatio*efficiencyWeight
}
