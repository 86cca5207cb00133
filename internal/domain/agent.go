package domain

// SupportRoles is the allow-list of roles eligible for automatic assignment.
// The directory also returns requesters and admins; those never receive
// routed tickets.
var SupportRoles = map[string]bool{
	"soporte":           true,
	"Soporte":           true,
	"resolutor-empresa": true,
	"beca-soporte":      true,
	"admin-interno":     true,
}

// Agent is a directory record owned by usuarios-svc.
type Agent struct {
	MongoID          string   `json:"_id,omitempty"`
	AltID            string   `json:"id,omitempty"`
	Nombre           string   `json:"nombre"`
	Email            string   `json:"email,omitempty"`
	Rol              string   `json:"rol"`
	GruposDeAtencion []string `json:"gruposDeAtencion"`
	Activo           bool     `json:"activo"`
	EmpresaID        string   `json:"empresaId,omitempty"`
}

// ID resolves the directory identifier regardless of which key the peer used.
func (a *Agent) ID() string {
	if a.MongoID != "" {
		return a.MongoID
	}
	return a.AltID
}

// IsSupportRole reports whether the agent may receive routed tickets.
func (a *Agent) IsSupportRole() bool {
	return SupportRoles[a.Rol]
}

// HasAttentionGroup reports membership of the given skill group.
func (a *Agent) HasAttentionGroup(group string) bool {
	for _, g := range a.GruposDeAtencion {
		if g == group {
			return true
		}
	}
	return false
}

// AgentMetrics is the workload snapshot computed fresh for each scoring pass
// and discarded afterwards. It has no lifecycle of its own.
type AgentMetrics struct {
	ActiveCount        int     `json:"active_count"`
	ActiveWeighted     float64 `json:"active_weighted"`
	AvgTicketAgeDays   float64 `json:"avg_ticket_age_days"`
	StagnantCount      int     `json:"stagnant_count"`
	ResolutionVelocity float64 `json:"resolution_velocity"`
	EfficiencyRatio    float64 `json:"efficiency_ratio"`
	GamingPenalty      float64 `json:"gaming_penalty"`
}
