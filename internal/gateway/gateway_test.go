package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ezelpc/aurontek-routing/internal/catalog"
	"github.com/ezelpc/aurontek-routing/internal/config"
	"github.com/ezelpc/aurontek-routing/internal/domain"
	apperrors "github.com/ezelpc/aurontek-routing/pkg/util"
)

func newTestClient(t *testing.T, usuariosURL, ticketsURL string) *Client {
	t.Helper()
	client, err := New(config.PeersConfig{
		UsuariosURL:         usuariosURL,
		TicketsURL:          ticketsURL,
		ServiceToken:        "test-token",
		ServiceName:         "routing-svc",
		ReadTimeoutSeconds:  2,
		WriteTimeoutSeconds: 2,
	}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestNewRequiresServiceToken(t *testing.T) {
	_, err := New(config.PeersConfig{ServiceToken: "   "}, zap.NewNop())
	assert.Error(t, err)
}

func directoryPayload() []map[string]any {
	return []map[string]any{
		{"_id": "a1", "nombre": "Ana", "rol": "soporte", "gruposDeAtencion": []string{"Redes"}, "activo": true},
		{"_id": "a2", "nombre": "Bruno", "rol": "solicitante", "gruposDeAtencion": []string{"Redes"}, "activo": true},
		{"_id": "a3", "nombre": "Carla", "rol": "soporte", "gruposDeAtencion": []string{"Software"}, "activo": true},
		{"_id": "a4", "nombre": "Diego", "rol": "admin-interno", "gruposDeAtencion": []string{"Redes", "Software"}, "activo": true},
	}
}

func TestListEligibleAgentsFiltersRoleAndGroup(t *testing.T) {
	envelopes := map[string]func() any{
		"bare list":        func() any { return directoryPayload() },
		"data wrapper":     func() any { return map[string]any{"data": directoryPayload()} },
		"usuarios wrapper": func() any { return map[string]any{"usuarios": directoryPayload()} },
	}

	for name, payload := range envelopes {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/usuarios", r.URL.Path)
				assert.Equal(t, "emp-1", r.URL.Query().Get("empresaId"))
				assert.Equal(t, "true", r.URL.Query().Get("activo"))
				assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
				assert.Equal(t, "routing-svc", r.Header.Get("X-Service-Name"))
				json.NewEncoder(w).Encode(payload())
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL, srv.URL)
			agents, err := client.ListEligibleAgents(context.Background(), "Redes", "emp-1")
			require.NoError(t, err)

			ids := make([]string, 0, len(agents))
			for _, a := range agents {
				ids = append(ids, a.ID())
			}
			// Bruno is a requester, Carla lacks the group. Diego's admin role
			// is on the allow-list.
			assert.Equal(t, []string{"a1", "a4"}, ids)
		})
	}
}

func TestListEligibleAgentsRejectsDeepNesting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"usuarios": directoryPayload()},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, srv.URL)
	_, err := client.ListEligibleAgents(context.Background(), "Redes", "emp-1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUpstreamMalformed))
}

func TestListEligibleAgentsUpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, srv.URL)
	_, err := client.ListEligibleAgents(context.Background(), "Redes", "emp-1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUpstreamUnavailable))
}

func TestListAgentTicketsFiltersLocally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tickets", r.URL.Path)
		assert.Equal(t, "1000", r.URL.Query().Get("limite"))
		fmt.Fprint(w, `{"data": [
			{"id": "t1", "estado": "abierto", "agenteAsignado": "a1"},
			{"id": "t2", "estado": "abierto", "agenteAsignado": {"_id": "a1"}},
			{"id": "t3", "estado": "cerrado", "agenteAsignado": "a1"},
			{"id": "t4", "estado": "abierto", "agenteAsignado": "a2"},
			{"id": "t5", "estado": "abierto", "agenteAsignado": null}
		]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, srv.URL)
	tickets, err := client.ListAgentTickets(context.Background(), "a1", "emp-1", domain.ActiveStatuses())
	require.NoError(t, err)

	ids := make([]string, 0, len(tickets))
	for _, tk := range tickets {
		ids = append(ids, tk.TicketID())
	}
	assert.Equal(t, []string{"t1", "t2"}, ids)
}

func TestListAgentTicketsMalformedEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `not json`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, srv.URL)
	_, err := client.ListAgentTickets(context.Background(), "a1", "emp-1", domain.AllStatuses())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUpstreamMalformed))
}

func TestUpdateClassificationSendsPatch(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, srv.URL)
	rec := catalog.ClassificationRecord{
		Tipo:          catalog.TypeIncident,
		Prioridad:     "alta",
		Categoria:     "Seguridad",
		GrupoAtencion: "Seguridad",
	}
	require.NoError(t, client.UpdateClassification(context.Background(), "t1", rec))

	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/tickets/t1/clasificacion", gotPath)

	var sent catalog.ClassificationRecord
	require.NoError(t, json.Unmarshal(gotBody, &sent))
	assert.Equal(t, rec.GrupoAtencion, sent.GrupoAtencion)
}

func TestAssignAgentSendsPut(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, srv.URL)
	require.NoError(t, client.AssignAgent(context.Background(), "t1", "a1"))

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/tickets/t1/asignar-ia", gotPath)
	assert.JSONEq(t, `{"agenteId": "a1"}`, string(gotBody))
}

func TestWriteRejectionSurfacesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, srv.URL)
	err := client.AssignAgent(context.Background(), "t1", "a1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUpstreamRejected))
}
