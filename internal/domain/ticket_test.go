package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketIDFallsBackToMongoID(t *testing.T) {
	tk := Ticket{ID: "t-1", MongoID: "m-1"}
	assert.Equal(t, "t-1", tk.TicketID())

	tk = Ticket{MongoID: "m-1"}
	assert.Equal(t, "m-1", tk.TicketID())

	tk = Ticket{}
	assert.Empty(t, tk.TicketID())
}

func TestAgentRefDecodesStringAndObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare string", `"a1"`, "a1"},
		{"embedded document", `{"_id": "a1", "nombre": "Ana"}`, "a1"},
		{"embedded alt id", `{"id": "a1"}`, "a1"},
		{"null", `null`, ""},
		{"unexpected number", `42`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var ref AgentRef
			require.NoError(t, json.Unmarshal([]byte(tc.in), &ref))
			assert.Equal(t, tc.want, ref.ID)
		})
	}
}

func TestFlexTimeToleratesPeerVariants(t *testing.T) {
	cases := []struct {
		name string
		in   string
		zero bool
	}{
		{"rfc3339", `"2026-08-01T10:00:00Z"`, false},
		{"fractional seconds", `"2026-08-01T10:00:00.123Z"`, false},
		{"no zone", `"2026-08-01T10:00:00"`, false},
		{"space separator", `"2026-08-01 10:00:00"`, false},
		{"empty string", `""`, true},
		{"null", `null`, true},
		{"garbage", `"yesterday"`, true},
		{"unexpected number", `1722506400`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var ft FlexTime
			require.NoError(t, json.Unmarshal([]byte(tc.in), &ft))
			assert.Equal(t, tc.zero, ft.IsZero())
		})
	}
}

func TestTicketDecodesPeerPayload(t *testing.T) {
	payload := `{
		"_id": "t-1",
		"titulo": "PC infectada",
		"empresaId": "emp-1",
		"servicioNombre": "Virus",
		"estado": "en_proceso",
		"prioridad": "alta",
		"agenteAsignado": {"_id": "a1"},
		"fechaAsignacion": "2026-08-01T10:00:00Z",
		"createdAt": "2026-08-01T09:00:00Z"
	}`

	var tk Ticket
	require.NoError(t, json.Unmarshal([]byte(payload), &tk))

	assert.Equal(t, "t-1", tk.TicketID())
	assert.True(t, tk.AssignedTo("a1"))
	assert.False(t, tk.AssignedTo("a2"))
	assert.False(t, tk.AssignedTo(""))
	assert.True(t, tk.InStatus(ActiveStatuses()))
	assert.False(t, tk.Closed())

	want := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	assert.True(t, tk.AssignmentTime().Equal(want))
}

func TestAssignmentTimeFallsBackToCreation(t *testing.T) {
	created := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	tk := Ticket{CreatedAt: FlexTime{Time: created}}
	assert.True(t, tk.AssignmentTime().Equal(created))
}

func TestClosedStates(t *testing.T) {
	for _, estado := range []TicketStatus{TicketStatusResolved, TicketStatusClosed} {
		tk := Ticket{Estado: estado}
		assert.True(t, tk.Closed(), string(estado))
		assert.False(t, tk.InStatus(ActiveStatuses()), string(estado))
	}
}
