package catalog

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ezelpc/aurontek-routing/internal/domain"
)

// Ticket type values on the wire contract.
const (
	TypeIncident = "incidente"
	TypeRequest  = "requerimiento"
)

// DefaultAttentionGroup is the generic front-desk group used by the default
// classification and as the single fallback group during agent selection.
const DefaultAttentionGroup = "Mesa de Servicio"

// ClassificationRecord is the shape pushed to tickets-svc after a lookup.
// SLA minutes are derived once from the authored SLA string at package init
// and never recomputed per request.
type ClassificationRecord struct {
	Tipo             string                `json:"tipo"`
	Prioridad        domain.TicketPriority `json:"prioridad"`
	Categoria        string                `json:"categoria"`
	GrupoAtencion    string                `json:"grupo_atencion"`
	TiempoResolucion int                   `json:"tiempoResolucion"`
	TiempoRespuesta  int                   `json:"tiempoRespuesta"`
}

var firstNumber = regexp.MustCompile(`\d+`)

// ParseSLAMinutes converts authored SLA strings ("4 horas", "30MIN", "2HRS")
// to minutes. The second return is false for unusable values such as "NA" or
// entries still pending definition.
func ParseSLAMinutes(sla string) (int, bool) {
	if sla == "" || strings.Contains(sla, "NA") || strings.Contains(sla, "Definición") {
		return 0, false
	}
	match := firstNumber.FindString(sla)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	lower := strings.ToLower(sla)
	if strings.Contains(lower, "min") {
		return n, true
	}
	// Bare numbers and explicit "hrs"/"hora" are both hours.
	return n * 60, true
}

func mustSLA(sla string) int {
	minutes, ok := ParseSLAMinutes(sla)
	if !ok {
		panic("catalog: unusable SLA string " + strconv.Quote(sla))
	}
	return minutes
}

func record(tipo string, prioridad domain.TicketPriority, categoria, grupo, sla string) ClassificationRecord {
	minutes := mustSLA(sla)
	return ClassificationRecord{
		Tipo:             tipo,
		Prioridad:        prioridad,
		Categoria:        categoria,
		GrupoAtencion:    grupo,
		TiempoResolucion: minutes,
		TiempoRespuesta:  minutes,
	}
}

// serviceCatalog maps service names, exactly as authored in the service
// catalog spreadsheet, to their classification. Lookups are case sensitive.
var serviceCatalog = map[string]ClassificationRecord{
	"Mapeo de carpetas compartidas": record(TypeRequest, domain.TicketPriorityHigh,
		"Almacenamiento", DefaultAttentionGroup, "4 horas"),
	"La carpeta no esta disponible": record(TypeIncident, domain.TicketPriorityLow,
		"Almacenamiento", "Servidores/Respaldos/Storage", "20 horas"),
	"Robo de equipo cómputo": record(TypeIncident, domain.TicketPriorityMedium,
		"Computo Personal", DefaultAttentionGroup, "32 horas"),
	"Desbloqueo de cuenta": record(TypeRequest, domain.TicketPriorityHigh,
		"Directorio Activo", DefaultAttentionGroup, "2 horas"),
	"Reseteo de contraseña": record(TypeRequest, domain.TicketPriorityHigh,
		"Accesos", DefaultAttentionGroup, "30MIN"),
	"Instalación de software": record(TypeRequest, domain.TicketPriorityMedium,
		"Software", DefaultAttentionGroup, "4HRS"),
	"Sin salida a Internet": record(TypeIncident, domain.TicketPriorityMedium,
		"Redes", "Telecomunicaciones", "12 horas"),
	"Configuración de switches": record(TypeRequest, domain.TicketPriorityHigh,
		"Redes", "Infraestructura", "2HRS"),
	"Virus": record(TypeIncident, domain.TicketPriorityHigh,
		"Seguridad", "Seguridad", "4 horas"),
}

var defaultRecord = record(TypeIncident, domain.TicketPriorityMedium,
	"General", DefaultAttentionGroup, "24 horas")

// Lookup returns a copy of the record for the given service name.
func Lookup(serviceName string) (ClassificationRecord, bool) {
	rec, ok := serviceCatalog[serviceName]
	return rec, ok
}

// Default returns a copy of the fallback classification.
func Default() ClassificationRecord {
	return defaultRecord
}

// Size reports the number of catalog entries.
func Size() int {
	return len(serviceCatalog)
}
