package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/ezelpc/aurontek-routing/internal/catalog"
	"github.com/ezelpc/aurontek-routing/internal/domain"
	"github.com/ezelpc/aurontek-routing/internal/observability"
)

func newTestClassifier() *Classifier {
	return New(zap.NewNop(), observability.NewMetrics())
}

func TestClassifyCatalogHit(t *testing.T) {
	c := newTestClassifier()
	rec, hit := c.Classify(&domain.Ticket{ID: "t1", ServicioNombre: "Virus"})

	assert.True(t, hit)
	assert.Equal(t, "Seguridad", rec.GrupoAtencion)
	assert.Equal(t, domain.TicketPriorityHigh, rec.Prioridad)
}

func TestClassifyUnknownServiceFallsBack(t *testing.T) {
	c := newTestClassifier()
	rec, hit := c.Classify(&domain.Ticket{ID: "t1", ServicioNombre: "Impresora cuántica"})

	assert.False(t, hit)
	assert.Equal(t, catalog.Default(), rec)
}

func TestClassifyMissingServiceName(t *testing.T) {
	c := newTestClassifier()
	rec, hit := c.Classify(&domain.Ticket{ID: "t1"})

	assert.False(t, hit)
	assert.Equal(t, catalog.DefaultAttentionGroup, rec.GrupoAtencion)
	assert.Equal(t, 1440, rec.TiempoResolucion)
}

func TestClassifyCountsHitsAndFallbacks(t *testing.T) {
	metrics := observability.NewMetrics()
	c := New(zap.NewNop(), metrics)

	c.Classify(&domain.Ticket{ServicioNombre: "Virus"})
	c.Classify(&domain.Ticket{ServicioNombre: "desconocido"})
	c.Classify(&domain.Ticket{})

	snapshot := metrics.Snapshot()
	assert.Equal(t, int64(1), snapshot[observability.MetricClassifierHits])
	assert.Equal(t, int64(2), snapshot[observability.MetricClassifierFallbacks])
}
