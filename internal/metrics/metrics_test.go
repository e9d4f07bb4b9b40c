package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/product-extractor/internal/scrapeerr"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, m.Write(&pb))
	if pb.Counter != nil {
		return pb.Counter.GetValue()
	}
	return pb.Gauge.GetValue()
}

func series(t *testing.T, m *Metrics, name string) int {
	t.Helper()
	families, err := m.Registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return len(f.GetMetric())
		}
	}
	return 0
}

func TestObserveExtraction(t *testing.T) {
	m := New()

	m.ObserveExtraction("zara.com", 2*time.Second, nil)
	m.ObserveExtraction("zara.com", time.Second, &scrapeerr.NotFoundError{URL: "https://zara.com/x", StatusCode: 404})
	m.ObserveExtraction("", time.Second, errors.New("boom"))

	assert.Equal(t, 1.0, value(t, m.ErrorsTotal.WithLabelValues("not_found")))
	assert.Equal(t, 1.0, value(t, m.ErrorsTotal.WithLabelValues("other")))
	assert.Equal(t, 2, series(t, m, "extractor_extraction_duration_seconds"))
}

func TestCountersAndGauges(t *testing.T) {
	m := New()

	m.IncItemProcessed("processed")
	m.IncItemProcessed("processed")
	m.IncItemProcessed("link_dead")
	m.SetOutboxBacklog(7, 2)

	assert.Equal(t, 2.0, value(t, m.ItemsProcessed.WithLabelValues("processed")))
	assert.Equal(t, 1.0, value(t, m.ItemsProcessed.WithLabelValues("link_dead")))
	assert.Equal(t, 7.0, value(t, m.OutboxPending))
	assert.Equal(t, 2.0, value(t, m.OutboxDeadLetter))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveExtraction("zara.com", time.Second, errors.New("boom"))
		m.IncItemProcessed("failed")
		m.SetOutboxBacklog(1, 1)
	})
	assert.NotNil(t, m.Handler())
}

func TestHandler(t *testing.T) {
	m := New()
	m.IncItemProcessed("processed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `extractor_items_processed_total{status="processed"} 1`)
}
