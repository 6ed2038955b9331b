package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldledger/internal/domain/invoice"
	"fieldledger/internal/domain/stock"
)

func TestMetrics_Observer(t *testing.T) {
	m := New()

	m.SaveFinished(invoice.ResultSaved)
	m.SaveFinished(invoice.ResultSaved)
	m.SaveFinished(invoice.ResultConflict)
	m.CommitRetried()
	m.DeficitRecorded(stock.ItemTypeDevice, 2)
	m.DeficitRecorded(stock.ItemTypeDevice, 1)
	m.CatalogFallback("not_found")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.saves.WithLabelValues(invoice.ResultSaved)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.saves.WithLabelValues(invoice.ResultConflict)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retries))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.deficitUnits.WithLabelValues("device")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.catalogFallback.WithLabelValues("not_found")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodPost, "/api/v1/invoices", http.StatusCreated, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `http_requests_total{method="POST",route="/api/v1/invoices",status="201"} 1`))
	assert.Contains(t, body, "http_request_duration_seconds_bucket")
}
