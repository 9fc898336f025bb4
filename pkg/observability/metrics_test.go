package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}
	if metrics.FetchUnitsTotal == nil {
		t.Error("FetchUnitsTotal is nil")
	}
	if metrics.JobsClaimedTotal == nil {
		t.Error("JobsClaimedTotal is nil")
	}
	if metrics.SchemaMismatchesTotal == nil {
		t.Error("SchemaMismatchesTotal is nil")
	}
	if metrics.JobsPending == nil {
		t.Error("JobsPending is nil")
	}
}

func TestMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.FetchUnitsTotal.WithLabelValues("hrv", "stored").Inc()
	metrics.FetchUnitsTotal.WithLabelValues("hrv", "stored").Inc()
	metrics.FetchUnitsTotal.WithLabelValues("steps", "no_data").Inc()

	if v := testutil.ToFloat64(metrics.FetchUnitsTotal.WithLabelValues("hrv", "stored")); v != 2 {
		t.Errorf("hrv/stored = %v, want 2", v)
	}
	if v := testutil.ToFloat64(metrics.FetchUnitsTotal.WithLabelValues("steps", "no_data")); v != 1 {
		t.Errorf("steps/no_data = %v, want 1", v)
	}

	metrics.JobsPending.Set(5)
	if v := testutil.ToFloat64(metrics.JobsPending); v != 5 {
		t.Errorf("JobsPending = %v, want 5", v)
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	handler := HTTPMetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/triggers", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if v := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/triggers", "202")); v != 1 {
		t.Errorf("HTTPRequestsTotal = %v, want 1", v)
	}
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.ReadingsUpsertedTotal.Add(3)

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "pulse_readings_upserted_total 3") {
		t.Error("metrics endpoint should expose pulse_readings_upserted_total")
	}
}
