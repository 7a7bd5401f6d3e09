package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestInstrumentUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Instrument)
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := value(httpRequestsTotal.WithLabelValues("GET", "/users/{id}", "404"))
	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/"+id, nil))
	}
	after := value(httpRequestsTotal.WithLabelValues("GET", "/users/{id}", "404"))

	if after-before != 2 {
		t.Fatalf("expected 2 requests under the route pattern, got %v", after-before)
	}
}

func TestAuthOutcome(t *testing.T) {
	before := value(authOutcomesTotal.WithLabelValues("verify", "expired"))
	AuthOutcome("verify", "expired")
	if got := value(authOutcomesTotal.WithLabelValues("verify", "expired")); got != before+1 {
		t.Fatalf("counter = %v, want %v", got, before+1)
	}
}

func value(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return -1
	}
	return m.GetCounter().GetValue()
}
