package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func TestInstrumentLabelsRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(Instrument)
	router.HandleFunc("/roles/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	Init()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/roles/Technician", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	scrape := httptest.NewRecorder()
	Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := scrape.Body.String()
	assert.Contains(t, body, `path="/roles/{name}"`)
	assert.NotContains(t, body, "/roles/Technician")
}

func TestInitIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})
}

func TestHandlerServesDomainCounters(t *testing.T) {
	Init()
	Decisions.WithLabelValues("Granted").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fleetguard_authz_decisions_total")
}
