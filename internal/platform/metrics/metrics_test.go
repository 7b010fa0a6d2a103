package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/collections/{address}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, addr := range []string{"0x01", "0x02"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/collections/"+addr, nil))
	}

	count, err := testutil.GatherAndCount(reg, "chronostamp_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "both requests share one route series")
	assert.InDelta(t, 0, testutil.ToFloat64(m.InFlight), 0)
}
