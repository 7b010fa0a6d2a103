package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"chronostamp/internal/platform/metrics"
	"chronostamp/pkg/platform/middleware/request"
	"chronostamp/pkg/testutil"
)

type pingModule struct{}

func (pingModule) Register(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
}

func newRouter(checks map[string]HealthCheck) http.Handler {
	reg := prometheus.NewRegistry()
	return NewRouter(Config{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:  metrics.New(reg),
		Gatherer: reg,
		Checks:   checks,
	}, pingModule{})
}

func TestRouter(t *testing.T) {
	t.Run("module routes are mounted with a request id", func(t *testing.T) {
		rr := testutil.DoRequest(newRouter(nil), testutil.NewRequest(t, http.MethodGet, "/ping"))
		testutil.AssertStatus(t, rr, http.StatusNoContent)
		assert.NotEmpty(t, rr.Header().Get(request.HeaderRequestID))
	})

	t.Run("healthz ok", func(t *testing.T) {
		h := newRouter(map[string]HealthCheck{"db": func(context.Context) error { return nil }})
		rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/healthz"))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "status", "ok")
	})

	t.Run("healthz degraded", func(t *testing.T) {
		h := newRouter(map[string]HealthCheck{"redis": func(context.Context) error { return errors.New("refused") }})
		rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/healthz"))
		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
		resp := testutil.UnmarshalResponse[healthResponse](t, rr)
		assert.Equal(t, "refused", resp.Checks["redis"])
	})

	t.Run("metrics exposed", func(t *testing.T) {
		h := newRouter(nil)
		testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/ping"))
		rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/metrics"))
		testutil.AssertStatusOK(t, rr)
		assert.Contains(t, rr.Body.String(), "chronostamp_http_request_duration_seconds")
	})

	t.Run("panics become 500", func(t *testing.T) {
		rr := testutil.DoRequest(newRouter(nil), testutil.NewRequest(t, http.MethodGet, "/panic"))
		testutil.AssertStatusAndError(t, rr, http.StatusInternalServerError, "internal_error")
	})
}
