package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_ObserveQuery(t *testing.T) {
	p := New()
	p.ObserveQuery("ok", 20*time.Millisecond)
	p.ObserveQuery("ok", 30*time.Millisecond)
	p.ObserveQuery("parcel_not_found", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.queries.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.queries.WithLabelValues("parcel_not_found")))
}

func TestProvider_ObserveLayer(t *testing.T) {
	p := New()
	p.ObserveLayer("zee", "ok", time.Millisecond)
	p.ObserveLayer("eco", "empty", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.layers.WithLabelValues("eco", "empty")))
	assert.Equal(t, 2, testutil.CollectAndCount(p.layers))
}

func TestProvider_Handler(t *testing.T) {
	p := New()
	p.ObserveHTTP(http.MethodGet, "/health", http.StatusOK, time.Millisecond)

	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, `zoneshare_build_info{version="dev"} 1`)
	assert.Contains(t, body, `zoneshare_http_requests_total{method="GET",route="/health",status="200"} 1`)
}
