package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordGrantTracksActiveGauge(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordGrant(GrantBegun)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GrantActive))

	m.RecordGrant(GrantExpired)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.GrantActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GrantsTotal.WithLabelValues(GrantBegun)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GrantsTotal.WithLabelValues(GrantExpired)))
}

func TestRecordRefreshSubmission(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordRefreshSubmission(nil)
	m.RecordRefreshSubmission(errors.New("quota"))
	m.RecordRefreshSubmission(errors.New("quota"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefreshSubmissions.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RefreshSubmissions.WithLabelValues("error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordGrant(GrantBegun)
		m.RecordCommand("c", "m", "success", time.Millisecond)
		m.RecordPush("c", "m")
		m.SetLowPowerMode(true)
		m.IncWSConnections()
		NewTimer(m, "c", "m").Stop("success")
	})
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(prometheus.NewRegistry())

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/ping/:id", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping/42", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/ping/:id", "200")))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), "lifecycle_http_requests_total")
	assert.Contains(t, w.Body.String(), "lifecycle_uptime_seconds")
}
