package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
)

// scrape renders the registry the way Prometheus would read it
func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestCounters(t *testing.T) {
	m, err := New("test")
	require.NoError(t, err)

	m.Transition(domain.EventSigned)
	m.Transition(domain.EventSigned)
	m.Transition(domain.EventCompleted)
	m.LockContended()
	m.NotificationEnqueued(domain.NotificationReview)
	m.NotificationDelivered(domain.NotificationReview)
	m.NotificationFailed(domain.NotificationCompleted)

	text := scrape(t, m)
	for _, want := range []string{
		`sercha_sign_workflow_transitions_total{event="signed"} 2`,
		`sercha_sign_workflow_transitions_total{event="completed"} 1`,
		`sercha_sign_workflow_lock_contended_total 1`,
		`sercha_sign_notifications_enqueued_total{action="review"} 1`,
		`sercha_sign_notifications_delivered_total{action="review"} 1`,
		`sercha_sign_notifications_failed_total{action="completed"} 1`,
	} {
		assert.Contains(t, text, want)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m, err := New("1.2.3")
	require.NoError(t, err)
	m.ObserveRequest(http.MethodGet, "GET /api/v1/documents", http.StatusOK, 15*time.Millisecond)

	text := scrape(t, m)
	assert.Contains(t, text, `sercha_sign_server_version{server_version="1.2.3"} 1`)
	assert.Contains(t, text, `sercha_sign_http_request_duration_seconds_count{method="GET",route="GET /api/v1/documents",status="200"} 1`)
	assert.Contains(t, text, "go_goroutines")
	assert.NotNil(t, m.Registry())
}
