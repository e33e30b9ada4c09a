package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StageSentinel/internal/model"
)

func TestRegistry_Counters(t *testing.T) {
	r := NewRegistry()

	r.ObserveGeneration("synthetic", 0.002, nil)
	r.ObserveGeneration("synthetic", 0.001, errors.New("boom"))
	r.ObserveTransition(model.StageBasing, model.StageAdvancing)
	r.ObserveRequest("/api/v1/health", 200)
	r.Alerts.Inc()
	r.FeedUnread.Set(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.Generations.WithLabelValues("synthetic", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Generations.WithLabelValues("synthetic", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Transitions.WithLabelValues("1", "2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.HTTPRequests.WithLabelValues("/api/v1/health", "200")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.FeedUnread))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Alerts))
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.Alerts.Inc()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "stagesentinel_alerts_total 1")
}
