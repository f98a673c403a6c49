package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.ObserveExchange("direct", time.Second)
	r.ObserveCompletion("first", nil, time.Second)
	r.ObserveDispatch("search_places", "", time.Second)
	r.ObserveHTTP("/api/chat", 200)
	assert.Nil(t, r.Registry())
}

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.ObserveDispatch("search_places", "", 10*time.Millisecond)
	r.ObserveDispatch("search_places", "", 10*time.Millisecond)
	r.ObserveDispatch("teleport", "unknown_capability", 0)
	r.ObserveCompletion("first", errors.New("x"), time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.dispatches.WithLabelValues("search_places", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.dispatches.WithLabelValues("teleport", "unknown_capability")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.completionCalls.WithLabelValues("first", "error")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.ObserveExchange("direct", 200*time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `waypoint_exchanges_total{outcome="direct"} 1`)
}
