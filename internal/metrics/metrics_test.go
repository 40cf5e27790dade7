package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline_IsolatedRegistries(t *testing.T) {
	t.Parallel()

	a, b := New(), New()

	a.Attempts.WithLabelValues("jobs", OutcomeDone).Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Attempts.WithLabelValues("jobs", OutcomeDone)))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Attempts.WithLabelValues("jobs", OutcomeDone)))
}

func TestPipeline_Handler(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	p := New()
	p.EventsReceived.WithLabelValues("geometry-import", "created").Add(3)
	p.InFlight.Set(2)

	// --- Act ---
	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	// --- Assert ---
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `panelsync_events_received_total{folder="geometry-import",kind="created"} 3`)
	assert.Contains(t, string(body), "panelsync_paths_in_flight 2")
}
