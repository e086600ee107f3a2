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

func TestObserveOperation(t *testing.T) {
	before := testutil.ToFloat64(registrationOperations.WithLabelValues("register", "created"))
	ObserveOperation("register", "created", 10*time.Millisecond)
	after := testutil.ToFloat64(registrationOperations.WithLabelValues("register", "created"))
	assert.Equal(t, before+1, after)
}

func TestSetSeatsAvailable(t *testing.T) {
	SetSeatsAvailable("evt-1", 7)
	assert.Equal(t, float64(7), testutil.ToFloat64(seatsAvailable.WithLabelValues("evt-1")))
}

func TestLedgerFault(t *testing.T) {
	before := testutil.ToFloat64(ledgerFaults)
	LedgerFault()
	assert.Equal(t, before+1, testutil.ToFloat64(ledgerFaults))
}

func TestHandlerExposesMetrics(t *testing.T) {
	RateLimited("register")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "registration_rate_limited_total")
}
