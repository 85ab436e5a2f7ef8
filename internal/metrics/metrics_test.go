package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(rescheduleTransitions.WithLabelValues("approve", "OK"))
	IncRescheduleTransition("approve", "OK")
	assert.Equal(t, before+1, testutil.ToFloat64(rescheduleTransitions.WithLabelValues("approve", "OK")))

	expiredBefore := testutil.ToFloat64(requestsExpired)
	AddExpired(3)
	assert.Equal(t, expiredBefore+3, testutil.ToFloat64(requestsExpired))

	okBefore := testutil.ToFloat64(slotQueries.WithLabelValues("ok"))
	ObserveSlotQuery("ok", time.Now())
	assert.Equal(t, okBefore+1, testutil.ToFloat64(slotQueries.WithLabelValues("ok")))
}
