package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordBooking(t *testing.T) {
	before := testutil.ToFloat64(BookingsTotal.WithLabelValues("subscription"))
	RecordBooking("subscription")
	after := testutil.ToFloat64(BookingsTotal.WithLabelValues("subscription"))
	assert.Equal(t, before+1, after)
}

func TestRecordBookingRejection(t *testing.T) {
	before := testutil.ToFloat64(BookingRejectionsTotal.WithLabelValues("capacity_exceeded"))
	RecordBookingRejection("capacity_exceeded")
	after := testutil.ToFloat64(BookingRejectionsTotal.WithLabelValues("capacity_exceeded"))
	assert.Equal(t, before+1, after)
}

func TestRecordCancellation(t *testing.T) {
	before := testutil.ToFloat64(CancellationsTotal.WithLabelValues("late_cancel"))
	RecordCancellation("late_cancel")
	after := testutil.ToFloat64(CancellationsTotal.WithLabelValues("late_cancel"))
	assert.Equal(t, before+1, after)
}

func TestRecordExpiredReservations(t *testing.T) {
	before := testutil.ToFloat64(ExpiredReservationsTotal)
	RecordExpiredReservations(3)
	after := testutil.ToFloat64(ExpiredReservationsTotal)
	assert.Equal(t, before+3, after)
}

func TestRecordPayment(t *testing.T) {
	before := testutil.ToFloat64(PaymentsTotal.WithLabelValues("paid"))
	RecordPayment("paid")
	after := testutil.ToFloat64(PaymentsTotal.WithLabelValues("paid"))
	assert.Equal(t, before+1, after)
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/slots", "200"))
	RecordHTTPRequest("GET", "/slots", "200", 0.05)
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/slots", "200"))
	assert.Equal(t, before+1, after)
}
