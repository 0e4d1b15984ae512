package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dancebot_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dancebot_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dancebot_bookings_total",
			Help: "Total number of bookings by payment mode",
		},
		[]string{"payment_mode"},
	)

	BookingRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dancebot_booking_rejections_total",
			Help: "Booking attempts rejected by a business rule",
		},
		[]string{"reason"},
	)

	CancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dancebot_cancellations_total",
			Help: "Booking cancellations by kind",
		},
		[]string{"kind"},
	)

	CreditGrantsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dancebot_credit_grants_total",
			Help: "Compensation credit grants by target",
		},
		[]string{"target"},
	)

	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dancebot_payments_total",
			Help: "Payment status transitions",
		},
		[]string{"status"},
	)

	ExpiredReservationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dancebot_expired_reservations_total",
			Help: "Reservations expired by the janitor sweep",
		},
	)

	SlotsCanceledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dancebot_slots_canceled_total",
			Help: "Slots canceled by an administrator",
		},
	)

	NotificationsQueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dancebot_notifications_queued_total",
			Help: "Notification intents queued for delivery",
		},
	)

	NotificationQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dancebot_notification_queue_length",
			Help: "Current length of the notification queue",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordBooking(paymentMode string) {
	BookingsTotal.WithLabelValues(paymentMode).Inc()
}

func RecordBookingRejection(reason string) {
	BookingRejectionsTotal.WithLabelValues(reason).Inc()
}

func RecordCancellation(kind string) {
	CancellationsTotal.WithLabelValues(kind).Inc()
}

func RecordCreditGrant(target string) {
	CreditGrantsTotal.WithLabelValues(target).Inc()
}

func RecordPayment(status string) {
	PaymentsTotal.WithLabelValues(status).Inc()
}

func RecordExpiredReservations(n int) {
	ExpiredReservationsTotal.Add(float64(n))
}

func RecordSlotCanceled() {
	SlotsCanceledTotal.Inc()
}

func RecordNotificationQueued() {
	NotificationsQueuedTotal.Inc()
}
