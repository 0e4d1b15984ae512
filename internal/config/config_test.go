package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "stub", cfg.PaymentProvider)
	assert.Equal(t, 20*time.Minute, cfg.ReservationPaymentTimeout)
	assert.Equal(t, 24*time.Hour, cfg.CancellationWindow)
	assert.Equal(t, 90, cfg.CompensationValidityDays)
	assert.Equal(t, 30*time.Second, cfg.JanitorInterval)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PAYMENT_PROVIDER", "yookassa")
	t.Setenv("RESERVATION_PAYMENT_TIMEOUT_MIN", "5")
	t.Setenv("CANCELLATION_WINDOW_HOURS", "48")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "yookassa", cfg.PaymentProvider)
	assert.Equal(t, 5*time.Minute, cfg.ReservationPaymentTimeout)
	assert.Equal(t, 48*time.Hour, cfg.CancellationWindow)
}

func TestLoadBadIntFallsBack(t *testing.T) {
	t.Setenv("COMPENSATION_VALIDITY_DAYS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 90, cfg.CompensationValidityDays)
}
