package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/xSkywa1ker/dance-bot/internal/logger"

	"github.com/robfig/cron/v3"
)

// ReservationExpirer releases seats held past the payment timeout.
type ReservationExpirer interface {
	ExpireStaleReservations(ctx context.Context) (int, error)
}

// Reminder queues day-before notifications for upcoming classes.
type Reminder interface {
	RemindUpcoming(ctx context.Context) (int, error)
}

// Janitor runs the background sweeps: expiring unpaid reservations on a
// short interval and reminding users about classes a day out.
type Janitor struct {
	cron     *cron.Cron
	expirer  ReservationExpirer
	reminder Reminder

	sweepInterval time.Duration
}

func New(expirer ReservationExpirer, reminder Reminder, sweepInterval time.Duration) *Janitor {
	return &Janitor{
		cron:          cron.New(),
		expirer:       expirer,
		reminder:      reminder,
		sweepInterval: sweepInterval,
	}
}

func (j *Janitor) Start() error {
	spec := fmt.Sprintf("@every %s", j.sweepInterval)
	if _, err := j.cron.AddFunc(spec, j.expireSweep); err != nil {
		return fmt.Errorf("failed to schedule expiry sweep: %w", err)
	}
	if _, err := j.cron.AddFunc("@hourly", j.reminderSweep); err != nil {
		return fmt.Errorf("failed to schedule reminder sweep: %w", err)
	}

	j.cron.Start()
	logger.Info("Janitor started", "sweep_interval", j.sweepInterval.String())
	return nil
}

// Stop halts scheduling and returns once running jobs have finished.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	logger.Info("Janitor stopped")
}

func (j *Janitor) expireSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := j.expirer.ExpireStaleReservations(ctx); err != nil {
		logger.Errorf("Reservation expiry sweep failed: %v", err)
	}
}

func (j *Janitor) reminderSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	sent, err := j.reminder.RemindUpcoming(ctx)
	if err != nil {
		logger.Errorf("Reminder sweep failed: %v", err)
		return
	}
	if sent > 0 {
		logger.Info("Class reminders queued", "count", sent)
	}
}
